package gojob

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"

	"github.com/goliatone/go-healthdata/core"
)

const (
	JobIDPipelineRun = "healthdata.pipeline.run"

	paramWindowStart = "t_start"
	paramWindowEnd   = "t_end"
)

// RetryPolicy bounds how often a failed delivery is requeued.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation.
func (p RetryPolicy) NormalizeAttempt(opts core.JobNackOptions, attempt int) core.JobNackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		if p.DeadLetterOnMax || out.DeadLetter {
			out.DeadLetter = true
		}
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}

// NewPipelineRunMessage builds the job that runs every processing unit over
// [start, end]. Runs of the same window share an idempotency key.
func NewPipelineRunMessage(start time.Time, end time.Time) *core.JobExecutionMessage {
	startText := start.UTC().Format(time.RFC3339)
	endText := end.UTC().Format(time.RFC3339)
	return &core.JobExecutionMessage{
		JobID:      JobIDPipelineRun,
		ScriptPath: JobIDPipelineRun,
		Parameters: map[string]any{
			paramWindowStart: startText,
			paramWindowEnd:   endText,
		},
		IdempotencyKey: "pipeline-run:" + startText + ":" + endText,
		DedupPolicy:    "drop",
	}
}

// PipelineWindow reads the window carried by a pipeline run job.
func PipelineWindow(msg *core.JobExecutionMessage) (time.Time, time.Time, error) {
	if msg == nil {
		return time.Time{}, time.Time{}, fmt.Errorf("gojob: execution message is required")
	}
	if strings.TrimSpace(msg.JobID) != JobIDPipelineRun {
		return time.Time{}, time.Time{}, fmt.Errorf("gojob: unexpected job %q", msg.JobID)
	}
	start, err := windowParam(msg.Parameters, paramWindowStart)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := windowParam(msg.Parameters, paramWindowEnd)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("gojob: window end precedes start")
	}
	return start, end, nil
}

func windowParam(params map[string]any, key string) (time.Time, error) {
	text, ok := params[key].(string)
	if !ok || strings.TrimSpace(text) == "" {
		return time.Time{}, fmt.Errorf("gojob: %s parameter is required", key)
	}
	parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(text))
	if err != nil {
		return time.Time{}, fmt.Errorf("gojob: %s parameter: %w", key, err)
	}
	return parsed.UTC(), nil
}

// ToExecutionMessage maps a healthdata job message to go-job.
func ToExecutionMessage(msg *core.JobExecutionMessage) *job.ExecutionMessage {
	if msg == nil {
		return nil
	}
	return &job.ExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		ScriptPath:     strings.TrimSpace(msg.ScriptPath),
		Parameters:     copyAnyMap(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    job.DeduplicationPolicy(strings.TrimSpace(msg.DedupPolicy)),
	}
}

func FromExecutionMessage(msg *job.ExecutionMessage) *core.JobExecutionMessage {
	if msg == nil {
		return nil
	}
	return &core.JobExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		ScriptPath:     strings.TrimSpace(msg.ScriptPath),
		Parameters:     copyAnyMap(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    strings.TrimSpace(string(msg.DedupPolicy)),
	}
}

func ToNackOptions(opts core.JobNackOptions) queue.NackOptions {
	return queue.NackOptions{
		Delay:      opts.Delay,
		Requeue:    opts.Requeue,
		DeadLetter: opts.DeadLetter,
		Reason:     opts.Reason,
	}
}

type EnqueuerAdapter struct {
	enqueuer queue.Enqueuer
}

func NewEnqueuerAdapter(enqueuer queue.Enqueuer) *EnqueuerAdapter {
	return &EnqueuerAdapter{enqueuer: enqueuer}
}

func (a *EnqueuerAdapter) Enqueue(ctx context.Context, msg *core.JobExecutionMessage) error {
	if a == nil || a.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	if msg == nil {
		return fmt.Errorf("gojob: execution message is required")
	}
	return a.enqueuer.Enqueue(ctx, ToExecutionMessage(msg))
}

type DeliveryAdapter struct {
	delivery queue.Delivery
	policy   RetryPolicy
}

func NewDeliveryAdapter(delivery queue.Delivery, policy RetryPolicy) *DeliveryAdapter {
	return &DeliveryAdapter{delivery: delivery, policy: policy}
}

func (d *DeliveryAdapter) Message() *core.JobExecutionMessage {
	if d == nil || d.delivery == nil {
		return nil
	}
	return FromExecutionMessage(d.delivery.Message())
}

func (d *DeliveryAdapter) Ack(ctx context.Context) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	return d.delivery.Ack(ctx)
}

func (d *DeliveryAdapter) Nack(ctx context.Context, opts core.JobNackOptions) error {
	return d.NackForAttempt(ctx, opts, 0)
}

func (d *DeliveryAdapter) NackForAttempt(ctx context.Context, opts core.JobNackOptions, attempt int) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	return d.delivery.Nack(ctx, ToNackOptions(d.policy.NormalizeAttempt(opts, attempt)))
}

type DequeuerAdapter struct {
	dequeuer queue.Dequeuer
	policy   RetryPolicy
}

func NewDequeuerAdapter(dequeuer queue.Dequeuer, policy RetryPolicy) *DequeuerAdapter {
	return &DequeuerAdapter{dequeuer: dequeuer, policy: policy}
}

func (a *DequeuerAdapter) Dequeue(ctx context.Context) (core.JobDelivery, error) {
	if a == nil || a.dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is not configured")
	}
	delivery, err := a.dequeuer.Dequeue(ctx)
	if err != nil {
		return nil, err
	}
	return NewDeliveryAdapter(delivery, a.policy), nil
}

// LoggingHook reports worker lifecycle events through a healthdata logger.
type LoggingHook struct {
	logger core.Logger
}

func NewLoggingHook(logger core.Logger) *LoggingHook {
	return &LoggingHook{logger: logger}
}

func (h *LoggingHook) OnStart(_ context.Context, event worker.Event) {
	h.log("debug", "pipeline job started", event)
}

func (h *LoggingHook) OnSuccess(_ context.Context, event worker.Event) {
	h.log("info", "pipeline job succeeded", event)
}

func (h *LoggingHook) OnFailure(_ context.Context, event worker.Event) {
	h.log("error", "pipeline job failed", event)
}

func (h *LoggingHook) OnRetry(_ context.Context, event worker.Event) {
	h.log("warn", "pipeline job retrying", event)
}

func (h *LoggingHook) log(level string, message string, event worker.Event) {
	if h == nil || h.logger == nil {
		return
	}
	msg := event.Message
	if msg == nil && event.Delivery != nil {
		msg = event.Delivery.Message()
	}
	fields := []any{"attempt", event.Attempt, "duration", event.Duration}
	if msg != nil {
		fields = append(fields, "job_id", msg.JobID, "idempotency_key", msg.IdempotencyKey)
	}
	if event.Delay > 0 {
		fields = append(fields, "delay", event.Delay)
	}
	if event.Err != nil {
		fields = append(fields, "error", event.Err)
	}
	switch level {
	case "debug":
		h.logger.Debug(message, fields...)
	case "warn":
		h.logger.Warn(message, fields...)
	case "error":
		h.logger.Error(message, fields...)
	default:
		h.logger.Info(message, fields...)
	}
}

func copyAnyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	maps.Copy(out, in)
	return out
}

var (
	_ core.JobEnqueuer = (*EnqueuerAdapter)(nil)
	_ core.JobDelivery = (*DeliveryAdapter)(nil)
	_ core.JobDequeuer = (*DequeuerAdapter)(nil)
	_ worker.Hook      = (*LoggingHook)(nil)
)
