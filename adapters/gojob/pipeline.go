package gojob

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-healthdata/core"
	"github.com/goliatone/go-healthdata/pipeline"
)

type WindowRunner interface {
	Run(ctx context.Context, start time.Time, end time.Time) pipeline.RunReport
}

// PipelineJobHandler consumes pipeline run jobs. Jobs with an unreadable
// window are dead-lettered; unit failures inside a run are not retried.
type PipelineJobHandler struct {
	runner WindowRunner
	logger core.Logger
}

func NewPipelineJobHandler(runner WindowRunner, logger core.Logger) *PipelineJobHandler {
	return &PipelineJobHandler{runner: runner, logger: logger}
}

func (h *PipelineJobHandler) Handle(ctx context.Context, delivery core.JobDelivery) (pipeline.RunReport, error) {
	if h == nil || h.runner == nil {
		return pipeline.RunReport{}, fmt.Errorf("gojob: pipeline runner is not configured")
	}
	if delivery == nil {
		return pipeline.RunReport{}, fmt.Errorf("gojob: delivery is required")
	}
	start, end, err := PipelineWindow(delivery.Message())
	if err != nil {
		if nackErr := delivery.Nack(ctx, core.JobNackOptions{DeadLetter: true, Reason: err.Error()}); nackErr != nil {
			return pipeline.RunReport{}, nackErr
		}
		return pipeline.RunReport{}, err
	}
	report := h.runner.Run(ctx, start, end)
	if h.logger != nil && len(report.Failed) > 0 {
		h.logger.Warn("pipeline job finished with failed units", "failed", len(report.Failed), "start", start, "end", end)
	}
	if err := delivery.Ack(ctx); err != nil {
		return report, err
	}
	return report, nil
}

// ProcessNext dequeues and handles a single job.
func (h *PipelineJobHandler) ProcessNext(ctx context.Context, dequeuer core.JobDequeuer) (pipeline.RunReport, error) {
	if dequeuer == nil {
		return pipeline.RunReport{}, fmt.Errorf("gojob: dequeuer is required")
	}
	delivery, err := dequeuer.Dequeue(ctx)
	if err != nil {
		return pipeline.RunReport{}, err
	}
	return h.Handle(ctx, delivery)
}
