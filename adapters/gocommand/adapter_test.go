package gocommand

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/goliatone/go-command"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"

	healthcommand "github.com/goliatone/go-healthdata/command"
	"github.com/goliatone/go-healthdata/core"
	"github.com/goliatone/go-healthdata/pipeline"
	healthquery "github.com/goliatone/go-healthdata/query"
)

type recordingRunner struct {
	calls []time.Time
}

func (r *recordingRunner) Run(_ context.Context, start time.Time, end time.Time) pipeline.RunReport {
	r.calls = append(r.calls, start, end)
	return pipeline.RunReport{Start: start, End: end}
}

func newBusService(t *testing.T) *core.Service {
	t.Helper()
	svc, err := core.NewService(core.DefaultConfig())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestBus_RequiresAttach(t *testing.T) {
	bus := NewBus(nil)
	if bus.Registry() == nil {
		t.Fatalf("expected a default registry")
	}
	if err := bus.StoreData(context.Background(), nil); err == nil {
		t.Fatalf("expected detached bus to refuse commands")
	}
	if _, err := bus.ListSchemaIDs(context.Background(), core.ListRequest{}); err == nil {
		t.Fatalf("expected detached bus to refuse queries")
	}
	var nilBus *Bus
	if nilBus.Attached() {
		t.Fatalf("nil bus must not report attached")
	}
	nilBus.Close()
}

func TestBus_RoundTripThroughDispatcher(t *testing.T) {
	ctx := context.Background()
	svc := newBusService(t)
	bus := NewBus(command.NewRegistry())
	if err := bus.Attach(svc, nil, nil); err != nil {
		t.Fatalf("attach: %v", err)
	}
	defer bus.Close()
	if bus.registration.Len() != 11 {
		t.Fatalf("expected 11 subscriptions without a pipeline runner, got %d", bus.registration.Len())
	}

	if err := bus.RegisterSchema(ctx, core.SchemaDefinition{ID: "omh:internal:steps", Version: 1, Definition: json.RawMessage(`{}`)}); err != nil {
		t.Fatalf("register schema: %v", err)
	}
	ts := time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)
	if err := bus.StoreData(ctx, []core.DataPoint{{
		Owner:    "alice",
		SchemaID: "omh:internal:steps",
		Version:  1,
		Meta:     core.MetaData{Timestamp: &ts},
		Payload:  json.RawMessage(`{"steps":10}`),
	}}); err != nil {
		t.Fatalf("store data: %v", err)
	}
	result, err := bus.ReadData(ctx, core.ReadRequest{SchemaID: "omh:internal:steps", Version: 1, Username: "alice"})
	if err != nil {
		t.Fatalf("read data: %v", err)
	}
	if result.Count() != 1 {
		t.Fatalf("expected one point, got %d", result.Count())
	}

	bus.Close()
	if _, err := bus.ReadData(ctx, core.ReadRequest{SchemaID: "omh:internal:steps", Version: 1, Username: "alice"}); err == nil {
		t.Fatalf("expected closed bus to refuse queries")
	}
}

func TestBus_RunPipelineDeliversReport(t *testing.T) {
	svc := newBusService(t)
	runner := &recordingRunner{}
	bus := NewBus(command.NewRegistry())
	if err := bus.Attach(svc, runner, time.UTC); err != nil {
		t.Fatalf("attach: %v", err)
	}
	defer bus.Close()
	if bus.registration.Len() != 12 {
		t.Fatalf("expected pipeline command to be subscribed, got %d", bus.registration.Len())
	}

	start := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24*time.Hour - time.Second)
	collector := command.NewResult[pipeline.RunReport]()
	ctx := command.ContextWithResult(context.Background(), collector)
	if err := bus.RunPipeline(ctx, healthcommand.RunPipelineMessage{Start: start, End: end}); err != nil {
		t.Fatalf("run pipeline: %v", err)
	}
	if len(runner.calls) != 2 || !runner.calls[0].Equal(start) || !runner.calls[1].Equal(end) {
		t.Fatalf("unexpected runner calls %v", runner.calls)
	}
	report, ok := collector.Load()
	if !ok || !report.Start.Equal(start) {
		t.Fatalf("expected report in result collector, got %+v ok=%v", report, ok)
	}
}

func TestBus_MirrorsCommandsOnly(t *testing.T) {
	svc := newBusService(t)
	queueRegistry := jobqueuecommand.NewRegistry()
	bus := NewBus(command.NewRegistry())
	if err := bus.MirrorToQueue("queue", nil); err == nil {
		t.Fatalf("expected nil queue registry to be rejected")
	}
	if err := bus.MirrorToQueue("queue", queueRegistry); err != nil {
		t.Fatalf("mirror to queue: %v", err)
	}
	if err := bus.Attach(svc, nil, nil); err != nil {
		t.Fatalf("attach: %v", err)
	}
	defer bus.Close()

	if _, ok := queueRegistry.Get(healthcommand.TypeRevokeGrant); !ok {
		t.Fatalf("expected revoke grant command in queue registry")
	}
	if _, ok := queueRegistry.Get(healthquery.TypeReadData); ok {
		t.Fatalf("queries must not be mirrored")
	}
}

func TestRegisterGateway_Validation(t *testing.T) {
	if _, err := RegisterGateway(nil, newBusService(t), nil, nil); err == nil {
		t.Fatalf("expected missing registry to fail")
	}
	if _, err := RegisterGateway(command.NewRegistry(), nil, nil, nil); err == nil {
		t.Fatalf("expected missing gateway to fail")
	}
}
