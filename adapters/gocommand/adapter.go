package gocommand

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"

	healthcommand "github.com/goliatone/go-healthdata/command"
	"github.com/goliatone/go-healthdata/core"
	healthquery "github.com/goliatone/go-healthdata/query"
)

// Bus sends healthdata messages through the go-command dispatcher. The
// dispatcher is process wide, so only one attached Bus should be live at
// a time; Close releases its handlers.
type Bus struct {
	registry     *command.Registry
	registration *Registration
}

func NewBus(registry *command.Registry) *Bus {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &Bus{registry: registry}
}

func (b *Bus) Registry() *command.Registry {
	if b == nil {
		return nil
	}
	return b.registry
}

// MirrorToQueue copies every registered command into a go-job queue
// registry when the bus is attached. Queries have no Execute method and
// are not mirrored.
func (b *Bus) MirrorToQueue(key string, queueRegistry *jobqueuecommand.Registry) error {
	if b == nil || b.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	mirror := jobqueuecommand.QueueResolver(queueRegistry)
	return b.registry.AddResolver(strings.TrimSpace(key), func(cmd any, meta command.CommandMeta, registry *command.Registry) error {
		if !reflect.ValueOf(cmd).MethodByName("Execute").IsValid() {
			return nil
		}
		return mirror(cmd, meta, registry)
	})
}

// Attach subscribes the gateway handlers and initializes the registry.
// pipelineRunner may be nil; location sets the default pipeline window.
func (b *Bus) Attach(
	gateway Gateway,
	pipelineRunner healthcommand.PipelineRunner,
	location *time.Location,
	runnerOpts ...runner.Option,
) error {
	if b == nil || b.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	if b.registration != nil {
		return fmt.Errorf("gocommand: bus already attached")
	}
	registration, err := RegisterGateway(b.registry, gateway, pipelineRunner, location, runnerOpts...)
	if err != nil {
		return err
	}
	if err := b.registry.Initialize(); err != nil {
		registration.Unsubscribe()
		return err
	}
	b.registration = registration
	return nil
}

func (b *Bus) Attached() bool {
	return b != nil && b.registration != nil
}

func (b *Bus) Close() {
	if b == nil {
		return
	}
	b.registration.Unsubscribe()
	b.registration = nil
}

func (b *Bus) RegisterSchema(ctx context.Context, def core.SchemaDefinition) error {
	return dispatch(b, ctx, healthcommand.RegisterSchemaMessage{Definition: def})
}

func (b *Bus) StoreData(ctx context.Context, points []core.DataPoint) error {
	return dispatch(b, ctx, healthcommand.StoreDataMessage{Points: points})
}

// RunPipeline dispatches a pipeline run. The report is delivered through a
// go-command result collector carried by ctx.
func (b *Bus) RunPipeline(ctx context.Context, msg healthcommand.RunPipelineMessage) error {
	return dispatch(b, ctx, msg)
}

func (b *Bus) ReadData(ctx context.Context, req core.ReadRequest) (core.MultiValueResult[core.DataPoint], error) {
	return query[healthquery.ReadDataMessage, core.MultiValueResult[core.DataPoint]](b, ctx, healthquery.ReadDataMessage{Request: req})
}

func (b *Bus) ListSchemaIDs(ctx context.Context, page core.ListRequest) (core.MultiValueResult[string], error) {
	return query[healthquery.ListSchemaIDsMessage, core.MultiValueResult[string]](b, ctx, healthquery.ListSchemaIDsMessage{Page: page})
}

func dispatch[T any](b *Bus, ctx context.Context, msg T) error {
	if !b.Attached() {
		return fmt.Errorf("gocommand: bus is not attached")
	}
	return commanddispatcher.Dispatch(ctx, msg)
}

func query[T any, R any](b *Bus, ctx context.Context, msg T) (R, error) {
	if !b.Attached() {
		var zero R
		return zero, fmt.Errorf("gocommand: bus is not attached")
	}
	return commanddispatcher.Query[T, R](ctx, msg)
}

func subscribeCommand[T any](
	registry *command.Registry,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	subscription := commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
	if err := registry.RegisterCommand(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

func subscribeQuery[T any, R any](
	registry *command.Registry,
	qry command.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if qry == nil {
		return nil, fmt.Errorf("gocommand: query is required")
	}
	subscription := commanddispatcher.SubscribeQuery(qry, runnerOpts...)
	if err := registry.RegisterCommand(qry); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}
