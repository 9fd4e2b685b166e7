package gocommand

import (
	"fmt"
	"time"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"

	healthcommand "github.com/goliatone/go-healthdata/command"
	"github.com/goliatone/go-healthdata/core"
	healthquery "github.com/goliatone/go-healthdata/query"
)

// Gateway is the service surface exposed through the dispatcher.
type Gateway interface {
	healthcommand.MutatingService
	healthquery.DataReader
	healthquery.SchemaReader
}

// Registration tracks the subscriptions created by RegisterGateway.
type Registration struct {
	subscriptions []commanddispatcher.Subscription
}

func (r *Registration) Unsubscribe() {
	if r == nil {
		return
	}
	for _, subscription := range r.subscriptions {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
	r.subscriptions = nil
}

func (r *Registration) Len() int {
	if r == nil {
		return 0
	}
	return len(r.subscriptions)
}

// RegisterGateway subscribes every healthdata command and query. The
// pipeline command is skipped when pipelineRunner is nil. On failure all
// subscriptions made so far are released.
func RegisterGateway(
	registry *command.Registry,
	gateway Gateway,
	pipelineRunner healthcommand.PipelineRunner,
	location *time.Location,
	runnerOpts ...runner.Option,
) (*Registration, error) {
	if registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if gateway == nil {
		return nil, fmt.Errorf("gocommand: gateway is required")
	}
	reg := &Registration{}
	steps := []func() (commanddispatcher.Subscription, error){
		func() (commanddispatcher.Subscription, error) {
			return subscribeCommand[healthcommand.RegisterSchemaMessage](registry, healthcommand.NewRegisterSchemaCommand(gateway), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return subscribeCommand[healthcommand.StoreDataMessage](registry, healthcommand.NewStoreDataCommand(gateway), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return subscribeCommand[healthcommand.DeleteDataMessage](registry, healthcommand.NewDeleteDataCommand(gateway), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return subscribeCommand[healthcommand.PutGrantMessage](registry, healthcommand.NewPutGrantCommand(gateway), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return subscribeCommand[healthcommand.RevokeGrantMessage](registry, healthcommand.NewRevokeGrantCommand(gateway), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return subscribeQuery[healthquery.ReadDataMessage, core.MultiValueResult[core.DataPoint]](registry, healthquery.NewReadDataQuery(gateway), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return subscribeQuery[healthquery.CanReadMessage, bool](registry, healthquery.NewCanReadQuery(gateway), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return subscribeQuery[healthquery.GetSchemaMessage, core.SchemaDefinition](registry, healthquery.NewGetSchemaQuery(gateway), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return subscribeQuery[healthquery.ListSchemaIDsMessage, core.MultiValueResult[string]](registry, healthquery.NewListSchemaIDsQuery(gateway), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return subscribeQuery[healthquery.ListSchemaVersionsMessage, core.MultiValueResult[int64]](registry, healthquery.NewListSchemaVersionsQuery(gateway), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return subscribeQuery[healthquery.StandardMeasureSourcesMessage, []string](registry, healthquery.NewStandardMeasureSourcesQuery(gateway), runnerOpts...)
		},
	}
	if pipelineRunner != nil {
		steps = append(steps, func() (commanddispatcher.Subscription, error) {
			return subscribeCommand[healthcommand.RunPipelineMessage](registry, healthcommand.NewRunPipelineCommand(pipelineRunner, location), runnerOpts...)
		})
	}
	for _, step := range steps {
		subscription, err := step()
		if err != nil {
			reg.Unsubscribe()
			return nil, err
		}
		reg.subscriptions = append(reg.subscriptions, subscription)
	}
	return reg, nil
}
