package command

import (
	"context"
	"time"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-healthdata/core"
	"github.com/goliatone/go-healthdata/pipeline"
)

type MutatingService interface {
	RegisterSchema(ctx context.Context, def core.SchemaDefinition) (core.SchemaDefinition, error)
	StoreData(ctx context.Context, points []core.DataPoint) error
	DeleteData(ctx context.Context, deletion core.DataDeletion) (int64, error)
	PutGrant(ctx context.Context, grant core.AuthorizationGrant) (core.AuthorizationGrant, error)
	RevokeGrant(ctx context.Context, username string, domain string) error
}

type RegisterSchemaCommand struct {
	service MutatingService
}

func NewRegisterSchemaCommand(service MutatingService) *RegisterSchemaCommand {
	return &RegisterSchemaCommand{service: service}
}

func (c *RegisterSchemaCommand) Execute(ctx context.Context, msg RegisterSchemaMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: schema service is required")
	}
	out, err := c.service.RegisterSchema(ctx, msg.Definition)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type StoreDataCommand struct {
	service MutatingService
}

func NewStoreDataCommand(service MutatingService) *StoreDataCommand {
	return &StoreDataCommand{service: service}
}

func (c *StoreDataCommand) Execute(ctx context.Context, msg StoreDataMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: data service is required")
	}
	return c.service.StoreData(ctx, msg.Points)
}

type DeleteDataCommand struct {
	service MutatingService
}

func NewDeleteDataCommand(service MutatingService) *DeleteDataCommand {
	return &DeleteDataCommand{service: service}
}

// Execute stores the number of removed points as the result.
func (c *DeleteDataCommand) Execute(ctx context.Context, msg DeleteDataMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: data service is required")
	}
	removed, err := c.service.DeleteData(ctx, msg.Deletion)
	if err != nil {
		return err
	}
	storeResult(ctx, removed)
	return nil
}

type PutGrantCommand struct {
	service MutatingService
}

func NewPutGrantCommand(service MutatingService) *PutGrantCommand {
	return &PutGrantCommand{service: service}
}

func (c *PutGrantCommand) Execute(ctx context.Context, msg PutGrantMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: grant service is required")
	}
	out, err := c.service.PutGrant(ctx, msg.Grant)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RevokeGrantCommand struct {
	service MutatingService
}

func NewRevokeGrantCommand(service MutatingService) *RevokeGrantCommand {
	return &RevokeGrantCommand{service: service}
}

func (c *RevokeGrantCommand) Execute(ctx context.Context, msg RevokeGrantMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: grant service is required")
	}
	return c.service.RevokeGrant(ctx, msg.Username, msg.Domain)
}

type PipelineRunner interface {
	Run(ctx context.Context, start time.Time, end time.Time) pipeline.RunReport
}

type RunPipelineCommand struct {
	runner   PipelineRunner
	location *time.Location
	now      func() time.Time
}

func NewRunPipelineCommand(runner PipelineRunner, location *time.Location) *RunPipelineCommand {
	if location == nil {
		location = time.UTC
	}
	return &RunPipelineCommand{runner: runner, location: location, now: time.Now}
}

func (c *RunPipelineCommand) Execute(ctx context.Context, msg RunPipelineMessage) error {
	if c == nil || c.runner == nil {
		return commandDependencyError("command: pipeline runner is required")
	}
	start, end := msg.Start, msg.End
	if start.IsZero() && end.IsZero() {
		start, end = pipeline.PreviousDayWindow(c.now(), c.location)
	}
	storeResult(ctx, c.runner.Run(ctx, start, end))
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
