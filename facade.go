package healthdata

import (
	"fmt"
	"time"

	healthcommand "github.com/goliatone/go-healthdata/command"
	healthquery "github.com/goliatone/go-healthdata/query"
)

type CommandQueryService interface {
	healthcommand.MutatingService
	healthquery.DataReader
	healthquery.SchemaReader
}

type Commands struct {
	RegisterSchema *healthcommand.RegisterSchemaCommand
	StoreData      *healthcommand.StoreDataCommand
	DeleteData     *healthcommand.DeleteDataCommand
	PutGrant       *healthcommand.PutGrantCommand
	RevokeGrant    *healthcommand.RevokeGrantCommand
	// RunPipeline is nil unless a runner was supplied.
	RunPipeline *healthcommand.RunPipelineCommand
}

type Queries struct {
	ReadData               *healthquery.ReadDataQuery
	CanRead                *healthquery.CanReadQuery
	GetSchema              *healthquery.GetSchemaQuery
	ListSchemaIDs          *healthquery.ListSchemaIDsQuery
	ListSchemaVersions     *healthquery.ListSchemaVersionsQuery
	StandardMeasureSources *healthquery.StandardMeasureSourcesQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	pipelineRunner healthcommand.PipelineRunner
	location       *time.Location
}

// WithPipelineRunner enables the RunPipeline command. Windows default to
// the previous day in location.
func WithPipelineRunner(runner healthcommand.PipelineRunner, location *time.Location) FacadeOption {
	return func(options *facadeOptions) {
		options.pipelineRunner = runner
		options.location = location
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("healthdata: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		RegisterSchema: healthcommand.NewRegisterSchemaCommand(service),
		StoreData:      healthcommand.NewStoreDataCommand(service),
		DeleteData:     healthcommand.NewDeleteDataCommand(service),
		PutGrant:       healthcommand.NewPutGrantCommand(service),
		RevokeGrant:    healthcommand.NewRevokeGrantCommand(service),
	}
	if cfg.pipelineRunner != nil {
		facade.commands.RunPipeline = healthcommand.NewRunPipelineCommand(cfg.pipelineRunner, cfg.location)
	}
	facade.queries = Queries{
		ReadData:               healthquery.NewReadDataQuery(service),
		CanRead:                healthquery.NewCanReadQuery(service),
		GetSchema:              healthquery.NewGetSchemaQuery(service),
		ListSchemaIDs:          healthquery.NewListSchemaIDsQuery(service),
		ListSchemaVersions:     healthquery.NewListSchemaVersionsQuery(service),
		StandardMeasureSources: healthquery.NewStandardMeasureSourcesQuery(service),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}
