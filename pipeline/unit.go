package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/goliatone/go-healthdata/core"
)

// Gateway is the slice of core.Service a processing unit needs.
type Gateway interface {
	GetSchema(ctx context.Context, schemaID string, version int64) (core.SchemaDefinition, error)
	RegisterSchema(ctx context.Context, def core.SchemaDefinition) (core.SchemaDefinition, error)
	ListUsernames(ctx context.Context) ([]string, error)
	CanRead(ctx context.Context, req core.CanReadRequest) (bool, error)
	ReadData(ctx context.Context, req core.ReadRequest) (core.MultiValueResult[core.DataPoint], error)
	DeleteData(ctx context.Context, deletion core.DataDeletion) (int64, error)
	StoreData(ctx context.Context, points []core.DataPoint) error
}

// Unit is a remote data processing unit. It reads its declared inputs for
// every eligible user, posts them to the unit and stores what comes back
// under its own output schema.
type Unit struct {
	ID      string
	BaseURL string
	Version int64

	gateway Gateway
	remote  remoteUnit
	logger  core.Logger
	schemas singleflight.Group
}

func NewUnit(cfg core.PipelineUnitConfig, gateway Gateway, client JSONClient, timeout time.Duration, logger core.Logger) (*Unit, error) {
	id := strings.TrimSpace(cfg.ID)
	if _, err := core.NewSchemaIdentity(id, cfg.Version); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("pipeline: unit %s base url is required", id)
	}
	if gateway == nil {
		return nil, fmt.Errorf("pipeline: gateway is required")
	}
	if client == nil {
		return nil, fmt.Errorf("pipeline: http client is required")
	}
	return &Unit{
		ID:      id,
		BaseURL: strings.TrimSpace(cfg.BaseURL),
		Version: cfg.Version,
		gateway: gateway,
		remote: remoteUnit{
			client:   client,
			endpoint: unitEndpoint{baseURL: strings.TrimSpace(cfg.BaseURL), id: id, version: cfg.Version},
			timeout:  timeout,
		},
		logger: logger,
	}, nil
}

func (u *Unit) String() string {
	return fmt.Sprintf("%s/%d", u.ID, u.Version)
}

// Run processes the window [start, end] for every user able to read all of
// the unit's requirements. Existing output in the window is replaced.
func (u *Unit) Run(ctx context.Context, start time.Time, end time.Time) error {
	if end.Before(start) {
		return core.BadInputError("end", "end must not be before start")
	}
	if err := u.ensureOutputSchema(ctx); err != nil {
		return err
	}

	raw, err := u.remote.fetchRequirements(ctx, start, end)
	if err != nil {
		return err
	}
	requirements, err := ParseRequirements(raw)
	if err != nil {
		return err
	}

	usernames, err := u.gateway.ListUsernames(ctx)
	if err != nil {
		return err
	}
	for _, username := range usernames {
		if err := ctx.Err(); err != nil {
			return err
		}
		eligible, err := u.canReadAll(ctx, username, requirements)
		if err != nil {
			return err
		}
		if !eligible {
			continue
		}
		if err := u.runForUser(ctx, username, requirements, start, end); err != nil {
			return fmt.Errorf("pipeline: unit %s user %s: %w", u, username, err)
		}
	}
	return nil
}

func (u *Unit) runForUser(ctx context.Context, username string, requirements []Requirement, start time.Time, end time.Time) error {
	if _, err := u.gateway.DeleteData(ctx, core.DataDeletion{
		Owner:    username,
		SchemaID: u.ID,
		Version:  u.Version,
		Start:    &start,
		End:      &end,
	}); err != nil {
		return err
	}

	inputs, err := u.readInputs(ctx, username, requirements)
	if err != nil {
		return err
	}
	outputs, err := u.remote.process(ctx, start, end, inputs)
	if err != nil {
		return err
	}
	points := make([]core.DataPoint, 0, len(outputs))
	for _, output := range outputs {
		point := output.WithOwner(username)
		point.SchemaID = u.ID
		point.Version = u.Version
		points = append(points, point)
	}
	if len(points) == 0 {
		return nil
	}
	if u.logger != nil {
		u.logger.Debug("pipeline unit storing output", "unit", u.String(), "username", username, "count", len(points))
	}
	return u.gateway.StoreData(ctx, points)
}

func (u *Unit) readInputs(
	ctx context.Context,
	username string,
	requirements []Requirement,
) (map[string]core.MultiValueResult[core.DataPoint], error) {
	inputs := make(map[string]core.MultiValueResult[core.DataPoint], len(requirements))
	for _, requirement := range requirements {
		aggregate := core.NewResultAggregator[core.DataPoint]()
		if requirement.IncludeOnePrevious {
			previous, err := u.gateway.ReadData(ctx, core.ReadRequest{
				SchemaID: requirement.SchemaID,
				Version:  requirement.Version,
				Username: username,
				End:      requirement.Start,
				Limit:    1,
			})
			if err != nil {
				return nil, err
			}
			aggregate.AddResult(&previous)
		}
		window, err := u.gateway.ReadData(ctx, core.ReadRequest{
			SchemaID: requirement.SchemaID,
			Version:  requirement.Version,
			Username: username,
			Start:    requirement.Start,
			End:      requirement.End,
			Limit:    requirement.NumToReturn,
		})
		if err != nil {
			return nil, err
		}
		aggregate.AddResult(&window)
		inputs[requirement.SchemaID] = aggregate.Build()
	}
	return inputs, nil
}

func (u *Unit) canReadAll(ctx context.Context, username string, requirements []Requirement) (bool, error) {
	for _, requirement := range requirements {
		allowed, err := u.gateway.CanRead(ctx, core.CanReadRequest{
			SchemaID: requirement.SchemaID,
			Version:  requirement.Version,
			Username: username,
		})
		if err != nil {
			return false, err
		}
		if !allowed {
			return false, nil
		}
	}
	return true, nil
}

func (u *Unit) ensureOutputSchema(ctx context.Context) error {
	_, err, _ := u.schemas.Do(u.String(), func() (any, error) {
		_, err := u.gateway.GetSchema(ctx, u.ID, u.Version)
		if err == nil {
			return nil, nil
		}
		if !isKind(err, core.ErrUnknownSchema, core.ErrorUnknownSchema) {
			return nil, err
		}
		definition, err := u.remote.fetchSchema(ctx)
		if err != nil {
			return nil, err
		}
		_, err = u.gateway.RegisterSchema(ctx, core.SchemaDefinition{
			ID:         u.ID,
			Version:    u.Version,
			Definition: definition,
		})
		if isKind(err, core.ErrSchemaConflict, core.ErrorSchemaConflict) {
			return nil, nil
		}
		return nil, err
	})
	return err
}

func isKind(err error, sentinel error, textCode string) bool {
	return errors.Is(err, sentinel) || core.ErrorKind(err) == textCode
}
