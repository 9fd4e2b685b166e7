package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ReadRequest selects points of one schema for a user. A zero Limit reads
// a default sized page.
type ReadRequest struct {
	SchemaID string
	Version  int64
	Username string
	Start    *time.Time
	End      *time.Time
	Columns  ColumnList
	Skip     int64
	Limit    int64
}

func (r ReadRequest) Validate() error {
	if _, err := NewSchemaIdentity(r.SchemaID, r.Version); err != nil {
		return err
	}
	if strings.TrimSpace(r.Username) == "" {
		return BadInputError("username", "username is required")
	}
	if r.Skip < 0 {
		return BadInputError("skip", "skip must be >= 0")
	}
	if r.Limit < 0 {
		return BadInputError("limit", "limit must be >= 0")
	}
	if r.Start != nil && r.End != nil && r.End.Before(*r.Start) {
		return BadInputError("end", "end must not be before start")
	}
	return nil
}

type CanReadRequest struct {
	SchemaID string
	Version  int64
	Username string
}

// Route is where a read for a schema goes. Domain is empty for internal
// reads.
type Route struct {
	Domain   string
	Grant    AuthorizationGrant
	Provider bool
}

// DataRouter sends reads either to local storage or to one provider
// adapter. It holds no mutable state; each call runs sequentially on the
// caller's goroutine.
type DataRouter struct {
	catalog        *SchemaCatalog
	registry       Registry
	authorizations AuthorizationStore
	store          DataStore
}

func NewDataRouter(
	catalog *SchemaCatalog,
	registry Registry,
	authorizations AuthorizationStore,
	store DataStore,
) *DataRouter {
	return &DataRouter{
		catalog:        catalog,
		registry:       registry,
		authorizations: authorizations,
		store:          store,
	}
}

func (r *DataRouter) CanRead(ctx context.Context, req CanReadRequest) (bool, error) {
	if err := r.ready(); err != nil {
		return false, err
	}
	schemaID := strings.TrimSpace(req.SchemaID)
	exists, err := r.catalog.Exists(ctx, schemaID, req.Version)
	if err != nil || !exists {
		return false, err
	}
	if !r.catalog.IsProviderBacked(schemaID) {
		return true, nil
	}
	_, err = r.resolveProviderRoute(ctx, schemaID, req.Version, strings.TrimSpace(req.Username))
	if err == nil {
		return true, nil
	}
	if ErrorKind(err) == ErrorNotAuthorized {
		return false, nil
	}
	return false, err
}

func (r *DataRouter) ReadData(ctx context.Context, req ReadRequest) (MultiValueResult[DataPoint], error) {
	if err := r.ready(); err != nil {
		return MultiValueResult[DataPoint]{}, err
	}
	if err := req.Validate(); err != nil {
		return MultiValueResult[DataPoint]{}, err
	}
	req.SchemaID = strings.TrimSpace(req.SchemaID)
	req.Username = strings.TrimSpace(req.Username)
	if req.Limit == 0 {
		req.Limit = DefaultListLimit
	}

	exists, err := r.catalog.Exists(ctx, req.SchemaID, req.Version)
	if err != nil {
		return MultiValueResult[DataPoint]{}, err
	}
	if !exists {
		return MultiValueResult[DataPoint]{}, UnknownSchemaError(req.SchemaID, req.Version)
	}

	route, err := r.Resolve(ctx, req.SchemaID, req.Version, req.Username)
	if err != nil {
		return MultiValueResult[DataPoint]{}, err
	}
	if !route.Provider {
		if r.store == nil {
			return MultiValueResult[DataPoint]{}, fmt.Errorf("core: data store is required for internal reads")
		}
		return r.store.GetData(ctx, DataQuery{
			Owner:    req.Username,
			SchemaID: req.SchemaID,
			Version:  req.Version,
			Start:    req.Start,
			End:      req.End,
			Columns:  req.Columns.Normalize(),
			Skip:     req.Skip,
			Limit:    req.Limit,
		})
	}

	adapter, err := r.registry.Adapter(route.Domain)
	if err != nil {
		return MultiValueResult[DataPoint]{}, err
	}
	points, err := adapter.FetchData(ctx, FetchRequest{
		SchemaID: req.SchemaID,
		Version:  req.Version,
		Grant:    route.Grant,
		Start:    req.Start,
		End:      req.End,
		Columns:  req.Columns.Normalize(),
		Skip:     req.Skip,
		Limit:    req.Limit,
	})
	if err != nil {
		return MultiValueResult[DataPoint]{}, ProviderFetchError(route.Domain, req.SchemaID, err)
	}
	return AggregateItems(points), nil
}

// Resolve picks the route for a known schema. Standard measures commit to
// the first candidate domain, in registration order, that has a grant.
func (r *DataRouter) Resolve(ctx context.Context, schemaID string, version int64, username string) (Route, error) {
	if !r.catalog.IsProviderBacked(schemaID) {
		return Route{}, nil
	}
	return r.resolveProviderRoute(ctx, schemaID, version, username)
}

func (r *DataRouter) resolveProviderRoute(ctx context.Context, schemaID string, version int64, username string) (Route, error) {
	domain := normalizeDomain(ParseDomain(schemaID))
	candidates := []string{domain}
	if domain == StandardMeasureDomain {
		domains, err := r.registry.DomainsForStandardMeasure(ctx, schemaID, version)
		if err != nil {
			return Route{}, err
		}
		candidates = domains
	}

	for _, candidate := range candidates {
		grant, ok, err := r.authorizations.GetGrant(ctx, username, candidate)
		if err != nil {
			return Route{}, err
		}
		if ok {
			return Route{Domain: candidate, Grant: grant, Provider: true}, nil
		}
	}
	return Route{}, NotAuthorizedError(username, candidates...)
}

func (r *DataRouter) ready() error {
	if r == nil {
		return fmt.Errorf("core: data router is nil")
	}
	if r.catalog == nil {
		return fmt.Errorf("core: schema catalog is required")
	}
	if r.registry == nil {
		return fmt.Errorf("core: provider registry is required")
	}
	if r.authorizations == nil {
		return fmt.Errorf("core: authorization store is required")
	}
	return nil
}
