package core

import (
	"context"
	"slices"
	"sort"
	"strings"
)

// ListRequest pages a listing. A zero Limit means the configured default.
type ListRequest struct {
	Skip  int64
	Limit int64
}

func (r ListRequest) normalize(cfg ListingConfig) (ListRequest, error) {
	defaultLimit := cfg.DefaultLimit
	if defaultLimit <= 0 {
		defaultLimit = DefaultListLimit
	}
	maxLimit := cfg.MaxLimit
	if maxLimit <= 0 {
		maxLimit = DefaultListLimit
	}
	if r.Skip < 0 {
		return ListRequest{}, BadInputError("skip", "skip must be >= 0")
	}
	if r.Limit == 0 {
		r.Limit = defaultLimit
	}
	if r.Limit < 0 {
		return ListRequest{}, BadInputError("limit", "limit must be > 0")
	}
	if r.Limit > maxLimit {
		return ListRequest{}, BadInputError("limit", "limit must be <= max_limit")
	}
	return r, nil
}

// pageSlice returns the requested window of items and the full length as
// the total.
func pageSlice[T any](items []T, skip int64, limit int64) MultiValueResult[T] {
	total := int64(len(items))
	if skip >= total {
		return MultiValueResult[T]{Items: []T{}, TotalCount: total}
	}
	end := total
	if limit > 0 && limit < total-skip {
		end = skip + limit
	}
	return MultiValueResult[T]{
		Items:      append([]T(nil), items[skip:end]...),
		TotalCount: total,
	}
}

func (s *Service) ListSchemaIDs(ctx context.Context, req ListRequest) (result MultiValueResult[string], err error) {
	startedAt := s.now()
	fields := map[string]any{"skip": req.Skip, "limit": req.Limit}
	defer func() {
		s.observeOperation(ctx, startedAt, "list_schema_ids", err, fields)
	}()

	req, err = req.normalize(s.config.Listing)
	if err != nil {
		return MultiValueResult[string]{}, s.mapError(err)
	}
	ids, err := s.registry.AllSchemaIDs(ctx)
	if err != nil {
		return MultiValueResult[string]{}, s.mapError(err)
	}
	if s.schemaRegistry != nil {
		internal, listErr := s.schemaRegistry.ListSchemaIDs(ctx)
		if listErr != nil {
			err = s.mapError(listErr)
			return MultiValueResult[string]{}, err
		}
		ids = append(ids, internal...)
	}
	ids = dedupeStrings(ids)
	return pageSlice(ids, req.Skip, req.Limit), nil
}

func (s *Service) ListSchemaVersions(
	ctx context.Context,
	schemaID string,
	req ListRequest,
) (result MultiValueResult[int64], err error) {
	startedAt := s.now()
	schemaID = strings.TrimSpace(schemaID)
	domain := normalizeDomain(ParseDomain(schemaID))
	fields := map[string]any{"schema_id": schemaID, "domain": domain}
	defer func() {
		s.observeOperation(ctx, startedAt, "list_schema_versions", err, fields)
	}()

	req, err = req.normalize(s.config.Listing)
	if err != nil {
		return MultiValueResult[int64]{}, s.mapError(err)
	}
	if schemaID == "" {
		err = s.mapError(BadInputError("schema_id", "schema id is required"))
		return MultiValueResult[int64]{}, err
	}

	versions, err := s.schemaVersions(ctx, schemaID, domain)
	if err != nil {
		return MultiValueResult[int64]{}, s.mapError(err)
	}
	return pageSlice(versions, req.Skip, req.Limit), nil
}

func (s *Service) schemaVersions(ctx context.Context, schemaID string, domain string) ([]int64, error) {
	var versions []int64
	switch {
	case domain == StandardMeasureDomain:
		for _, candidate := range s.registry.Domains() {
			adapter, err := s.registry.Adapter(candidate)
			if err != nil {
				return nil, err
			}
			ids, err := adapter.ListSchemaIDs(ctx)
			if err != nil {
				return nil, err
			}
			if !slices.Contains(ids, schemaID) {
				continue
			}
			listed, err := adapter.ListSchemaVersions(ctx, schemaID)
			if err != nil {
				return nil, err
			}
			versions = append(versions, listed...)
		}
	case s.registry.HasDomain(domain):
		adapter, err := s.registry.Adapter(domain)
		if err != nil {
			return nil, err
		}
		listed, err := adapter.ListSchemaVersions(ctx, schemaID)
		if err != nil {
			return nil, err
		}
		versions = listed
	case s.schemaRegistry != nil:
		listed, err := s.schemaRegistry.ListSchemaVersions(ctx, schemaID)
		if err != nil {
			return nil, err
		}
		versions = listed
	}
	return dedupeVersions(versions), nil
}

func (s *Service) StandardMeasureSources(ctx context.Context, schemaID string, version int64) (domains []string, err error) {
	startedAt := s.now()
	fields := map[string]any{"schema_id": schemaID, "version": version}
	defer func() {
		s.observeOperation(ctx, startedAt, "standard_measure_sources", err, fields)
	}()

	identity, err := NewSchemaIdentity(schemaID, version)
	if err != nil {
		return nil, s.mapError(err)
	}
	if normalizeDomain(identity.Domain()) != StandardMeasureDomain {
		err = s.mapError(BadInputError("schema_id", "schema id must be in the standard measure domain"))
		return nil, err
	}
	domains, err = s.registry.DomainsForStandardMeasure(ctx, identity.ID(), identity.Version())
	if err != nil {
		return nil, s.mapError(err)
	}
	return domains, nil
}

func dedupeStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	sort.Strings(out)
	return out
}

func dedupeVersions(values []int64) []int64 {
	out := make([]int64, 0, len(values))
	for _, value := range values {
		if !slices.Contains(out, value) {
			out = append(out, value)
		}
	}
	slices.Sort(out)
	return out
}
