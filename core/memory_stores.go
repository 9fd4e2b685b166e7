package core

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryDataStore is the process-local DataStore used when no repository
// factory is configured.
type MemoryDataStore struct {
	mu     sync.RWMutex
	points []DataPoint
}

func NewMemoryDataStore(points ...DataPoint) *MemoryDataStore {
	store := &MemoryDataStore{}
	_ = store.StoreData(context.Background(), points)
	return store
}

func (s *MemoryDataStore) StoreData(_ context.Context, points []DataPoint) error {
	for _, point := range points {
		if strings.TrimSpace(point.Owner) == "" {
			return BadInputError("owner", "owner is required")
		}
		if _, err := NewSchemaIdentity(point.SchemaID, point.Version); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, point := range points {
		s.points = append(s.points, point.Clone())
	}
	return nil
}

func (s *MemoryDataStore) GetData(_ context.Context, query DataQuery) (MultiValueResult[DataPoint], error) {
	s.mu.RLock()
	matched := make([]DataPoint, 0)
	for _, point := range s.points {
		if pointInWindow(point, query.Owner, query.SchemaID, query.Version, query.Start, query.End) {
			matched = append(matched, point.Clone())
		}
	}
	s.mu.RUnlock()

	SortPointsNewestFirst(matched)
	page := pageSlice(matched, query.Skip, query.Limit)
	columns := query.Columns.Normalize()
	if len(columns) == 0 {
		return page, nil
	}
	for index, point := range page.Items {
		projected, err := ProjectPayload(point.Payload, columns)
		if err != nil {
			return MultiValueResult[DataPoint]{}, err
		}
		page.Items[index].Payload = projected
	}
	return page, nil
}

func (s *MemoryDataStore) DeleteData(_ context.Context, deletion DataDeletion) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.points[:0]
	var removed int64
	for _, point := range s.points {
		if pointInWindow(point, deletion.Owner, deletion.SchemaID, deletion.Version, deletion.Start, deletion.End) {
			removed++
			continue
		}
		kept = append(kept, point)
	}
	s.points = kept
	return removed, nil
}

// ListUsernames returns every owner holding at least one point, sorted.
func (s *MemoryDataStore) ListUsernames(context.Context) ([]string, error) {
	if s == nil {
		return []string{}, nil
	}
	s.mu.RLock()
	owners := map[string]struct{}{}
	for _, point := range s.points {
		owners[point.Owner] = struct{}{}
	}
	s.mu.RUnlock()
	out := make([]string, 0, len(owners))
	for owner := range owners {
		out = append(out, owner)
	}
	sort.Strings(out)
	return out, nil
}

// SortPointsNewestFirst orders points by metadata timestamp, newest first.
// Points without a timestamp sort last.
func SortPointsNewestFirst(points []DataPoint) {
	sort.SliceStable(points, func(i, j int) bool {
		left, right := points[i].Meta.Timestamp, points[j].Meta.Timestamp
		switch {
		case left == nil:
			return false
		case right == nil:
			return true
		default:
			return left.After(*right)
		}
	})
}

func pointInWindow(point DataPoint, owner string, schemaID string, version int64, start *time.Time, end *time.Time) bool {
	if point.Owner != strings.TrimSpace(owner) || point.SchemaID != strings.TrimSpace(schemaID) || point.Version != version {
		return false
	}
	if start == nil && end == nil {
		return true
	}
	ts := point.Meta.Timestamp
	if ts == nil {
		return false
	}
	if start != nil && ts.Before(*start) {
		return false
	}
	if end != nil && ts.After(*end) {
		return false
	}
	return true
}

type MemorySchemaRegistry struct {
	mu      sync.RWMutex
	schemas []SchemaDefinition
	now     func() time.Time
}

func NewMemorySchemaRegistry(defs ...SchemaDefinition) *MemorySchemaRegistry {
	registry := &MemorySchemaRegistry{}
	for _, def := range defs {
		_, _ = registry.CreateSchema(context.Background(), def)
	}
	return registry
}

func (r *MemorySchemaRegistry) CountMatching(_ context.Context, schemaID string, version int64, skip int64, limit int64) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var count int64
	for _, def := range r.schemas {
		if def.ID == schemaID && def.Version == version {
			count++
		}
	}
	count -= skip
	if count < 0 {
		count = 0
	}
	if limit > 0 && count > limit {
		count = limit
	}
	return count, nil
}

func (r *MemorySchemaRegistry) ListSchemaIDs(context.Context) ([]string, error) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.schemas))
	for _, def := range r.schemas {
		ids = append(ids, def.ID)
	}
	r.mu.RUnlock()
	return dedupeStrings(ids), nil
}

func (r *MemorySchemaRegistry) ListSchemaVersions(_ context.Context, schemaID string) ([]int64, error) {
	r.mu.RLock()
	versions := []int64{}
	for _, def := range r.schemas {
		if def.ID == strings.TrimSpace(schemaID) {
			versions = append(versions, def.Version)
		}
	}
	r.mu.RUnlock()
	slices.Sort(versions)
	return versions, nil
}

func (r *MemorySchemaRegistry) GetSchema(_ context.Context, schemaID string, version int64) (SchemaDefinition, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, def := range r.schemas {
		if def.ID == strings.TrimSpace(schemaID) && def.Version == version {
			return cloneSchemaDefinition(def), true, nil
		}
	}
	return SchemaDefinition{}, false, nil
}

func (r *MemorySchemaRegistry) CreateSchema(_ context.Context, def SchemaDefinition) (SchemaDefinition, error) {
	identity, err := def.Identity()
	if err != nil {
		return SchemaDefinition{}, err
	}
	stored := cloneSchemaDefinition(def)
	stored.ID = identity.ID()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = r.clock()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.schemas {
		if existing.ID == stored.ID && existing.Version == stored.Version {
			return SchemaDefinition{}, SchemaConflictError(stored.ID, stored.Version)
		}
	}
	r.schemas = append(r.schemas, stored)
	return cloneSchemaDefinition(stored), nil
}

func (r *MemorySchemaRegistry) clock() time.Time {
	if r.now == nil {
		return time.Now().UTC()
	}
	return r.now()
}

func cloneSchemaDefinition(def SchemaDefinition) SchemaDefinition {
	out := def
	out.Definition = append(out.Definition[:0:0], def.Definition...)
	return out
}
