package devkit

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/goliatone/go-healthdata/core"
)

// FakeProvider is a scriptable provider adapter that records every fetch.
type FakeProvider struct {
	mu       sync.Mutex
	domain   string
	schemas  map[string][]int64
	points   map[string][]core.DataPoint
	fetchErr error
	fetches  []core.FetchRequest
}

func NewFakeProvider(domain string, schemas map[string][]int64) *FakeProvider {
	copied := make(map[string][]int64, len(schemas))
	for id, versions := range schemas {
		copied[id] = append([]int64(nil), versions...)
	}
	return &FakeProvider{
		domain:  strings.TrimSpace(strings.ToLower(domain)),
		schemas: copied,
		points:  map[string][]core.DataPoint{},
	}
}

// WithPoints sets what FetchData returns for schemaID. The owner of each
// point is replaced by the grant's username on fetch.
func (p *FakeProvider) WithPoints(schemaID string, points ...core.DataPoint) *FakeProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.points[schemaID] = append([]core.DataPoint(nil), points...)
	return p
}

func (p *FakeProvider) FailWith(err error) *FakeProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetchErr = err
	return p
}

func (p *FakeProvider) Domain() string {
	if p == nil {
		return ""
	}
	return p.domain
}

func (p *FakeProvider) ListSchemaIDs(context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.schemas))
	for id := range p.schemas {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (p *FakeProvider) ListSchemaVersions(_ context.Context, schemaID string) ([]int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int64{}, p.schemas[strings.TrimSpace(schemaID)]...), nil
}

func (p *FakeProvider) FetchData(_ context.Context, req core.FetchRequest) ([]core.DataPoint, error) {
	if p == nil {
		return nil, fmt.Errorf("devkit: fake provider is nil")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetches = append(p.fetches, req)
	if p.fetchErr != nil {
		return nil, p.fetchErr
	}
	out := make([]core.DataPoint, 0, len(p.points[req.SchemaID]))
	for _, point := range p.points[req.SchemaID] {
		out = append(out, point.WithOwner(req.Grant.Username))
	}
	return out, nil
}

func (p *FakeProvider) Fetches() []core.FetchRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]core.FetchRequest(nil), p.fetches...)
}

var _ core.ProviderAdapter = (*FakeProvider)(nil)
