package core

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
)

// ProviderRegistry maps provider domains to adapters. Registration order is
// kept because standard-measure resolution tries domains first-registered
// first. Registering an existing domain replaces its adapter in place.
type ProviderRegistry struct {
	mu       sync.RWMutex
	order    []string
	adapters map[string]ProviderAdapter
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{adapters: make(map[string]ProviderAdapter)}
}

// RegisterAdapters registers each adapter under its own domain.
func (r *ProviderRegistry) RegisterAdapters(adapters ...ProviderAdapter) error {
	for _, adapter := range adapters {
		if adapter == nil {
			return fmt.Errorf("core: provider adapter is nil")
		}
		if err := r.Register(adapter.Domain(), adapter); err != nil {
			return err
		}
	}
	return nil
}

func (r *ProviderRegistry) Register(domain string, adapter ProviderAdapter) error {
	if r == nil {
		return fmt.Errorf("core: provider registry is nil")
	}
	if adapter == nil {
		return fmt.Errorf("core: provider adapter is nil")
	}
	domain = normalizeDomain(domain)
	if domain == "" {
		return fmt.Errorf("core: provider domain is required")
	}
	if domain == StandardMeasureDomain {
		return fmt.Errorf("core: provider domain %q is reserved", domain)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.adapters == nil {
		r.adapters = make(map[string]ProviderAdapter)
	}
	if _, exists := r.adapters[domain]; !exists {
		r.order = append(r.order, domain)
	}
	r.adapters[domain] = adapter
	return nil
}

func (r *ProviderRegistry) HasDomain(domain string) bool {
	if r == nil {
		return false
	}
	domain = normalizeDomain(domain)
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.adapters[domain]
	return ok
}

func (r *ProviderRegistry) Adapter(domain string) (ProviderAdapter, error) {
	if r == nil {
		return nil, UnknownProviderError(domain)
	}
	normalized := normalizeDomain(domain)
	r.mu.RLock()
	adapter, ok := r.adapters[normalized]
	r.mu.RUnlock()
	if !ok {
		return nil, UnknownProviderError(domain)
	}
	return adapter, nil
}

func (r *ProviderRegistry) Domains() []string {
	if r == nil {
		return []string{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

func (r *ProviderRegistry) DomainsForStandardMeasure(
	ctx context.Context,
	schemaID string,
	version int64,
) ([]string, error) {
	schemaID = strings.TrimSpace(schemaID)
	domains := []string{}
	for _, entry := range r.snapshot() {
		ok, err := adapterServes(ctx, entry.adapter, schemaID, version)
		if err != nil {
			return nil, fmt.Errorf("core: list schemas for %q: %w", entry.domain, err)
		}
		if ok {
			domains = append(domains, entry.domain)
		}
	}
	return domains, nil
}

func (r *ProviderRegistry) AllSchemaIDs(ctx context.Context) ([]string, error) {
	seen := map[string]struct{}{}
	for _, entry := range r.snapshot() {
		ids, err := entry.adapter.ListSchemaIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("core: list schemas for %q: %w", entry.domain, err)
		}
		for _, id := range ids {
			seen[strings.TrimSpace(id)] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		if id == "" {
			continue
		}
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

type registryEntry struct {
	domain  string
	adapter ProviderAdapter
}

// snapshot copies the ordered entries so adapter calls run without the lock.
func (r *ProviderRegistry) snapshot() []registryEntry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make([]registryEntry, 0, len(r.order))
	for _, domain := range r.order {
		entries = append(entries, registryEntry{domain: domain, adapter: r.adapters[domain]})
	}
	return entries
}

func adapterServes(ctx context.Context, adapter ProviderAdapter, schemaID string, version int64) (bool, error) {
	ids, err := adapter.ListSchemaIDs(ctx)
	if err != nil {
		return false, err
	}
	if !slices.Contains(ids, schemaID) {
		return false, nil
	}
	versions, err := adapter.ListSchemaVersions(ctx, schemaID)
	if err != nil {
		return false, err
	}
	return slices.Contains(versions, version), nil
}

func normalizeDomain(domain string) string {
	return strings.TrimSpace(strings.ToLower(domain))
}
