package core

import (
	"context"
	"fmt"
	"strings"
)

// SchemaCatalog answers whether a schema id and version pair is known and
// whether reads for it go to a provider.
type SchemaCatalog struct {
	registry Registry
	schemas  SchemaRegistry
}

func NewSchemaCatalog(registry Registry, schemas SchemaRegistry) *SchemaCatalog {
	return &SchemaCatalog{registry: registry, schemas: schemas}
}

func (c *SchemaCatalog) IsProviderBacked(schemaID string) bool {
	domain := normalizeDomain(ParseDomain(schemaID))
	if domain == "" {
		return false
	}
	if domain == StandardMeasureDomain {
		return true
	}
	return c != nil && c.registry != nil && c.registry.HasDomain(domain)
}

// Exists checks provider listings first, then the internal registry.
func (c *SchemaCatalog) Exists(ctx context.Context, schemaID string, version int64) (bool, error) {
	if c == nil {
		return false, fmt.Errorf("core: schema catalog is nil")
	}
	schemaID = strings.TrimSpace(schemaID)
	if schemaID == "" || version <= 0 {
		return false, nil
	}

	known, err := c.providerServes(ctx, schemaID, version)
	if err != nil || known {
		return known, err
	}
	if c.schemas == nil {
		return false, nil
	}
	count, err := c.schemas.CountMatching(ctx, schemaID, version, 0, 1)
	if err != nil {
		return false, err
	}
	return count != 0, nil
}

func (c *SchemaCatalog) providerServes(ctx context.Context, schemaID string, version int64) (bool, error) {
	if c.registry == nil {
		return false, nil
	}
	domain := normalizeDomain(ParseDomain(schemaID))
	switch {
	case domain == StandardMeasureDomain:
		domains, err := c.registry.DomainsForStandardMeasure(ctx, schemaID, version)
		if err != nil {
			return false, err
		}
		return len(domains) > 0, nil
	case c.registry.HasDomain(domain):
		adapter, err := c.registry.Adapter(domain)
		if err != nil {
			return false, err
		}
		return adapterServes(ctx, adapter, schemaID, version)
	default:
		return false, nil
	}
}
