package devkit

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-healthdata/core"
)

func ValidateTransportAdapterConformance(
	ctx context.Context,
	adapter core.TransportAdapter,
	request core.TransportRequest,
) error {
	if adapter == nil {
		return fmt.Errorf("devkit: transport adapter is required")
	}
	if strings.TrimSpace(adapter.Kind()) == "" {
		return fmt.Errorf("devkit: transport adapter kind is required")
	}
	_, err := adapter.Do(ctx, request)
	return err
}

// ValidateProviderAdapterConformance checks the catalog contract a provider
// must honor before it can be registered: a reserved-free domain, schema ids
// that parse into that domain and positive versions for each id.
func ValidateProviderAdapterConformance(ctx context.Context, adapter core.ProviderAdapter) error {
	if adapter == nil {
		return fmt.Errorf("devkit: provider adapter is required")
	}
	domain := strings.TrimSpace(adapter.Domain())
	if domain == "" {
		return fmt.Errorf("devkit: provider domain is required")
	}
	if strings.EqualFold(domain, core.StandardMeasureDomain) {
		return fmt.Errorf("devkit: provider domain %q is reserved", domain)
	}
	ids, err := adapter.ListSchemaIDs(ctx)
	if err != nil {
		return fmt.Errorf("devkit: list schema ids: %w", err)
	}
	for _, id := range ids {
		if _, err := core.NewSchemaIdentity(id, 1); err != nil {
			return fmt.Errorf("devkit: schema id %q: %w", id, err)
		}
		if core.ParseDomain(id) != domain {
			return fmt.Errorf("devkit: schema id %q is outside domain %q", id, domain)
		}
		versions, err := adapter.ListSchemaVersions(ctx, id)
		if err != nil {
			return fmt.Errorf("devkit: list versions for %q: %w", id, err)
		}
		if len(versions) == 0 {
			return fmt.Errorf("devkit: schema id %q lists no versions", id)
		}
		for _, version := range versions {
			if version <= 0 {
				return fmt.Errorf("devkit: schema id %q lists version %d", id, version)
			}
		}
	}
	return nil
}
