package healthdata

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-healthdata/core"
)

type ProviderPack struct {
	Name     string
	Adapters []core.ProviderAdapter
}

// SchemaPack is a named set of internal schemas registered at startup.
type SchemaPack struct {
	Name        string
	Definitions []core.SchemaDefinition
}

type SchemaRegistrar interface {
	RegisterSchema(ctx context.Context, def core.SchemaDefinition) (core.SchemaDefinition, error)
}

type CommandQueryBundleFactory func(service CommandQueryService) (any, error)

type ExtensionHooks struct {
	mu sync.RWMutex

	providerPacks map[string]ProviderPack
	schemaPacks   map[string]SchemaPack
	bundles       map[string]CommandQueryBundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{
		providerPacks: map[string]ProviderPack{},
		schemaPacks:   map[string]SchemaPack{},
		bundles:       map[string]CommandQueryBundleFactory{},
	}
}

func (h *ExtensionHooks) RegisterProviderPack(pack ProviderPack) error {
	if h == nil {
		return fmt.Errorf("healthdata: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("healthdata: provider pack name is required")
	}
	if len(pack.Adapters) == 0 {
		return fmt.Errorf("healthdata: provider pack %q has no adapters", name)
	}

	normalized := ProviderPack{
		Name:     name,
		Adapters: append([]core.ProviderAdapter(nil), pack.Adapters...),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.providerPacks[name]; exists {
		return fmt.Errorf("healthdata: provider pack %q already registered", name)
	}
	h.providerPacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterSchemaPack(pack SchemaPack) error {
	if h == nil {
		return fmt.Errorf("healthdata: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("healthdata: schema pack name is required")
	}
	if len(pack.Definitions) == 0 {
		return fmt.Errorf("healthdata: schema pack %q has no definitions", name)
	}
	for _, def := range pack.Definitions {
		identity, err := def.Identity()
		if err != nil {
			return fmt.Errorf("healthdata: schema pack %q: %w", name, err)
		}
		if identity.Domain() == core.StandardMeasureDomain {
			return fmt.Errorf("healthdata: schema pack %q: standard measure %s cannot be registered", name, identity.ID())
		}
	}

	normalized := SchemaPack{
		Name:        name,
		Definitions: append([]core.SchemaDefinition(nil), pack.Definitions...),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.schemaPacks[name]; exists {
		return fmt.Errorf("healthdata: schema pack %q already registered", name)
	}
	h.schemaPacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterCommandQueryBundle(
	name string,
	factory CommandQueryBundleFactory,
) error {
	if h == nil {
		return fmt.Errorf("healthdata: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("healthdata: command/query bundle name is required")
	}
	if factory == nil {
		return fmt.Errorf("healthdata: command/query bundle %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.bundles[name]; exists {
		return fmt.Errorf("healthdata: command/query bundle %q already registered", name)
	}
	h.bundles[name] = factory
	return nil
}

// ApplyProviderPacks registers every adapter under its own domain. Packs
// apply in name order, so a later pack overwrites an earlier one for the
// same domain.
func (h *ExtensionHooks) ApplyProviderPacks(registry core.Registry) error {
	if h == nil {
		return nil
	}
	if registry == nil {
		return fmt.Errorf("healthdata: registry is required")
	}

	for _, pack := range h.ProviderPacks() {
		for _, adapter := range pack.Adapters {
			if adapter == nil {
				return fmt.Errorf("healthdata: provider pack %q contains nil adapter", pack.Name)
			}
			if err := registry.Register(adapter.Domain(), adapter); err != nil {
				return err
			}
		}
	}
	return nil
}

// ApplySchemaPacks registers every pack definition. A definition that is
// already registered is left as is.
func (h *ExtensionHooks) ApplySchemaPacks(ctx context.Context, registrar SchemaRegistrar) error {
	if h == nil {
		return nil
	}
	if registrar == nil {
		return fmt.Errorf("healthdata: schema registrar is required")
	}

	for _, pack := range h.SchemaPacks() {
		for _, def := range pack.Definitions {
			_, err := registrar.RegisterSchema(ctx, def)
			if err == nil || errors.Is(err, core.ErrSchemaConflict) || core.ErrorKind(err) == core.ErrorSchemaConflict {
				continue
			}
			return fmt.Errorf("healthdata: schema pack %q: %w", pack.Name, err)
		}
	}
	return nil
}

func (h *ExtensionHooks) BuildCommandQueryBundles(
	service CommandQueryService,
) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if service == nil {
		return nil, fmt.Errorf("healthdata: command/query service is required")
	}

	h.mu.RLock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	factories := make(map[string]CommandQueryBundleFactory, len(h.bundles))
	for name, factory := range h.bundles {
		factories[name] = factory
	}
	h.mu.RUnlock()

	result := make(map[string]any, len(names))
	for _, name := range names {
		bundle, err := factories[name](service)
		if err != nil {
			return nil, err
		}
		result[name] = bundle
	}
	return result, nil
}

func (h *ExtensionHooks) ProviderPacks() []ProviderPack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.providerPacks))
	for name := range h.providerPacks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]ProviderPack, 0, len(names))
	for _, name := range names {
		pack := h.providerPacks[name]
		out = append(out, ProviderPack{
			Name:     pack.Name,
			Adapters: append([]core.ProviderAdapter(nil), pack.Adapters...),
		})
	}
	return out
}

func (h *ExtensionHooks) SchemaPacks() []SchemaPack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.schemaPacks))
	for name := range h.schemaPacks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]SchemaPack, 0, len(names))
	for _, name := range names {
		pack := h.schemaPacks[name]
		out = append(out, SchemaPack{
			Name:        pack.Name,
			Definitions: append([]core.SchemaDefinition(nil), pack.Definitions...),
		})
	}
	return out
}

func (h *ExtensionHooks) BundleNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
