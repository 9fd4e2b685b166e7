package core

import (
	"context"
	"errors"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type fixedConfigProvider struct {
	cfg Config
}

func (p *fixedConfigProvider) Load(context.Context, Config) (Config, error) {
	return p.cfg, nil
}

type fixedOptionsResolver struct {
	cfg Config
}

func (r *fixedOptionsResolver) Resolve(Config, Config, Config) (Config, error) {
	return r.cfg, nil
}

func TestNewService_DefaultDependencies(t *testing.T) {
	svc, err := NewService(Config{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	deps := svc.Dependencies()
	if deps.Logger == nil || deps.LoggerProvider == nil {
		t.Fatalf("expected default logger and provider")
	}
	if deps.ErrorFactory == nil || deps.ErrorMapper == nil {
		t.Fatalf("expected default error factory and mapper")
	}
	if deps.ConfigProvider == nil || deps.OptionsResolver == nil {
		t.Fatalf("expected default config provider and options resolver")
	}
	if deps.AuthorizationStore == nil || deps.GrantWriter == nil || deps.DataStore == nil || deps.SchemaRegistry == nil {
		t.Fatalf("expected in-memory stores by default")
	}
	cfg := svc.Config()
	if cfg.ServiceName != "healthdata" {
		t.Fatalf("expected default service_name=healthdata, got %q", cfg.ServiceName)
	}
	if cfg.Listing.DefaultLimit != 100 || cfg.Pipeline.Schedule != DefaultPipelineSchedule {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestNewService_WithXOverrides(t *testing.T) {
	customLogger := stubLogger{}
	customProvider := stubLoggerProvider{logger: customLogger}
	customFactory := func(message string, category ...goerrors.Category) *goerrors.Error {
		return goerrors.New("custom:"+message, category...)
	}
	sentinel := errors.New("sentinel")
	customMapper := func(error) *goerrors.Error {
		return goerrors.Wrap(sentinel, goerrors.CategoryOperation, "mapped")
	}
	configProvider := &fixedConfigProvider{cfg: Config{ServiceName: "from-provider"}}
	optionsResolver := &fixedOptionsResolver{cfg: Config{ServiceName: "resolved"}}
	grants := NewMemoryAuthorizationStore()
	store := NewMemoryDataStore()

	svc, err := NewService(Config{ServiceName: "runtime"},
		WithLogger(customLogger),
		WithLoggerProvider(customProvider),
		WithErrorFactory(customFactory),
		WithErrorMapper(customMapper),
		WithConfigProvider(configProvider),
		WithOptionsResolver(optionsResolver),
		WithAuthorizationStore(grants),
		WithGrantWriter(grants),
		WithUserDirectory(grants),
		WithDataStore(store),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	deps := svc.Dependencies()
	if deps.Logger != customLogger {
		t.Fatalf("expected custom logger override")
	}
	if resolved := deps.LoggerProvider.GetLogger("healthdata.override"); resolved != customLogger {
		t.Fatalf("expected logger provider to resolve custom logger")
	}
	if deps.ConfigProvider != configProvider || deps.OptionsResolver != optionsResolver {
		t.Fatalf("expected config overrides")
	}
	if deps.DataStore != store || deps.AuthorizationStore != grants {
		t.Fatalf("expected store overrides")
	}
	if got := svc.Config().ServiceName; got != "resolved" {
		t.Fatalf("expected options resolver output config, got %q", got)
	}
	if mapped := svc.mapError(errors.New("boom")); !errors.Is(mapped, sentinel) {
		t.Fatalf("expected custom mapper to be used, got %v", mapped)
	}
}

func TestNewService_ConfigLayeringPrecedence(t *testing.T) {
	provider := NewCfgxConfigProvider(mapRawLoader{values: map[string]any{
		"service_name": "from-config",
		"listing": map[string]any{
			"default_limit": 25,
		},
		"pipeline": map[string]any{
			"concurrency":     4,
			"request_timeout": "5s",
			"units": []any{
				map[string]any{"id": "omh:internal:daily_steps", "base_url": "http://dpu.local", "version": 1},
			},
		},
	}})

	svc, err := NewService(Config{ServiceName: "from-runtime"}, WithConfigProvider(provider))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	cfg := svc.Config()
	if cfg.ServiceName != "from-runtime" {
		t.Fatalf("expected runtime value to override config/default, got %q", cfg.ServiceName)
	}
	if cfg.Listing.DefaultLimit != 25 || cfg.Listing.MaxLimit != 100 {
		t.Fatalf("expected config layer listing values, got %+v", cfg.Listing)
	}
	if cfg.Pipeline.Concurrency != 4 || cfg.Pipeline.Timeout() != 5*time.Second {
		t.Fatalf("expected pipeline config values, got %+v", cfg.Pipeline)
	}
	if len(cfg.Pipeline.Units) != 1 || cfg.Pipeline.Units[0].BaseURL != "http://dpu.local" {
		t.Fatalf("expected pipeline units from config, got %+v", cfg.Pipeline.Units)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Listing.DefaultLimit = 500
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected default limit above max to fail")
	}
	cfg = DefaultConfig()
	cfg.Pipeline.Units = []PipelineUnitConfig{{ID: "omh:internal:x"}}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected unit without base url to fail")
	}
	cfg = DefaultConfig()
	cfg.Pipeline.RequestTimeout = "soon"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected bad timeout to fail")
	}
}
