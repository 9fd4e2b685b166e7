package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig      Config
	logger             Logger
	loggerProvider     LoggerProvider
	metricsRecorder    MetricsRecorder
	errorFactory       ErrorFactory
	errorMapper        ErrorMapper
	persistenceClient  any
	repositoryFactory  any
	configProvider     ConfigProvider
	optionsResolver    OptionsResolver
	registry           Registry
	authorizationStore AuthorizationStore
	grantWriter        GrantWriter
	dataStore          DataStore
	schemaRegistry     SchemaRegistry
	userDirectory      UserDirectory
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorFactory(factory ErrorFactory) Option {
	return func(b *serviceBuilder) {
		b.errorFactory = factory
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithPersistenceClient(client any) Option {
	return func(b *serviceBuilder) {
		b.persistenceClient = client
	}
}

// WithRepositoryFactory accepts a RepositoryStoreFactory or a StoreProvider.
func WithRepositoryFactory(factory any) Option {
	return func(b *serviceBuilder) {
		b.repositoryFactory = factory
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithRegistry(registry Registry) Option {
	return func(b *serviceBuilder) {
		b.registry = registry
	}
}

func WithAuthorizationStore(store AuthorizationStore) Option {
	return func(b *serviceBuilder) {
		b.authorizationStore = store
	}
}

func WithGrantWriter(writer GrantWriter) Option {
	return func(b *serviceBuilder) {
		b.grantWriter = writer
	}
}

func WithDataStore(store DataStore) Option {
	return func(b *serviceBuilder) {
		b.dataStore = store
	}
}

func WithSchemaRegistry(registry SchemaRegistry) Option {
	return func(b *serviceBuilder) {
		b.schemaRegistry = registry
	}
}

func WithUserDirectory(directory UserDirectory) Option {
	return func(b *serviceBuilder) {
		b.userDirectory = directory
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("healthdata", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorFactory:    goerrors.New,
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		registry:        NewProviderRegistry(),
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return serviceErrorMapper(err)
}

type StaticRawConfigLoader struct {
	Values map[string]any
}

func (l StaticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	return copyAnyMap(l.Values), nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = StaticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// GoOptionsResolver layers defaults < loaded config < runtime overrides.
type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}

	listing := map[string]any{}
	if includeZero || cfg.Listing.DefaultLimit > 0 {
		listing["default_limit"] = cfg.Listing.DefaultLimit
	}
	if includeZero || cfg.Listing.MaxLimit > 0 {
		listing["max_limit"] = cfg.Listing.MaxLimit
	}
	if len(listing) > 0 {
		layer["listing"] = listing
	}

	pipeline := map[string]any{}
	if includeZero || cfg.Pipeline.Concurrency > 0 {
		pipeline["concurrency"] = cfg.Pipeline.Concurrency
	}
	if includeZero || strings.TrimSpace(cfg.Pipeline.Schedule) != "" {
		pipeline["schedule"] = cfg.Pipeline.Schedule
	}
	if includeZero || strings.TrimSpace(cfg.Pipeline.RequestTimeout) != "" {
		pipeline["request_timeout"] = cfg.Pipeline.RequestTimeout
	}
	if includeZero || len(cfg.Pipeline.Units) > 0 {
		units := make([]any, 0, len(cfg.Pipeline.Units))
		for _, unit := range cfg.Pipeline.Units {
			units = append(units, map[string]any{
				"id":       unit.ID,
				"base_url": unit.BaseURL,
				"version":  unit.Version,
			})
		}
		pipeline["units"] = units
	}
	if len(pipeline) > 0 {
		layer["pipeline"] = pipeline
	}
	return layer
}
