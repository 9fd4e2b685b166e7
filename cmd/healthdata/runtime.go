package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	healthdata "github.com/goliatone/go-healthdata"
	"github.com/goliatone/go-healthdata/adapters/gocommand"
	"github.com/goliatone/go-healthdata/adapters/gologger"
	"github.com/goliatone/go-healthdata/adapters/prommetrics"
	"github.com/goliatone/go-healthdata/core"
	"github.com/goliatone/go-healthdata/migrations"
	"github.com/goliatone/go-healthdata/pipeline"
	"github.com/goliatone/go-healthdata/providers/fitbit"
	"github.com/goliatone/go-healthdata/ratelimit"
	sqlstore "github.com/goliatone/go-healthdata/store/sql"
)

type persistenceConfig struct {
	driver string
	dsn    string
	debug  bool
}

func (c persistenceConfig) GetDebug() bool { return c.debug }

func (c persistenceConfig) GetDriver() string { return c.driver }

func (c persistenceConfig) GetServer() string { return c.dsn }

func (c persistenceConfig) GetPingTimeout() time.Duration { return 5 * time.Second }

func (c persistenceConfig) GetOtelIdentifier() string { return "go-healthdata" }

// openPersistence returns the client and the migrations dialect for driver.
func openPersistence(db dbSettings) (*persistence.Client, string, error) {
	driver := strings.ToLower(strings.TrimSpace(db.Driver))
	switch driver {
	case "", "sqlite", "sqlite3":
		driver = "sqlite3"
	case "postgres", "postgresql", "pg":
		driver = "postgres"
	default:
		return nil, "", fmt.Errorf("unsupported db driver %q", db.Driver)
	}

	sqlDB, err := sql.Open(driver, db.DSN)
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", driver, err)
	}
	cfg := persistenceConfig{driver: driver, dsn: db.DSN, debug: db.Debug}

	var (
		client      *persistence.Client
		migrationID string
	)
	if driver == "sqlite3" {
		sqlDB.SetMaxOpenConns(1)
		client, err = persistence.New(cfg, sqlDB, sqlitedialect.New())
		migrationID = migrations.DialectSQLite
	} else {
		client, err = persistence.New(cfg, sqlDB, pgdialect.New())
		migrationID = migrations.DialectPostgres
	}
	if err != nil {
		_ = sqlDB.Close()
		return nil, "", fmt.Errorf("persistence client: %w", err)
	}
	return client, migrationID, nil
}

// runtime is everything a command needs, built once from settings.
type runtime struct {
	settings settings
	logger   core.Logger
	provider core.LoggerProvider
	client   *persistence.Client
	metrics  *prometheus.Registry
	service  *healthdata.Service
	bus      *gocommand.Bus
	location *time.Location
}

func buildRuntime(ctx context.Context, cfg settings, root *zerologLogger) (*runtime, error) {
	location, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	provider := zerologProvider{root: root}
	logger := gologger.ForComponent(provider, root, "cli")

	client, dialect, err := openPersistence(cfg.DB)
	if err != nil {
		return nil, err
	}
	if cfg.Migrate {
		if err := migrations.Apply(ctx, client, dialect); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
	}

	var factoryOpts []sqlstore.FactoryOption
	if cfg.GrantCacheTTL > 0 {
		cacheCfg := repositorycache.DefaultConfig()
		cacheCfg.TTL = cfg.GrantCacheTTL
		cacheService, err := repositorycache.NewCacheService(cacheCfg)
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("grant cache: %w", err)
		}
		factoryOpts = append(factoryOpts, sqlstore.WithGrantCache(cacheService))
	}
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client, factoryOpts...)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	grants, _ := factory.AuthorizationStore().(core.GrantWriter)

	pack, err := healthdata.BuiltinProviderPack(fitbit.Config{
		ClientID:     cfg.Fitbit.ClientID,
		ClientSecret: cfg.Fitbit.ClientSecret,
		APIBaseURL:   cfg.Fitbit.APIBaseURL,
		Grants:       grants,
	})
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	pack.Adapters, err = ratelimit.Wrap(ratelimit.NewAdaptivePolicy(ratelimit.NewMemoryStateStore()), pack.Adapters...)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	hooks := healthdata.NewExtensionHooks()
	if err := hooks.RegisterProviderPack(pack); err != nil {
		_ = client.Close()
		return nil, err
	}
	registry := core.NewProviderRegistry()
	if err := hooks.ApplyProviderPacks(registry); err != nil {
		_ = client.Close()
		return nil, err
	}

	metrics := prometheus.NewRegistry()
	service, err := healthdata.NewService(
		healthdata.DefaultConfig(),
		healthdata.WithConfigProvider(core.NewCfgxConfigProvider(core.StaticRawConfigLoader{Values: cfg.Service})),
		healthdata.WithLoggerProvider(provider),
		healthdata.WithLogger(root),
		healthdata.WithMetricsRecorder(prommetrics.NewRecorder(metrics)),
		healthdata.WithPersistenceClient(client),
		healthdata.WithRepositoryFactory(factory),
		healthdata.WithRegistry(registry),
	)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	return &runtime{
		settings: cfg,
		logger:   logger,
		provider: provider,
		client:   client,
		metrics:  metrics,
		service:  service,
		bus:      gocommand.NewBus(nil),
		location: location,
	}, nil
}

func (r *runtime) pipelineRunner() (*pipeline.Runner, error) {
	return pipeline.NewRunner(r.service, r.service.Config().Pipeline,
		pipeline.WithLogger(gologger.ForComponent(r.provider, r.logger, "pipeline")),
	)
}

// dispatcher attaches the command bus on first use. Commands run through
// it the same way an embedding application would dispatch them.
func (r *runtime) dispatcher() (*gocommand.Bus, error) {
	if r.bus.Attached() {
		return r.bus, nil
	}
	runner, err := r.pipelineRunner()
	if err != nil {
		return nil, err
	}
	if err := r.bus.Attach(r.service, runner, r.location); err != nil {
		return nil, err
	}
	return r.bus, nil
}

func (r *runtime) Close() error {
	if r == nil {
		return nil
	}
	r.bus.Close()
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

