package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-healthdata/core"
)

type FactoryOption func(*RepositoryFactory)

// WithGrantCache fronts the grant store with a read-through cache.
func WithGrantCache(cacheService repositorycache.CacheService) FactoryOption {
	return func(f *RepositoryFactory) {
		f.grantCache = cacheService
	}
}

type RepositoryFactory struct {
	db         *bun.DB
	grantCache repositorycache.CacheService

	dataStore   *DataStore
	schemaStore *SchemaStore
	grantStore  *GrantStore
	grants      GrantBackend
}

func NewRepositoryFactory(opts ...FactoryOption) *RepositoryFactory {
	factory := &RepositoryFactory{}
	for _, opt := range opts {
		if opt != nil {
			opt(factory)
		}
	}
	return factory
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.dataStore != nil && f.schemaStore != nil && f.grants != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) DataStore() core.DataStore {
	if f == nil || f.dataStore == nil {
		return nil
	}
	return f.dataStore
}

func (f *RepositoryFactory) SchemaRegistry() core.SchemaRegistry {
	if f == nil || f.schemaStore == nil {
		return nil
	}
	return f.schemaStore
}

// AuthorizationStore returns the grant backend, cached when configured. It
// also satisfies core.GrantWriter and core.UserDirectory.
func (f *RepositoryFactory) AuthorizationStore() core.AuthorizationStore {
	if f == nil || f.grants == nil {
		return nil
	}
	return f.grants
}

// GrantStore is the uncached grant table.
func (f *RepositoryFactory) GrantStore() *GrantStore {
	if f == nil {
		return nil
	}
	return f.grantStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	dataStore, err := NewDataStore(f.db)
	if err != nil {
		return err
	}
	schemaStore, err := NewSchemaStore(f.db)
	if err != nil {
		return err
	}
	grantStore, err := NewGrantStore(f.db)
	if err != nil {
		return err
	}
	f.dataStore = dataStore
	f.schemaStore = schemaStore
	f.grantStore = grantStore
	f.grants = grantStore
	if f.grantCache != nil {
		cached, err := NewCachedGrantStore(grantStore, f.grantCache)
		if err != nil {
			return err
		}
		f.grants = cached
	}
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
