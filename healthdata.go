package healthdata

import "github.com/goliatone/go-healthdata/core"

type Config = core.Config

type ListingConfig = core.ListingConfig

type PipelineConfig = core.PipelineConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type Registry = core.Registry
type ProviderAdapter = core.ProviderAdapter
type AuthorizationStore = core.AuthorizationStore
type GrantWriter = core.GrantWriter
type DataStore = core.DataStore
type SchemaRegistry = core.SchemaRegistry
type UserDirectory = core.UserDirectory

type CanReadRequest = core.CanReadRequest

type ReadRequest = core.ReadRequest

type ListRequest = core.ListRequest

type DataPoint = core.DataPoint

type AuthorizationGrant = core.AuthorizationGrant

type SchemaDefinition = core.SchemaDefinition

var (
	WithLogger             = core.WithLogger
	WithLoggerProvider     = core.WithLoggerProvider
	WithMetricsRecorder    = core.WithMetricsRecorder
	WithErrorFactory       = core.WithErrorFactory
	WithErrorMapper        = core.WithErrorMapper
	WithPersistenceClient  = core.WithPersistenceClient
	WithRepositoryFactory  = core.WithRepositoryFactory
	WithConfigProvider     = core.WithConfigProvider
	WithOptionsResolver    = core.WithOptionsResolver
	WithRegistry           = core.WithRegistry
	WithAuthorizationStore = core.WithAuthorizationStore
	WithGrantWriter        = core.WithGrantWriter
	WithDataStore          = core.WithDataStore
	WithSchemaRegistry     = core.WithSchemaRegistry
	WithUserDirectory      = core.WithUserDirectory
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
