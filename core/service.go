package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

type Service struct {
	config             Config
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
	catalog            *SchemaCatalog
	router             *DataRouter
	now                func() time.Time
}

type ServiceDependencies struct {
	Logger             Logger
	LoggerProvider     LoggerProvider
	MetricsRecorder    MetricsRecorder
	ErrorFactory       ErrorFactory
	ErrorMapper        ErrorMapper
	PersistenceClient  any
	RepositoryFactory  any
	ConfigProvider     ConfigProvider
	OptionsResolver    OptionsResolver
	Registry           Registry
	AuthorizationStore AuthorizationStore
	GrantWriter        GrantWriter
	DataStore          DataStore
	SchemaRegistry     SchemaRegistry
	UserDirectory      UserDirectory
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("healthdata", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("healthdata"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.registry == nil {
		builder.registry = NewProviderRegistry()
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if err := applyStoreProvider(&builder); err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.authorizationStore == nil {
		builder.authorizationStore = NewMemoryAuthorizationStore()
	}
	if builder.grantWriter == nil {
		if writer, ok := builder.authorizationStore.(GrantWriter); ok {
			builder.grantWriter = writer
		}
	}
	if builder.dataStore == nil {
		builder.dataStore = NewMemoryDataStore()
	}
	if builder.userDirectory == nil {
		builder.userDirectory = defaultUserDirectory(builder.authorizationStore, builder.dataStore)
	}
	if builder.schemaRegistry == nil {
		builder.schemaRegistry = NewMemorySchemaRegistry()
	}

	catalog := NewSchemaCatalog(builder.registry, builder.schemaRegistry)
	router := NewDataRouter(catalog, builder.registry, builder.authorizationStore, builder.dataStore)

	return &Service{
		config:             finalConfig,
		logger:             logger,
		loggerProvider:     provider,
		metricsRecorder:    builder.metricsRecorder,
		errorFactory:       builder.errorFactory,
		errorMapper:        builder.errorMapper,
		persistenceClient:  builder.persistenceClient,
		repositoryFactory:  builder.repositoryFactory,
		configProvider:     builder.configProvider,
		optionsResolver:    builder.optionsResolver,
		registry:           builder.registry,
		authorizationStore: builder.authorizationStore,
		grantWriter:        builder.grantWriter,
		dataStore:          builder.dataStore,
		schemaRegistry:     builder.schemaRegistry,
		userDirectory:      builder.userDirectory,
		catalog:            catalog,
		router:             router,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func applyStoreProvider(builder *serviceBuilder) error {
	if builder.repositoryFactory == nil {
		return nil
	}
	var stores StoreProvider
	switch factory := builder.repositoryFactory.(type) {
	case RepositoryStoreFactory:
		built, err := factory.BuildStores(builder.persistenceClient)
		if err != nil {
			return err
		}
		stores = built
	case StoreProvider:
		stores = factory
	default:
		return fmt.Errorf("core: unsupported repository factory %T", builder.repositoryFactory)
	}
	if stores == nil {
		return nil
	}
	if builder.dataStore == nil {
		builder.dataStore = stores.DataStore()
	}
	if builder.schemaRegistry == nil {
		builder.schemaRegistry = stores.SchemaRegistry()
	}
	if builder.authorizationStore == nil {
		builder.authorizationStore = stores.AuthorizationStore()
	}
	return nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Router() *DataRouter {
	if s == nil {
		return nil
	}
	return s.router
}

func (s *Service) Catalog() *SchemaCatalog {
	if s == nil {
		return nil
	}
	return s.catalog
}

func (s *Service) Registry() Registry {
	if s == nil {
		return nil
	}
	return s.registry
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:             s.logger,
		LoggerProvider:     s.loggerProvider,
		MetricsRecorder:    s.metricsRecorder,
		ErrorFactory:       s.errorFactory,
		ErrorMapper:        s.errorMapper,
		PersistenceClient:  s.persistenceClient,
		RepositoryFactory:  s.repositoryFactory,
		ConfigProvider:     s.configProvider,
		OptionsResolver:    s.optionsResolver,
		Registry:           s.registry,
		AuthorizationStore: s.authorizationStore,
		GrantWriter:        s.grantWriter,
		DataStore:          s.dataStore,
		SchemaRegistry:     s.schemaRegistry,
		UserDirectory:      s.userDirectory,
	}
}

func (s *Service) CanRead(ctx context.Context, req CanReadRequest) (allowed bool, err error) {
	startedAt := s.now()
	fields := map[string]any{
		"schema_id": req.SchemaID,
		"version":   req.Version,
		"username":  req.Username,
		"domain":    ParseDomain(req.SchemaID),
	}
	defer func() {
		fields["allowed"] = allowed
		s.observeOperation(ctx, startedAt, "can_read", err, fields)
	}()

	allowed, err = s.router.CanRead(ctx, req)
	if err != nil {
		return false, s.mapError(err)
	}
	return allowed, nil
}

func (s *Service) ReadData(ctx context.Context, req ReadRequest) (result MultiValueResult[DataPoint], err error) {
	startedAt := s.now()
	fields := map[string]any{
		"schema_id": req.SchemaID,
		"version":   req.Version,
		"username":  req.Username,
		"domain":    ParseDomain(req.SchemaID),
		"skip":      req.Skip,
		"limit":     req.Limit,
	}
	defer func() {
		fields["count"] = result.TotalCount
		s.observeOperation(ctx, startedAt, "read_data", err, fields)
	}()

	if req.Limit == 0 {
		req.Limit = s.config.Listing.DefaultLimit
	}
	result, err = s.router.ReadData(ctx, req)
	if err != nil {
		return MultiValueResult[DataPoint]{}, s.mapError(err)
	}
	return result, nil
}

// RegisterSchema adds an internal schema. Ids in a registered provider
// domain or the standard measure domain cannot be registered.
func (s *Service) RegisterSchema(ctx context.Context, def SchemaDefinition) (stored SchemaDefinition, err error) {
	startedAt := s.now()
	fields := map[string]any{"schema_id": def.ID, "version": def.Version}
	defer func() {
		s.observeOperation(ctx, startedAt, "register_schema", err, fields)
	}()

	identity, err := def.Identity()
	if err != nil {
		return SchemaDefinition{}, s.mapError(err)
	}
	if identity.Domain() == StandardMeasureDomain {
		err = s.mapError(BadInputError("schema_id", "standard measures are resolved through providers and cannot be registered"))
		return SchemaDefinition{}, err
	}
	if s.registry.HasDomain(identity.Domain()) {
		err = s.mapError(BadInputError("schema_id", "provider schemas cannot be registered"))
		return SchemaDefinition{}, err
	}
	exists, err := s.catalog.Exists(ctx, identity.ID(), identity.Version())
	if err != nil {
		return SchemaDefinition{}, s.mapError(err)
	}
	if exists {
		err = s.mapError(SchemaConflictError(identity.ID(), identity.Version()))
		return SchemaDefinition{}, err
	}
	def.ID = identity.ID()
	stored, err = s.schemaRegistry.CreateSchema(ctx, def)
	if err != nil {
		return SchemaDefinition{}, s.mapError(err)
	}
	return stored, nil
}

func (s *Service) GetSchema(ctx context.Context, schemaID string, version int64) (def SchemaDefinition, err error) {
	startedAt := s.now()
	fields := map[string]any{"schema_id": schemaID, "version": version}
	defer func() {
		s.observeOperation(ctx, startedAt, "get_schema", err, fields)
	}()

	identity, err := NewSchemaIdentity(schemaID, version)
	if err != nil {
		return SchemaDefinition{}, s.mapError(err)
	}
	def, ok, err := s.schemaRegistry.GetSchema(ctx, identity.ID(), identity.Version())
	if err != nil {
		return SchemaDefinition{}, s.mapError(err)
	}
	if !ok {
		err = s.mapError(UnknownSchemaError(identity.ID(), identity.Version()))
		return SchemaDefinition{}, err
	}
	return def, nil
}

// StoreData writes points for internal schemas.
func (s *Service) StoreData(ctx context.Context, points []DataPoint) (err error) {
	startedAt := s.now()
	fields := map[string]any{"count": len(points)}
	defer func() {
		s.observeOperation(ctx, startedAt, "store_data", err, fields)
	}()

	for index, point := range points {
		if strings.TrimSpace(point.Owner) == "" {
			return s.mapError(BadInputError(fmt.Sprintf("points[%d].owner", index), "owner is required"))
		}
		identity, identityErr := NewSchemaIdentity(point.SchemaID, point.Version)
		if identityErr != nil {
			err = s.mapError(identityErr)
			return err
		}
		if s.catalog.IsProviderBacked(identity.ID()) {
			err = s.mapError(BadInputError(fmt.Sprintf("points[%d].schema_id", index), "provider-backed schemas are read only"))
			return err
		}
	}
	if len(points) == 0 {
		return nil
	}
	if err = s.dataStore.StoreData(ctx, points); err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *Service) DeleteData(ctx context.Context, deletion DataDeletion) (removed int64, err error) {
	startedAt := s.now()
	fields := map[string]any{
		"schema_id": deletion.SchemaID,
		"version":   deletion.Version,
		"username":  deletion.Owner,
	}
	defer func() {
		fields["removed"] = removed
		s.observeOperation(ctx, startedAt, "delete_data", err, fields)
	}()

	if strings.TrimSpace(deletion.Owner) == "" {
		return 0, s.mapError(BadInputError("owner", "owner is required"))
	}
	if _, err = NewSchemaIdentity(deletion.SchemaID, deletion.Version); err != nil {
		return 0, s.mapError(err)
	}
	if deletion.Start != nil && deletion.End != nil && deletion.End.Before(*deletion.Start) {
		return 0, s.mapError(BadInputError("end", "end must not be before start"))
	}
	removed, err = s.dataStore.DeleteData(ctx, deletion)
	if err != nil {
		return 0, s.mapError(err)
	}
	return removed, nil
}

func (s *Service) PutGrant(ctx context.Context, grant AuthorizationGrant) (stored AuthorizationGrant, err error) {
	startedAt := s.now()
	fields := map[string]any{"username": grant.Username, "domain": grant.Domain}
	defer func() {
		s.observeOperation(ctx, startedAt, "put_grant", err, fields)
	}()

	if s.grantWriter == nil {
		return AuthorizationGrant{}, s.mapError(fmt.Errorf("core: grant writer is required"))
	}
	stored, err = s.grantWriter.PutGrant(ctx, grant)
	if err != nil {
		return AuthorizationGrant{}, s.mapError(err)
	}
	return stored, nil
}

func (s *Service) RevokeGrant(ctx context.Context, username string, domain string) (err error) {
	startedAt := s.now()
	fields := map[string]any{"username": username, "domain": domain}
	defer func() {
		s.observeOperation(ctx, startedAt, "revoke_grant", err, fields)
	}()

	if strings.TrimSpace(username) == "" {
		return s.mapError(BadInputError("username", "username is required"))
	}
	if strings.TrimSpace(domain) == "" {
		return s.mapError(BadInputError("domain", "domain is required"))
	}
	if s.grantWriter == nil {
		return s.mapError(fmt.Errorf("core: grant writer is required"))
	}
	if err = s.grantWriter.RevokeGrant(ctx, username, domain); err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *Service) ListUsernames(ctx context.Context) (usernames []string, err error) {
	startedAt := s.now()
	defer func() {
		s.observeOperation(ctx, startedAt, "list_usernames", err, map[string]any{"count": len(usernames)})
	}()

	if s.userDirectory == nil {
		return nil, s.mapError(fmt.Errorf("core: user directory is required"))
	}
	usernames, err = s.userDirectory.ListUsernames(ctx)
	if err != nil {
		return nil, s.mapError(err)
	}
	return usernames, nil
}

// defaultUserDirectory unions grant holders with data owners, so users
// with only internal data are still listed.
func defaultUserDirectory(sources ...any) UserDirectory {
	var directories UserDirectories
	for _, source := range sources {
		if directory, ok := source.(UserDirectory); ok {
			directories = append(directories, directory)
		}
	}
	switch len(directories) {
	case 0:
		return nil
	case 1:
		return directories[0]
	default:
		return directories
	}
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}
