package sqlstore

import "github.com/goliatone/go-healthdata/core"

var (
	_ core.DataStore              = (*DataStore)(nil)
	_ core.UserDirectory          = (*DataStore)(nil)
	_ core.SchemaRegistry         = (*SchemaStore)(nil)
	_ core.AuthorizationStore     = (*GrantStore)(nil)
	_ core.GrantWriter            = (*GrantStore)(nil)
	_ core.UserDirectory          = (*GrantStore)(nil)
	_ GrantBackend                = (*CachedGrantStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
