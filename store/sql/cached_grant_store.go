package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-healthdata/core"
)

const grantCacheKeyPrefix = "go-healthdata::grant::v1"

// GrantBackend is the full grant surface a cached store wraps.
type GrantBackend interface {
	core.AuthorizationStore
	core.GrantWriter
	core.UserDirectory
}

// CachedGrantStore caches grant lookups, the hot path of every provider
// read. Writes go to the base store and drop the cached entry.
type CachedGrantStore struct {
	base  GrantBackend
	cache repositorycache.CacheService
}

type cachedGrant struct {
	Grant core.AuthorizationGrant
	Found bool
}

func NewCachedGrantStore(base GrantBackend, cacheService repositorycache.CacheService) (*CachedGrantStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base grant store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: grant cache service is required")
	}
	return &CachedGrantStore{base: base, cache: cacheService}, nil
}

// GrantCacheKey is go-healthdata::grant::v1::<username>::<domain> with each
// segment URL-path escaped.
func GrantCacheKey(username string, domain string) (string, error) {
	username = strings.TrimSpace(username)
	domain = normalizeDomain(domain)
	if username == "" {
		return "", fmt.Errorf("sqlstore: grant cache key requires a username")
	}
	if domain == "" {
		return "", fmt.Errorf("sqlstore: grant cache key requires a domain")
	}
	return strings.Join([]string{grantCacheKeyPrefix, url.PathEscape(username), url.PathEscape(domain)}, "::"), nil
}

func (s *CachedGrantStore) GetGrant(ctx context.Context, username string, domain string) (core.AuthorizationGrant, bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.AuthorizationGrant{}, false, fmt.Errorf("sqlstore: cached grant store is not configured")
	}
	cacheKey, err := GrantCacheKey(username, domain)
	if err != nil {
		return core.AuthorizationGrant{}, false, err
	}
	entry, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (cachedGrant, error) {
		grant, found, fetchErr := s.base.GetGrant(ctx, username, domain)
		if fetchErr != nil {
			return cachedGrant{}, fetchErr
		}
		return cachedGrant{Grant: grant.Clone(), Found: found}, nil
	})
	if err != nil {
		return core.AuthorizationGrant{}, false, err
	}
	if !entry.Found {
		return core.AuthorizationGrant{}, false, nil
	}
	return entry.Grant.Clone(), true, nil
}

func (s *CachedGrantStore) PutGrant(ctx context.Context, grant core.AuthorizationGrant) (core.AuthorizationGrant, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.AuthorizationGrant{}, fmt.Errorf("sqlstore: cached grant store is not configured")
	}
	stored, err := s.base.PutGrant(ctx, grant)
	if err != nil {
		return core.AuthorizationGrant{}, err
	}
	if err := s.invalidate(ctx, stored.Username, stored.Domain); err != nil {
		return core.AuthorizationGrant{}, err
	}
	return stored, nil
}

func (s *CachedGrantStore) RevokeGrant(ctx context.Context, username string, domain string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached grant store is not configured")
	}
	if err := s.base.RevokeGrant(ctx, username, domain); err != nil {
		return err
	}
	return s.invalidate(ctx, username, domain)
}

func (s *CachedGrantStore) ListUsernames(ctx context.Context) ([]string, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached grant store is not configured")
	}
	return s.base.ListUsernames(ctx)
}

func (s *CachedGrantStore) invalidate(ctx context.Context, username string, domain string) error {
	cacheKey, err := GrantCacheKey(username, domain)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}
