package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryAuthorizationStore keeps grants in an immutable map that is swapped
// on every write, so readers observe either the old or the new grant.
type MemoryAuthorizationStore struct {
	mu     sync.RWMutex
	grants map[grantKey]AuthorizationGrant
	now    func() time.Time
}

type grantKey struct {
	username string
	domain   string
}

func NewMemoryAuthorizationStore(grants ...AuthorizationGrant) *MemoryAuthorizationStore {
	store := &MemoryAuthorizationStore{
		grants: map[grantKey]AuthorizationGrant{},
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, grant := range grants {
		_, _ = store.PutGrant(context.Background(), grant)
	}
	return store
}

func (s *MemoryAuthorizationStore) GetGrant(_ context.Context, username string, domain string) (AuthorizationGrant, bool, error) {
	if s == nil {
		return AuthorizationGrant{}, false, nil
	}
	key := newGrantKey(username, domain)
	s.mu.RLock()
	grants := s.grants
	s.mu.RUnlock()
	grant, ok := grants[key]
	if !ok {
		return AuthorizationGrant{}, false, nil
	}
	return grant.Clone(), true, nil
}

func (s *MemoryAuthorizationStore) PutGrant(_ context.Context, grant AuthorizationGrant) (AuthorizationGrant, error) {
	if s == nil {
		return AuthorizationGrant{}, fmt.Errorf("core: authorization store is nil")
	}
	if err := grant.Validate(); err != nil {
		return AuthorizationGrant{}, err
	}
	stored := grant.Clone()
	stored.Username = strings.TrimSpace(stored.Username)
	stored.Domain = normalizeDomain(stored.Domain)
	stored.UpdatedAt = s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()
	next := make(map[grantKey]AuthorizationGrant, len(s.grants)+1)
	for key, value := range s.grants {
		next[key] = value
	}
	next[newGrantKey(stored.Username, stored.Domain)] = stored
	s.grants = next
	return stored.Clone(), nil
}

func (s *MemoryAuthorizationStore) RevokeGrant(_ context.Context, username string, domain string) error {
	if s == nil {
		return nil
	}
	key := newGrantKey(username, domain)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.grants[key]; !ok {
		return nil
	}
	next := make(map[grantKey]AuthorizationGrant, len(s.grants))
	for existing, value := range s.grants {
		if existing == key {
			continue
		}
		next[existing] = value
	}
	s.grants = next
	return nil
}

func (s *MemoryAuthorizationStore) ListUsernames(context.Context) ([]string, error) {
	if s == nil {
		return []string{}, nil
	}
	s.mu.RLock()
	grants := s.grants
	s.mu.RUnlock()
	seen := map[string]struct{}{}
	for key := range grants {
		seen[key.username] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for username := range seen {
		out = append(out, username)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryAuthorizationStore) clock() time.Time {
	if s.now == nil {
		return time.Now().UTC()
	}
	return s.now()
}

func newGrantKey(username string, domain string) grantKey {
	return grantKey{username: strings.TrimSpace(username), domain: normalizeDomain(domain)}
}

// UserDirectories lists the union of several directories, sorted and
// deduplicated. Nil entries are skipped.
type UserDirectories []UserDirectory

func (d UserDirectories) ListUsernames(ctx context.Context) ([]string, error) {
	seen := map[string]struct{}{}
	for _, directory := range d {
		if directory == nil {
			continue
		}
		usernames, err := directory.ListUsernames(ctx)
		if err != nil {
			return nil, err
		}
		for _, username := range usernames {
			if username = strings.TrimSpace(username); username != "" {
				seen[username] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for username := range seen {
		out = append(out, username)
	}
	sort.Strings(out)
	return out, nil
}
