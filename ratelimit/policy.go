package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// ErrorProviderThrottled is the text code of ThrottledError envelopes.
const ErrorProviderThrottled = "HEALTHDATA_PROVIDER_THROTTLED"

var ErrStateNotFound = errors.New("ratelimit: state not found")

// Key identifies one throttle bucket: a provider domain seen through one
// user's grant.
type Key struct {
	Domain   string
	Username string
}

// ResponseMeta is what a finished provider call reports back.
type ResponseMeta struct {
	StatusCode int
	RetryAfter *time.Duration
	Headers    map[string]string
	Metadata   map[string]any
}

type State struct {
	Key            Key
	RetryAfter     *time.Duration
	ThrottledUntil *time.Time
	LastStatus     int
	Attempts       int
	UpdatedAt      time.Time
	Metadata       map[string]any
}

type StateStore interface {
	Get(ctx context.Context, key Key) (State, error)
	Upsert(ctx context.Context, state State) error
}

type ThrottledError struct {
	Domain     string
	Username   string
	RetryAfter time.Duration
}

func (e ThrottledError) Error() string {
	return fmt.Sprintf(
		"ratelimit: provider %q throttled for user %q for %s",
		strings.TrimSpace(e.Domain),
		strings.TrimSpace(e.Username),
		e.RetryAfter,
	)
}

func (e ThrottledError) ToServiceError() *goerrors.Error {
	metadata := map[string]any{
		"domain":   strings.TrimSpace(e.Domain),
		"username": strings.TrimSpace(e.Username),
	}
	if e.RetryAfter > 0 {
		metadata["retry_after_ms"] = e.RetryAfter.Milliseconds()
	}
	return goerrors.New(e.Error(), goerrors.CategoryRateLimit).
		WithCode(http.StatusTooManyRequests).
		WithTextCode(ErrorProviderThrottled).
		WithMetadata(metadata)
}

// AdaptivePolicy blocks calls while a bucket is throttled. A 429 opens a
// window taken from Retry-After, or an exponential backoff when the
// provider gives no hint. Any other status closes it.
type AdaptivePolicy struct {
	Store          StateStore
	Now            func() time.Time
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func NewAdaptivePolicy(store StateStore) *AdaptivePolicy {
	return &AdaptivePolicy{
		Store:          store,
		Now:            func() time.Time { return time.Now().UTC() },
		InitialBackoff: time.Second,
		MaxBackoff:     time.Minute,
	}
}

func (p *AdaptivePolicy) BeforeCall(ctx context.Context, key Key) error {
	if p == nil || p.Store == nil {
		return nil
	}
	state, err := p.Store.Get(ctx, normalizeKey(key))
	if err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return nil
		}
		return err
	}

	now := p.now()
	if until := state.ThrottledUntil; until != nil && now.Before(*until) {
		return ThrottledError{Domain: state.Key.Domain, Username: state.Key.Username, RetryAfter: until.Sub(now)}
	}
	return nil
}

func (p *AdaptivePolicy) AfterCall(ctx context.Context, key Key, res ResponseMeta) error {
	if p == nil || p.Store == nil {
		return nil
	}
	key = normalizeKey(key)
	now := p.now()
	state, err := p.Store.Get(ctx, key)
	if err != nil && !errors.Is(err, ErrStateNotFound) {
		return err
	}
	if errors.Is(err, ErrStateNotFound) {
		state = State{Key: key}
	}

	state.LastStatus = res.StatusCode
	state.UpdatedAt = now
	state.Metadata = cloneMap(state.Metadata)
	maps.Copy(state.Metadata, res.Metadata)

	retryAfter, hasRetryAfter := parseRetryAfter(res, now)
	if hasRetryAfter {
		state.RetryAfter = &retryAfter
	} else {
		state.RetryAfter = nil
	}

	if res.StatusCode == http.StatusTooManyRequests {
		state.Attempts++
		delay := retryAfter
		if !hasRetryAfter {
			delay = p.nextBackoff(state.Attempts)
		}
		until := now.Add(delay)
		state.ThrottledUntil = &until
		return p.Store.Upsert(ctx, state)
	}

	state.Attempts = 0
	state.ThrottledUntil = nil
	return p.Store.Upsert(ctx, state)
}

func (p *AdaptivePolicy) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *AdaptivePolicy) nextBackoff(attempt int) time.Duration {
	initial := p.InitialBackoff
	if initial <= 0 {
		initial = time.Second
	}
	maximum := p.MaxBackoff
	if maximum <= 0 {
		maximum = time.Minute
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	return min(delay, maximum)
}

func parseRetryAfter(res ResponseMeta, now time.Time) (time.Duration, bool) {
	if res.RetryAfter != nil && *res.RetryAfter > 0 {
		return *res.RetryAfter, true
	}
	raw := headerValue(res.Headers, "retry-after")
	if raw == "" {
		return 0, false
	}
	return parseRetryAfterValue(raw, now)
}

// parseRetryAfterValue accepts delay seconds or an HTTP date.
func parseRetryAfterValue(raw string, now time.Time) (time.Duration, bool) {
	raw = strings.TrimSpace(raw)
	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds <= 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if retryAt, err := http.ParseTime(raw); err == nil && retryAt.After(now) {
		return retryAt.Sub(now), true
	}
	return 0, false
}

func headerValue(headers map[string]string, key string) string {
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), key) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func normalizeKey(key Key) Key {
	return Key{
		Domain:   strings.TrimSpace(strings.ToLower(key.Domain)),
		Username: strings.TrimSpace(key.Username),
	}
}

func cloneMap(input map[string]any) map[string]any {
	output := make(map[string]any, len(input))
	maps.Copy(output, input)
	return output
}

type MemoryStateStore struct {
	mu    sync.RWMutex
	items map[Key]State
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{items: map[Key]State{}}
}

func (s *MemoryStateStore) Get(_ context.Context, key Key) (State, error) {
	if s == nil {
		return State{}, fmt.Errorf("ratelimit: state store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.items[normalizeKey(key)]
	if !ok {
		return State{}, ErrStateNotFound
	}
	state.Metadata = cloneMap(state.Metadata)
	return state, nil
}

func (s *MemoryStateStore) Upsert(_ context.Context, state State) error {
	if s == nil {
		return fmt.Errorf("ratelimit: state store is nil")
	}
	state.Key = normalizeKey(state.Key)
	state.Metadata = cloneMap(state.Metadata)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[state.Key] = state
	return nil
}
