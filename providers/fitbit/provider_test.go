package fitbit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-healthdata/core"
)

type fakeAPI struct {
	mu          sync.Mutex
	paths       []string
	authHeaders []string
	refreshes   int
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/1/user/-/activities/date/2024-03-01.json", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		_, _ = w.Write([]byte(`{"summary":{"steps":8123,"caloriesOut":2450,"floors":12,"distances":[{"activity":"tracker","distance":5.1},{"activity":"total","distance":6.2}]}}`))
	})
	mux.HandleFunc("/1.2/user/-/sleep/date/2024-03-01.json", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		_, _ = w.Write([]byte(`{"summary":{"totalMinutesAsleep":412,"totalTimeInBed":455}}`))
	})
	mux.HandleFunc("/1/user/-/activities/date/2024-03-02.json", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.refreshes++
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fresh","token_type":"Bearer","refresh_token":"r2","expires_in":3600}`))
	})
	return mux
}

func (f *fakeAPI) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, r.URL.Path)
	f.authHeaders = append(f.authHeaders, r.Header.Get("Authorization"))
}

func newTestProvider(t *testing.T, server *httptest.Server, mutate func(*Config)) *Provider {
	t.Helper()
	cfg := Config{
		APIBaseURL: server.URL,
		TokenURL:   server.URL + "/oauth2/token",
		HTTPClient: server.Client(),
		Now: func() time.Time {
			return time.Date(2024, 3, 1, 15, 30, 0, 0, time.UTC)
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	provider, err := New(cfg)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return provider
}

func grant() core.AuthorizationGrant {
	return core.AuthorizationGrant{Username: "alice", Domain: Domain, AccessToken: "tok", TokenType: "Bearer"}
}

func TestProvider_Catalog(t *testing.T) {
	provider, err := New(Config{})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	ctx := context.Background()
	ids, _ := provider.ListSchemaIDs(ctx)
	if len(ids) != 2 || ids[0] != ActivitySchemaID || ids[1] != SleepSchemaID {
		t.Fatalf("unexpected schema ids %v", ids)
	}
	versions, _ := provider.ListSchemaVersions(ctx, SleepSchemaID)
	if len(versions) != 1 || versions[0] != 1 {
		t.Fatalf("unexpected versions %v", versions)
	}
	if versions, _ := provider.ListSchemaVersions(ctx, "omh:fitbit:weight"); len(versions) != 0 {
		t.Fatalf("expected no versions for unknown id, got %v", versions)
	}
	if provider.cfg.APIBaseURL != APIBaseURL {
		t.Fatalf("expected default api base url, got %q", provider.cfg.APIBaseURL)
	}
}

func TestProvider_FetchActivityMapsSummary(t *testing.T) {
	api := &fakeAPI{}
	server := httptest.NewServer(api.handler())
	defer server.Close()
	provider := newTestProvider(t, server, nil)

	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	points, err := provider.FetchData(context.Background(), core.FetchRequest{
		SchemaID: ActivitySchemaID,
		Version:  1,
		Grant:    grant(),
		Start:    &start,
	})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected one point, got %d", len(points))
	}
	point := points[0]
	if point.Owner != "alice" || point.SchemaID != ActivitySchemaID || point.Version != 1 {
		t.Fatalf("unexpected point identity %+v", point)
	}
	if point.Meta.Timestamp == nil || !point.Meta.Timestamp.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected day timestamp, got %v", point.Meta.Timestamp)
	}
	var payload map[string]float64
	if err := json.Unmarshal(point.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["steps"] != 8123 || payload["calories_out"] != 2450 || payload["distance"] != 6.2 || payload["floors"] != 12 {
		t.Fatalf("unexpected payload %v", payload)
	}
	if api.authHeaders[0] != "Bearer tok" {
		t.Fatalf("expected bearer token, got %q", api.authHeaders[0])
	}
}

func TestProvider_FetchSleepDefaultsToToday(t *testing.T) {
	api := &fakeAPI{}
	server := httptest.NewServer(api.handler())
	defer server.Close()
	provider := newTestProvider(t, server, nil)

	points, err := provider.FetchData(context.Background(), core.FetchRequest{SchemaID: SleepSchemaID, Version: 1, Grant: grant()})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(points[0].Payload) != `{"minutes_asleep":412,"time_in_bed":455}` {
		t.Fatalf("unexpected payload %s", points[0].Payload)
	}
}

func TestProvider_UnsupportedVersionReturnsNil(t *testing.T) {
	api := &fakeAPI{}
	server := httptest.NewServer(api.handler())
	defer server.Close()
	provider := newTestProvider(t, server, nil)

	points, err := provider.FetchData(context.Background(), core.FetchRequest{SchemaID: ActivitySchemaID, Version: 2, Grant: grant()})
	if err != nil || points != nil {
		t.Fatalf("expected nil list, got %v err=%v", points, err)
	}
	if len(api.paths) != 0 {
		t.Fatalf("expected no upstream calls, got %v", api.paths)
	}
}

func TestProvider_RejectsUnknownSchema(t *testing.T) {
	provider, _ := New(Config{})
	if _, err := provider.FetchData(context.Background(), core.FetchRequest{SchemaID: "omh:fitbit:weight", Version: 1, Grant: grant()}); err == nil {
		t.Fatalf("expected unknown schema to fail")
	}
}

func TestProvider_UpstreamStatusIsWrapped(t *testing.T) {
	api := &fakeAPI{}
	server := httptest.NewServer(api.handler())
	defer server.Close()
	provider := newTestProvider(t, server, nil)

	start := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	_, err := provider.FetchData(context.Background(), core.FetchRequest{SchemaID: ActivitySchemaID, Version: 1, Grant: grant(), Start: &start})
	if core.ErrorKind(err) != core.ErrorNotAuthorized {
		t.Fatalf("expected unauthorized upstream to map to not authorized, got %v", err)
	}
}

func TestProvider_RefreshesExpiredTokenWithClientCredentials(t *testing.T) {
	api := &fakeAPI{}
	server := httptest.NewServer(api.handler())
	defer server.Close()
	provider := newTestProvider(t, server, func(cfg *Config) {
		cfg.ClientID = "client"
		cfg.ClientSecret = "secret"
	})

	expired := time.Now().Add(-time.Hour)
	stale := grant()
	stale.RefreshToken = "r1"
	stale.ExpiresAt = &expired
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if _, err := provider.FetchData(context.Background(), core.FetchRequest{SchemaID: SleepSchemaID, Version: 1, Grant: stale, Start: &start}); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if api.refreshes != 1 {
		t.Fatalf("expected one token refresh, got %d", api.refreshes)
	}
	if api.authHeaders[0] != "Bearer fresh" {
		t.Fatalf("expected refreshed token, got %q", api.authHeaders[0])
	}
}

func TestProvider_SavesRefreshedTokenToGrantStore(t *testing.T) {
	api := &fakeAPI{}
	server := httptest.NewServer(api.handler())
	defer server.Close()
	grants := core.NewMemoryAuthorizationStore()
	provider := newTestProvider(t, server, func(cfg *Config) {
		cfg.ClientID = "client"
		cfg.ClientSecret = "secret"
		cfg.Grants = grants
	})
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	valid := grant()
	if _, err := provider.FetchData(ctx, core.FetchRequest{SchemaID: SleepSchemaID, Version: 1, Grant: valid, Start: &start}); err != nil {
		t.Fatalf("fetch with valid token: %v", err)
	}
	if _, ok, _ := grants.GetGrant(ctx, "alice", Domain); ok {
		t.Fatalf("expected unchanged token not to be written")
	}

	expired := time.Now().Add(-time.Hour)
	stale := grant()
	stale.RefreshToken = "r1"
	stale.ExpiresAt = &expired
	if _, err := provider.FetchData(ctx, core.FetchRequest{SchemaID: SleepSchemaID, Version: 1, Grant: stale, Start: &start}); err != nil {
		t.Fatalf("fetch with expired token: %v", err)
	}
	saved, ok, err := grants.GetGrant(ctx, "alice", Domain)
	if err != nil || !ok {
		t.Fatalf("expected refreshed grant to be saved, got ok=%v err=%v", ok, err)
	}
	if saved.AccessToken != "fresh" || saved.RefreshToken != "r2" {
		t.Fatalf("unexpected saved tokens %+v", saved)
	}
	if saved.ExpiresAt == nil || !saved.ExpiresAt.After(time.Now()) {
		t.Fatalf("expected a future expiry, got %v", saved.ExpiresAt)
	}
	if api.refreshes != 1 {
		t.Fatalf("expected saving to reuse the refreshed token, got %d refreshes", api.refreshes)
	}
}

func TestProvider_ServesThroughRouter(t *testing.T) {
	api := &fakeAPI{}
	server := httptest.NewServer(api.handler())
	defer server.Close()
	provider := newTestProvider(t, server, nil)

	registry := core.NewProviderRegistry()
	if err := registry.RegisterAdapters(provider); err != nil {
		t.Fatalf("register: %v", err)
	}
	svc, err := core.NewService(core.DefaultConfig(), core.WithRegistry(registry))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()
	if _, err := svc.PutGrant(ctx, grant()); err != nil {
		t.Fatalf("put grant: %v", err)
	}
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	result, err := svc.ReadData(ctx, core.ReadRequest{SchemaID: ActivitySchemaID, Version: 1, Username: "alice", Start: &start, Limit: 10})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if result.Count() != 1 {
		t.Fatalf("expected one point through router, got %d", result.Count())
	}
}
