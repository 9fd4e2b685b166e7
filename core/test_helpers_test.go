package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type stubAdapter struct {
	domain   string
	schemas  map[string][]int64
	points   []DataPoint
	fetchFn  func(context.Context, FetchRequest) ([]DataPoint, error)
	listErr  error
	mu       sync.Mutex
	fetches  []FetchRequest
	listings int
}

func newStubAdapter(domain string, schemas map[string][]int64) *stubAdapter {
	return &stubAdapter{domain: domain, schemas: schemas}
}

func (a *stubAdapter) Domain() string { return a.domain }

func (a *stubAdapter) ListSchemaIDs(context.Context) ([]string, error) {
	a.mu.Lock()
	a.listings++
	a.mu.Unlock()
	if a.listErr != nil {
		return nil, a.listErr
	}
	ids := make([]string, 0, len(a.schemas))
	for id := range a.schemas {
		ids = append(ids, id)
	}
	return ids, nil
}

func (a *stubAdapter) ListSchemaVersions(_ context.Context, schemaID string) ([]int64, error) {
	return append([]int64(nil), a.schemas[schemaID]...), nil
}

func (a *stubAdapter) FetchData(ctx context.Context, req FetchRequest) ([]DataPoint, error) {
	a.mu.Lock()
	a.fetches = append(a.fetches, req)
	a.mu.Unlock()
	if a.fetchFn != nil {
		return a.fetchFn(ctx, req)
	}
	return append([]DataPoint(nil), a.points...), nil
}

func (a *stubAdapter) fetchCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.fetches)
}

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}

type failingGrantStore struct {
	err error
}

func (s failingGrantStore) GetGrant(context.Context, string, string) (AuthorizationGrant, bool, error) {
	return AuthorizationGrant{}, false, s.err
}

type countingGrantStore struct {
	next  AuthorizationStore
	calls int
}

func (s *countingGrantStore) GetGrant(ctx context.Context, username string, domain string) (AuthorizationGrant, bool, error) {
	s.calls++
	return s.next.GetGrant(ctx, username, domain)
}

func testPoints(owner string, schemaID string, count int, base time.Time) []DataPoint {
	points := make([]DataPoint, 0, count)
	for index := 0; index < count; index++ {
		ts := base.Add(time.Duration(index) * time.Minute)
		id := fmt.Sprintf("pt_%03d", index)
		points = append(points, DataPoint{
			Owner:    owner,
			SchemaID: schemaID,
			Version:  1,
			Meta:     MetaData{ID: &id, Timestamp: &ts},
			Payload:  json.RawMessage(fmt.Sprintf(`{"value":%d,"unit":{"name":"count","system":"si"}}`, index)),
		})
	}
	return points
}

func testGrant(username string, domain string) AuthorizationGrant {
	return AuthorizationGrant{Username: username, Domain: domain, AccessToken: "tok_" + domain}
}

func fixedTime() time.Time {
	return time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)
}
