package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-healthdata/core"
	"github.com/goliatone/go-healthdata/transport"
)

const (
	inputSchemaID  = "omh:internal:steps"
	outputSchemaID = "omh:dpu:steps_total"
)

type fakeUnitServer struct {
	mu           sync.Mutex
	schemaCalls  int
	requirements string
	queries      []string
	processed    []map[string]core.MultiValueResult[core.DataPoint]
	failProcess  bool
}

func (f *fakeUnitServer) handler(t *testing.T) http.Handler {
	prefix := "/omh/v1/" + outputSchemaID + "/1"
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch {
		case r.Method == http.MethodGet && r.URL.Path == prefix:
			f.schemaCalls++
			_, _ = w.Write([]byte(`{"type":"object","properties":{"total":{"type":"integer"}}}`))
		case r.Method == http.MethodGet && r.URL.Path == prefix+"/requirements":
			f.queries = append(f.queries, r.URL.RawQuery)
			_, _ = w.Write([]byte(f.requirements))
		case r.Method == http.MethodPost && r.URL.Path == prefix+"/process":
			if f.failProcess {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			var inputs map[string]core.MultiValueResult[core.DataPoint]
			if err := json.NewDecoder(r.Body).Decode(&inputs); err != nil {
				t.Errorf("decode process body: %v", err)
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			f.processed = append(f.processed, inputs)
			total := inputs[inputSchemaID].TotalCount
			ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
			id := fmt.Sprintf("total_%d", len(f.processed))
			_ = json.NewEncoder(w).Encode([]core.DataPoint{{
				Owner:    "ignored",
				SchemaID: "omh:other:thing",
				Version:  9,
				Meta:     core.MetaData{ID: &id, Timestamp: &ts},
				Payload:  json.RawMessage(fmt.Sprintf(`{"total":%d}`, total)),
			}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func newPipelineService(t *testing.T) *core.Service {
	t.Helper()
	svc, err := core.NewService(core.DefaultConfig())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()
	if _, err := svc.RegisterSchema(ctx, core.SchemaDefinition{ID: inputSchemaID, Version: 1, Definition: json.RawMessage(`{}`)}); err != nil {
		t.Fatalf("register input schema: %v", err)
	}
	var points []core.DataPoint
	for index, day := range []int{27, 29, 1, 1} {
		month := time.February
		if day == 1 {
			month = time.March
		}
		ts := time.Date(2024, month, day, 8+index, 0, 0, 0, time.UTC)
		id := fmt.Sprintf("steps_%d", index)
		points = append(points, core.DataPoint{
			Owner:    "alice",
			SchemaID: inputSchemaID,
			Version:  1,
			Meta:     core.MetaData{ID: &id, Timestamp: &ts},
			Payload:  json.RawMessage(fmt.Sprintf(`{"steps":%d}`, 1000*(index+1))),
		})
	}
	bobTs := time.Date(2024, time.March, 1, 18, 0, 0, 0, time.UTC)
	bobID := "steps_bob"
	points = append(points, core.DataPoint{
		Owner:    "bob",
		SchemaID: inputSchemaID,
		Version:  1,
		Meta:     core.MetaData{ID: &bobID, Timestamp: &bobTs},
		Payload:  json.RawMessage(`{"steps":500}`),
	})
	if err := svc.StoreData(ctx, points); err != nil {
		t.Fatalf("seed points: %v", err)
	}
	return svc
}

func newTestUnit(t *testing.T, svc Gateway, baseURL string) *Unit {
	t.Helper()
	unit, err := NewUnit(
		core.PipelineUnitConfig{ID: outputSchemaID, BaseURL: baseURL, Version: 1},
		svc,
		transport.NewRESTAdapter(http.DefaultClient),
		5*time.Second,
		nil,
	)
	if err != nil {
		t.Fatalf("new unit: %v", err)
	}
	return unit
}

func TestUnit_RunStoresDerivedPointsPerUser(t *testing.T) {
	fake := &fakeUnitServer{requirements: `[{"schema_id":"omh:internal:steps","version":1,"t_start":"2024-03-01T00:00:00Z","t_end":"2024-03-01T23:59:59Z","include_one_previous":true}]`}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	svc := newPipelineService(t)
	unit := newTestUnit(t, svc, server.URL)
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24*time.Hour - time.Second)
	ctx := context.Background()

	if err := unit.Run(ctx, start, end); err != nil {
		t.Fatalf("run: %v", err)
	}
	if fake.schemaCalls != 1 {
		t.Fatalf("expected output schema fetched once, got %d", fake.schemaCalls)
	}
	if len(fake.queries) != 1 || !strings.Contains(fake.queries[0], "t_start=2024-03-01T00%3A00%3A00Z") {
		t.Fatalf("unexpected requirements query %v", fake.queries)
	}
	if len(fake.processed) != 2 {
		t.Fatalf("expected one process call per user, got %d", len(fake.processed))
	}
	aliceInputs := fake.processed[0][inputSchemaID]
	if len(aliceInputs.Items) != 3 {
		t.Fatalf("expected two window points plus one previous, got %d", len(aliceInputs.Items))
	}
	if aliceInputs.TotalCount != 4 {
		t.Fatalf("expected counts of both reads summed, got %d", aliceInputs.TotalCount)
	}
	bobInputs := fake.processed[1][inputSchemaID]
	if len(bobInputs.Items) != 1 || bobInputs.TotalCount != 1 {
		t.Fatalf("expected bob's single window point, got %d of %d", len(bobInputs.Items), bobInputs.TotalCount)
	}

	if _, err := svc.GetSchema(ctx, outputSchemaID, 1); err != nil {
		t.Fatalf("expected output schema registered: %v", err)
	}
	stored, err := svc.ReadData(ctx, core.ReadRequest{SchemaID: outputSchemaID, Version: 1, Username: "alice", Limit: 10})
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if stored.Count() != 1 {
		t.Fatalf("expected one derived point, got %d", stored.Count())
	}
	point := stored.Items[0]
	if point.Owner != "alice" || point.SchemaID != outputSchemaID || point.Version != 1 {
		t.Fatalf("expected owner and schema rewritten, got %+v", point)
	}

	if err := unit.Run(ctx, start, end); err != nil {
		t.Fatalf("second run: %v", err)
	}
	again, _ := svc.ReadData(ctx, core.ReadRequest{SchemaID: outputSchemaID, Version: 1, Username: "alice", Limit: 10})
	if again.Count() != 1 {
		t.Fatalf("expected rerun to replace window output, got %d", again.Count())
	}
	if fake.schemaCalls != 1 {
		t.Fatalf("expected registered schema to be reused, got %d fetches", fake.schemaCalls)
	}
}

func TestUnit_ProcessesDataOwnersWithoutGrants(t *testing.T) {
	fake := &fakeUnitServer{requirements: `[{"schema_id":"omh:internal:steps","version":1}]`}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	svc, err := core.NewService(core.DefaultConfig())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()
	if _, err := svc.RegisterSchema(ctx, core.SchemaDefinition{ID: inputSchemaID, Version: 1, Definition: json.RawMessage(`{}`)}); err != nil {
		t.Fatalf("register input schema: %v", err)
	}
	ts := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
	id := "steps_carol"
	if err := svc.StoreData(ctx, []core.DataPoint{{
		Owner:    "carol",
		SchemaID: inputSchemaID,
		Version:  1,
		Meta:     core.MetaData{ID: &id, Timestamp: &ts},
		Payload:  json.RawMessage(`{"steps":700}`),
	}}); err != nil {
		t.Fatalf("seed points: %v", err)
	}
	allowed, err := svc.CanRead(ctx, core.CanReadRequest{SchemaID: inputSchemaID, Version: 1, Username: "carol"})
	if err != nil || !allowed {
		t.Fatalf("expected carol to read internal data, got %v err=%v", allowed, err)
	}

	unit := newTestUnit(t, svc, server.URL)
	if err := unit.Run(ctx, time.Time{}, time.Time{}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(fake.processed) != 1 {
		t.Fatalf("expected carol to be processed once, got %d", len(fake.processed))
	}
	if got := fake.processed[0][inputSchemaID].TotalCount; got != 1 {
		t.Fatalf("expected carol's point as input, got %d", got)
	}
	stored, err := svc.ReadData(ctx, core.ReadRequest{SchemaID: outputSchemaID, Version: 1, Username: "carol"})
	if err != nil || stored.Count() != 1 {
		t.Fatalf("expected one derived point for carol, got %d err=%v", stored.Count(), err)
	}
}

func TestUnit_SkipsUsersWithoutAccess(t *testing.T) {
	fake := &fakeUnitServer{requirements: `[{"schema_id":"omh:fitbit:activity","version":1}]`}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	registry := core.NewProviderRegistry()
	if err := registry.Register("fitbit", stubProvider{}); err != nil {
		t.Fatalf("register provider: %v", err)
	}
	svc, err := core.NewService(core.DefaultConfig(), core.WithRegistry(registry))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()
	if _, err := svc.PutGrant(ctx, core.AuthorizationGrant{Username: "carol", Domain: "withings", AccessToken: "tok"}); err != nil {
		t.Fatalf("put grant: %v", err)
	}

	unit := newTestUnit(t, svc, server.URL)
	if err := unit.Run(ctx, time.Time{}, time.Time{}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(fake.processed) != 0 {
		t.Fatalf("expected no process calls, got %d", len(fake.processed))
	}
	if len(fake.queries) != 1 || fake.queries[0] != "" {
		t.Fatalf("expected no window query without dates, got %v", fake.queries)
	}
}

func TestUnit_RejectsMalformedRequirements(t *testing.T) {
	fake := &fakeUnitServer{requirements: `[{"version":1}]`}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	svc := newPipelineService(t)
	unit := newTestUnit(t, svc, server.URL)
	err := unit.Run(context.Background(), time.Now().Add(-time.Hour), time.Now())
	if core.ErrorKind(err) != core.ErrorMalformedRequirement {
		t.Fatalf("expected malformed requirement, got %v", err)
	}
	if len(fake.processed) != 0 {
		t.Fatalf("expected no data processed")
	}
}

func TestNewUnit_Validation(t *testing.T) {
	client := transport.NewRESTAdapter(http.DefaultClient)
	svc := newPipelineService(t)
	cases := []core.PipelineUnitConfig{
		{ID: "", BaseURL: "http://dpu", Version: 1},
		{ID: outputSchemaID, BaseURL: "", Version: 1},
		{ID: outputSchemaID, BaseURL: "http://dpu", Version: 0},
	}
	for _, cfg := range cases {
		if _, err := NewUnit(cfg, svc, client, time.Second, nil); err == nil {
			t.Fatalf("expected config %+v to fail", cfg)
		}
	}
}

type stubProvider struct{}

func (stubProvider) Domain() string { return "fitbit" }

func (stubProvider) ListSchemaIDs(context.Context) ([]string, error) {
	return []string{"omh:fitbit:activity"}, nil
}

func (stubProvider) ListSchemaVersions(context.Context, string) ([]int64, error) {
	return []int64{1}, nil
}

func (stubProvider) FetchData(context.Context, core.FetchRequest) ([]core.DataPoint, error) {
	return nil, nil
}
