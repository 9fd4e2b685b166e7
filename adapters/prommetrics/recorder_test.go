package prommetrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/goliatone/go-healthdata/core"
)

func TestRecorder_CountsAndObservesPerLabelSet(t *testing.T) {
	registry := prometheus.NewRegistry()
	recorder := NewRecorder(registry)
	ctx := context.Background()

	tags := map[string]string{"operation": "read_data", "status": "success", "domain": "fitbit", "ignored": "x"}
	recorder.IncCounter(ctx, "healthdata.read_data.total", 1, tags)
	recorder.IncCounter(ctx, "healthdata.read_data.total", 2, tags)
	recorder.IncCounter(ctx, "healthdata.read_data.total", 1, map[string]string{"operation": "read_data", "status": "failure"})
	recorder.ObserveHistogram(ctx, "healthdata.read_data.duration_ms", 12, tags)

	counter, err := recorder.counter("healthdata_read_data_total")
	if err != nil {
		t.Fatalf("lookup counter: %v", err)
	}
	got := testutil.ToFloat64(counter.With(prometheus.Labels{
		"operation": "read_data",
		"status":    "success",
		"domain":    "fitbit",
		"schema_id": "",
	}))
	if got != 3 {
		t.Fatalf("expected success counter 3, got %v", got)
	}
	if series := testutil.CollectAndCount(counter); series != 2 {
		t.Fatalf("expected two label sets, got %d", series)
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := map[string]bool{}
	for _, family := range families {
		names[family.GetName()] = true
	}
	if !names["healthdata_read_data_total"] || !names["healthdata_read_data_duration_ms"] {
		t.Fatalf("expected registered families, got %v", names)
	}
}

func TestRecorder_ReusesCollectorsAcrossRecorders(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := NewRecorder(registry)
	second := NewRecorder(registry)
	ctx := context.Background()

	first.IncCounter(ctx, "healthdata.store_data.total", 1, nil)
	second.IncCounter(ctx, "healthdata.store_data.total", 1, nil)

	counter, err := second.counter("healthdata_store_data_total")
	if err != nil {
		t.Fatalf("lookup counter: %v", err)
	}
	if got := testutil.ToFloat64(counter.With(labelValues(nil))); got != 2 {
		t.Fatalf("expected shared collector total 2, got %v", got)
	}
}

func TestMetricName(t *testing.T) {
	cases := map[string]string{
		"healthdata.read_data.total": "healthdata_read_data_total",
		"9lives":                     "_9lives",
		"a-b c":                      "a_b_c",
		"  ":                         "healthdata_unnamed",
	}
	for in, want := range cases {
		if got := MetricName(in); got != want {
			t.Fatalf("MetricName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRecorder_WiresIntoService(t *testing.T) {
	registry := prometheus.NewRegistry()
	svc, err := core.NewService(core.DefaultConfig(), core.WithMetricsRecorder(NewRecorder(registry)))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := svc.ListSchemaIDs(context.Background(), core.ListRequest{}); err != nil {
		t.Fatalf("list schema ids: %v", err)
	}
	count, err := testutil.GatherAndCount(registry, "healthdata_list_schema_ids_total")
	if err != nil {
		t.Fatalf("gather and count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one series for list_schema_ids, got %d", count)
	}
}
