package prommetrics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/goliatone/go-healthdata/core"
)

// Labels every healthdata metric carries. Tags outside this set are dropped
// and missing ones are reported as empty.
var Labels = []string{"operation", "status", "domain", "schema_id"}

// Recorder implements core.MetricsRecorder on Prometheus collectors. Vectors
// are created on first use and registered with the given registerer.
type Recorder struct {
	registerer prometheus.Registerer
	buckets    []float64

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

type Option func(*Recorder)

// WithBuckets overrides the histogram buckets, in milliseconds.
func WithBuckets(buckets []float64) Option {
	return func(r *Recorder) {
		if len(buckets) > 0 {
			r.buckets = append([]float64(nil), buckets...)
		}
	}
}

func NewRecorder(registerer prometheus.Registerer, opts ...Option) *Recorder {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	recorder := &Recorder{
		registerer: registerer,
		buckets:    []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		counters:   map[string]*prometheus.CounterVec{},
		histograms: map[string]*prometheus.HistogramVec{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(recorder)
		}
	}
	return recorder
}

func (r *Recorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if r == nil || value < 0 {
		return
	}
	counter, err := r.counter(MetricName(name))
	if err != nil {
		return
	}
	counter.With(labelValues(tags)).Add(float64(value))
}

func (r *Recorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	if r == nil {
		return
	}
	histogram, err := r.histogram(MetricName(name))
	if err != nil {
		return
	}
	histogram.With(labelValues(tags)).Observe(value)
}

func (r *Recorder) counter(name string) (*prometheus.CounterVec, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.counters[name]; ok {
		return existing, nil
	}
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: name,
		Help: fmt.Sprintf("healthdata counter %s", name),
	}, Labels)
	if err := r.registerer.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, err
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, err
		}
		vec = existing
	}
	r.counters[name] = vec
	return vec, nil
}

func (r *Recorder) histogram(name string) (*prometheus.HistogramVec, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.histograms[name]; ok {
		return existing, nil
	}
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    name,
		Help:    fmt.Sprintf("healthdata histogram %s", name),
		Buckets: r.buckets,
	}, Labels)
	if err := r.registerer.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, err
		}
		existing, ok := already.ExistingCollector.(*prometheus.HistogramVec)
		if !ok {
			return nil, err
		}
		vec = existing
	}
	r.histograms[name] = vec
	return vec, nil
}

// MetricName maps a dotted healthdata metric name onto the Prometheus
// charset, e.g. healthdata.read_data.total becomes healthdata_read_data_total.
func MetricName(name string) string {
	name = strings.TrimSpace(name)
	var b strings.Builder
	for index, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if index == 0 {
				b.WriteRune('_')
			}
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "healthdata_unnamed"
	}
	return b.String()
}

func labelValues(tags map[string]string) prometheus.Labels {
	labels := make(prometheus.Labels, len(Labels))
	for _, key := range Labels {
		labels[key] = strings.TrimSpace(tags[key])
	}
	return labels
}

var _ core.MetricsRecorder = (*Recorder)(nil)
