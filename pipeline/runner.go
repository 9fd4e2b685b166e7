package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-healthdata/core"
	"github.com/goliatone/go-healthdata/transport"
)

type RunnerOption func(*runnerOptions)

type runnerOptions struct {
	logger     core.Logger
	httpClient transport.HTTPDoer
	client     JSONClient
}

func WithLogger(logger core.Logger) RunnerOption {
	return func(o *runnerOptions) {
		o.logger = logger
	}
}

// WithHTTPClient sets the client wrapped by the default REST adapter.
func WithHTTPClient(client transport.HTTPDoer) RunnerOption {
	return func(o *runnerOptions) {
		o.httpClient = client
	}
}

// WithJSONClient replaces the REST adapter entirely.
func WithJSONClient(client JSONClient) RunnerOption {
	return func(o *runnerOptions) {
		o.client = client
	}
}

// Runner executes every configured unit over one window. A failing unit is
// logged and skipped; it never stops the others.
type Runner struct {
	units       []*Unit
	concurrency int
	logger      core.Logger
}

type UnitFailure struct {
	Unit string
	Err  error
}

type RunReport struct {
	Start     time.Time
	End       time.Time
	Succeeded []string
	Failed    []UnitFailure
}

func NewRunner(gateway Gateway, cfg core.PipelineConfig, opts ...RunnerOption) (*Runner, error) {
	options := runnerOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	logger := glog.Ensure(options.logger)
	client := options.client
	if client == nil {
		httpClient := options.httpClient
		if httpClient == nil {
			httpClient = &http.Client{Timeout: cfg.Timeout()}
		}
		client = transport.NewRESTAdapter(httpClient)
	}

	units := make([]*Unit, 0, len(cfg.Units))
	for index, unitCfg := range cfg.Units {
		unit, err := NewUnit(unitCfg, gateway, client, cfg.Timeout(), logger)
		if err != nil {
			return nil, fmt.Errorf("pipeline: unit at index %d: %w", index, err)
		}
		units = append(units, unit)
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Runner{units: units, concurrency: concurrency, logger: logger}, nil
}

func (r *Runner) Units() []*Unit {
	return append([]*Unit(nil), r.units...)
}

func (r *Runner) Run(ctx context.Context, start time.Time, end time.Time) RunReport {
	report := RunReport{Start: start, End: end}
	var mu sync.Mutex

	r.logger.Info("pipeline run starting", "units", len(r.units), "start", start, "end", end)
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.concurrency)
	for _, unit := range r.units {
		group.Go(func() error {
			err := unit.Run(groupCtx, start, end)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				r.logger.Warn("pipeline unit failed, skipping", "unit", unit.String(), "error", err)
				report.Failed = append(report.Failed, UnitFailure{Unit: unit.String(), Err: err})
				return nil
			}
			report.Succeeded = append(report.Succeeded, unit.String())
			return nil
		})
	}
	_ = group.Wait()
	r.logger.Info("pipeline run finished", "succeeded", len(report.Succeeded), "failed", len(report.Failed))
	return report
}
