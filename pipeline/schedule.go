package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/robfig/cron/v3"

	"github.com/goliatone/go-healthdata/core"
)

// DayWindow covers one calendar day in loc, ending one second before the
// next midnight.
func DayWindow(day time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	local := day.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1).Add(-time.Second)
	return start, end
}

// PreviousDayWindow is the window of the day before now.
func PreviousDayWindow(now time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	return DayWindow(now.In(loc).AddDate(0, 0, -1), loc)
}

type WindowRunner interface {
	Run(ctx context.Context, start time.Time, end time.Time) RunReport
}

// Scheduler triggers the runner on a cron spec with a seconds field. Each
// trigger processes the previous day.
type Scheduler struct {
	runner   WindowRunner
	spec     string
	location *time.Location
	logger   core.Logger
	now      func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID
}

func NewScheduler(runner WindowRunner, spec string, location *time.Location, logger core.Logger) (*Scheduler, error) {
	if runner == nil {
		return nil, fmt.Errorf("pipeline: scheduler requires a runner")
	}
	spec = strings.TrimSpace(spec)
	if spec == "" {
		spec = core.DefaultPipelineSchedule
	}
	if location == nil {
		location = time.UTC
	}
	if _, err := cron.NewParser(cronParseOptions).Parse(spec); err != nil {
		return nil, fmt.Errorf("pipeline: invalid schedule %q: %w", spec, err)
	}
	return &Scheduler{
		runner:   runner,
		spec:     spec,
		location: location,
		logger:   glog.Ensure(logger),
		now:      time.Now,
	}, nil
}

const cronParseOptions = cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor

func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return fmt.Errorf("pipeline: scheduler already started")
	}
	scheduler := cron.New(
		cron.WithLocation(s.location),
		cron.WithParser(cron.NewParser(cronParseOptions)),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	id, err := scheduler.AddFunc(s.spec, func() {
		s.Trigger(context.Background())
	})
	if err != nil {
		return fmt.Errorf("pipeline: schedule %q: %w", s.spec, err)
	}
	s.cron = scheduler
	s.entryID = id
	scheduler.Start()
	s.logger.Info("pipeline scheduler started", "schedule", s.spec, "location", s.location.String())
	return nil
}

// Stop halts new triggers and waits for a running one until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	scheduler := s.cron
	s.cron = nil
	s.mu.Unlock()
	if scheduler == nil {
		return nil
	}
	select {
	case <-scheduler.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next reports the next trigger time, or zero when not started.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// Trigger runs the previous day's window immediately.
func (s *Scheduler) Trigger(ctx context.Context) RunReport {
	start, end := PreviousDayWindow(s.now(), s.location)
	s.logger.Info("running all pipeline units", "start", start, "end", end)
	report := s.runner.Run(ctx, start, end)
	s.logger.Info("ran all pipeline units", "start", start, "end", end, "failed", len(report.Failed))
	return report
}
