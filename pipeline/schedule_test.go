package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recordingRunner struct {
	mu      sync.Mutex
	windows [][2]time.Time
}

func (r *recordingRunner) Run(_ context.Context, start time.Time, end time.Time) RunReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.windows = append(r.windows, [2]time.Time{start, end})
	return RunReport{Start: start, End: end}
}

func TestDayWindow(t *testing.T) {
	start, end := DayWindow(time.Date(2024, 3, 10, 17, 45, 12, 0, time.UTC), nil)
	if !start.Equal(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start %s", start)
	}
	if !end.Equal(time.Date(2024, 3, 10, 23, 59, 59, 0, time.UTC)) {
		t.Fatalf("unexpected end %s", end)
	}
}

func TestPreviousDayWindow_CrossesMonth(t *testing.T) {
	start, end := PreviousDayWindow(time.Date(2024, 3, 1, 4, 0, 0, 0, time.UTC), time.UTC)
	if !start.Equal(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start %s", start)
	}
	if !end.Equal(time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC)) {
		t.Fatalf("unexpected end %s", end)
	}
}

func TestScheduler_TriggerRunsPreviousDay(t *testing.T) {
	runner := &recordingRunner{}
	scheduler, err := NewScheduler(runner, "", nil, nil)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	scheduler.now = func() time.Time { return time.Date(2024, 3, 10, 4, 0, 0, 0, time.UTC) }

	report := scheduler.Trigger(context.Background())
	if !report.Start.Equal(time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected window start %s", report.Start)
	}
	if len(runner.windows) != 1 {
		t.Fatalf("expected one run, got %d", len(runner.windows))
	}
}

func TestScheduler_StartAndStop(t *testing.T) {
	scheduler, err := NewScheduler(&recordingRunner{}, "0 0 4 * * *", time.UTC, nil)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	if !scheduler.Next().IsZero() {
		t.Fatalf("expected no next run before start")
	}
	if err := scheduler.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := scheduler.Start(); err == nil {
		t.Fatalf("expected double start to fail")
	}
	next := scheduler.Next()
	if next.IsZero() || next.Hour() != 4 || next.Minute() != 0 {
		t.Fatalf("unexpected next run %s", next)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := scheduler.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestNewScheduler_RejectsInvalidSpec(t *testing.T) {
	if _, err := NewScheduler(&recordingRunner{}, "every tuesday", nil, nil); err == nil {
		t.Fatalf("expected invalid schedule to fail")
	}
	if _, err := NewScheduler(nil, "", nil, nil); err == nil {
		t.Fatalf("expected missing runner to fail")
	}
}
