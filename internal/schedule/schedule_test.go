package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goodtune/workdigest/internal/domain"
	"github.com/goodtune/workdigest/internal/storage"
	"github.com/goodtune/workdigest/internal/storage/storagetest"
	"github.com/goodtune/workdigest/internal/timeutil"
	"github.com/rs/zerolog"
)

type fakeRunner struct {
	features *domain.Features
	err      error
	dates    []string
}

func (f *fakeRunner) AggregateAndSave(_ context.Context, date string) (*domain.Features, string, error) {
	f.dates = append(f.dates, date)
	if f.err != nil {
		return nil, "", f.err
	}
	return f.features, "mem://" + date, nil
}

func (f *fakeRunner) Today() string { return storagetest.Date }

type fakeNotifier struct {
	successes []string
	failures  []error
}

func (f *fakeNotifier) Success(date string, captureCount int, topApp string) {
	f.successes = append(f.successes, date+"|"+topApp)
}

func (f *fakeNotifier) Failure(err error) { f.failures = append(f.failures, err) }

func TestNextRun(t *testing.T) {
	s, err := New(&fakeRunner{}, nil, "18:00", nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	loc := time.FixedZone("JST", 9*60*60)

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"before run time", time.Date(2024, 1, 15, 9, 0, 0, 0, loc), time.Date(2024, 1, 15, 18, 0, 0, 0, loc)},
		{"exactly at run time", time.Date(2024, 1, 15, 18, 0, 0, 0, loc), time.Date(2024, 1, 16, 18, 0, 0, 0, loc)},
		{"after run time", time.Date(2024, 1, 15, 23, 59, 0, 0, loc), time.Date(2024, 1, 16, 18, 0, 0, 0, loc)},
		{"month rollover", time.Date(2024, 1, 31, 19, 0, 0, 0, loc), time.Date(2024, 2, 1, 18, 0, 0, 0, loc)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.NextRun(tt.now); !got.Equal(tt.want) {
				t.Errorf("NextRun(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestNewRejectsBadTime(t *testing.T) {
	for _, runAt := range []string{"", "6pm", "25:00", "18:60"} {
		if _, err := New(&fakeRunner{}, nil, runAt, nil, zerolog.Nop()); err == nil {
			t.Errorf("New(%q) expected error", runAt)
		}
	}
}

func TestRunOnceSuccess(t *testing.T) {
	runner := &fakeRunner{features: storagetest.Features(t, 2)}
	notifier := &fakeNotifier{}
	s, err := New(runner, notifier, "18:00", nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error: %v", err)
	}
	if len(runner.dates) != 1 || runner.dates[0] != storagetest.Date {
		t.Errorf("runner dates = %v", runner.dates)
	}
	if len(notifier.successes) != 1 || notifier.successes[0] != storagetest.Date+"|Visual Studio Code" {
		t.Errorf("successes = %v", notifier.successes)
	}
}

func TestRunOnceFailure(t *testing.T) {
	runner := &fakeRunner{err: storage.ErrNotFound}
	notifier := &fakeNotifier{}
	s, err := New(runner, notifier, "18:00", nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if err := s.RunOnce(context.Background()); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("RunOnce() error = %v, want ErrNotFound", err)
	}
	if len(notifier.failures) != 1 || len(notifier.successes) != 0 {
		t.Errorf("notifications: successes=%v failures=%v", notifier.successes, notifier.failures)
	}
}

func TestStartStop(t *testing.T) {
	clock := &timeutil.FixedClock{CurrentTime: time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)}
	runner := &fakeRunner{}
	s, err := New(runner, nil, "18:00", clock, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	s.Start()
	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop() did not return")
	}
	if len(runner.dates) != 0 {
		t.Errorf("scheduler ran unexpectedly: %v", runner.dates)
	}
}
