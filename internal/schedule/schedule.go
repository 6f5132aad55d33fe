// Package schedule runs the daily aggregation at a fixed time of day.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/workdigest/internal/domain"
	"github.com/goodtune/workdigest/internal/timeutil"
	"github.com/rs/zerolog"
)

// Runner aggregates and persists one day.
type Runner interface {
	AggregateAndSave(ctx context.Context, date string) (*domain.Features, string, error)
	Today() string
}

// Notifier reports the outcome of a run.
type Notifier interface {
	Success(date string, captureCount int, topApp string)
	Failure(err error)
}

// Scheduler triggers the daily aggregation
type Scheduler struct {
	runner   Runner
	notifier Notifier
	runAt    time.Time // Time of day to run (only hour and minute are used)
	clock    timeutil.Clock
	logger   zerolog.Logger
	stopChan chan struct{}
	done     chan struct{}
}

// New creates a scheduler that runs every day at runAt (HH:MM, local time).
// notifier may be nil.
func New(runner Runner, notifier Notifier, runAt string, clock timeutil.Clock, logger zerolog.Logger) (*Scheduler, error) {
	parsed, err := time.Parse("15:04", runAt)
	if err != nil {
		return nil, fmt.Errorf("invalid run time %q: %w", runAt, err)
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	return &Scheduler{
		runner:   runner,
		notifier: notifier,
		runAt:    parsed,
		clock:    clock,
		logger:   logger.With().Str("component", "scheduler").Logger(),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start begins the scheduler
func (s *Scheduler) Start() {
	go s.run()
	s.logger.Info().
		Str("run_at", s.runAt.Format("15:04")).
		Msg("Daily aggregation scheduler started")
}

// Stop stops the scheduler and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	close(s.stopChan)
	<-s.done
	s.logger.Info().Msg("Daily aggregation scheduler stopped")
}

func (s *Scheduler) run() {
	defer close(s.done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		next := s.NextRun(s.clock.Now())
		wait := next.Sub(s.clock.Now())

		s.logger.Info().
			Time("next_run", next).
			Dur("wait_duration", wait).
			Msg("Scheduled next daily aggregation")

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
			_ = s.RunOnce(ctx)
		case <-s.stopChan:
			timer.Stop()
			return
		}
	}
}

// NextRun returns the first run time strictly after now.
func (s *Scheduler) NextRun(now time.Time) time.Time {
	today := time.Date(
		now.Year(), now.Month(), now.Day(),
		s.runAt.Hour(), s.runAt.Minute(), 0, 0,
		now.Location(),
	)

	// Already passed (or exactly at) today's run time, schedule for tomorrow
	if !now.Before(today) {
		return today.AddDate(0, 0, 1)
	}
	return today
}

// RunOnce aggregates the current day, saves it and notifies.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	date := s.runner.Today()
	s.logger.Info().Str("date", date).Msg("Running daily aggregation")

	features, location, err := s.runner.AggregateAndSave(ctx, date)
	if err != nil {
		s.logger.Error().Err(err).Str("date", date).Msg("Daily aggregation failed")
		if s.notifier != nil {
			s.notifier.Failure(err)
		}
		return err
	}

	s.logger.Info().
		Str("date", date).
		Str("location", location).
		Int("captures", features.Meta().CaptureCount).
		Msg("Daily aggregation complete")

	if s.notifier != nil {
		topApp := ""
		if app, ok := features.TopApp(); ok {
			topApp = app.Name
		}
		s.notifier.Success(date, features.Meta().CaptureCount, topApp)
	}
	return nil
}
