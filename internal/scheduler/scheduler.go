package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/umweltmonitoring/sensebox-monitor/internal/metrics"
)

// Job is one schedulable unit of work.
type Job func(ctx context.Context) error

// Scheduler drives the two recurring jobs on independent timers: ingestion on
// a fixed short interval, forecast retraining at the top of every hour. Each
// job wears its own reentrancy guard; an overlapping tick is skipped, never
// queued, and a failed run leaves the job scheduled for the next tick.
type Scheduler struct {
	cron       *gocron.Scheduler
	ingest     Job
	forecast   Job
	interval   time.Duration
	jobTimeout time.Duration

	ingestBusy   atomic.Bool
	forecastBusy atomic.Bool
}

// New creates a scheduler for the given jobs. interval controls the ingestion
// cadence; jobTimeout bounds a single run of either job.
func New(ingest, forecast Job, interval, jobTimeout time.Duration) *Scheduler {
	return &Scheduler{
		cron:       gocron.NewScheduler(time.UTC),
		ingest:     ingest,
		forecast:   forecast,
		interval:   interval,
		jobTimeout: jobTimeout,
	}
}

// Start registers both timers and starts them in the background.
func (s *Scheduler) Start() error {
	if _, err := s.cron.Every(s.interval).Do(func() {
		s.runGuarded("ingest", &s.ingestBusy, s.ingest)
	}); err != nil {
		return fmt.Errorf("schedule ingest job: %w", err)
	}

	if _, err := s.cron.Cron("0 * * * *").Do(func() {
		s.runGuarded("forecast", &s.forecastBusy, s.forecast)
	}); err != nil {
		return fmt.Errorf("schedule forecast job: %w", err)
	}

	s.cron.StartAsync()
	return nil
}

// Stop halts the timers. Runs already in flight finish on their own.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// runGuarded is the per-job state machine: Idle -> Running -> Idle, with
// failures logged and swallowed so a bad tick never kills the recurring job.
func (s *Scheduler) runGuarded(name string, busy *atomic.Bool, job Job) {
	if !busy.CompareAndSwap(false, true) {
		log.Printf("scheduler: %s still running, skipping tick", name)
		metrics.JobSkippedTotal.WithLabelValues(name).Inc()
		return
	}
	defer busy.Store(false)

	metrics.JobRunning.WithLabelValues(name).Set(1)
	defer metrics.JobRunning.WithLabelValues(name).Set(0)

	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("scheduler: %s panicked: %v", name, r)
			metrics.ObserveJob(name, started, fmt.Errorf("panic: %v", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	err := job(ctx)
	metrics.ObserveJob(name, started, err)
	if err != nil {
		log.Printf("scheduler: %s failed: %v", name, err)
	}
}
