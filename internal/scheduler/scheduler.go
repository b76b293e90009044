// Package scheduler runs recurring jobs on a shared clock. Each job is keyed
// and guarded so a tick and a manual trigger for the same key cannot run
// concurrently; the overlapping run is skipped.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/hazard-alert-service/internal/observability"
)

// Job is one recurring unit of work.
type Job struct {
	Key   string
	Every time.Duration
	Run   func(ctx context.Context) error
}

// Scheduler drives jobs on its clock until the context is canceled.
type Scheduler struct {
	jobs     []Job
	clock    clockwork.Clock
	inFlight sync.Map // job key -> struct{}
	metrics  *observability.Metrics
	logger   *slog.Logger
}

func New(clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Scheduler {
	return &Scheduler{clock: clock, metrics: metrics, logger: logger}
}

// Add registers a job. Must be called before Start.
func (s *Scheduler) Add(job Job) {
	s.jobs = append(s.jobs, job)
}

// Start runs every job once immediately, then on its interval, and blocks
// until the context is canceled.
func (s *Scheduler) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for _, job := range s.jobs {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			s.loop(ctx, job)
		}(job)
	}
	wg.Wait()
}

// Trigger runs one registered job by key outside its schedule. Skipped when
// the job is already running. Unknown keys are a no-op.
func (s *Scheduler) Trigger(ctx context.Context, key string) {
	for _, job := range s.jobs {
		if job.Key == key {
			s.run(ctx, job)
			return
		}
	}
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	s.run(ctx, job)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(job.Every):
			s.run(ctx, job)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, job Job) {
	if _, loaded := s.inFlight.LoadOrStore(job.Key, struct{}{}); loaded {
		s.metrics.SchedulerRuns.WithLabelValues(job.Key, "skipped").Inc()
		return
	}
	defer s.inFlight.Delete(job.Key)

	if err := job.Run(ctx); err != nil {
		s.metrics.SchedulerRuns.WithLabelValues(job.Key, "error").Inc()
		s.logger.Error("scheduled job failed", "job", job.Key, "error", err)
		return
	}
	s.metrics.SchedulerRuns.WithLabelValues(job.Key, "ok").Inc()
}
