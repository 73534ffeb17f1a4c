// Package scheduler runs cron-driven reprocessing jobs (spec §4.13):
// each configured schedule computes its next fire time, sleeps until
// then (cancelable), runs the processing pipeline for its target
// subset, then loops.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/iptvgw/gateway/internal/config"
)

// RunFunc executes the processing pipeline for the given targets (all
// configured targets when empty).
type RunFunc func(ctx context.Context, targets []string) error

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Job is one compiled schedule.
type Job struct {
	Name    string
	Targets []string
	sched   cron.Schedule
}

// Compile parses cfg's cron expressions, failing fast on malformed
// entries rather than skipping them silently.
func Compile(cfg []config.ScheduleConfig) ([]Job, error) {
	jobs := make([]Job, 0, len(cfg))
	for _, c := range cfg {
		s, err := parser.Parse(c.Cron)
		if err != nil {
			return nil, fmt.Errorf("scheduler: schedule %q: invalid cron %q: %w", c.Name, c.Cron, err)
		}
		jobs = append(jobs, Job{Name: c.Name, Targets: c.Targets, sched: s})
	}
	return jobs, nil
}

// Scheduler runs a set of compiled Jobs, each on its own goroutine,
// cooperatively cancelable via the context passed to Run.
type Scheduler struct {
	jobs []Job
	run  RunFunc

	mu      sync.Mutex
	running bool
	doneCh  chan struct{}
}

// New builds a Scheduler that invokes run for each job's fire.
func New(jobs []Job, run RunFunc) *Scheduler {
	return &Scheduler{jobs: jobs, run: run}
}

// Run starts all jobs and blocks until ctx is canceled, at which point
// every job's sleep is woken and Run returns once all have exited.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler: already running")
	}
	s.running = true
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	var wg sync.WaitGroup
	for i := range s.jobs {
		wg.Add(1)
		go func(j *Job) {
			defer wg.Done()
			s.runJob(ctx, j)
		}(&s.jobs[i])
	}

	go func() {
		wg.Wait()
		close(s.doneCh)
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	<-s.doneCh
	return ctx.Err()
}

func (s *Scheduler) runJob(ctx context.Context, j *Job) {
	for {
		now := time.Now()
		next := j.sched.Next(now)
		wait := next.Sub(now)
		log.Printf("scheduler: job %q next run at %s (in %s)", j.Name, next.Format(time.RFC3339), wait.Round(time.Second))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		log.Printf("scheduler: job %q firing for targets=%v", j.Name, j.Targets)
		if err := s.run(ctx, j.Targets); err != nil {
			log.Printf("scheduler: job %q run failed: %v", j.Name, err)
		}
	}
}
