// Package scheduler runs the subsystem's periodic background tasks (idle
// sweep, auto-away check, reconciliation) with an injectable tick source
// so tests can simulate elapsed time instead of waiting on real timers.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/silviutimaru/mivton-presence/pkg/logging"
)

// Task is one periodic job. Run must tolerate being re-run at any time; it
// recomputes from stored state and never depends on tick delivery.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context)
}

// TickerFunc produces a tick channel plus a stop function for an interval.
// The default is time.Ticker; tests substitute a manual channel.
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

// Scheduler owns the background task goroutines
type Scheduler struct {
	tasks  []Task
	ticker TickerFunc
	log    *logging.Logger
	wg     sync.WaitGroup
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithTicker injects a deterministic tick source for tests
func WithTicker(fn TickerFunc) Option {
	return func(s *Scheduler) { s.ticker = fn }
}

// New creates a scheduler for the given tasks
func New(log *logging.Logger, tasks []Task, opts ...Option) *Scheduler {
	s := &Scheduler{
		tasks: tasks,
		log:   log,
		ticker: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches one goroutine per task. Tasks stop when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	for _, task := range s.tasks {
		s.wg.Add(1)
		go s.run(ctx, task)
	}
}

// Wait blocks until all task goroutines have exited
func (s *Scheduler) Wait() { s.wg.Wait() }

func (s *Scheduler) run(ctx context.Context, task Task) {
	defer s.wg.Done()

	ticks, stop := s.ticker(task.Interval)
	defer stop()

	s.log.Info("background task started",
		zap.String("task", task.Name),
		zap.Duration("interval", task.Interval))

	for {
		select {
		case <-ctx.Done():
			s.log.Info("background task stopped", zap.String("task", task.Name))
			return
		case <-ticks:
			task.Run(ctx)
		}
	}
}
