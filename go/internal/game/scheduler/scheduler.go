// Package scheduler runs deferred and periodic ledger work on timers owned by
// the process. Individual tasks cannot be cancelled once scheduled; Stop ends
// all of them at shutdown. Task errors and panics are logged here, never
// returned to whoever scheduled the task.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Task is a unit of scheduled work.
type Task func(ctx context.Context) error

type Scheduler struct {
	clock  clockwork.Clock
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]clockwork.Timer
	stopped bool

	oneShots sync.WaitGroup
	loops    sync.WaitGroup
}

// New creates a scheduler driven by clock.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
func New(clock clockwork.Clock) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		clock:   clock,
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[uint64]clockwork.Timer),
	}
}

// After runs task once, d from now.
func (s *Scheduler) After(name string, d time.Duration, task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		log.Warn().Str("task", name).Msg("scheduler stopped - dropping task")
		return
	}

	s.nextID++
	id := s.nextID
	s.oneShots.Add(1)

	fire := func() {
		defer s.oneShots.Done()
		s.mu.Lock()
		delete(s.pending, id)
		stopped := s.stopped
		s.mu.Unlock()
		if stopped {
			return
		}
		s.run(name, task)
	}

	if d <= 0 {
		go fire()
		return
	}
	s.pending[id] = s.clock.AfterFunc(d, fire)

	log.Debug().
		Str("task", name).
		Dur("delay", d).
		Msg("scheduled one-shot task")
}

// Every runs task each interval until the scheduler stops.
func (s *Scheduler) Every(name string, interval time.Duration, task Task) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		log.Warn().Str("task", name).Msg("scheduler stopped - dropping periodic task")
		return
	}
	s.loops.Add(1)
	s.mu.Unlock()

	ticker := s.clock.NewTicker(interval)
	go func() {
		defer s.loops.Done()
		defer ticker.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.Chan():
				s.run(name, task)
			}
		}
	}()

	log.Info().
		Str("task", name).
		Dur("interval", interval).
		Msg("scheduled periodic task")
}

// Pending returns how many one-shot tasks are waiting for their timer.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Wait blocks until every scheduled one-shot task has run or been dropped.
func (s *Scheduler) Wait() {
	s.oneShots.Wait()
}

// Stop cancels pending timers and periodic tasks and waits for running ones.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	for id, timer := range s.pending {
		if timer.Stop() {
			s.oneShots.Done()
		}
		delete(s.pending, id)
	}
	s.mu.Unlock()

	s.cancel()
	s.loops.Wait()
	s.oneShots.Wait()
	log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) run(name string, task Task) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("task", name).Interface("panic", r).Msg("scheduled task panicked")
		}
	}()

	start := s.clock.Now()
	if err := task(s.ctx); err != nil {
		log.Error().Err(err).Str("task", name).Msg("scheduled task failed")
		return
	}
	log.Debug().
		Str("task", name).
		Dur("took", s.clock.Since(start)).
		Msg("scheduled task completed")
}
