// Package workqueue implements the bounded work queue and phase barrier
// spec.md §5 describes: a fixed pool of W parallel workers, with the
// submitter itself participating as a consumer so a full queue never
// deadlocks — required at W=1, where the submitter is the only worker
// there is (spec.md §9 "Cooperative drain"). No external pack library
// implements self-submitting work stealing, so this is hand-rolled
// concurrency primitive code, the same way the teacher's own egpool.Group
// is hand-rolled rather than imported.
package workqueue

import (
	"sync"
)

// Task is one unit of work submitted to a phase barrier.
type Task func() error

// Pool is the fixed W-worker pool shared across every phase (spec.md §5
// "Scheduling model"). A Pool is reused across phases; each RunBarrier call
// is one phase barrier (spec.md §5 "Phase barrier").
type Pool struct {
	sem chan struct{}
}

// New returns a Pool bounding concurrent task execution to workers
// goroutines at a time.
func New(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{sem: make(chan struct{}, workers)}
}

// RunBarrier submits every task and blocks until all have completed,
// honoring spec.md §5's barrier semantics: no caller-visible task of the
// next phase may start before this call returns. When the pool's W slots
// are all in use, RunBarrier executes the overflow task on the calling
// goroutine instead of blocking on a full queue — the cooperative drain
// that guarantees progress when W=1 (a single goroutine pool would
// otherwise deadlock submitting to itself) and when the pool is saturated
// by a prior phase's stragglers.
//
// The first error from any task is returned (spec.md §5 "Cancellation":
// "a fatal error thrown by any task is surfaced at the nearest barrier");
// RunBarrier still waits for every task to finish before returning it,
// matching "the coordinator still waits for in-flight tasks to drain".
func (p *Pool) RunBarrier(tasks []Task) error {
	var wg sync.WaitGroup
	var once sync.Once
	var firstErr error

	record := func(err error) {
		if err == nil {
			return
		}
		once.Do(func() { firstErr = err })
	}

	wg.Add(len(tasks))
	for _, t := range tasks {
		t := t
		select {
		case p.sem <- struct{}{}:
			go func() {
				defer wg.Done()
				defer func() { <-p.sem }()
				record(t())
			}()
		default:
			// Cooperative drain: run inline on the submitting goroutine
			// rather than blocking on a full pool.
			record(t())
			wg.Done()
		}
	}
	wg.Wait()
	return firstErr
}

// RunBarrierCollect is RunBarrier but returns every task's error, at that
// task's index, instead of only the first, for callers that treat a
// per-task failure as non-fatal and need the full set.
func (p *Pool) RunBarrierCollect(tasks []Task) []error {
	errs := make([]error, len(tasks))
	var wg sync.WaitGroup
	wg.Add(len(tasks))
	for i, t := range tasks {
		i, t := i, t
		select {
		case p.sem <- struct{}{}:
			go func() {
				defer wg.Done()
				defer func() { <-p.sem }()
				errs[i] = t()
			}()
		default:
			errs[i] = t()
			wg.Done()
		}
	}
	wg.Wait()
	return errs
}

// ErrorSlot is the shared, atomically-set first-fault-wins error holder
// spec.md §5 describes ("Shared resources" / §9 "Global mutable state":
// "the shared error slot live[s] on the Coordinator"). It is separate from
// RunBarrier's own return value because a long-running task may want to
// check for an already-faulted sibling without waiting for the barrier
// (spec.md §5 "Long operations check an external circuit-breaker
// sparingly, at loader row-batch boundaries only").
type ErrorSlot struct {
	mu  sync.Mutex
	err error
}

// Set records err as the fault, if none has been recorded yet.
func (s *ErrorSlot) Set(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// Get returns the first fault recorded, or nil.
func (s *ErrorSlot) Get() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Faulted reports whether any task has recorded a fault, whatever its
// code — a cheap check for the loader's
// row-batch-boundary circuit breaker (spec.md §5).
func (s *ErrorSlot) Faulted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err != nil
}
