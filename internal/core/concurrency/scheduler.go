// Package concurrency runs per-screen update workloads on a bounded set of
// workers and joins them before rendering.
package concurrency

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/zeusync/zengine/internal/config"
	"github.com/zeusync/zengine/internal/core/observability/log"
)

// Task is one partition of a workload. Tasks of the same workload must write
// to disjoint sets of components.
type Task func(ctx context.Context) error

// Workload splits itself into at most n tasks.
type Workload interface {
	Split(n int) []Task
}

// WorkloadFunc adapts a function to Workload.
type WorkloadFunc func(n int) []Task

func (f WorkloadFunc) Split(n int) []Task { return f(n) }

// Target identifies whose tasks are being tracked, typically a screen.
type Target interface {
	ID() uuid.UUID
}

type batch struct {
	group  errgroup.Group
	mu     sync.Mutex
	faults []error
	tasks  int // guarded by Scheduler.mu
}

func (b *batch) fault(err error) {
	b.mu.Lock()
	b.faults = append(b.faults, err)
	b.mu.Unlock()
}

func (b *batch) wait() error {
	_ = b.group.Wait()
	b.mu.Lock()
	defer b.mu.Unlock()
	return errors.Join(b.faults...)
}

// Scheduler bounds the number of update tasks running at once across every
// target. One Scheduler is shared by the whole application.
type Scheduler struct {
	mu          sync.Mutex
	workers     int
	sem         *semaphore.Weighted
	outstanding map[uuid.UUID]*batch
	closed      bool
	logger      log.Log
}

type Option func(*Scheduler)

func WithWorkers(n int) Option {
	return func(s *Scheduler) { s.workers = config.ClampWorkers(n) }
}

func WithLogger(l log.Log) Option {
	return func(s *Scheduler) { s.logger = l }
}

func New(options ...Option) *Scheduler {
	s := &Scheduler{
		workers:     config.DefaultWorkers,
		outstanding: make(map[uuid.UUID]*batch),
		logger:      log.Provide(),
	}
	for _, opt := range options {
		opt(s)
	}
	s.sem = semaphore.NewWeighted(int64(s.workers))
	return s
}

// SetWorkerCount clamps n to [1, 16]. Tasks already dispatched keep the
// bound they were dispatched under.
func (s *Scheduler) SetWorkerCount(n int) {
	n = config.ClampWorkers(n)
	s.mu.Lock()
	defer s.mu.Unlock()
	if n == s.workers {
		return
	}
	s.workers = n
	s.sem = semaphore.NewWeighted(int64(n))
}

func (s *Scheduler) WorkerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workers
}

// DispatchUpdate splits w into at most WorkerCount tasks and starts them.
// It does not wait; join with WaitFor or WaitForAll. Cancelling ctx after
// dispatch does not stop the tasks.
func (s *Scheduler) DispatchUpdate(ctx context.Context, target Target, w Workload) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	workers, sem := s.workers, s.sem
	s.mu.Unlock()

	tasks := w.Split(workers)
	if len(tasks) > workers {
		return fmt.Errorf("%w: %d tasks, limit is %d", ErrTooManyTasks, len(tasks), workers)
	}

	id := target.ID()
	runCtx := context.WithoutCancel(ctx)

	// Tasks join the batch under s.mu so a concurrent WaitFor either sees all
	// of them or none.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	b, ok := s.outstanding[id]
	if !ok {
		b = &batch{}
		s.outstanding[id] = b
	}
	for _, task := range tasks {
		index := b.tasks
		b.tasks++

		b.group.Go(func() error {
			if err := sem.Acquire(runCtx, 1); err != nil {
				b.fault(&TaskFault{Target: id, Task: index, Err: err})
				return nil
			}
			defer sem.Release(1)

			if err := run(runCtx, task); err != nil {
				s.logger.Warn("update task faulted",
					log.Stringer("target", id),
					log.Int("task", index),
					log.Error(err),
				)
				b.fault(&TaskFault{Target: id, Task: index, Err: err})
			}
			return nil
		})
	}
	return nil
}

// run executes task and turns a panic into an error so siblings keep running.
func run(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return task(ctx)
}

// WaitFor blocks until every task dispatched for target has finished and
// returns their faults joined. Targets with nothing outstanding return nil.
func (s *Scheduler) WaitFor(target Target) error {
	s.mu.Lock()
	b, ok := s.outstanding[target.ID()]
	delete(s.outstanding, target.ID())
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return b.wait()
}

// WaitForAll joins every outstanding target.
func (s *Scheduler) WaitForAll() error {
	s.mu.Lock()
	batches := s.outstanding
	s.outstanding = make(map[uuid.UUID]*batch)
	s.mu.Unlock()

	var errs []error
	for _, b := range batches {
		if err := b.wait(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Outstanding returns the number of targets with unjoined tasks.
func (s *Scheduler) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.outstanding)
}

// Close rejects further dispatches and joins everything still running.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.WaitForAll()
}
