package concurrency

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/zengine/internal/core/observability/log"
)

type target uuid.UUID

func newTarget() target         { return target(uuid.New()) }
func (t target) ID() uuid.UUID { return uuid.UUID(t) }

// counters builds a workload where each task owns a disjoint slice of counters.
func counters(values []int64, steps int) Workload {
	return WorkloadFunc(func(n int) []Task {
		if n > len(values) {
			n = len(values)
		}
		tasks := make([]Task, 0, n)
		per := (len(values) + n - 1) / n
		for start := 0; start < len(values); start += per {
			end := min(start+per, len(values))
			part := values[start:end]
			tasks = append(tasks, func(context.Context) error {
				for i := range part {
					for s := 0; s < steps; s++ {
						part[i]++
					}
				}
				return nil
			})
		}
		return tasks
	})
}

func TestWorkerCountClamp(t *testing.T) {
	s := New(WithLogger(log.Nop()))
	assert.Equal(t, 8, s.WorkerCount())

	s.SetWorkerCount(0)
	assert.Equal(t, 1, s.WorkerCount())
	s.SetWorkerCount(99)
	assert.Equal(t, 16, s.WorkerCount())
	s.SetWorkerCount(4)
	assert.Equal(t, 4, s.WorkerCount())

	assert.Equal(t, 16, New(WithWorkers(40)).WorkerCount())
}

func TestWaitForAllIsABarrier(t *testing.T) {
	s := New(WithWorkers(4), WithLogger(log.Nop()))

	const screens, perScreen, steps = 6, 10, 1000
	state := make([][]int64, screens)
	for i := range state {
		state[i] = make([]int64, perScreen)
		require.NoError(t, s.DispatchUpdate(context.Background(), newTarget(), counters(state[i], steps)))
	}
	require.NoError(t, s.WaitForAll())
	assert.Zero(t, s.Outstanding())

	for _, screen := range state {
		for _, v := range screen {
			assert.Equal(t, int64(steps), v)
		}
	}
}

func TestWorkersBoundAcrossTargets(t *testing.T) {
	s := New(WithWorkers(2), WithLogger(log.Nop()))
	var inFlight, peak atomic.Int32

	work := WorkloadFunc(func(n int) []Task {
		tasks := make([]Task, n)
		for i := range tasks {
			tasks[i] = func(context.Context) error {
				cur := inFlight.Add(1)
				for {
					p := peak.Load()
					if cur <= p || peak.CompareAndSwap(p, cur) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				inFlight.Add(-1)
				return nil
			}
		}
		return tasks
	})

	for i := 0; i < 5; i++ {
		require.NoError(t, s.DispatchUpdate(context.Background(), newTarget(), work))
	}
	require.NoError(t, s.WaitForAll())
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestFaultSurfacesAtJoinOnly(t *testing.T) {
	s := New(WithWorkers(4), WithLogger(log.Nop()))
	bad, good := newTarget(), newTarget()
	boom := errors.New("boom")
	var siblingRan atomic.Bool

	require.NoError(t, s.DispatchUpdate(context.Background(), bad, WorkloadFunc(func(int) []Task {
		return []Task{
			func(context.Context) error { return boom },
			func(context.Context) error { siblingRan.Store(true); return nil },
		}
	})))
	var goodRan atomic.Bool
	require.NoError(t, s.DispatchUpdate(context.Background(), good, WorkloadFunc(func(int) []Task {
		return []Task{func(context.Context) error { goodRan.Store(true); return nil }}
	})))

	require.NoError(t, s.WaitFor(good))
	assert.True(t, goodRan.Load())

	err := s.WaitFor(bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTaskFault)
	assert.ErrorIs(t, err, boom)
	assert.True(t, siblingRan.Load())

	var fault *TaskFault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, bad.ID(), fault.Target)

	assert.NoError(t, s.WaitFor(bad), "a joined target has nothing outstanding")
}

func TestPanicBecomesFault(t *testing.T) {
	s := New(WithWorkers(2), WithLogger(log.Nop()))
	tg := newTarget()
	require.NoError(t, s.DispatchUpdate(context.Background(), tg, WorkloadFunc(func(int) []Task {
		return []Task{func(context.Context) error { panic("kaboom") }}
	})))

	err := s.WaitFor(tg)
	assert.ErrorIs(t, err, ErrTaskFault)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestCancelledContextDoesNotStopDispatchedWork(t *testing.T) {
	s := New(WithWorkers(1), WithLogger(log.Nop()))
	ctx, cancel := context.WithCancel(context.Background())
	tg := newTarget()
	var ran atomic.Int32

	require.NoError(t, s.DispatchUpdate(ctx, tg, WorkloadFunc(func(int) []Task {
		return []Task{func(ctx context.Context) error {
			time.Sleep(time.Millisecond)
			ran.Add(1)
			return ctx.Err()
		}}
	})))
	cancel()
	require.NoError(t, s.WaitFor(tg))
	assert.Equal(t, int32(1), ran.Load())
}

func TestSplitBeyondLimitRejected(t *testing.T) {
	s := New(WithWorkers(1), WithLogger(log.Nop()))
	err := s.DispatchUpdate(context.Background(), newTarget(), WorkloadFunc(func(int) []Task {
		return []Task{func(context.Context) error { return nil }, func(context.Context) error { return nil }}
	}))
	assert.ErrorIs(t, err, ErrTooManyTasks)
	assert.Zero(t, s.Outstanding())
}

func TestCloseRejectsDispatch(t *testing.T) {
	s := New(WithLogger(log.Nop()))
	require.NoError(t, s.Close())
	err := s.DispatchUpdate(context.Background(), newTarget(), WorkloadFunc(func(int) []Task { return nil }))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDispatchRacingWaitForJoinsEveryTask(t *testing.T) {
	s := New(WithWorkers(4), WithLogger(log.Nop()))
	tg := newTarget()

	const rounds = 200
	var ran atomic.Int64
	work := WorkloadFunc(func(n int) []Task {
		tasks := make([]Task, n)
		for i := range tasks {
			tasks[i] = func(context.Context) error {
				ran.Add(1)
				return nil
			}
		}
		return tasks
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < rounds; i++ {
			assert.NoError(t, s.DispatchUpdate(context.Background(), tg, work))
		}
	}()
	for {
		assert.NoError(t, s.WaitFor(tg))
		select {
		case <-done:
			require.NoError(t, s.WaitForAll())
			assert.Equal(t, int64(rounds*4), ran.Load())
			assert.Zero(t, s.Outstanding())
			return
		default:
		}
	}
}
