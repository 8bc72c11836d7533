package transition

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanema/gween/ease"

	"github.com/zeusync/zengine/internal/core/component"
	"github.com/zeusync/zengine/internal/core/observability/log"
	"github.com/zeusync/zengine/internal/core/screen"
)

func setup(t *testing.T, options ...Option) (*screen.Scheduler, *screen.Screen, *Transition) {
	t.Helper()
	ctx := context.Background()
	sched := screen.NewScheduler(screen.WithSchedulerLogger(log.Nop()))
	s := screen.New("menu",
		screen.WithUpdateMode(screen.Always),
		screen.WithRenderMode(screen.OnlyWhenActive),
		screen.WithLogger(log.Nop()),
	)
	tr := New("fade", s, append([]Option{WithDuration(500 * time.Millisecond), WithEase(ease.Linear)}, options...)...)
	require.NoError(t, s.Add(ctx, tr))
	require.NoError(t, sched.Add(ctx, s))
	return sched, s, tr
}

func step(t *testing.T, sched *screen.Scheduler, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, sched.UpdateAll(component.Frame{Delta: 100 * time.Millisecond}))
	}
}

func TestInActivatesScreen(t *testing.T) {
	sched, s, tr := setup(t)

	tr.In()
	assert.Equal(t, screen.TransitioningIn, s.State())
	assert.Empty(t, sched.RenderTargets())

	step(t, sched, 2)
	assert.InDelta(t, 0.4, tr.Position(), 1e-4)
	assert.True(t, tr.IsRunning())

	step(t, sched, 4)
	assert.InDelta(t, 1, tr.Position(), 1e-4)
	assert.False(t, tr.IsRunning())
	assert.Equal(t, screen.Active, s.State())
	assert.Equal(t, []*screen.Screen{s}, sched.RenderTargets())
}

func TestOutPausesAndNotifies(t *testing.T) {
	var removed []string
	var sched *screen.Scheduler
	sched, s, tr := setup(t, OnFinished(func(sc *screen.Screen, d Direction) {
		if d == Out {
			removed = append(removed, sc.Name())
			sched.Remove(sc)
		}
	}))

	tr.In()
	step(t, sched, 6)
	tr.Out()
	assert.Equal(t, screen.TransitioningOut, s.State())

	step(t, sched, 6)
	assert.InDelta(t, 0, tr.Position(), 1e-4)
	assert.Equal(t, screen.Paused, s.State())
	assert.Equal(t, []string{"menu"}, removed)
	assert.Zero(t, sched.Len())
}

func TestPositionIsStagedUntilCommit(t *testing.T) {
	_, s, tr := setup(t)
	tr.In()
	require.NoError(t, tr.Update(component.Frame{Delta: 250 * time.Millisecond}))
	assert.Zero(t, tr.Position())
	s.UpdateState()
	assert.InDelta(t, 0.5, tr.Position(), 1e-4)
}
