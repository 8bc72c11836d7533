package screen

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/zengine/internal/core/camera"
	"github.com/zeusync/zengine/internal/core/component"
	"github.com/zeusync/zengine/internal/core/graphics"
	"github.com/zeusync/zengine/internal/core/observability/log"
)

func newScheduler() *Scheduler {
	return NewScheduler(WithSchedulerLogger(log.Nop()))
}

// lateFailure accepts its first Initialize without marking itself
// initialized and fails every later attempt.
type lateFailure struct {
	*component.Base
	attempts int
}

func (l *lateFailure) Initialize(context.Context) error {
	l.attempts++
	if l.attempts > 1 {
		return errors.New("no gpu")
	}
	return nil
}

type disposeRecorder struct {
	*component.Base
	order *[]string
}

func (d *disposeRecorder) Dispose() error {
	*d.order = append(*d.order, d.Name())
	return d.Base.Dispose()
}

func TestAddInitializesScreen(t *testing.T) {
	ctx := context.Background()
	sched := newScheduler()
	s := New("title", WithLogger(log.Nop()))
	c := component.NewBase("logo")
	require.NoError(t, s.Add(ctx, c))

	var added []string
	sched.OnAdded(func(sc *Screen) { added = append(added, sc.Name()) })

	require.NoError(t, sched.Add(ctx, s))
	assert.Equal(t, Initialized, s.State())
	assert.True(t, c.IsInitialized())
	assert.Equal(t, []string{"title"}, added)

	assert.ErrorIs(t, sched.Add(ctx, s), ErrDuplicateScreen)
	assert.ErrorIs(t, sched.Add(ctx, nil), ErrInvalidArgument)
}

func TestAddKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	sched := newScheduler()
	back := New("back", WithLogger(log.Nop()))
	middle := New("middle", WithLogger(log.Nop()))
	front := New("front", WithLogger(log.Nop()))
	for _, s := range []*Screen{back, middle, front} {
		require.NoError(t, sched.Add(ctx, s))
	}
	assert.Equal(t, []*Screen{back, middle, front}, sched.Screens())

	var removed []string
	sched.OnRemoved(func(sc *Screen) { removed = append(removed, sc.Name()) })
	assert.True(t, sched.Remove(middle))
	assert.False(t, sched.Remove(middle))
	assert.Equal(t, []*Screen{back, front}, sched.Screens())
	assert.Equal(t, []string{"middle"}, removed)
	assert.False(t, middle.IsDisposed())
}

func TestAddFailsWhenInitializationFails(t *testing.T) {
	ctx := context.Background()
	sched := newScheduler()
	s := New("broken", WithLogger(log.Nop()))
	require.NoError(t, s.Add(ctx, &lateFailure{Base: component.NewBase("shader")}))

	err := sched.Add(ctx, s)
	assert.Error(t, err)
	assert.Zero(t, sched.Len())
	assert.Equal(t, Created, s.State())
}

func TestVisibilityFilter(t *testing.T) {
	ctx := context.Background()
	sched := newScheduler()

	always := New("always", WithUpdateMode(Always), WithLogger(log.Nop()))
	gated := New("gated", WithUpdateMode(OnlyWhenActive), WithRenderMode(OnlyWhenActive), WithLogger(log.Nop()))
	never := New("never", WithUpdateMode(Never), WithRenderMode(Never), WithLogger(log.Nop()))

	counts := map[string]*counter{}
	for _, s := range []*Screen{always, gated, never} {
		c := newCounter("c", 1)
		counts[s.Name()] = c
		require.NoError(t, s.Add(ctx, c))
		require.NoError(t, sched.Add(ctx, s))
	}

	require.NoError(t, sched.UpdateAll(component.Frame{}))
	assert.Equal(t, 1, counts["always"].value)
	assert.Equal(t, 0, counts["gated"].value)
	assert.Equal(t, 0, counts["never"].value)
	assert.Equal(t, []*Screen{always}, sched.RenderTargets())

	gated.SetState(Active)
	require.NoError(t, sched.UpdateAll(component.Frame{}))
	assert.Equal(t, 1, counts["gated"].value)
	assert.Equal(t, []*Screen{always, gated}, sched.RenderTargets())

	gated.SetState(Paused)
	always.SetState(Paused)
	require.NoError(t, sched.UpdateAll(component.Frame{}))
	assert.Equal(t, 3, counts["always"].value)
	assert.Equal(t, 1, counts["gated"].value)
}

func TestUpdateAllCommitsOnlySuccessfulScreens(t *testing.T) {
	ctx := context.Background()
	sched := newScheduler()

	good := New("good", WithLogger(log.Nop()))
	goodCam := camera.New("cam")
	require.NoError(t, good.Add(ctx, goodCam))

	bad := New("bad", WithLogger(log.Nop()))
	badCam := camera.New("cam")
	require.NoError(t, bad.Add(ctx, badCam))
	boom := errors.New("boom")
	require.NoError(t, bad.Add(ctx, component.NewBehavior("script", func(component.Frame) error { return boom })))

	require.NoError(t, sched.Add(ctx, good))
	require.NoError(t, sched.Add(ctx, bad))

	goodCam.SetFov(1)
	badCam.SetFov(1)
	err := sched.UpdateAll(component.Frame{})
	assert.ErrorIs(t, err, boom)

	assert.InDelta(t, 1, goodCam.Fov(), 1e-6)
	assert.NotEqual(t, float32(1), badCam.Fov())
	assert.False(t, badCam.State().IsStateUpdated())
}

func TestRenderScreensHonorsAllowed(t *testing.T) {
	ctx := context.Background()
	sched := newScheduler()
	rec := graphics.NewRecorder()
	var events []string

	first := New("first", WithLogger(log.Nop()))
	second := New("second", WithLogger(log.Nop()))
	require.NoError(t, first.Add(ctx, newTriangle("one", &events)))
	require.NoError(t, second.Add(ctx, newTriangle("two", &events)))
	for _, s := range []*Screen{first, second} {
		require.NoError(t, sched.Add(ctx, s))
		require.NoError(t, s.LoadContent(ctx, nil, rec))
	}

	require.NoError(t, sched.RenderAll(rec))
	calls := rec.EndFrame()
	require.Len(t, calls, 2)
	assert.Equal(t, "one", calls[0].Source)
	assert.Equal(t, "two", calls[1].Source)

	require.NoError(t, sched.RenderScreens(rec, func(s *Screen) bool { return s != first }))
	calls = rec.EndFrame()
	require.Len(t, calls, 1)
	assert.Equal(t, "two", calls[0].Source)
}

func TestDisposeAllInInsertionOrder(t *testing.T) {
	ctx := context.Background()
	sched := newScheduler()
	var order []string
	for _, name := range []string{"back", "front"} {
		s := New(name, WithLogger(log.Nop()))
		require.NoError(t, s.Add(ctx, &disposeRecorder{Base: component.NewBase(name + "-c"), order: &order}))
		require.NoError(t, sched.Add(ctx, s))
	}

	require.NoError(t, sched.DisposeAll())
	assert.Equal(t, []string{"back-c", "front-c"}, order)
	assert.Zero(t, sched.Len())
}

func TestParseMode(t *testing.T) {
	m, ok := ParseMode("only_when_active")
	assert.True(t, ok)
	assert.Equal(t, OnlyWhenActive, m)

	_, ok = ParseMode("sometimes")
	assert.False(t, ok)
	assert.Equal(t, "never", Never.String())
	assert.Equal(t, "transitioning_in", TransitioningIn.String())
}
