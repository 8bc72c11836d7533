package screen

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/zengine/internal/core/camera"
	"github.com/zeusync/zengine/internal/core/component"
	"github.com/zeusync/zengine/internal/core/concurrency"
	"github.com/zeusync/zengine/internal/core/content"
	"github.com/zeusync/zengine/internal/core/graphics"
	"github.com/zeusync/zengine/internal/core/input"
	"github.com/zeusync/zengine/internal/core/observability/log"
	"github.com/zeusync/zengine/internal/core/service"
)

type triangle struct {
	*component.Renderable
	events  *[]string
	renders int
	unloads int
}

func newTriangle(name string, events *[]string) *triangle {
	return &triangle{
		Renderable: component.NewRenderable(name, graphics.PipelineDesc{Name: "flat", Vertex: "flat.vert", Fragment: "flat.frag"}),
		events:     events,
	}
}

func (t *triangle) LoadPipelines(ctx context.Context, dev graphics.Device) error {
	*t.events = append(*t.events, "pipelines:"+t.Name())
	return t.Renderable.LoadPipelines(ctx, dev)
}

func (t *triangle) LoadContent(ctx context.Context, loader content.Loader) error {
	if len(t.Pipelines()) == 0 {
		return errors.New("content loaded before pipelines")
	}
	*t.events = append(*t.events, "content:"+t.Name())
	return t.Renderable.LoadContent(ctx, loader)
}

func (t *triangle) UnloadContent() error {
	t.unloads++
	return t.Renderable.UnloadContent()
}

func (t *triangle) Render(gfx graphics.Context) error {
	t.renders++
	p, _ := t.Pipeline(0)
	return gfx.Submit(graphics.DrawCall{Pipeline: p, Vertices: 3, Source: t.Name()})
}

type counter struct {
	*component.Base
	value int
	steps int
}

func newCounter(name string, steps int) *counter {
	return &counter{Base: component.NewBase(name), steps: steps}
}

func (c *counter) Update(component.Frame) error {
	for i := 0; i < c.steps; i++ {
		c.value++
	}
	return nil
}

type pointerTracker struct {
	*component.Base
	x, y float64
}

func (p *pointerTracker) HandleInput(state input.State) { p.x, p.y = state.Pointer() }

func TestEndToEnd(t *testing.T) {
	ctx := context.Background()
	rec := graphics.NewRecorder()
	var events []string

	a := New("a", WithUpdateMode(Always), WithRenderMode(Always), WithLogger(log.Nop()))
	cam := camera.New("cam")
	tri := newTriangle("tri", &events)
	require.NoError(t, a.Add(ctx, cam))
	require.NoError(t, a.Add(ctx, tri))

	require.NoError(t, a.Initialize(ctx))
	assert.True(t, cam.IsInitialized())
	assert.True(t, tri.IsInitialized())
	assert.Equal(t, Initialized, a.State())

	require.NoError(t, a.LoadContent(ctx, nil, rec))
	assert.Equal(t, []string{"pipelines:tri", "content:tri"}, events)
	assert.True(t, cam.IsContentLoaded())

	initial := cam.ProjectionMatrix()
	cam.SetFov(1.2)
	require.NoError(t, a.Update(component.Frame{Number: 1}))
	assert.Equal(t, initial, cam.ProjectionMatrix(), "staged fov must not apply before commit")
	a.UpdateState()
	assert.NotEqual(t, initial, cam.ProjectionMatrix())
	assert.InDelta(t, 1.2, cam.Fov(), 1e-6)

	require.NoError(t, a.Render(rec))
	calls := rec.EndFrame()
	require.Len(t, calls, 1)
	assert.Equal(t, "tri", calls[0].Source)
	assert.Equal(t, 1, tri.renders)
	_, drawable := any(cam).(component.Drawable)
	assert.False(t, drawable)
}

func TestInitializeSkipsInitializedAndNotifiesOnce(t *testing.T) {
	ctx := context.Background()
	s := New("menu", WithLogger(log.Nop()))
	calls := 0
	s.OnInitialized(func(*Screen) { calls++ })

	require.NoError(t, s.Add(ctx, component.NewBase("title")))
	require.NoError(t, s.Initialize(ctx))
	require.NoError(t, s.Initialize(ctx))
	assert.Equal(t, 1, calls)
	assert.True(t, s.IsInitialized())
	assert.False(t, s.IsActive())
}

func TestComponentAddedHook(t *testing.T) {
	ctx := context.Background()
	s := New("hud", WithLogger(log.Nop()))
	var added []string
	s.OnComponentAdded(func(_ *Screen, c component.Component) { added = append(added, c.Name()) })

	require.NoError(t, s.Add(ctx, camera.New("main")))
	require.NoError(t, s.AddNamed(ctx, component.NewBase(""), "Score"))
	assert.Equal(t, []string{"main", "score"}, added)

	got, err := s.Get("SCORE")
	require.NoError(t, err)
	assert.Equal(t, "score", got.Name())
}

type stubHost struct {
	services *service.Registry
}

func (h stubHost) Logger() log.Log             { return log.Nop() }
func (h stubHost) Services() *service.Registry { return h.services }

func TestTypedNilComponentRejected(t *testing.T) {
	ctx := context.Background()
	s := New("nil", WithLogger(log.Nop()))
	s.BindHost(stubHost{services: service.NewRegistry()})

	var cam *camera.Camera
	assert.ErrorIs(t, s.Add(ctx, cam), component.ErrInvalidArgument)
	assert.ErrorIs(t, s.AddNamed(ctx, cam, "cam"), component.ErrInvalidArgument)
	assert.ErrorIs(t, s.Add(ctx, nil), component.ErrInvalidArgument)
	assert.Zero(t, s.Registry().Len())

	live := camera.New("cam")
	require.NoError(t, s.Add(ctx, live))
	assert.NotNil(t, live.Host())
}

func TestLoadContentRequiresInitialize(t *testing.T) {
	s := New("early", WithLogger(log.Nop()))
	err := s.LoadContent(context.Background(), nil, graphics.NewRecorder())
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestLoadContentWithoutDeviceFails(t *testing.T) {
	ctx := context.Background()
	var events []string
	s := New("nodev", WithLogger(log.Nop()))
	require.NoError(t, s.Add(ctx, newTriangle("tri", &events)))
	require.NoError(t, s.Initialize(ctx))

	err := s.LoadContent(ctx, nil, nil)
	assert.ErrorIs(t, err, ErrNoDevice)
	assert.Empty(t, events)
}

func TestHandleInputReachesReceivers(t *testing.T) {
	ctx := context.Background()
	s := New("input", WithLogger(log.Nop()))
	p := &pointerTracker{Base: component.NewBase("pointer")}
	require.NoError(t, s.Add(ctx, p))

	s.HandleInput(input.Snapshot{X: 3, Y: 4})
	assert.Equal(t, 3.0, p.x)
	assert.Equal(t, 4.0, p.y)
}

func TestDisposeUnloadsOnce(t *testing.T) {
	ctx := context.Background()
	var events []string
	s := New("level", WithLogger(log.Nop()))
	tri := newTriangle("tri", &events)
	require.NoError(t, s.Add(ctx, tri))
	require.NoError(t, s.Initialize(ctx))
	require.NoError(t, s.LoadContent(ctx, nil, graphics.NewRecorder()))

	require.NoError(t, s.Dispose())
	require.NoError(t, s.Dispose())
	assert.Equal(t, 1, tri.unloads)
	assert.True(t, tri.IsDisposed())
	assert.Nil(t, tri.Pipelines())
	assert.Zero(t, s.Registry().Len())

	assert.ErrorIs(t, s.Add(ctx, component.NewBase("late")), ErrDisposed)
}

func TestUpdateStopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	s := New("faulty", WithLogger(log.Nop()))
	boom := errors.New("boom")
	after := newCounter("after", 1)
	require.NoError(t, s.Add(ctx, component.NewBehavior("fails", func(component.Frame) error { return boom })))
	require.NoError(t, s.Add(ctx, after))

	err := s.Update(component.Frame{})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, after.value)
}

func TestUpdateWorkloadPartitionsByComponent(t *testing.T) {
	ctx := context.Background()
	s := New("crowd", WithLogger(log.Nop()))
	counters := make([]*counter, 10)
	for i := range counters {
		counters[i] = newCounter(string(rune('a'+i)), 100)
		require.NoError(t, s.Add(ctx, counters[i]))
	}
	require.NoError(t, s.Add(ctx, component.NewBase("passive")))

	tasks := s.UpdateWorkload(component.Frame{}).Split(4)
	assert.Len(t, tasks, 4)
	for _, task := range tasks {
		require.NoError(t, task(ctx))
	}
	for _, c := range counters {
		assert.Equal(t, 100, c.value, c.Name())
	}
}

func TestConcurrentUpdateJoinsBeforeRender(t *testing.T) {
	ctx := context.Background()
	sched := NewScheduler(WithSchedulerLogger(log.Nop()))
	workers := concurrency.New(concurrency.WithWorkers(4), concurrency.WithLogger(log.Nop()))

	const screens, perScreen, steps = 5, 8, 5000
	var all []*counter
	for i := 0; i < screens; i++ {
		s := New(string(rune('A'+i)), WithLogger(log.Nop()))
		for j := 0; j < perScreen; j++ {
			c := newCounter(string(rune('a'+j)), steps)
			all = append(all, c)
			require.NoError(t, s.Add(ctx, c))
		}
		require.NoError(t, sched.Add(ctx, s))
	}

	frame := component.Frame{Number: 1}
	for _, s := range sched.UpdateTargets() {
		require.NoError(t, workers.DispatchUpdate(ctx, s, s.UpdateWorkload(frame)))
	}
	require.NoError(t, workers.WaitForAll())

	observed := 0
	for _, s := range sched.RenderTargets() {
		for _, c := range s.Components() {
			assert.Equal(t, steps, c.(*counter).value)
			observed++
		}
	}
	assert.Equal(t, len(all), observed)
}
