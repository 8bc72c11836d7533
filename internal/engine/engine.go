// Package engine owns the frame loop: it polls input, dispatches screen
// updates to the worker pool, joins them, commits state and renders.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/zeusync/zengine/internal/config"
	"github.com/zeusync/zengine/internal/core/camera"
	"github.com/zeusync/zengine/internal/core/component"
	"github.com/zeusync/zengine/internal/core/concurrency"
	"github.com/zeusync/zengine/internal/core/content"
	"github.com/zeusync/zengine/internal/core/events/bus"
	"github.com/zeusync/zengine/internal/core/graphics"
	"github.com/zeusync/zengine/internal/core/input"
	"github.com/zeusync/zengine/internal/core/observability/log"
	"github.com/zeusync/zengine/internal/core/profiler"
	"github.com/zeusync/zengine/internal/core/screen"
	"github.com/zeusync/zengine/internal/core/service"
)

const eventSource = "engine"

var ErrStopped = errors.New("engine: stopped")

var _ component.Host = (*Engine)(nil)

// FrameStats summarizes one completed frame. It is the payload of
// bus.FrameCompleted.
type FrameStats struct {
	Number    uint64
	Delta     time.Duration
	Updated   int
	Rendered  int
	Faulted   []string
	DrawCalls int
}

func (s FrameStats) String() string {
	return fmt.Sprintf("frame=%d updated=%d rendered=%d faulted=%d calls=%d",
		s.Number, s.Updated, s.Rendered, len(s.Faulted), s.DrawCalls)
}

// Preloader is implemented by loaders that can warm their cache.
type Preloader interface {
	Preload(ctx context.Context, workers int, names ...string) error
}

// Engine is the component host. Tick must be called from one goroutine.
type Engine struct {
	cfg      *config.Config
	logger   log.Log
	services *service.Registry
	screens  *screen.Scheduler
	workers  *concurrency.Scheduler
	events   *bus.Bus
	profiler *profiler.Profiler
	loader   content.Loader
	device   graphics.Device
	gfx      graphics.Context
	input    input.Source

	mu       sync.RWMutex
	cameras  []*camera.Camera
	owners   map[*camera.Camera]uuid.UUID
	bound    map[*screen.Screen]bool
	frame    uint64
	total    time.Duration
	last     FrameStats
	tickRate time.Duration

	rateCh       chan time.Duration
	quit         chan struct{}
	quitOnce     sync.Once
	shutdownOnce sync.Once
	shutdownErr  error
	stopped      atomic.Bool
}

type Option func(*Engine)

func WithConfig(cfg *config.Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

func WithLogger(l log.Log) Option {
	return func(e *Engine) { e.logger = l }
}

func WithServices(r *service.Registry) Option {
	return func(e *Engine) { e.services = r }
}

func WithScreens(s *screen.Scheduler) Option {
	return func(e *Engine) { e.screens = s }
}

func WithWorkers(s *concurrency.Scheduler) Option {
	return func(e *Engine) { e.workers = s }
}

func WithEvents(b *bus.Bus) Option {
	return func(e *Engine) { e.events = b }
}

func WithProfiler(p *profiler.Profiler) Option {
	return func(e *Engine) { e.profiler = p }
}

func WithLoader(l content.Loader) Option {
	return func(e *Engine) { e.loader = l }
}

// WithGraphics sets the pipeline device and the submission context.
func WithGraphics(dev graphics.Device, gfx graphics.Context) Option {
	return func(e *Engine) {
		e.device = dev
		e.gfx = gfx
	}
}

func WithInput(src input.Source) Option {
	return func(e *Engine) { e.input = src }
}

// New builds an engine. Anything not supplied through options is created
// from the configuration; graphics default to a headless recorder.
func New(options ...Option) *Engine {
	e := &Engine{
		owners: make(map[*camera.Camera]uuid.UUID),
		bound:  make(map[*screen.Screen]bool),
		rateCh: make(chan time.Duration, 1),
		quit:   make(chan struct{}),
	}
	for _, opt := range options {
		opt(e)
	}

	if e.cfg == nil {
		e.cfg = config.Default()
	}
	if e.logger == nil {
		e.logger = log.Provide()
	}
	e.logger = e.logger.Named("engine")
	if e.services == nil {
		e.services = service.NewRegistry()
	}
	if e.screens == nil {
		e.screens = screen.NewScheduler(screen.WithSchedulerLogger(e.logger))
	}
	if e.workers == nil {
		e.workers = concurrency.New(
			concurrency.WithWorkers(e.cfg.Engine.Workers),
			concurrency.WithLogger(e.logger),
		)
	}
	if e.events == nil {
		e.events = bus.New(bus.WithLogger(e.logger))
	}
	if e.profiler == nil {
		e.profiler = profiler.New(profiler.WithLogger(e.logger))
	}
	if e.loader == nil {
		e.loader = content.NewDirLoader(e.cfg.Content.Root, content.WithLogger(e.logger))
	}
	if e.device == nil || e.gfx == nil {
		rec := graphics.NewRecorder()
		e.device, e.gfx = rec, rec
	}
	if e.input == nil {
		e.input = input.Static(input.Snapshot{})
	}
	e.tickRate = e.cfg.Engine.TickRate

	e.screens.OnRemoved(e.screenRemoved)
	return e
}

func (e *Engine) Logger() log.Log { return e.logger }
func (e *Engine) Services() *service.Registry { return e.services }
func (e *Engine) Config() *config.Config { return e.cfg }
func (e *Engine) Screens() *screen.Scheduler { return e.screens }
func (e *Engine) Workers() *concurrency.Scheduler { return e.workers }
func (e *Engine) Events() *bus.Bus { return e.events }
func (e *Engine) Profiler() *profiler.Profiler { return e.profiler }
func (e *Engine) Loader() content.Loader { return e.loader }
func (e *Engine) Graphics() (graphics.Device, graphics.Context) { return e.device, e.gfx }

// Initialize registers the engine's long-lived collaborators as services so
// that components can reach them through their host.
func (e *Engine) Initialize(ctx context.Context) error {
	regs := []func() error{
		func() error { return registerOnce[content.Loader](ctx, e.services, e.loader) },
		func() error { return registerOnce[input.Source](ctx, e.services, e.input) },
		func() error { return registerOnce[*bus.Bus](ctx, e.services, e.events) },
		func() error { return registerOnce[*profiler.Profiler](ctx, e.services, e.profiler) },
		func() error { return registerOnce[*concurrency.Scheduler](ctx, e.services, e.workers) },
	}
	for _, reg := range regs {
		if err := reg(); err != nil {
			return fmt.Errorf("engine initialize: %w", err)
		}
	}
	e.logger.Info("engine initialized",
		log.Int("workers", e.workers.WorkerCount()),
		log.Duration("tick_rate", e.tickRate),
	)
	return nil
}

func registerOnce[T any](ctx context.Context, r *service.Registry, svc T) error {
	if _, err := service.Lookup[T](r); err == nil {
		return nil
	}
	return service.Register[T](ctx, r, svc)
}

// AddScreen binds the screen to the engine and schedules it, initializing it
// if necessary. Cameras already in the screen join the global camera list.
func (e *Engine) AddScreen(ctx context.Context, s *screen.Screen) error {
	if s == nil {
		return fmt.Errorf("%w: nil screen", screen.ErrInvalidArgument)
	}
	if e.scheduled(s) {
		return fmt.Errorf("%w: %s", screen.ErrDuplicateScreen, s.Name())
	}

	// Components may reach the host while the screen initializes.
	prev := s.Host()
	s.BindHost(e)
	initialized := s.IsInitialized()
	err := e.screens.Add(ctx, s)
	if !initialized && s.IsInitialized() {
		e.publish(bus.ScreenInitialized, s.Name())
	}
	if err != nil {
		s.BindHost(prev)
		return fmt.Errorf("add screen %s: %w", s.Name(), err)
	}

	e.mu.Lock()
	first := !e.bound[s]
	e.bound[s] = true
	e.mu.Unlock()
	if first {
		s.OnComponentAdded(e.componentAdded)
		s.Registry().OnRemoved(func(c component.Component) {
			if cam, ok := c.(*camera.Camera); ok {
				e.unregisterCamera(cam)
			}
		})
	}
	for _, c := range s.Components() {
		if cam, ok := c.(*camera.Camera); ok {
			e.registerCamera(s, cam)
		}
	}
	e.publish(bus.ScreenAdded, s.Name())
	return nil
}

// RemoveScreen unschedules s without disposing it.
func (e *Engine) RemoveScreen(s *screen.Screen) bool {
	return e.screens.Remove(s)
}

func (e *Engine) screenRemoved(s *screen.Screen) {
	e.mu.Lock()
	kept := e.cameras[:0]
	for _, cam := range e.cameras {
		if e.owners[cam] == s.ID() {
			delete(e.owners, cam)
			continue
		}
		kept = append(kept, cam)
	}
	e.cameras = kept
	e.mu.Unlock()
	e.publish(bus.ScreenRemoved, s.Name())
}

func (e *Engine) componentAdded(s *screen.Screen, c component.Component) {
	if !e.scheduled(s) {
		return
	}
	e.publish(bus.ComponentAdded, s.Name()+"/"+c.Name())
	if cam, ok := c.(*camera.Camera); ok {
		e.registerCamera(s, cam)
	}
}

func (e *Engine) scheduled(s *screen.Screen) bool {
	for _, existing := range e.screens.Screens() {
		if existing == s {
			return true
		}
	}
	return false
}

func (e *Engine) registerCamera(s *screen.Screen, cam *camera.Camera) {
	e.mu.Lock()
	if _, ok := e.owners[cam]; ok {
		e.mu.Unlock()
		return
	}
	e.owners[cam] = s.ID()
	e.cameras = append(e.cameras, cam)
	e.mu.Unlock()
	e.publish(bus.CameraRegistered, s.Name()+"/"+cam.Name())
}

func (e *Engine) unregisterCamera(cam *camera.Camera) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.owners[cam]; !ok {
		return
	}
	delete(e.owners, cam)
	for i, existing := range e.cameras {
		if existing == cam {
			e.cameras = append(e.cameras[:i:i], e.cameras[i+1:]...)
			return
		}
	}
}

// Cameras returns every camera of every scheduled screen in registration order.
func (e *Engine) Cameras() []*camera.Camera {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]*camera.Camera(nil), e.cameras...)
}

// LoadContent warms the configured preload list and then loads content for
// every scheduled screen that has not loaded yet. The first failure aborts.
func (e *Engine) LoadContent(ctx context.Context) error {
	if p, ok := e.loader.(Preloader); ok && len(e.cfg.Content.Preload) > 0 {
		if err := p.Preload(ctx, e.workers.WorkerCount(), e.cfg.Content.Preload...); err != nil {
			return fmt.Errorf("preload content: %w", err)
		}
	}
	for _, s := range e.screens.Screens() {
		if s.IsContentLoaded() {
			continue
		}
		if err := s.LoadContent(ctx, e.loader, e.device); err != nil {
			return err
		}
	}
	return nil
}

// Frame returns the number of the last completed frame.
func (e *Engine) Frame() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.frame
}

// LastFrame returns the stats of the last completed frame.
func (e *Engine) LastFrame() FrameStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last
}

// Tick runs one frame. Update work for every eligible screen is dispatched
// to the worker pool and joined per screen; a screen whose join fails is
// neither committed nor rendered this frame and its fault is part of the
// returned error.
func (e *Engine) Tick(ctx context.Context, dt time.Duration) error {
	if e.stopped.Load() {
		return ErrStopped
	}
	e.mu.Lock()
	e.frame++
	e.total += dt
	frame := component.Frame{Number: e.frame, Delta: dt, Total: e.total}
	e.mu.Unlock()

	targets := e.screens.UpdateTargets()
	stats := FrameStats{Number: frame.Number, Delta: dt, Updated: len(targets)}

	done := e.profiler.Track(profiler.PhaseInput)
	frame.Input = e.input.Poll()
	for _, s := range targets {
		s.HandleInput(frame.Input)
	}
	done()

	done = e.profiler.Track(profiler.PhaseDispatch)
	dispatched := make([]*screen.Screen, 0, len(targets))
	var errs []error
	for _, s := range targets {
		if err := e.workers.DispatchUpdate(ctx, s, s.UpdateWorkload(frame)); err != nil {
			errs = append(errs, fmt.Errorf("dispatch %s: %w", s.Name(), err))
			continue
		}
		dispatched = append(dispatched, s)
	}
	done()
	if len(dispatched) == 0 && len(errs) > 0 {
		if err := e.workers.WaitForAll(); err != nil {
			errs = append(errs, err)
		}
	}

	done = e.profiler.Track(profiler.PhaseJoin)
	faulted := make(map[uuid.UUID]bool)
	for _, s := range dispatched {
		if err := e.workers.WaitFor(s); err != nil {
			faulted[s.ID()] = true
			stats.Faulted = append(stats.Faulted, s.Name())
			errs = append(errs, fmt.Errorf("screen %s: %w", s.Name(), err))
			e.profiler.Fault()
			e.logger.Warn("screen update faulted", log.String("screen", s.Name()), log.Error(err))
			e.publish(bus.ScreenFaulted, s.Name())
		}
	}
	for _, s := range targets {
		if !contains(dispatched, s) {
			faulted[s.ID()] = true
		}
	}
	done()

	done = e.profiler.Track(profiler.PhaseCommit)
	for _, s := range dispatched {
		if !faulted[s.ID()] {
			s.UpdateState()
		}
	}
	done()

	done = e.profiler.Track(profiler.PhaseRender)
	allowed := func(s *screen.Screen) bool {
		if faulted[s.ID()] {
			return false
		}
		stats.Rendered++
		return true
	}
	if err := e.screens.RenderScreens(e.gfx, allowed); err != nil {
		errs = append(errs, err)
	}
	if p, ok := e.gfx.(graphics.Presenter); ok {
		stats.DrawCalls = len(p.EndFrame())
	}
	done()

	e.profiler.EndFrame(frame.Number)
	e.mu.Lock()
	e.last = stats
	e.mu.Unlock()
	e.publish(bus.FrameCompleted, stats)
	return errors.Join(errs...)
}

func contains(list []*screen.Screen, s *screen.Screen) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

// SetTickRate changes the interval used by Run. It takes effect on the
// next tick.
func (e *Engine) SetTickRate(d time.Duration) {
	if d <= 0 {
		return
	}
	e.mu.Lock()
	e.tickRate = d
	e.mu.Unlock()
	select {
	case e.rateCh <- d:
	default:
		select {
		case <-e.rateCh:
		default:
		}
		e.rateCh <- d
	}
}

func (e *Engine) TickRate() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tickRate
}

func (e *Engine) interval(rate time.Duration) time.Duration {
	if limit := e.cfg.Engine.FrameLimit; limit > 0 {
		if floor := time.Duration(float64(time.Second) / limit); floor > rate {
			return floor
		}
	}
	return rate
}

// Run ticks at the configured rate until ctx is done or Quit is called.
// Frame errors are logged and do not stop the loop.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.interval(e.TickRate()))
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-e.quit:
			return nil
		case rate := <-e.rateCh:
			ticker.Reset(e.interval(rate))
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			if err := e.Tick(ctx, dt); err != nil {
				if errors.Is(err, ErrStopped) || errors.Is(err, concurrency.ErrClosed) {
					return err
				}
				e.logger.Warn("frame failed", log.Uint64("frame", e.Frame()), log.Error(err))
			}
		}
	}
}

// Quit stops Run. Safe to call more than once.
func (e *Engine) Quit() {
	e.quitOnce.Do(func() { close(e.quit) })
}

// Shutdown stops Run, waits for every outstanding update task, disposes the
// screens in insertion order and finally the services. Later calls return
// the first result.
func (e *Engine) Shutdown() error {
	e.shutdownOnce.Do(func() {
		e.stopped.Store(true)
		e.Quit()
		var errs []error
		if err := e.workers.Close(); err != nil {
			errs = append(errs, fmt.Errorf("join update tasks: %w", err))
		}
		if err := e.screens.DisposeAll(); err != nil {
			errs = append(errs, err)
		}
		if err := e.services.Dispose(); err != nil {
			errs = append(errs, err)
		}
		e.mu.Lock()
		e.cameras = nil
		e.owners = make(map[*camera.Camera]uuid.UUID)
		e.bound = make(map[*screen.Screen]bool)
		e.mu.Unlock()

		e.shutdownErr = errors.Join(errs...)
		e.logger.Info("engine stopped", log.Uint64("frames", e.Frame()))
	})
	return e.shutdownErr
}

func (e *Engine) publish(typ string, data any) {
	if err := e.events.Publish(bus.NewEvent(typ, eventSource, data)); err != nil {
		e.logger.Warn("event handler failed", log.String("event", typ), log.Error(err))
	}
}
