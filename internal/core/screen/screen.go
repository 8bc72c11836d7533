// Package screen groups components into screens and drives them through
// their lifecycle in back-to-front order.
package screen

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/zeusync/zengine/internal/core/component"
	"github.com/zeusync/zengine/internal/core/concurrency"
	"github.com/zeusync/zengine/internal/core/content"
	"github.com/zeusync/zengine/internal/core/graphics"
	"github.com/zeusync/zengine/internal/core/input"
	"github.com/zeusync/zengine/internal/core/observability/log"
	"github.com/zeusync/zengine/pkg/concurrent"
)

var _ concurrency.Target = (*Screen)(nil)

// Screen owns a component registry and applies one visibility policy to
// every component in it.
type Screen struct {
	id   uuid.UUID
	name string

	mu            sync.RWMutex
	state         State
	updateMode    Mode
	renderMode    Mode
	host          component.Host
	contentLoaded bool
	disposed      bool

	components *component.Registry
	logger     log.Log

	onInitialized    []func(*Screen)
	onComponentAdded []func(*Screen, component.Component)
	onContentLoaded  []func(*Screen)
}

type Option func(*Screen)

func WithUpdateMode(m Mode) Option {
	return func(s *Screen) { s.updateMode = m }
}

func WithRenderMode(m Mode) Option {
	return func(s *Screen) { s.renderMode = m }
}

func WithLogger(l log.Log) Option {
	return func(s *Screen) { s.logger = l }
}

// New creates a screen in the Created state. Both modes default to Always.
func New(name string, options ...Option) *Screen {
	s := &Screen{
		id:         uuid.New(),
		name:       name,
		components: component.NewRegistry(),
		logger:     log.Provide(),
	}
	for _, opt := range options {
		opt(s)
	}
	s.logger = s.logger.With(log.String("screen", name))
	s.components.OnAdded(s.componentAdded)
	return s
}

func (s *Screen) ID() uuid.UUID  { return s.id }
func (s *Screen) Name() string   { return s.name }
func (s *Screen) String() string { return s.name }

// Components returns the registered components in insertion order.
func (s *Screen) Components() []component.Component { return s.components.All() }

// Registry exposes the screen's component registry.
func (s *Screen) Registry() *component.Registry { return s.components }

// Get returns the component registered under name in any letter case.
func (s *Screen) Get(name string) (component.Component, error) {
	return s.components.Get(name)
}

// Add registers c, initializing it if necessary. A host bound to the screen
// is passed on before initialization.
func (s *Screen) Add(ctx context.Context, c component.Component) error {
	if s.IsDisposed() {
		return ErrDisposed
	}
	if component.IsNil(c) {
		return fmt.Errorf("%w: nil component", component.ErrInvalidArgument)
	}
	if h := s.Host(); h != nil {
		if binder, ok := c.(component.HostBinder); ok {
			binder.BindHost(h)
		}
	}
	return s.components.Add(ctx, c)
}

// AddNamed assigns the folded name to c and registers it.
func (s *Screen) AddNamed(ctx context.Context, c component.Component, name string) error {
	if component.IsNil(c) {
		return fmt.Errorf("%w: nil component", component.ErrInvalidArgument)
	}
	c.SetName(component.Fold(name))
	return s.Add(ctx, c)
}

// Remove drops the named component without disposing it.
func (s *Screen) Remove(name string) bool { return s.components.Remove(name) }

// BindHost records h and hands it to every component that accepts one.
func (s *Screen) BindHost(h component.Host) {
	s.mu.Lock()
	s.host = h
	s.mu.Unlock()
	for _, c := range s.components.All() {
		if binder, ok := c.(component.HostBinder); ok {
			binder.BindHost(h)
		}
	}
}

func (s *Screen) Host() component.Host {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.host
}

// OnInitialized registers a callback fired when the screen leaves Created.
func (s *Screen) OnInitialized(fn func(*Screen)) {
	s.mu.Lock()
	s.onInitialized = append(s.onInitialized, fn)
	s.mu.Unlock()
}

// OnComponentAdded registers a callback fired after each component insertion.
func (s *Screen) OnComponentAdded(fn func(*Screen, component.Component)) {
	s.mu.Lock()
	s.onComponentAdded = append(s.onComponentAdded, fn)
	s.mu.Unlock()
}

// OnContentLoaded registers a callback fired after LoadContent finishes.
func (s *Screen) OnContentLoaded(fn func(*Screen)) {
	s.mu.Lock()
	s.onContentLoaded = append(s.onContentLoaded, fn)
	s.mu.Unlock()
}

func (s *Screen) componentAdded(c component.Component) {
	s.mu.RLock()
	listeners := append(([]func(*Screen, component.Component))(nil), s.onComponentAdded...)
	s.mu.RUnlock()

	s.logger.Debug("component added", log.String("component", c.Name()))
	for _, fn := range listeners {
		fn(s, c)
	}
}

// Initialize initializes every component that is not yet initialized, in
// registry order, and moves the screen to Initialized. Calling it again
// only initializes components added since.
func (s *Screen) Initialize(ctx context.Context) error {
	if s.IsDisposed() {
		return ErrDisposed
	}
	for _, c := range s.components.All() {
		if c.IsInitialized() {
			continue
		}
		if err := c.Initialize(ctx); err != nil {
			return fmt.Errorf("screen %s: initialize %s: %w", s.name, c.Name(), err)
		}
	}

	s.mu.Lock()
	transitioned := s.state == Created
	if transitioned {
		s.state = Initialized
	}
	listeners := append(([]func(*Screen))(nil), s.onInitialized...)
	s.mu.Unlock()

	if transitioned {
		s.logger.Debug("screen initialized", log.Int("components", s.components.Len()))
		for _, fn := range listeners {
			fn(s)
		}
	}
	return nil
}

// LoadContent binds graphics pipelines for every component that has them and
// only then loads content for every component, both in registry order.
func (s *Screen) LoadContent(ctx context.Context, loader content.Loader, dev graphics.Device) error {
	if !s.IsInitialized() {
		return fmt.Errorf("%w: %s", ErrNotInitialized, s.name)
	}
	if s.IsDisposed() {
		return ErrDisposed
	}

	components := s.components.All()
	for _, c := range components {
		pl, ok := c.(component.PipelineLoader)
		if !ok {
			continue
		}
		if dev == nil {
			return fmt.Errorf("screen %s: %s: %w", s.name, c.Name(), ErrNoDevice)
		}
		if err := pl.LoadPipelines(ctx, dev); err != nil {
			return fmt.Errorf("screen %s: load pipelines: %w", s.name, err)
		}
	}

	for _, c := range components {
		if err := c.LoadContent(ctx, loader); err != nil {
			return fmt.Errorf("screen %s: load content for %s: %w", s.name, c.Name(), err)
		}
	}

	s.mu.Lock()
	s.contentLoaded = true
	listeners := append(([]func(*Screen))(nil), s.onContentLoaded...)
	s.mu.Unlock()

	s.logger.Debug("screen content loaded")
	for _, fn := range listeners {
		fn(s)
	}
	return nil
}

// HandleInput forwards the frame's input snapshot to every input receiver.
func (s *Screen) HandleInput(state input.State) {
	for _, c := range s.components.All() {
		if r, ok := c.(component.InputReceiver); ok {
			r.HandleInput(state)
		}
	}
}

// Update runs the update step of every updatable component in registry
// order and stops at the first failure.
func (s *Screen) Update(frame component.Frame) error {
	for _, c := range s.components.All() {
		u, ok := c.(component.Updatable)
		if !ok {
			continue
		}
		if err := u.Update(frame); err != nil {
			return fmt.Errorf("screen %s: update %s: %w", s.name, c.Name(), err)
		}
	}
	return nil
}

// UpdateWorkload partitions the updatable components into contiguous groups,
// one task per group. Each component belongs to exactly one task.
func (s *Screen) UpdateWorkload(frame component.Frame) concurrency.Workload {
	var updatables []component.Component
	for _, c := range s.components.All() {
		if _, ok := c.(component.Updatable); ok {
			updatables = append(updatables, c)
		}
	}

	return concurrency.WorkloadFunc(func(n int) []concurrency.Task {
		groups := concurrent.Chunk(updatables, n)
		tasks := make([]concurrency.Task, 0, len(groups))
		for _, group := range groups {
			tasks = append(tasks, func(context.Context) error {
				for _, c := range group {
					if err := c.(component.Updatable).Update(frame); err != nil {
						return fmt.Errorf("update %s: %w", c.Name(), err)
					}
				}
				return nil
			})
		}
		return tasks
	})
}

// UpdateState commits the staged properties of every component. It must run
// after the screen's update step has finished.
func (s *Screen) UpdateState() {
	for _, c := range s.components.All() {
		if sc, ok := c.(component.StateCommitter); ok {
			sc.UpdateState()
		}
	}
}

// Render submits every drawable component against gfx in registry order.
func (s *Screen) Render(gfx graphics.Context) error {
	for _, c := range s.components.All() {
		d, ok := c.(component.Drawable)
		if !ok {
			continue
		}
		if err := d.Render(gfx); err != nil {
			return fmt.Errorf("screen %s: render %s: %w", s.name, c.Name(), err)
		}
	}
	return nil
}

// UnloadContent releases content for every component that holds any.
func (s *Screen) UnloadContent() error {
	s.mu.Lock()
	s.contentLoaded = false
	s.mu.Unlock()

	var errs []error
	for _, c := range s.components.All() {
		if !c.IsContentLoaded() {
			continue
		}
		if err := c.UnloadContent(); err != nil {
			errs = append(errs, fmt.Errorf("unload %s: %w", c.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Dispose unloads content and then disposes every component. Later calls
// do nothing.
func (s *Screen) Dispose() error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil
	}
	s.disposed = true
	s.mu.Unlock()

	unloadErr := s.UnloadContent()
	disposeErr := s.components.Dispose()
	s.logger.Debug("screen disposed")
	return errors.Join(unloadErr, disposeErr)
}

func (s *Screen) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetState moves the screen to st. No transition table is enforced.
func (s *Screen) SetState(st State) {
	s.mu.Lock()
	prev := s.state
	s.state = st
	s.mu.Unlock()
	if prev != st {
		s.logger.Debug("screen state changed",
			log.Stringer("from", prev),
			log.Stringer("to", st),
		)
	}
}

func (s *Screen) IsActive() bool { return s.State() == Active }

func (s *Screen) IsInitialized() bool { return s.State() != Created }

func (s *Screen) IsContentLoaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.contentLoaded
}

func (s *Screen) IsDisposed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.disposed
}

func (s *Screen) UpdateMode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updateMode
}

func (s *Screen) RenderMode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.renderMode
}

func (s *Screen) SetUpdateMode(m Mode) {
	s.mu.Lock()
	s.updateMode = m
	s.mu.Unlock()
}

func (s *Screen) SetRenderMode(m Mode) {
	s.mu.Lock()
	s.renderMode = m
	s.mu.Unlock()
}

// ShouldUpdate reports whether the update mode admits the current state.
func (s *Screen) ShouldUpdate() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updateMode.allows(s.state == Active)
}

// ShouldRender reports whether the render mode admits the current state.
func (s *Screen) ShouldRender() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.renderMode.allows(s.state == Active)
}
