package screen

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/zeusync/zengine/internal/core/component"
	"github.com/zeusync/zengine/internal/core/graphics"
	"github.com/zeusync/zengine/internal/core/observability/log"
)

// Scheduler keeps screens in back-to-front order and applies each screen's
// update and render mode when driving them.
type Scheduler struct {
	mu        sync.RWMutex
	screens   []*Screen
	logger    log.Log
	onAdded   []func(*Screen)
	onRemoved []func(*Screen)
}

type SchedulerOption func(*Scheduler)

func WithSchedulerLogger(l log.Log) SchedulerOption {
	return func(s *Scheduler) { s.logger = l }
}

func NewScheduler(options ...SchedulerOption) *Scheduler {
	s := &Scheduler{logger: log.Provide()}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// OnAdded registers a callback fired after a screen is appended.
func (s *Scheduler) OnAdded(fn func(*Screen)) {
	s.mu.Lock()
	s.onAdded = append(s.onAdded, fn)
	s.mu.Unlock()
}

// OnRemoved registers a callback fired after a screen is removed.
func (s *Scheduler) OnRemoved(fn func(*Screen)) {
	s.mu.Lock()
	s.onRemoved = append(s.onRemoved, fn)
	s.mu.Unlock()
}

// Add initializes sc if needed and appends it in front of every screen
// already scheduled. A failed initialization leaves the scheduler unchanged.
func (s *Scheduler) Add(ctx context.Context, sc *Screen) error {
	if sc == nil {
		return fmt.Errorf("%w: nil screen", ErrInvalidArgument)
	}
	if s.contains(sc) {
		return fmt.Errorf("%w: %s", ErrDuplicateScreen, sc.Name())
	}
	if !sc.IsInitialized() {
		if err := sc.Initialize(ctx); err != nil {
			return err
		}
	}

	s.mu.Lock()
	for _, existing := range s.screens {
		if existing == sc {
			s.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrDuplicateScreen, sc.Name())
		}
	}
	s.screens = append(s.screens, sc)
	listeners := append(([]func(*Screen))(nil), s.onAdded...)
	s.mu.Unlock()

	s.logger.Debug("screen scheduled", log.String("screen", sc.Name()), log.Stringer("id", sc.ID()))
	for _, fn := range listeners {
		fn(sc)
	}
	return nil
}

func (s *Scheduler) contains(sc *Screen) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, existing := range s.screens {
		if existing == sc {
			return true
		}
	}
	return false
}

// Remove unschedules sc without disposing it.
func (s *Scheduler) Remove(sc *Screen) bool {
	s.mu.Lock()
	idx := -1
	for i, existing := range s.screens {
		if existing == sc {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.screens = append(s.screens[:idx], s.screens[idx+1:]...)
	listeners := append(([]func(*Screen))(nil), s.onRemoved...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(sc)
	}
	return true
}

// Screens returns the scheduled screens back to front.
func (s *Scheduler) Screens() []*Screen {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Screen(nil), s.screens...)
}

func (s *Scheduler) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.screens)
}

// UpdateTargets returns the screens whose update mode admits their state.
func (s *Scheduler) UpdateTargets() []*Screen {
	return s.filter((*Screen).ShouldUpdate)
}

// RenderTargets returns the screens whose render mode admits their state.
func (s *Scheduler) RenderTargets() []*Screen {
	return s.filter((*Screen).ShouldRender)
}

func (s *Scheduler) filter(keep func(*Screen) bool) []*Screen {
	var out []*Screen
	for _, sc := range s.Screens() {
		if keep(sc) {
			out = append(out, sc)
		}
	}
	return out
}

// UpdateAll updates every eligible screen in order and commits its state.
// A screen whose update fails is not committed; the others still run.
func (s *Scheduler) UpdateAll(frame component.Frame) error {
	var errs []error
	for _, sc := range s.UpdateTargets() {
		if err := sc.Update(frame); err != nil {
			errs = append(errs, err)
			continue
		}
		sc.UpdateState()
	}
	return errors.Join(errs...)
}

// RenderAll renders every eligible screen back to front. It must only be
// called once the frame's update work has been joined.
func (s *Scheduler) RenderAll(gfx graphics.Context) error {
	return s.RenderScreens(gfx, nil)
}

// RenderScreens renders the eligible screens for which allowed returns true.
// A nil allowed admits every eligible screen.
func (s *Scheduler) RenderScreens(gfx graphics.Context, allowed func(*Screen) bool) error {
	var errs []error
	for _, sc := range s.RenderTargets() {
		if allowed != nil && !allowed(sc) {
			continue
		}
		if err := sc.Render(gfx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DisposeAll disposes every screen in insertion order and clears the schedule.
func (s *Scheduler) DisposeAll() error {
	screens := s.Screens()

	var errs []error
	for _, sc := range screens {
		if err := sc.Dispose(); err != nil {
			errs = append(errs, fmt.Errorf("dispose screen %s: %w", sc.Name(), err))
		}
	}

	s.mu.Lock()
	s.screens = nil
	s.mu.Unlock()
	return errors.Join(errs...)
}
