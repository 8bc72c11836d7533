// Package transition animates a screen in and out. It is an ordinary
// component: the application adds it to the screen it drives and starts it.
package transition

import (
	"time"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"

	"github.com/zeusync/zengine/internal/core/component"
	"github.com/zeusync/zengine/internal/core/screen"
	"github.com/zeusync/zengine/internal/core/state"
)

// PropPosition is the committed transition position, 0 fully out and 1 fully in.
const PropPosition = "position"

type Direction uint8

const (
	In Direction = iota
	Out
)

func (d Direction) String() string {
	if d == In {
		return "in"
	}
	return "out"
}

var (
	_ component.Component      = (*Transition)(nil)
	_ component.Updatable      = (*Transition)(nil)
	_ component.StateCommitter = (*Transition)(nil)
)

// Transition tweens its position and moves the target screen through
// TransitioningIn/Out. A finished In leaves the screen Active, a finished
// Out leaves it Paused. The target must update while transitioning, so its
// update mode should be Always.
type Transition struct {
	*component.Base

	target   *screen.Screen
	duration time.Duration
	easing   ease.TweenFunc
	position *state.Property[float32]

	tween     *gween.Tween
	direction Direction
	finished  []func(*screen.Screen, Direction)
}

type Option func(*Transition)

func WithDuration(d time.Duration) Option {
	return func(t *Transition) {
		if d > 0 {
			t.duration = d
		}
	}
}

func WithEase(fn ease.TweenFunc) Option {
	return func(t *Transition) {
		if fn != nil {
			t.easing = fn
		}
	}
}

// OnFinished registers a callback fired from Update when a tween completes.
// Removing the screen after an Out is left to such a callback.
func OnFinished(fn func(*screen.Screen, Direction)) Option {
	return func(t *Transition) { t.finished = append(t.finished, fn) }
}

// New creates a transition for target starting fully out.
func New(name string, target *screen.Screen, options ...Option) *Transition {
	t := &Transition{
		Base:     component.NewBase(name),
		target:   target,
		duration: 250 * time.Millisecond,
		easing:   ease.OutCubic,
	}
	t.position = state.Declare(t.State(), PropPosition, float32(0))
	for _, opt := range options {
		opt(t)
	}
	return t
}

// In starts moving the screen in from the current position.
func (t *Transition) In() { t.start(In, 1, screen.TransitioningIn) }

// Out starts moving the screen out from the current position.
func (t *Transition) Out() { t.start(Out, 0, screen.TransitioningOut) }

func (t *Transition) start(dir Direction, to float32, st screen.State) {
	t.direction = dir
	t.tween = gween.New(t.position.Get(), to, float32(t.duration.Seconds()), t.easing)
	t.target.SetState(st)
}

// Update advances the tween by the frame delta and stages the new position.
func (t *Transition) Update(frame component.Frame) error {
	if t.tween == nil {
		return nil
	}
	val, done := t.tween.Update(float32(frame.Delta.Seconds()))
	t.position.Set(val)
	if !done {
		return nil
	}

	t.tween = nil
	if t.direction == In {
		t.target.SetState(screen.Active)
	} else {
		t.target.SetState(screen.Paused)
	}
	for _, fn := range t.finished {
		fn(t.target, t.direction)
	}
	return nil
}

// Position returns the committed position.
func (t *Transition) Position() float32 { return t.position.Get() }

func (t *Transition) IsRunning() bool { return t.tween != nil }

func (t *Transition) Direction() Direction { return t.direction }
