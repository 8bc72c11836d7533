// Package state implements deferred property mutation: values are staged as
// dirty and only applied, together with any state derived from them, when the
// owner commits.
package state

import (
	"fmt"
	"sort"
	"sync"
)

// Changes is the set of property names applied by one commit.
type Changes map[string]struct{}

// Has reports whether any of the given names was committed.
func (c Changes) Has(names ...string) bool {
	for _, n := range names {
		if _, ok := c[n]; ok {
			return true
		}
	}
	return false
}

// Names returns the committed names in sorted order.
func (c Changes) Names() []string {
	out := make([]string, 0, len(c))
	for n := range c {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// RecomputeFunc derives owner state from the properties applied by a commit.
type RecomputeFunc func(changes Changes)

type property interface {
	name() string
	stage(value any) (func(), error)
	assign(value any) error
}

// Object tracks dirty properties for its owner.
//
// Staging is safe from any goroutine. UpdateState must be called by the owner
// at one point per frame; reads of committed values are not synchronized with
// it.
type Object struct {
	mu        sync.Mutex
	updated   bool
	props     map[string]property
	pending   map[string]func()
	recompute RecomputeFunc
	listeners []func(Changes)
}

// NewObject returns a committed Object. recompute may be nil.
func NewObject(recompute RecomputeFunc) *Object {
	return &Object{
		updated:   true,
		props:     make(map[string]property),
		pending:   make(map[string]func()),
		recompute: recompute,
	}
}

// SetRecompute replaces the derived-state hook. Owners that embed a base
// component use this to install their own policy after construction.
func (o *Object) SetRecompute(fn RecomputeFunc) {
	o.mu.Lock()
	o.recompute = fn
	o.mu.Unlock()
}

// OnStateUpdated registers a callback fired synchronously after every commit
// that did work.
func (o *Object) OnStateUpdated(fn func(Changes)) {
	o.mu.Lock()
	o.listeners = append(o.listeners, fn)
	o.mu.Unlock()
}

// SetDirty stages value for the named property. The committed value is
// untouched until UpdateState.
func (o *Object) SetDirty(name string, value any) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	p, ok := o.props[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProperty, name)
	}
	apply, err := p.stage(value)
	if err != nil {
		return err
	}
	o.pending[name] = apply
	o.updated = false
	return nil
}

// SetImmediate writes the named property now, bypassing dirty tracking.
func (o *Object) SetImmediate(name string, value any) error {
	o.mu.Lock()
	p, ok := o.props[name]
	o.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProperty, name)
	}
	return p.assign(value)
}

// Touch marks the object stale without staging a value, so the next commit
// runs the recompute hook with an empty change set.
func (o *Object) Touch() {
	o.mu.Lock()
	o.updated = false
	o.mu.Unlock()
}

// IsStateUpdated reports whether every staged value has been committed.
func (o *Object) IsStateUpdated() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.updated
}

// Pending returns the names of staged properties in sorted order.
func (o *Object) Pending() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.pending))
	for n := range o.pending {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// UpdateState commits all staged values, runs the recompute hook and the
// state-updated callbacks. Calling it with nothing staged is a no-op that
// returns true.
func (o *Object) UpdateState() bool {
	o.mu.Lock()
	if o.updated {
		o.mu.Unlock()
		return true
	}
	pending := o.pending
	o.pending = make(map[string]func())
	recompute := o.recompute
	listeners := append(([]func(Changes))(nil), o.listeners...)
	o.mu.Unlock()

	changes := make(Changes, len(pending))
	for name, apply := range pending {
		apply()
		changes[name] = struct{}{}
	}
	if recompute != nil {
		recompute(changes)
	}

	o.mu.Lock()
	// A value staged while recomputing keeps the object dirty for the next frame.
	o.updated = len(o.pending) == 0
	updated := o.updated
	o.mu.Unlock()

	for _, fn := range listeners {
		fn(changes)
	}
	return updated
}

func (o *Object) declare(p property) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.props[p.name()]; exists {
		panic(fmt.Errorf("%w: %s", ErrDuplicateName, p.name()))
	}
	o.props[p.name()] = p
}
