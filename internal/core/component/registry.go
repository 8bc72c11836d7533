package component

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"golang.org/x/text/cases"
)

// Fold returns the registry key for name. Lookups are case-insensitive
// under Unicode case folding.
func Fold(name string) string {
	return cases.Fold().String(name)
}

type entry struct {
	key  string
	comp Component
}

// Registry holds uniquely named components in insertion order.
type Registry struct {
	mu        sync.RWMutex
	entries   []entry
	index     map[string]Component
	onAdded   []func(Component)
	onRemoved []func(Component)
}

func NewRegistry() *Registry {
	return &Registry{
		index: make(map[string]Component),
	}
}

// OnAdded registers a callback fired synchronously after each insertion.
func (r *Registry) OnAdded(fn func(Component)) {
	r.mu.Lock()
	r.onAdded = append(r.onAdded, fn)
	r.mu.Unlock()
}

// OnRemoved registers a callback fired synchronously after each Remove.
func (r *Registry) OnRemoved(fn func(Component)) {
	r.mu.Lock()
	r.onRemoved = append(r.onRemoved, fn)
	r.mu.Unlock()
}

// Add inserts c under its folded name, initializing it first if needed.
// A failed initialization leaves the registry unchanged.
func (r *Registry) Add(ctx context.Context, c Component) error {
	if IsNil(c) {
		return fmt.Errorf("%w: nil component", ErrInvalidArgument)
	}
	name := c.Name()
	if name == "" {
		return fmt.Errorf("%w: component has no name", ErrInvalidArgument)
	}
	key := Fold(name)

	if r.Has(key) {
		return fmt.Errorf("%w: %s", ErrDuplicateComponent, name)
	}

	if !c.IsInitialized() {
		if err := c.Initialize(ctx); err != nil {
			return fmt.Errorf("initialize component %s: %w", name, err)
		}
	}

	r.mu.Lock()
	if _, exists := r.index[key]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateComponent, name)
	}
	r.entries = append(r.entries, entry{key: key, comp: c})
	r.index[key] = c
	listeners := append(([]func(Component))(nil), r.onAdded...)
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(c)
	}
	return nil
}

// AddNamed assigns the folded name to c and adds it.
func (r *Registry) AddNamed(ctx context.Context, c Component, name string) error {
	if IsNil(c) {
		return fmt.Errorf("%w: nil component", ErrInvalidArgument)
	}
	c.SetName(Fold(name))
	return r.Add(ctx, c)
}

// Get returns the component registered under name in any letter case.
func (r *Registry) Get(name string) (Component, error) {
	c, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, name)
	}
	return c, nil
}

func (r *Registry) Lookup(name string) (Component, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.index[Fold(name)]
	return c, ok
}

func (r *Registry) Has(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// Remove drops the component without disposing it. Unknown names are a no-op.
func (r *Registry) Remove(name string) bool {
	key := Fold(name)

	r.mu.Lock()
	c, ok := r.index[key]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.index, key)
	for i, e := range r.entries {
		if e.key == key {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			break
		}
	}
	listeners := append(([]func(Component))(nil), r.onRemoved...)
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(c)
	}
	return true
}

// All returns the components in insertion order.
func (r *Registry) All() []Component {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Component, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.comp
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Dispose disposes every component in insertion order and then empties the
// registry. Entries stay reachable until every Dispose call has returned.
func (r *Registry) Dispose() error {
	var errs []error
	for _, c := range r.All() {
		if err := c.Dispose(); err != nil {
			errs = append(errs, fmt.Errorf("dispose %s: %w", c.Name(), err))
		}
	}

	r.mu.Lock()
	r.entries = nil
	r.index = make(map[string]Component)
	r.mu.Unlock()

	return errors.Join(errs...)
}

// As looks up name and asserts it to T.
func As[T any](r *Registry, name string) (T, error) {
	var zero T
	c, err := r.Get(name)
	if err != nil {
		return zero, err
	}
	t, ok := c.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s is %T", ErrWrongType, name, c)
	}
	return t, nil
}

// IsNil reports whether c is nil or a nil pointer in an interface.
func IsNil(c Component) bool {
	if c == nil {
		return true
	}
	v := reflect.ValueOf(c)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
