// Package service keeps at most one instance per declared type of the
// long-lived engine services (content loaders, audio, input sources...).
package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// Service is anything registrable. Services that implement Initializer are
// initialized on insertion, Disposer ones are disposed on teardown.
type Service any

type Initializer interface {
	Initialize(ctx context.Context) error
	IsInitialized() bool
}

type Disposer interface {
	Dispose() error
}

type record struct {
	typ reflect.Type
	svc Service
}

type Registry struct {
	mu      sync.RWMutex
	entries map[reflect.Type]Service
	order   []record
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[reflect.Type]Service),
	}
}

// Add registers svc under its dynamic type.
func (r *Registry) Add(ctx context.Context, svc Service) error {
	if isNil(svc) {
		return fmt.Errorf("%w: nil service", ErrInvalidArgument)
	}
	return r.add(ctx, reflect.TypeOf(svc), svc)
}

// Register adds svc under the declared type T, which may be an interface.
func Register[T any](ctx context.Context, r *Registry, svc T) error {
	if isNil(svc) {
		return fmt.Errorf("%w: nil service", ErrInvalidArgument)
	}
	return r.add(ctx, reflect.TypeFor[T](), svc)
}

func (r *Registry) add(ctx context.Context, typ reflect.Type, svc Service) error {
	if r.Has(typ) {
		return fmt.Errorf("%w: %s", ErrDuplicateService, typ)
	}

	if init, ok := svc.(Initializer); ok && !init.IsInitialized() {
		if err := init.Initialize(ctx); err != nil {
			return fmt.Errorf("initialize service %s: %w", typ, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[typ]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateService, typ)
	}
	r.entries[typ] = svc
	r.order = append(r.order, record{typ: typ, svc: svc})
	return nil
}

func (r *Registry) Has(typ reflect.Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[typ]
	return ok
}

// Get returns the service registered under typ.
func (r *Registry) Get(typ reflect.Type) (Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.entries[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, typ)
	}
	return svc, nil
}

// Lookup returns the service registered under T.
func Lookup[T any](r *Registry) (T, error) {
	var zero T
	svc, err := r.Get(reflect.TypeFor[T]())
	if err != nil {
		return zero, err
	}
	return svc.(T), nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Dispose tears services down in reverse registration order and empties the registry.
func (r *Registry) Dispose() error {
	r.mu.Lock()
	order := r.order
	r.order = nil
	r.entries = make(map[reflect.Type]Service)
	r.mu.Unlock()

	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		if d, ok := order[i].svc.(Disposer); ok {
			if err := d.Dispose(); err != nil {
				errs = append(errs, fmt.Errorf("dispose service %s: %w", order[i].typ, err))
			}
		}
	}
	return errors.Join(errs...)
}

func isNil(svc any) bool {
	if svc == nil {
		return true
	}
	v := reflect.ValueOf(svc)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}
