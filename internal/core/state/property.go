package state

import "fmt"

// Property is a typed value owned by an Object. Set stages the value for the
// next commit, SetImmediate writes it directly.
type Property[T any] struct {
	owner *Object
	key   string
	value T
}

// Declare registers a property on o with an initial committed value.
// Declaring the same name twice panics.
func Declare[T any](o *Object, name string, initial T) *Property[T] {
	p := &Property[T]{owner: o, key: name, value: initial}
	o.declare(p)
	return p
}

func (p *Property[T]) Name() string { return p.key }

// Get returns the committed value.
func (p *Property[T]) Get() T { return p.value }

// Set stages v; Get keeps returning the old value until the owner commits.
func (p *Property[T]) Set(v T) {
	// The name is known and the type matches, so this cannot fail.
	_ = p.owner.SetDirty(p.key, v)
}

func (p *Property[T]) SetImmediate(v T) {
	p.value = v
}

func (p *Property[T]) name() string { return p.key }

func (p *Property[T]) stage(value any) (func(), error) {
	v, ok := value.(T)
	if !ok {
		return nil, fmt.Errorf("%w: %s wants %T, got %T", ErrPropertyType, p.key, p.value, value)
	}
	return func() { p.value = v }, nil
}

func (p *Property[T]) assign(value any) error {
	v, ok := value.(T)
	if !ok {
		return fmt.Errorf("%w: %s wants %T, got %T", ErrPropertyType, p.key, p.value, value)
	}
	p.value = v
	return nil
}
