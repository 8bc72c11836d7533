package component

import (
	"context"
	"fmt"

	"github.com/zeusync/zengine/internal/core/content"
	"github.com/zeusync/zengine/internal/core/state"
)

var _ Component = (*Base)(nil)

// Base is the passive component. Concrete components embed it and call the
// embedded lifecycle methods from their own overrides so the flags stay
// consistent.
type Base struct {
	name          string
	host          Host
	state         *state.Object
	initialized   bool
	contentLoaded bool
	disposed      bool
}

func NewBase(name string) *Base {
	return &Base{
		name:  name,
		state: state.NewObject(nil),
	}
}

func (b *Base) Name() string        { return b.name }
func (b *Base) SetName(name string) { b.name = name }

// Host returns the host bound to this component, or nil.
func (b *Base) Host() Host       { return b.host }
func (b *Base) BindHost(h Host)  { b.host = h }
func (b *Base) IsDisposed() bool { return b.disposed }

// State exposes the dirty-property object for declaring properties.
func (b *Base) State() *state.Object { return b.state }

func (b *Base) UpdateState() bool { return b.state.UpdateState() }

func (b *Base) Initialize(_ context.Context) error {
	b.initialized = true
	return nil
}

func (b *Base) IsInitialized() bool { return b.initialized }

// LoadContent refuses to run before Initialize.
func (b *Base) LoadContent(_ context.Context, _ content.Loader) error {
	if !b.initialized {
		return fmt.Errorf("%w: %s", ErrNotInitialized, b.name)
	}
	b.contentLoaded = true
	return nil
}

func (b *Base) UnloadContent() error {
	b.contentLoaded = false
	return nil
}

func (b *Base) IsContentLoaded() bool { return b.contentLoaded }

func (b *Base) Dispose() error {
	b.contentLoaded = false
	b.disposed = true
	return nil
}
