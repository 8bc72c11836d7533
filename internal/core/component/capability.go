package component

import (
	"context"
	"time"

	"github.com/zeusync/zengine/internal/core/content"
	"github.com/zeusync/zengine/internal/core/graphics"
	"github.com/zeusync/zengine/internal/core/input"
	"github.com/zeusync/zengine/internal/core/observability/log"
	"github.com/zeusync/zengine/internal/core/service"
)

// Frame carries per-frame timing and the input snapshot for the frame.
type Frame struct {
	Number uint64
	Delta  time.Duration
	Total  time.Duration
	Input  input.State
}

// Host is the application that components live in. Components keep a
// reference to it but never own it.
type Host interface {
	Logger() log.Log
	Services() *service.Registry
}

// Capabilities. A component implements any combination of them and the
// screen dispatches by type assertion.

type Named interface {
	Name() string
	SetName(name string)
}

type Initializable interface {
	Initialize(ctx context.Context) error
	IsInitialized() bool
}

type ContentLoadable interface {
	LoadContent(ctx context.Context, loader content.Loader) error
	UnloadContent() error
	IsContentLoaded() bool
}

type Updatable interface {
	Update(frame Frame) error
}

type Drawable interface {
	Render(gfx graphics.Context) error
}

type InputReceiver interface {
	HandleInput(state input.State)
}

// PipelineLoader binds graphics pipelines. Screens run it for every
// component before any content is loaded.
type PipelineLoader interface {
	LoadPipelines(ctx context.Context, dev graphics.Device) error
}

// StateCommitter applies staged dirty properties.
type StateCommitter interface {
	UpdateState() bool
}

type Disposable interface {
	Dispose() error
}

// HostBinder is implemented by components that want a back-reference to the host.
type HostBinder interface {
	BindHost(h Host)
}

// Component is the minimum a registry accepts.
type Component interface {
	Named
	Initializable
	ContentLoadable
	Disposable
}
