// Package graphics holds the narrow contracts the frame core uses to reach the
// rendering backend. Nothing here talks to a real device.
package graphics

import "github.com/google/uuid"

// PipelineDesc names a shader pipeline a renderable component wants bound.
type PipelineDesc struct {
	Name     string
	Vertex   string
	Fragment string
}

// Pipeline is an opaque handle returned by a Device.
type Pipeline struct {
	ID   uuid.UUID
	Desc PipelineDesc
}

// DrawCall submits Vertices using Pipeline.
type DrawCall struct {
	Pipeline Pipeline
	Vertices int
	Source   string
}

// Device creates pipeline objects during content loading.
type Device interface {
	CreatePipeline(desc PipelineDesc) (Pipeline, error)
}

// Context is the single command submission surface used during render.
// It is not assumed to be reentrant.
type Context interface {
	Submit(call DrawCall) error
}

// Presenter is implemented by contexts that close a frame once every screen
// has rendered. EndFrame returns the calls submitted during the frame.
type Presenter interface {
	EndFrame() []DrawCall
}
