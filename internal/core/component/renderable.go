package component

import (
	"context"
	"fmt"

	"github.com/zeusync/zengine/internal/core/graphics"
)

var _ PipelineLoader = (*Renderable)(nil)

// Renderable is a component that owns graphics pipeline bindings. Concrete
// types add Render to become Drawable.
type Renderable struct {
	*Base
	descs     []graphics.PipelineDesc
	pipelines []graphics.Pipeline
}

func NewRenderable(name string, descs ...graphics.PipelineDesc) *Renderable {
	return &Renderable{
		Base:  NewBase(name),
		descs: descs,
	}
}

// LoadPipelines creates every declared pipeline on dev. Earlier bindings are replaced.
func (r *Renderable) LoadPipelines(_ context.Context, dev graphics.Device) error {
	pipelines := make([]graphics.Pipeline, 0, len(r.descs))
	for _, d := range r.descs {
		p, err := dev.CreatePipeline(d)
		if err != nil {
			return fmt.Errorf("%s: create pipeline %q: %w", r.Name(), d.Name, err)
		}
		pipelines = append(pipelines, p)
	}
	r.pipelines = pipelines
	return nil
}

func (r *Renderable) Pipelines() []graphics.Pipeline { return r.pipelines }

// Pipeline returns the i-th bound pipeline.
func (r *Renderable) Pipeline(i int) (graphics.Pipeline, bool) {
	if i < 0 || i >= len(r.pipelines) {
		return graphics.Pipeline{}, false
	}
	return r.pipelines[i], true
}

func (r *Renderable) Dispose() error {
	r.pipelines = nil
	return r.Base.Dispose()
}
