package graphics

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

var (
	_ Device    = (*Recorder)(nil)
	_ Context   = (*Recorder)(nil)
	_ Presenter = (*Recorder)(nil)
)

// Recorder is a headless Device and Context. It keeps every pipeline and draw
// call so that callers can inspect a frame, and it rejects overlapping Submit
// calls instead of serializing them.
type Recorder struct {
	busy atomic.Bool

	mu        sync.Mutex
	pipelines []Pipeline
	calls     []DrawCall
	frames    int
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) CreatePipeline(desc PipelineDesc) (Pipeline, error) {
	if desc.Name == "" {
		return Pipeline{}, fmt.Errorf("%w: missing name", ErrInvalidPipeline)
	}
	p := Pipeline{ID: uuid.New(), Desc: desc}
	r.mu.Lock()
	r.pipelines = append(r.pipelines, p)
	r.mu.Unlock()
	return p, nil
}

func (r *Recorder) Submit(call DrawCall) error {
	if !r.busy.CompareAndSwap(false, true) {
		return ErrConcurrentSubmit
	}
	defer r.busy.Store(false)

	if call.Pipeline.ID == uuid.Nil {
		return fmt.Errorf("%w: draw call without bound pipeline", ErrInvalidPipeline)
	}
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
	return nil
}

// EndFrame closes the current frame and returns the draw calls submitted in it.
func (r *Recorder) EndFrame() []DrawCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	calls := r.calls
	r.calls = nil
	r.frames++
	return calls
}

func (r *Recorder) Calls() []DrawCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]DrawCall(nil), r.calls...)
}

func (r *Recorder) Pipelines() []Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Pipeline(nil), r.pipelines...)
}

func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}
