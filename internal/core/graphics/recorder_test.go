package graphics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderRecordsFrames(t *testing.T) {
	r := NewRecorder()
	p, err := r.CreatePipeline(PipelineDesc{Name: "flat"})
	require.NoError(t, err)

	require.NoError(t, r.Submit(DrawCall{Pipeline: p, Vertices: 3, Source: "tri"}))
	require.NoError(t, r.Submit(DrawCall{Pipeline: p, Vertices: 6, Source: "quad"}))

	calls := r.EndFrame()
	require.Len(t, calls, 2)
	assert.Equal(t, "tri", calls[0].Source)
	assert.Empty(t, r.Calls())
	assert.Equal(t, 1, r.Frames())
	assert.Len(t, r.Pipelines(), 1)
}

func TestRecorderRejectsInvalidInput(t *testing.T) {
	r := NewRecorder()
	_, err := r.CreatePipeline(PipelineDesc{})
	assert.ErrorIs(t, err, ErrInvalidPipeline)
	assert.ErrorIs(t, r.Submit(DrawCall{Vertices: 3}), ErrInvalidPipeline)
}

func TestRecorderDetectsReentrantSubmit(t *testing.T) {
	r := NewRecorder()
	p, err := r.CreatePipeline(PipelineDesc{Name: "flat"})
	require.NoError(t, err)

	r.busy.Store(true)
	assert.ErrorIs(t, r.Submit(DrawCall{Pipeline: p, Vertices: 3}), ErrConcurrentSubmit)
	r.busy.Store(false)
	assert.NoError(t, r.Submit(DrawCall{Pipeline: p, Vertices: 3}))
}
