package concurrent

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}

	parts := Chunk(items, 3)
	require.Len(t, parts, 3)
	assert.Equal(t, []int{1, 2, 3}, parts[0])
	assert.Equal(t, []int{4, 5}, parts[1])
	assert.Equal(t, []int{6, 7}, parts[2])

	assert.Len(t, Chunk(items, 16), len(items))
	assert.Len(t, Chunk(items, 0), 1)
	assert.Nil(t, Chunk([]int{}, 4))
}

func TestChunkGroupsAreDisjoint(t *testing.T) {
	items := make([]int, 50)
	for i := range items {
		items[i] = i
	}
	seen := make(map[int]int)
	for _, part := range Chunk(items, 8) {
		for _, v := range part {
			seen[v]++
		}
	}
	assert.Len(t, seen, len(items))
	for _, n := range seen {
		assert.Equal(t, 1, n)
	}
}

func TestForEachLimitsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	items := make([]int, 32)

	err := ForEach(context.Background(), items, 4, func(_ context.Context, _ int) error {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		inFlight.Add(-1)
		return nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(4))
}

func TestForEachReturnsFirstError(t *testing.T) {
	boom := errors.New("boom")
	err := ForEach(context.Background(), []int{1, 2, 3}, 1, func(_ context.Context, v int) error {
		if v == 2 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
}
