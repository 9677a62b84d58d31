package vector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_Empty(t *testing.T) {
	_, err := Build(nil)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestBuild_MixedDimensions(t *testing.T) {
	_, err := Build([]Chunk{
		{Index: 0, Vector: []float32{1, 0}},
		{Index: 1, Vector: []float32{1, 0, 0}},
	})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestBuild_MissingVector(t *testing.T) {
	_, err := Build([]Chunk{{Index: 0, Text: "no vector"}})
	assert.Error(t, err)
}

func TestSearch_RanksByCosine(t *testing.T) {
	idx, err := Build([]Chunk{
		{Index: 0, Text: "east", Vector: []float32{1, 0}},
		{Index: 1, Text: "north", Vector: []float32{0, 1}},
		{Index: 2, Text: "northeast", Vector: []float32{1, 1}},
	})
	require.NoError(t, err)

	matches, err := idx.Search([]float32{1, 0.1}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, 0, matches[0].Chunk.Index)
	assert.Equal(t, 2, matches[1].Chunk.Index)
	assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)
}

func TestSearch_DeterministicTieBreak(t *testing.T) {
	// Identical vectors produce identical scores; lower chunk index wins.
	idx, err := Build([]Chunk{
		{Index: 2, Vector: []float32{1, 0}},
		{Index: 0, Vector: []float32{1, 0}},
		{Index: 1, Vector: []float32{1, 0}},
	})
	require.NoError(t, err)

	matches, err := idx.Search([]float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, 0, matches[0].Chunk.Index)
	assert.Equal(t, 1, matches[1].Chunk.Index)
	assert.Equal(t, 2, matches[2].Chunk.Index)
}

func TestSearch_KLargerThanIndex(t *testing.T) {
	idx, err := Build([]Chunk{
		{Index: 0, Vector: []float32{1, 0}},
		{Index: 1, Vector: []float32{0, 1}},
	})
	require.NoError(t, err)

	matches, err := idx.Search([]float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestSearch_NotReady(t *testing.T) {
	var idx *Index
	_, err := idx.Search([]float32{1}, 1)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestSearch_QueryDimensionMismatch(t *testing.T) {
	idx, err := Build([]Chunk{{Index: 0, Vector: []float32{1, 0}}})
	require.NoError(t, err)

	_, err = idx.Search([]float32{1, 0, 0}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestSearch_InvalidK(t *testing.T) {
	idx, err := Build([]Chunk{{Index: 0, Vector: []float32{1, 0}}})
	require.NoError(t, err)

	_, err = idx.Search([]float32{1, 0}, 0)
	assert.Error(t, err)
}

func TestSearch_ScoresNonIncreasing(t *testing.T) {
	chunks := []Chunk{
		{Index: 0, Vector: []float32{0.9, 0.1, 0}},
		{Index: 1, Vector: []float32{0.1, 0.9, 0}},
		{Index: 2, Vector: []float32{0.5, 0.5, 0}},
		{Index: 3, Vector: []float32{0, 0, 1}},
	}
	idx, err := Build(chunks)
	require.NoError(t, err)

	matches, err := idx.Search([]float32{1, 0, 0}, 4)
	require.NoError(t, err)
	for i := 1; i < len(matches); i++ {
		assert.LessOrEqual(t, matches[i].Score, matches[i-1].Score)
	}
}
