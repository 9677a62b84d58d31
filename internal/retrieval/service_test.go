package retrieval_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursemcq/internal/retrieval"
	"coursemcq/internal/vector"
)

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return f.vec, f.err
}

func buildIndex(t *testing.T) *vector.Index {
	t.Helper()
	idx, err := vector.Build([]vector.Chunk{
		{Index: 0, Text: "stacks and queues", Vector: []float32{1, 0}},
		{Index: 1, Text: "graph traversal", Vector: []float32{0, 1}},
	})
	require.NoError(t, err)
	return idx
}

func TestRetrieve_ReturnsRankedMatches(t *testing.T) {
	svc := retrieval.NewService(&fakeEmbedder{vec: []float32{1, 0.1}}, nil)

	matches, err := svc.Retrieve(context.Background(), buildIndex(t), "CS101", "data structures", 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, 0, matches[0].Chunk.Index)
}

func TestRetrieve_EmbedFailureAnnotated(t *testing.T) {
	cause := errors.New("quota exceeded")
	svc := retrieval.NewService(&fakeEmbedder{err: cause}, nil)

	_, err := svc.Retrieve(context.Background(), buildIndex(t), "CS101", "data structures", 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "embed query")
}

func TestRetrieve_SearchFailureAnnotated(t *testing.T) {
	var empty *vector.Index
	svc := retrieval.NewService(&fakeEmbedder{vec: []float32{1, 0}}, nil)

	_, err := svc.Retrieve(context.Background(), empty, "CS101", "data structures", 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, vector.ErrNotReady)
	assert.Contains(t, err.Error(), "search index")
}

func TestRetrieve_LogsQuery(t *testing.T) {
	var buf bytes.Buffer
	svc := retrieval.NewService(&fakeEmbedder{vec: []float32{1, 0}}, retrieval.NewQueryLogger(&buf))

	_, err := svc.Retrieve(context.Background(), buildIndex(t), "CS101", "key concepts", 1)
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "CS101", entry["course"])
	assert.Equal(t, "key concepts", entry["query"])
	assert.Equal(t, float64(1), entry["num_results"])
}
