// Package vector provides an exact in-memory nearest-neighbor index over
// course chunks. An Index is immutable once built, so arbitrarily many
// readers may search it concurrently without locking; replacing a course's
// index means building a new one and swapping the reference.
package vector

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	ErrNotReady          = errors.New("vector index not ready")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

type Chunk struct {
	Index  int
	Text   string
	Page   int
	Start  int
	End    int
	Vector []float32
}

type Match struct {
	Chunk Chunk
	Score float64
}

type Index struct {
	dim    int
	chunks []Chunk
	// Precomputed L2 norms, one per chunk, same order.
	norms []float64
}

// Build validates the chunk set and constructs an index. Every chunk must
// carry a vector and all vectors must share one dimensionality.
func Build(chunks []Chunk) (*Index, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no chunks", ErrNotReady)
	}

	dim := len(chunks[0].Vector)
	if dim == 0 {
		return nil, fmt.Errorf("chunk %d has no vector", chunks[0].Index)
	}

	idx := &Index{
		dim:    dim,
		chunks: make([]Chunk, len(chunks)),
		norms:  make([]float64, len(chunks)),
	}

	for i, c := range chunks {
		if len(c.Vector) != dim {
			return nil, fmt.Errorf("%w: chunk %d has dimension %d, want %d", ErrDimensionMismatch, c.Index, len(c.Vector), dim)
		}
		idx.chunks[i] = c
		idx.norms[i] = norm(c.Vector)
	}

	return idx, nil
}

func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.chunks)
}

func (ix *Index) Dimension() int {
	if ix == nil {
		return 0
	}
	return ix.dim
}

// Chunks returns the indexed chunks in document order. Callers must not
// mutate the returned slice.
func (ix *Index) Chunks() []Chunk {
	if ix == nil {
		return nil
	}
	return ix.chunks
}

// Search returns up to k chunks ranked by cosine similarity to query in
// descending order. Equal scores are broken by lower chunk index so results
// are deterministic.
func (ix *Index) Search(query []float32, k int) ([]Match, error) {
	if ix == nil || len(ix.chunks) == 0 {
		return nil, ErrNotReady
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if len(query) != ix.dim {
		return nil, fmt.Errorf("%w: query has dimension %d, index has %d", ErrDimensionMismatch, len(query), ix.dim)
	}

	qn := norm(query)

	matches := make([]Match, len(ix.chunks))
	for i, c := range ix.chunks {
		matches[i] = Match{Chunk: c, Score: cosine(query, qn, c.Vector, ix.norms[i])}
	}

	sort.Slice(matches, func(a, b int) bool {
		if matches[a].Score != matches[b].Score {
			return matches[a].Score > matches[b].Score
		}
		return matches[a].Chunk.Index < matches[b].Chunk.Index
	})

	if k > len(matches) {
		k = len(matches)
	}
	return matches[:k], nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a []float32, an float64, b []float32, bn float64) float64 {
	if an == 0 || bn == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (an * bn)
}
