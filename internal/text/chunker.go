package text

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidConfig = errors.New("invalid chunking configuration")

type Chunk struct {
	Index int
	Text  string
	Start int
	End   int
}

// breakpoints in preference order. A paragraph break beats a line break
// beats a sentence end beats a plain space.
var breakpoints = []string{"\n\n", "\n", ". ", " "}

// Split cuts text into overlapping chunks of at most size characters where
// consecutive chunks share overlap characters. Every character of the input
// lands in at least one chunk and the final chunk always ends at len(text).
//
// Cut points prefer natural breakpoints near the end of a window; that is a
// quality heuristic, the coverage guarantee holds either way.
func Split(text string, size, overlap int) ([]Chunk, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size must be positive, got %d", ErrInvalidConfig, size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must not be negative, got %d", ErrInvalidConfig, overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("%w: overlap (%d) must be smaller than size (%d)", ErrInvalidConfig, overlap, size)
	}

	if len(text) == 0 {
		return nil, nil
	}

	var chunks []Chunk
	start := 0
	for {
		end := start + size
		if end >= len(text) {
			chunks = append(chunks, Chunk{
				Index: len(chunks),
				Text:  text[start:],
				Start: start,
				End:   len(text),
			})
			return chunks, nil
		}

		cut := preferBreak(text, start, end, overlap)
		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Text:  text[start:cut],
			Start: start,
			End:   cut,
		})
		start = cut - overlap
	}
}

// preferBreak looks for a natural breakpoint in the tail of the window
// [start, end) and returns the cut position. The search never goes below
// start+overlap+1, which keeps the next chunk's start strictly advancing.
func preferBreak(text string, start, end, overlap int) int {
	window := (end - start) / 5
	low := end - window
	if min := start + overlap + 1; low < min {
		low = min
	}
	if low >= end {
		return end
	}

	tail := text[low:end]
	for _, sep := range breakpoints {
		if i := strings.LastIndex(tail, sep); i >= 0 {
			// Cut after the separator so it stays with the earlier chunk.
			return low + i + len(sep)
		}
	}
	return end
}
