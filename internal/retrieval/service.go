package retrieval

import (
	"context"
	"fmt"
	"time"

	"coursemcq/internal/vector"
)

// Embedder is the query-side embedding gateway.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Index is the searchable side of a built course index.
type Index interface {
	Search(query []float32, k int) ([]vector.Match, error)
}

// Service embeds a natural-language query and searches a course index.
// Failures are annotated with the step that produced them so the caller can
// tell an embedding outage from an index problem.
type Service struct {
	embedder Embedder
	logger   *QueryLogger
}

func NewService(e Embedder, l *QueryLogger) *Service {
	return &Service{embedder: e, logger: l}
}

func (s *Service) Retrieve(ctx context.Context, idx Index, course, query string, k int) ([]vector.Match, error) {
	start := time.Now()

	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := idx.Search(vec, k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	if s.logger != nil {
		s.logger.Log(QueryLogEntry{
			Course:     course,
			Query:      query,
			NumResults: len(matches),
			Duration:   time.Since(start),
		})
	}

	return matches, nil
}
