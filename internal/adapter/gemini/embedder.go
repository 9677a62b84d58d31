package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Embedder converts batches of text into fixed-dimension vectors via the
// Gemini embedding API. A batch either succeeds as a whole or fails as a
// unit; inputs are never dropped or reordered.
type Embedder struct {
	client *genai.Client
	model  string

	mu  sync.Mutex
	dim int // locked in by the first successful call
}

func NewEmbedder(ctx context.Context, apiKey, model string, opts ...option.ClientOption) (*Embedder, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &Embedder{client: client, model: model}, nil
}

// EmbedBatch returns one vector per input, order preserved. All vectors from
// one Embedder share a single dimensionality for its lifetime; a drift is a
// configuration fault, not something to paper over.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	slog.DebugContext(ctx, "embedding batch", "model", e.model, "count", len(texts))

	em := e.client.EmbeddingModel(e.model)
	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	res, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		slog.ErrorContext(ctx, "batch embedding failed", "error", err, "count", len(texts))
		return nil, err
	}

	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding service returned %d vectors for %d inputs", len(res.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for i, emb := range res.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("empty embedding at position %d", i)
		}
		vectors[i] = emb.Values
	}

	if err := e.checkDimension(len(vectors[0])); err != nil {
		return nil, err
	}
	for i, v := range vectors {
		if len(v) != len(vectors[0]) {
			return nil, fmt.Errorf("inconsistent embedding dimensions within batch: position %d has %d, want %d", i, len(v), len(vectors[0]))
		}
	}

	return vectors, nil
}

// EmbedQuery embeds a single query string as a one-item batch, so query
// vectors are guaranteed to match index vectors dimensionally.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *Embedder) checkDimension(dim int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dim == 0 {
		e.dim = dim
		return nil
	}
	if e.dim != dim {
		return fmt.Errorf("embedding dimensionality changed from %d to %d for model %s", e.dim, dim, e.model)
	}
	return nil
}

func (e *Embedder) Close() error {
	return e.client.Close()
}
