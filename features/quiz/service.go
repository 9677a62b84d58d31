package quiz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/singleflight"

	"coursemcq/features/course"
	"coursemcq/internal/extract"
	"coursemcq/internal/retrieval"
	"coursemcq/internal/text"
	"coursemcq/internal/vector"
)

// Study queries used to pull diverse context out of a course index before
// prompting for questions.
var studyQueries = []string{
	"key concepts and definitions",
	"important topics and theories",
	"main principles and methods",
	"fundamental concepts",
	"important examples and applications",
}

type Registry interface {
	Find(code string) (*course.Course, error)
}

type DocumentExtractor interface {
	Extract(ctx context.Context, path string) (extract.Result, error)
}

type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type ContextRetriever interface {
	Retrieve(ctx context.Context, idx retrieval.Index, courseCode, query string, k int) ([]vector.Match, error)
}

type MCQGenerator interface {
	Generate(ctx context.Context, contextChunks []string, n int) ([]MCQ, error)
}

type Options struct {
	ChunkSize    int
	ChunkOverlap int

	RetrievalTopK int

	MinQuestions int
	MaxQuestions int

	MaxTransportRetries  int
	RetryInitialInterval time.Duration

	EmbedTimeout    time.Duration
	GenerateTimeout time.Duration
}

// courseIndex is one course's cached pipeline outcome. A build failure is
// sticky until an explicit rebuild, so a broken PDF or exhausted quota is
// not re-hit on every request.
type courseIndex struct {
	index *vector.Index
	err   error
}

// Service drives the per-course RAG pipeline: lazy index build, retrieval,
// and generation. Indexes are built at most once concurrently per course and
// are immutable once published, so generation requests for a Ready course
// read the shared index without locking.
type Service struct {
	registry  Registry
	extractor DocumentExtractor
	embedder  Embedder
	retriever ContextRetriever
	generator MCQGenerator
	opts      Options

	mu      sync.RWMutex
	indexes map[string]*courseIndex
	flight  singleflight.Group
	builds  atomic.Int64
}

func NewService(reg Registry, ex DocumentExtractor, em Embedder, ret ContextRetriever, gen MCQGenerator, opts Options) *Service {
	return &Service{
		registry:  reg,
		extractor: ex,
		embedder:  em,
		retriever: ret,
		generator: gen,
		opts:      opts,
		indexes:   make(map[string]*courseIndex),
	}
}

// Generate validates the request, resolves the course, obtains its index
// (building it on first use) and produces n validated MCQs. Failures carry
// the originating pipeline stage.
func (s *Service) Generate(ctx context.Context, courseCode string, n int) (*Response, error) {
	courseCode = strings.TrimSpace(courseCode)
	if courseCode == "" {
		return nil, fmt.Errorf("%w: course code is required", ErrInvalidRequest)
	}
	if n < s.opts.MinQuestions || n > s.opts.MaxQuestions {
		return nil, fmt.Errorf("%w: num_questions must be between %d and %d, got %d",
			ErrInvalidRequest, s.opts.MinQuestions, s.opts.MaxQuestions, n)
	}

	c, err := s.registry.Find(courseCode)
	if err != nil {
		return nil, err
	}

	idx, err := s.indexFor(ctx, c, false)
	if err != nil {
		return nil, err
	}

	contextChunks, err := s.gatherContext(ctx, idx, c.Code, n)
	if err != nil {
		return nil, err
	}

	questions, err := s.generate(ctx, contextChunks, n)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "generated questions", "course", c.Code, "count", len(questions))

	return &Response{
		CourseCode:   c.Code,
		NumQuestions: len(questions),
		Questions:    questions,
		GeneratedAt:  time.Now().UTC(),
	}, nil
}

// Rebuild discards any cached index or sticky failure for the course and
// builds a fresh index. In-flight readers of the old index are unaffected;
// the replacement is published atomically on success.
func (s *Service) Rebuild(ctx context.Context, courseCode string) error {
	courseCode = strings.TrimSpace(courseCode)
	if courseCode == "" {
		return fmt.Errorf("%w: course code is required", ErrInvalidRequest)
	}

	c, err := s.registry.Find(courseCode)
	if err != nil {
		return err
	}

	_, err = s.indexFor(ctx, c, true)
	return err
}

// BuildCount reports how many index builds have run. Exposed for tests and
// operational visibility.
func (s *Service) BuildCount() int64 {
	return s.builds.Load()
}

// indexFor returns the course's index, building it when absent or when
// force is set. Concurrent callers for the same course share one build via
// singleflight; the build itself runs on a context detached from any single
// caller so one cancelled request cannot abort it for the others.
func (s *Service) indexFor(ctx context.Context, c *course.Course, force bool) (*vector.Index, error) {
	if !force {
		if idx, err, ok := s.cached(c.Code); ok {
			return idx, err
		}
	}

	v, err, _ := s.flight.Do(c.Code, func() (interface{}, error) {
		if !force {
			// Another caller may have finished the build between the cache
			// check and joining the flight.
			if idx, err, ok := s.cached(c.Code); ok {
				return idx, err
			}
		}

		s.builds.Add(1)
		idx, err := s.build(context.WithoutCancel(ctx), c)

		s.mu.Lock()
		s.indexes[c.Code] = &courseIndex{index: idx, err: err}
		s.mu.Unlock()

		return idx, err
	})
	if err != nil {
		return nil, err
	}
	return v.(*vector.Index), nil
}

func (s *Service) cached(code string) (*vector.Index, error, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.indexes[code]
	if !ok {
		return nil, nil, false
	}
	return entry.index, entry.err, true
}

// build runs extraction, chunking and embedding for one course and
// assembles the immutable index.
func (s *Service) build(ctx context.Context, c *course.Course) (*vector.Index, error) {
	slog.InfoContext(ctx, "building course index", "course", c.Code, "pdf", c.PDFPath)

	res, err := s.extractor.Extract(ctx, c.PDFPath)
	if err != nil {
		return nil, &StageError{Stage: StageExtraction, Err: err}
	}
	if strings.TrimSpace(res.Text) == "" {
		return nil, &StageError{Stage: StageExtraction, Err: ErrEmptyMaterial}
	}

	chunks, err := text.Split(res.Text, s.opts.ChunkSize, s.opts.ChunkOverlap)
	if err != nil {
		return nil, &StageError{Stage: StageChunking, Err: err}
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}

	var vectors [][]float32
	err = s.retryTransport(ctx, func() error {
		embedCtx, cancel := context.WithTimeout(ctx, s.opts.EmbedTimeout)
		defer cancel()

		var embedErr error
		vectors, embedErr = s.embedder.EmbedBatch(embedCtx, texts)
		return embedErr
	})
	if err != nil {
		return nil, &StageError{Stage: StageEmbedding, Err: fmt.Errorf("%w: %w", ErrEmbeddingService, err)}
	}

	vchunks := make([]vector.Chunk, len(chunks))
	for i, ch := range chunks {
		vchunks[i] = vector.Chunk{
			Index:  ch.Index,
			Text:   ch.Text,
			Page:   extract.PageOf(res.Pages, ch.Start),
			Start:  ch.Start,
			End:    ch.End,
			Vector: vectors[i],
		}
	}

	idx, err := vector.Build(vchunks)
	if err != nil {
		return nil, &StageError{Stage: StageEmbedding, Err: err}
	}

	slog.InfoContext(ctx, "course index ready", "course", c.Code, "chunks", idx.Len(), "dimension", idx.Dimension())
	return idx, nil
}

// gatherContext runs the study queries against the index and merges the
// results, deduplicated by chunk, first-seen rank order preserved. When
// retrieval surfaces too little material for the requested count, chunks
// are topped up from the index in document order, mirroring how a student
// would fall back to reading on.
func (s *Service) gatherContext(ctx context.Context, idx *vector.Index, courseCode string, n int) ([]string, error) {
	seen := make(map[int]struct{})
	var selected []vector.Chunk

	for _, query := range studyQueries {
		var matches []vector.Match
		err := s.retryTransport(ctx, func() error {
			embedCtx, cancel := context.WithTimeout(ctx, s.opts.EmbedTimeout)
			defer cancel()

			var retErr error
			matches, retErr = s.retriever.Retrieve(embedCtx, idx, courseCode, query, s.opts.RetrievalTopK)
			if retErr != nil && (errors.Is(retErr, vector.ErrNotReady) || errors.Is(retErr, vector.ErrDimensionMismatch)) {
				return backoff.Permanent(retErr)
			}
			return retErr
		})
		if err != nil {
			if !errors.Is(err, vector.ErrNotReady) && !errors.Is(err, vector.ErrDimensionMismatch) {
				err = fmt.Errorf("%w: %w", ErrEmbeddingService, err)
			}
			return nil, &StageError{Stage: StageRetrieval, Err: err}
		}

		for _, m := range matches {
			if _, dup := seen[m.Chunk.Index]; dup {
				continue
			}
			seen[m.Chunk.Index] = struct{}{}
			selected = append(selected, m.Chunk)
		}
	}

	if len(selected) < n*2 {
		for _, ch := range idx.Chunks() {
			if len(selected) >= n*3 {
				break
			}
			if _, dup := seen[ch.Index]; dup {
				continue
			}
			seen[ch.Index] = struct{}{}
			selected = append(selected, ch)
		}
	}

	out := make([]string, len(selected))
	for i, ch := range selected {
		out[i] = ch.Text
	}
	return out, nil
}

// generate calls the question generator, retrying transport-level failures
// with backoff. Validation retries are the generator's own, separate budget.
func (s *Service) generate(ctx context.Context, contextChunks []string, n int) ([]MCQ, error) {
	var questions []MCQ
	err := s.retryTransport(ctx, func() error {
		genCtx, cancel := context.WithTimeout(ctx, s.opts.GenerateTimeout)
		defer cancel()

		var genErr error
		questions, genErr = s.generator.Generate(genCtx, contextChunks, n)
		if genErr != nil && !errors.Is(genErr, ErrLLMUnavailable) {
			return backoff.Permanent(genErr)
		}
		return genErr
	})
	if err != nil {
		return nil, &StageError{Stage: StageGeneration, Err: err}
	}
	return questions, nil
}

func (s *Service) retryTransport(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	if s.opts.RetryInitialInterval > 0 {
		bo.InitialInterval = s.opts.RetryInitialInterval
	}
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(s.opts.MaxTransportRetries)), ctx))
}
