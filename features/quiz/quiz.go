// Package quiz generates validated multiple-choice questions grounded in a
// course's indexed material.
package quiz

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Stage identifies where in the pipeline a failure originated, so the HTTP
// boundary can present actionable errors.
type Stage string

const (
	StageExtraction Stage = "extraction"
	StageChunking   Stage = "chunking"
	StageEmbedding  Stage = "embedding"
	StageRetrieval  Stage = "retrieval"
	StageGeneration Stage = "generation"
)

type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

var (
	ErrInvalidRequest   = errors.New("invalid generation request")
	ErrEmptyMaterial    = errors.New("course material contains no extractable text")
	ErrEmbeddingService = errors.New("embedding service unavailable")
	ErrLLMUnavailable   = errors.New("generation service unavailable")
	ErrInvalidOutput    = errors.New("generation produced invalid output")
)

const optionCount = 4

type MCQ struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
	Explanation  string   `json:"explanation,omitempty"`
}

// Validate enforces the MCQ invariants: non-empty question, exactly four
// non-empty pairwise-distinct options (case-insensitive), and a correct
// index within range.
func (q MCQ) Validate() error {
	if strings.TrimSpace(q.Question) == "" {
		return errors.New("question text is empty")
	}
	if len(q.Options) != optionCount {
		return fmt.Errorf("expected %d options, got %d", optionCount, len(q.Options))
	}

	seen := make(map[string]struct{}, optionCount)
	for i, opt := range q.Options {
		normalized := strings.ToLower(strings.TrimSpace(opt))
		if normalized == "" {
			return fmt.Errorf("option %d is empty", i)
		}
		if _, dup := seen[normalized]; dup {
			return fmt.Errorf("duplicate option %q", opt)
		}
		seen[normalized] = struct{}{}
	}

	if q.CorrectIndex < 0 || q.CorrectIndex >= optionCount {
		return fmt.Errorf("correct_index %d out of range [0,%d]", q.CorrectIndex, optionCount-1)
	}
	return nil
}

type Response struct {
	CourseCode   string    `json:"course_code"`
	NumQuestions int       `json:"num_questions"`
	Questions    []MCQ     `json:"questions"`
	GeneratedAt  time.Time `json:"generated_at"`
}
