package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// TextGenerator is the LLM boundary. Its output is never trusted; everything
// it returns goes through parsing and validation before leaving this package.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Generator prompts the LLM for a batch of MCQs and validates the result.
// Invalid output triggers a bounded number of re-prompts with a correction
// hint; transport failures surface immediately for the orchestrator's retry
// policy. It never returns a partially valid batch.
type Generator struct {
	llm             TextGenerator
	maxAttempts     int
	maxContextChars int
}

func NewGenerator(llm TextGenerator, maxAttempts, maxContextChars int) *Generator {
	return &Generator{llm: llm, maxAttempts: maxAttempts, maxContextChars: maxContextChars}
}

// Generate produces exactly n validated MCQs from the retrieved context
// chunks (highest-ranked first).
func (g *Generator) Generate(ctx context.Context, contextChunks []string, n int) ([]MCQ, error) {
	material := g.assembleContext(contextChunks)

	hint := ""
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		prompt := buildPrompt(material, n, hint)

		raw, err := g.llm.GenerateText(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLLMUnavailable, err)
		}

		questions, reason := parseQuestions(raw, n)
		if reason == "" {
			return questions, nil
		}

		slog.WarnContext(ctx, "generated questions rejected", "attempt", attempt, "reason", reason)
		hint = reason
	}

	return nil, fmt.Errorf("%w after %d attempts: %s", ErrInvalidOutput, g.maxAttempts, hint)
}

// assembleContext joins chunks in rank order, dropping the lowest-ranked
// ones once the character cap is reached. A single oversized top chunk is
// truncated rather than dropped.
func (g *Generator) assembleContext(chunks []string) string {
	var b strings.Builder
	for i, c := range chunks {
		sep := 0
		if i > 0 {
			sep = 2
		}
		if b.Len()+sep+len(c) > g.maxContextChars {
			if i == 0 {
				return c[:g.maxContextChars]
			}
			break
		}
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(c)
	}
	return b.String()
}

func buildPrompt(material string, n int, hint string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You are an expert educational content creator. Generate exactly %d high-quality multiple-choice questions based on the following course material.

COURSE MATERIAL:
%s

INSTRUCTIONS:
1. Generate exactly %d multiple-choice questions
2. Each question must have exactly 4 options
3. "correct_index" is the 0-based position of the single correct option
4. Options must be non-empty and pairwise distinct
5. Include a brief explanation for the correct answer
6. Questions should test understanding, not just memorization
7. Cover different aspects of the material

Respond with JSON only, in exactly this shape:
{"questions":[{"question":"What is ...?","options":["first","second","third","fourth"],"correct_index":1,"explanation":"why the second option is correct"}]}`, n, material, n)

	if hint != "" {
		fmt.Fprintf(&b, "\n\nIMPORTANT: your previous response was rejected because %s. Return exactly %d questions in the required JSON shape.", hint, n)
	}
	return b.String()
}

// parseQuestions turns raw model output into validated MCQs. The second
// return value is empty on success, or the rejection reason used for the
// correction hint. Raw text never propagates past this point.
func parseQuestions(raw string, n int) ([]MCQ, string) {
	payload := extractJSON(raw)
	if payload == "" {
		return nil, "the response contained no JSON object"
	}

	var parsed struct {
		Questions []MCQ `json:"questions"`
	}
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return nil, fmt.Sprintf("the response was not valid JSON (%v)", err)
	}

	if len(parsed.Questions) != n {
		return nil, fmt.Sprintf("it contained %d questions instead of %d", len(parsed.Questions), n)
	}

	for i, q := range parsed.Questions {
		if err := q.Validate(); err != nil {
			return nil, fmt.Sprintf("question %d is invalid: %v", i+1, err)
		}
	}

	return parsed.Questions, ""
}

// extractJSON tolerates markdown code fences and prose around the JSON
// object; models wrap output that way even when told not to.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		if i := strings.LastIndex(raw, "```"); i >= 0 {
			raw = raw[:i]
		}
		raw = strings.TrimSpace(raw)
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}
