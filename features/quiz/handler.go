package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"coursemcq/features/course"
	"coursemcq/internal/extract"
	"coursemcq/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Generate handles POST requests for a course quiz. The pipeline error is
// mapped to a status code by which stage failed and why.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CourseCode   string `json:"course_code"`
		NumQuestions int    `json:"num_questions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.CourseCode == "" {
		req.CourseCode = r.PathValue("code")
	}

	resp, err := h.service.Generate(r.Context(), req.CourseCode, req.NumQuestions)
	if err != nil {
		h.writePipelineError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Rebuild handles explicit index rebuild requests, clearing any sticky
// build failure for the course.
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	if err := h.service.Rebuild(r.Context(), code); err != nil {
		h.writePipelineError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{
		"course_code": code,
		"status":      "ready",
	}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writePipelineError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
	case errors.Is(err, course.ErrNotFound):
		h.writeError(ctx, w, "NOT_FOUND", err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrEmptyMaterial):
		h.writeError(ctx, w, "EMPTY_MATERIAL", "course material contains no extractable text", http.StatusUnprocessableEntity)
	case errors.Is(err, extract.ErrUnreadable):
		h.writeError(ctx, w, "UNREADABLE_MATERIAL", "course material could not be read", http.StatusUnprocessableEntity)
	case errors.Is(err, ErrEmbeddingService), errors.Is(err, ErrLLMUnavailable):
		h.writeError(ctx, w, "UPSTREAM_UNAVAILABLE", err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, ErrInvalidOutput):
		h.writeError(ctx, w, "INVALID_MODEL_OUTPUT", err.Error(), http.StatusBadGateway)
	case errors.Is(err, context.DeadlineExceeded):
		h.writeError(ctx, w, "TIMEOUT", "generation timed out", http.StatusGatewayTimeout)
	default:
		slog.ErrorContext(ctx, "quiz generation failed", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
