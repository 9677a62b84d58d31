package course

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"coursemcq/internal/middleware"
)

type Handler struct {
	registry *Registry
}

func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

// List reports every course with material on disk.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	courses, err := h.registry.List()
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list courses", "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"data": courses,
		"meta": map[string]int{"count": len(courses)},
	}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Get reports a single course by code, 404 when it has no material.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	c, err := h.registry.Find(code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			h.writeError(r.Context(), w, "NOT_FOUND", err.Error(), http.StatusNotFound)
			return
		}
		slog.ErrorContext(r.Context(), "failed to resolve course", "code", code, "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"data": Info{Code: c.Code, Name: c.Name, PDFPath: c.PDFPath, PDFExists: true},
	}); err != nil {
		slog.Error("failed to encode response", "error", err)
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
