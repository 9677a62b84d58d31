package quiz

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursemcq/internal/extract"
)

func newTestHandler(ex *fakeExtractor, em *fakeEmbedder, gen *fakeGenerator) *Handler {
	return NewHandler(newTestService(ex, em, gen))
}

func postGenerate(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/quiz/generate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Generate(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error.Code
}

func TestHandlerGenerate(t *testing.T) {
	h := newTestHandler(&fakeExtractor{text: courseText()}, &fakeEmbedder{}, &fakeGenerator{})

	rec := postGenerate(t, h, `{"course_code":"CS101","num_questions":3}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "CS101", resp.CourseCode)
	assert.Len(t, resp.Questions, 3)
	for _, q := range resp.Questions {
		assert.NoError(t, q.Validate())
	}
}

func TestHandlerGenerateErrors(t *testing.T) {
	tests := []struct {
		name       string
		extractor  *fakeExtractor
		embedder   *fakeEmbedder
		generator  *fakeGenerator
		body       string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "malformed body",
			extractor:  &fakeExtractor{text: courseText()},
			body:       `{"course_code":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name:       "count out of bounds",
			extractor:  &fakeExtractor{text: courseText()},
			body:       `{"course_code":"CS101","num_questions":25}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name:       "unknown course",
			extractor:  &fakeExtractor{text: courseText()},
			body:       `{"course_code":"NOPE","num_questions":3}`,
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:       "empty material",
			extractor:  &fakeExtractor{text: " "},
			body:       `{"course_code":"CS101","num_questions":3}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "EMPTY_MATERIAL",
		},
		{
			name:       "unreadable material",
			extractor:  &fakeExtractor{err: extract.ErrUnreadable},
			body:       `{"course_code":"CS101","num_questions":3}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "UNREADABLE_MATERIAL",
		},
		{
			name:       "embedding service down",
			extractor:  &fakeExtractor{text: courseText()},
			embedder:   &fakeEmbedder{failFor: 10},
			body:       `{"course_code":"CS101","num_questions":3}`,
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "UPSTREAM_UNAVAILABLE",
		},
		{
			name:       "invalid model output",
			extractor:  &fakeExtractor{text: courseText()},
			generator:  &fakeGenerator{err: ErrInvalidOutput},
			body:       `{"course_code":"CS101","num_questions":3}`,
			wantStatus: http.StatusBadGateway,
			wantCode:   "INVALID_MODEL_OUTPUT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.embedder == nil {
				tt.embedder = &fakeEmbedder{}
			}
			if tt.generator == nil {
				tt.generator = &fakeGenerator{}
			}
			h := newTestHandler(tt.extractor, tt.embedder, tt.generator)

			rec := postGenerate(t, h, tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, errorCode(t, rec))
		})
	}
}

func TestHandlerRebuild(t *testing.T) {
	ex := &fakeExtractor{err: extract.ErrUnreadable}
	h := newTestHandler(ex, &fakeEmbedder{}, &fakeGenerator{})

	// Seed a sticky failure.
	rec := postGenerate(t, h, `{"course_code":"CS101","num_questions":3}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	ex.set(courseText(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/courses/CS101/rebuild", nil)
	req.SetPathValue("code", "CS101")
	rec = httptest.NewRecorder()
	h.Rebuild(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	rec = postGenerate(t, h, `{"course_code":"CS101","num_questions":3}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlerGenerateTakesCourseFromPath(t *testing.T) {
	h := newTestHandler(&fakeExtractor{text: courseText()}, &fakeEmbedder{}, &fakeGenerator{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/courses/CS101/quiz", strings.NewReader(`{"num_questions":2}`))
	req.SetPathValue("code", "CS101")
	rec := httptest.NewRecorder()
	h.Generate(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "CS101", resp.CourseCode)
}

