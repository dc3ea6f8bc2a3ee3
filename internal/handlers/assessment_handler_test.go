package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/config"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/middleware"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/models"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/observability"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/serviceinterfaces"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/services"
	contextutils "github.com/intel/university-curriculum-enabling-tool-sub000/internal/utils"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/version"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAssessmentService struct {
	mu       sync.Mutex
	requests []models.AssessmentRequest
	response *models.AssessmentResponse
}

func (f *fakeAssessmentService) GenerateAssessment(_ context.Context, req *models.AssessmentRequest) *models.AssessmentResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, *req)
	return f.response
}

func (f *fakeAssessmentService) calls() []models.AssessmentRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.AssessmentRequest(nil), f.requests...)
}

type fixedStats services.ConcurrencyStats

func (s fixedStats) GetConcurrencyStats() services.ConcurrencyStats {
	return services.ConcurrencyStats(s)
}

func testLogger() *observability.Logger {
	return observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
}

func newTestRouter(t *testing.T, svc services.AssessmentServiceInterface, stats ConcurrencyReporter) *gin.Engine {
	t.Helper()
	cfg := config.Default()
	router, err := NewRouter(cfg, svc, stats, testLogger())
	require.NoError(t, err)
	gin.SetMode(gin.TestMode)
	return router
}

func apiSchemas(t *testing.T) *middleware.SchemaLoader {
	t.Helper()
	loader := middleware.NewSchemaLoader()
	require.NoError(t, loader.LoadOpenAPI(OpenAPISpec))
	return loader
}

func postAssessment(router *gin.Engine, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/assessments", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func sampleArtifact() *models.AssessmentArtifact {
	return &models.AssessmentArtifact{
		ID:       "a1",
		Type:     models.AssessmentTypeExam,
		Language: "en",
		Metadata: models.AssessmentMetadata{Type: "exam", Duration: "120 minutes", Description: "Transport layer exam"},
		Questions: []models.AssessmentQuestion{{
			Question:      "Explain congestion control.",
			CorrectAnswer: "Additive increase, multiplicative decrease.",
			ModelAnswer:   "Additive increase, multiplicative decrease.",
			MarkingCriteria: &models.MarkingCriteria{
				Criteria:   []models.Criterion{{Name: "Accuracy", Weight: 100, Description: "Correct mechanism"}},
				TotalMarks: 100,
			},
		}},
		Attempts: []models.GenerationAttempt{
			{Kind: models.ArtifactMetadata, Strategy: models.StrategyStructured, Stages: []string{"structured"}},
		},
		GeneratedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestGenerateAssessment_Success(t *testing.T) {
	fake := &fakeAssessmentService{response: &models.AssessmentResponse{Assessment: sampleArtifact()}}
	router := newTestRouter(t, fake, nil)

	w := postAssessment(router, `{"model": "llama3", "assessmentType": "exam", "numQuestions": 1,
		"selectedSources": [{"id": "s1", "selected": true}], "language": "en"}`)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, apiSchemas(t).ValidateJSON(w.Body.Bytes(), "AssessmentResponse"))

	var resp models.AssessmentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Assessment)
	assert.Equal(t, "a1", resp.Assessment.ID)
	assert.Nil(t, resp.Error)

	calls := fake.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "llama3", calls[0].Model)
	assert.Equal(t, models.AssessmentTypeExam, calls[0].AssessmentType)
	require.Len(t, calls[0].Sources, 1)
	assert.Equal(t, "s1", calls[0].Sources[0].ID)
}

func TestGenerateAssessment_RejectedBeforeService(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"malformed json", `{"model": `, "INVALID_INPUT"},
		{"missing model", `{"assessmentType": "quiz"}`, "VALIDATION_FAILED"},
		{"too many questions", `{"model": "m", "assessmentType": "quiz", "numQuestions": 500}`, "VALIDATION_FAILED"},
		{"unsupported language", `{"model": "m", "assessmentType": "quiz", "language": "fr"}`, "VALIDATION_FAILED"},
		{"source without id", `{"model": "m", "assessmentType": "quiz", "selectedSources": [{"name": "x"}]}`, "VALIDATION_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeAssessmentService{}
			router := newTestRouter(t, fake, nil)

			w := postAssessment(router, tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, fake.calls())

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body["code"])
		})
	}
}

func TestGenerateAssessment_ErrorResultStatus(t *testing.T) {
	tests := []struct {
		code       contextutils.ErrorCode
		wantStatus int
	}{
		{contextutils.ErrorCodeMissingRequired, http.StatusBadRequest},
		{contextutils.ErrorCodeDatabaseQuery, http.StatusInternalServerError},
		{contextutils.ErrorCodeInternalError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			fake := &fakeAssessmentService{response: &models.AssessmentResponse{
				Error: &models.ErrorResult{Message: "generation failed", Code: string(tt.code)},
			}}
			router := newTestRouter(t, fake, nil)

			w := postAssessment(router, `{"model": "m", "assessmentType": "quiz"}`)

			assert.Equal(t, tt.wantStatus, w.Code)
			require.NoError(t, apiSchemas(t).ValidateJSON(w.Body.Bytes(), "AssessmentResponse"))

			var resp models.AssessmentResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Nil(t, resp.Assessment)
			require.NotNil(t, resp.Error)
			assert.Equal(t, string(tt.code), resp.Error.Code)
		})
	}
}

func TestGenerateAssessment_ProviderDownStillReturnsAssessment(t *testing.T) {
	cfg := config.Default()
	completion := serviceinterfaces.CompletionFunc(func(_ context.Context, _ models.CompletionRequest) (*models.RawCompletion, error) {
		return nil, contextutils.WrapError(contextutils.ErrAIRequestFailed, "connection refused")
	})
	chunks := services.NewMemoryChunkRepository([]models.Chunk{
		{SourceID: "s1", SourceName: "Week 3", Chunk: "TCP provides reliable, ordered delivery."},
	})
	svc, err := services.NewAssessmentService(cfg, completion, chunks, testLogger(), nil)
	require.NoError(t, err)
	router := newTestRouter(t, svc, nil)

	w := postAssessment(router, `{"model": "m", "assessmentType": "quiz", "numQuestions": 2,
		"selectedSources": [{"id": "s1"}], "language": "id"}`)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, apiSchemas(t).ValidateJSON(w.Body.Bytes(), "AssessmentResponse"))

	var resp models.AssessmentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Assessment)
	assert.Equal(t, "id", resp.Assessment.Language)
	assert.Len(t, resp.Assessment.Questions, 2)
	for _, attempt := range resp.Assessment.Attempts {
		assert.Equal(t, models.StrategyDefault, attempt.Strategy, string(attempt.Kind))
	}
}

func TestHealth(t *testing.T) {
	stats := fixedStats{ActiveRequests: 1, MaxConcurrent: 10, TotalRequests: 42}
	router := newTestRouter(t, &fakeAssessmentService{}, stats)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, apiSchemas(t).ValidateJSON(w.Body.Bytes(), "HealthResponse"))

	var body struct {
		Status  string                    `json:"status"`
		Service string                    `json:"service"`
		Version string                    `json:"version"`
		AI      services.ConcurrencyStats `json:"ai"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, config.DefaultServiceName, body.Service)
	assert.Equal(t, version.Version, body.Version)
	assert.Equal(t, services.ConcurrencyStats(stats), body.AI)
}

func TestOpenAPIDocumentServed(t *testing.T) {
	router := newTestRouter(t, &fakeAssessmentService{}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, OpenAPISpec, w.Body.Bytes())
	assert.NotEmpty(t, w.Header().Get("X-Frame-Options"))
}

func TestEveryRouteIsDocumented(t *testing.T) {
	router := newTestRouter(t, &fakeAssessmentService{}, nil)
	loader := apiSchemas(t)

	for _, route := range router.Routes() {
		assert.True(t, loader.IsEndpointDocumented(route.Path, route.Method), "%s %s", route.Method, route.Path)
	}
}
