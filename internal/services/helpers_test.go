package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/config"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/models"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/observability"
	contextutils "github.com/intel/university-curriculum-enabling-tool-sub000/internal/utils"

	"github.com/stretchr/testify/require"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
}

func testTemplates(t *testing.T) *AITemplateManager {
	t.Helper()
	tm, err := NewAITemplateManager()
	require.NoError(t, err)
	return tm
}

// fakeCompletion is a scripted CompletionService that records every request
type fakeCompletion struct {
	mu      sync.Mutex
	calls   []models.CompletionRequest
	respond func(ctx context.Context, req models.CompletionRequest) (*models.RawCompletion, error)
}

func (f *fakeCompletion) Complete(ctx context.Context, req models.CompletionRequest) (*models.RawCompletion, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	return f.respond(ctx, req)
}

func (f *fakeCompletion) requests() []models.CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.CompletionRequest(nil), f.calls...)
}

// callsWhere counts recorded requests matching pred
func (f *fakeCompletion) callsWhere(pred func(models.CompletionRequest) bool) int {
	n := 0
	for _, r := range f.requests() {
		if pred(r) {
			n++
		}
	}
	return n
}

func textReply(text string) (*models.RawCompletion, error) {
	return &models.RawCompletion{Text: text}, nil
}

func providerDown() (*models.RawCompletion, error) {
	return nil, contextutils.WrapError(contextutils.ErrAIRequestFailed, "connection refused")
}

// lastUserMessage returns the content of the final message of a request
func lastUserMessage(req models.CompletionRequest) string {
	if len(req.Messages) == 0 {
		return ""
	}
	return req.Messages[len(req.Messages)-1].Content
}

func promptContains(req models.CompletionRequest, fragment string) bool {
	return strings.Contains(lastUserMessage(req), fragment)
}

func isStructured(req models.CompletionRequest) bool {
	return req.Schema != ""
}
