// Package serviceinterfaces defines service interfaces for dependency injection and testing.
package serviceinterfaces

import (
	"context"

	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/models"
)

// CompletionService is a text or structured-object completion provider
type CompletionService interface {
	// Complete issues one request. Transport and provider failures are reported as
	// errors matching contextutils.ErrAIRequestFailed.
	Complete(ctx context.Context, req models.CompletionRequest) (*models.RawCompletion, error)
}

// CompletionFunc adapts a function to CompletionService
type CompletionFunc func(ctx context.Context, req models.CompletionRequest) (*models.RawCompletion, error)

// Complete calls f
func (f CompletionFunc) Complete(ctx context.Context, req models.CompletionRequest) (*models.RawCompletion, error) {
	return f(ctx, req)
}
