package serviceinterfaces

import (
	"context"

	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/models"
)

// SourceChunkFetcher returns the stored excerpts of course sources
type SourceChunkFetcher interface {
	// FetchChunks returns the chunks of the given sources ordered by source and
	// chunk order. Sources without stored chunks are skipped; when none of them has
	// any, the error wraps contextutils.ErrRecordNotFound.
	FetchChunks(ctx context.Context, sources []models.SourceRef) ([]models.Chunk, error)
}
