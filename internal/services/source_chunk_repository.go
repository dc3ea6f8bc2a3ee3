package services

import (
	"cmp"
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/models"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/observability"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/serviceinterfaces"
	contextutils "github.com/intel/university-curriculum-enabling-tool-sub000/internal/utils"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
)

// SourceChunkRepository stores and fetches source excerpts
type SourceChunkRepository interface {
	serviceinterfaces.SourceChunkFetcher

	// SaveChunks inserts chunks, replacing any stored chunk with the same source and order
	SaveChunks(ctx context.Context, chunks []models.Chunk) error
}

// sourceIDs returns the distinct source ids in request order
func sourceIDs(sources []models.SourceRef) []string {
	seen := make(map[string]bool, len(sources))
	ids := make([]string, 0, len(sources))
	for _, s := range sources {
		if s.ID == "" || seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		ids = append(ids, s.ID)
	}
	return ids
}

// MemoryChunkRepository keeps chunks in memory, e.g. loaded from a JSON file
type MemoryChunkRepository struct {
	mu       sync.RWMutex
	bySource map[string][]models.Chunk
}

var _ SourceChunkRepository = (*MemoryChunkRepository)(nil)

// NewMemoryChunkRepository creates a repository holding chunks
func NewMemoryChunkRepository(chunks []models.Chunk) *MemoryChunkRepository {
	r := &MemoryChunkRepository{bySource: make(map[string][]models.Chunk)}
	_ = r.SaveChunks(context.Background(), chunks)
	return r
}

// LoadChunksFile reads a JSON array of chunks
func LoadChunksFile(path string) ([]models.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "failed to read chunk file %s: %v", path, err)
	}
	var chunks []models.Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "chunk file %s is not a JSON array of chunks: %v", path, err)
	}
	return chunks, nil
}

// FetchChunks implements serviceinterfaces.SourceChunkFetcher
func (r *MemoryChunkRepository) FetchChunks(_ context.Context, sources []models.SourceRef) ([]models.Chunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := sourceIDs(sources)
	var out []models.Chunk
	for _, id := range ids {
		out = append(out, r.bySource[id]...)
	}
	if len(out) == 0 && len(ids) > 0 {
		return nil, noChunksError(ids)
	}
	return out, nil
}

func noChunksError(ids []string) error {
	return contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "no chunks stored for sources %s", strings.Join(ids, ", "))
}

// SaveChunks stores chunks, replacing equal source and order pairs
func (r *MemoryChunkRepository) SaveChunks(_ context.Context, chunks []models.Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range chunks {
		existing := r.bySource[c.SourceID]
		i := slices.IndexFunc(existing, func(e models.Chunk) bool { return e.Order == c.Order })
		if i >= 0 {
			existing[i] = c
		} else {
			existing = append(existing, c)
		}
		slices.SortStableFunc(existing, func(a, b models.Chunk) int { return cmp.Compare(a.Order, b.Order) })
		r.bySource[c.SourceID] = existing
	}
	return nil
}

// PostgresChunkRepository reads chunks from the source_chunks table
type PostgresChunkRepository struct {
	db     *sql.DB
	logger *observability.Logger
}

var _ SourceChunkRepository = (*PostgresChunkRepository)(nil)

// NewPostgresChunkRepository creates a repository over db
func NewPostgresChunkRepository(db *sql.DB, logger *observability.Logger) *PostgresChunkRepository {
	return &PostgresChunkRepository{db: db, logger: logger}
}

// FetchChunks returns the chunks of the given sources, in request order then chunk order
func (r *PostgresChunkRepository) FetchChunks(ctx context.Context, sources []models.SourceRef) (result []models.Chunk, err error) {
	ids := sourceIDs(sources)
	ctx, span := observability.TraceDatabaseFunction(ctx, "fetch_source_chunks",
		attribute.Int("chunks.source_count", len(ids)),
	)
	defer observability.FinishSpan(span, &err)

	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT source_id, source_name, chunk_order, content
		FROM source_chunks
		WHERE source_id = ANY($1)
		ORDER BY array_position($1, source_id), chunk_order
	`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to query source chunks: %v", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logger.Warn(ctx, "Failed to close source chunk rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	for rows.Next() {
		var c models.Chunk
		if err := rows.Scan(&c.SourceID, &c.SourceName, &c.Order, &c.Chunk); err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to scan source chunk: %v", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to read source chunks: %v", err)
	}

	span.SetAttributes(attribute.Int("chunks.count", len(result)))
	if len(result) == 0 {
		return nil, noChunksError(ids)
	}
	return result, nil
}

// SaveChunks upserts chunks in one transaction
func (r *PostgresChunkRepository) SaveChunks(ctx context.Context, chunks []models.Chunk) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "save_source_chunks",
		attribute.Int("chunks.count", len(chunks)),
	)
	defer observability.FinishSpan(span, &err)

	if len(chunks) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseConnection, "failed to begin transaction: %v", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.logger.Warn(ctx, "Failed to roll back source chunk insert", map[string]interface{}{"error": rbErr.Error()})
			}
		}
	}()

	query := `
		INSERT INTO source_chunks (source_id, source_name, chunk_order, content)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (source_id, chunk_order)
		DO UPDATE SET
			source_name = EXCLUDED.source_name,
			content = EXCLUDED.content
	`
	for _, c := range chunks {
		if _, err = tx.ExecContext(ctx, query, c.SourceID, c.SourceName, c.Order, c.Chunk); err != nil {
			err = contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to save chunk %d of source %s: %v", c.Order, c.SourceID, err)
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		err = contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to commit source chunks: %v", err)
		return err
	}
	return nil
}
