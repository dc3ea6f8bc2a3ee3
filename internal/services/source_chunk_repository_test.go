package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/models"
	contextutils "github.com/intel/university-curriculum-enabling-tool-sub000/internal/utils"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryChunkRepository_FetchChunks(t *testing.T) {
	repo := NewMemoryChunkRepository([]models.Chunk{
		{SourceID: "b", Order: 2, Chunk: "b2"},
		{SourceID: "a", Order: 1, Chunk: "a1"},
		{SourceID: "b", Order: 1, Chunk: "b1"},
		{SourceID: "c", Order: 0, Chunk: "c0"},
	})

	chunks, err := repo.FetchChunks(context.Background(), []models.SourceRef{{ID: "b"}, {ID: "a"}, {ID: "b"}, {ID: "missing"}})
	require.NoError(t, err)

	var texts []string
	for _, c := range chunks {
		texts = append(texts, c.Chunk)
	}
	assert.Equal(t, []string{"b1", "b2", "a1"}, texts)
}

func TestMemoryChunkRepository_UnknownSourcesNotFound(t *testing.T) {
	repo := NewMemoryChunkRepository([]models.Chunk{{SourceID: "a", Chunk: "a0"}})

	_, err := repo.FetchChunks(context.Background(), []models.SourceRef{{ID: "x"}, {ID: "y"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, contextutils.ErrRecordNotFound))
	assert.Contains(t, err.Error(), "x, y")
}

func TestMemoryChunkRepository_SaveReplacesSameOrder(t *testing.T) {
	repo := NewMemoryChunkRepository(nil)
	ctx := context.Background()

	require.NoError(t, repo.SaveChunks(ctx, []models.Chunk{{SourceID: "a", Order: 0, Chunk: "old"}}))
	require.NoError(t, repo.SaveChunks(ctx, []models.Chunk{{SourceID: "a", Order: 0, Chunk: "new"}}))

	chunks, err := repo.FetchChunks(ctx, []models.SourceRef{{ID: "a"}})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "new", chunks[0].Chunk)
}

func TestLoadChunksFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "chunks.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"sourceId":"s1","sourceName":"Lecture 1","order":0,"chunk":"TCP is reliable."}]`), 0o600))
	chunks, err := LoadChunksFile(path)
	require.NoError(t, err)
	assert.Equal(t, []models.Chunk{{SourceID: "s1", SourceName: "Lecture 1", Order: 0, Chunk: "TCP is reliable."}}, chunks)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"chunk": 1}`), 0o600))
	_, err = LoadChunksFile(bad)
	assert.True(t, errors.Is(err, contextutils.ErrInvalidInput))

	_, err = LoadChunksFile(filepath.Join(dir, "missing.json"))
	assert.True(t, errors.Is(err, contextutils.ErrInvalidInput))
}

func TestPostgresChunkRepository_FetchChunks(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"source_id", "source_name", "chunk_order", "content"}).
		AddRow("s2", "Week 2", 0, "Routing basics").
		AddRow("s1", "Week 1", 0, "Layered models").
		AddRow("s1", "Week 1", 1, "Encapsulation")
	mock.ExpectQuery(regexp.QuoteMeta("FROM source_chunks")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(rows)

	repo := NewPostgresChunkRepository(db, testLogger())
	chunks, err := repo.FetchChunks(context.Background(), []models.SourceRef{{ID: "s2"}, {ID: "s1"}})
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, models.Chunk{SourceID: "s2", SourceName: "Week 2", Order: 0, Chunk: "Routing basics"}, chunks[0])
	assert.Equal(t, 1, chunks[2].Order)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresChunkRepository_FetchChunksNoSources(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	chunks, err := NewPostgresChunkRepository(db, testLogger()).FetchChunks(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, chunks)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresChunkRepository_FetchChunksNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM source_chunks").
		WillReturnRows(sqlmock.NewRows([]string{"source_id", "source_name", "chunk_order", "content"}))

	_, err = NewPostgresChunkRepository(db, testLogger()).FetchChunks(context.Background(), []models.SourceRef{{ID: "s9"}})
	assert.True(t, errors.Is(err, contextutils.ErrRecordNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresChunkRepository_FetchChunksQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM source_chunks").WillReturnError(errors.New("connection reset"))

	_, err = NewPostgresChunkRepository(db, testLogger()).FetchChunks(context.Background(), []models.SourceRef{{ID: "s1"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, contextutils.ErrDatabaseQuery))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestPostgresChunkRepository_SaveChunks(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO source_chunks").
		WithArgs("s1", "Week 1", 0, "Layered models").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO source_chunks").
		WithArgs("s1", "Week 1", 1, "Encapsulation").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	err = NewPostgresChunkRepository(db, testLogger()).SaveChunks(context.Background(), []models.Chunk{
		{SourceID: "s1", SourceName: "Week 1", Order: 0, Chunk: "Layered models"},
		{SourceID: "s1", SourceName: "Week 1", Order: 1, Chunk: "Encapsulation"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresChunkRepository_SaveChunksRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO source_chunks").WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	err = NewPostgresChunkRepository(db, testLogger()).SaveChunks(context.Background(), []models.Chunk{
		{SourceID: "s1", Order: 0, Chunk: "x"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, contextutils.ErrDatabaseQuery))
	assert.NoError(t, mock.ExpectationsWereMet())
}
