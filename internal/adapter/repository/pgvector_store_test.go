package repository

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragbench/internal/domain"
)

func newMockStore(t *testing.T, dim int) (*PgvectorStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPgvectorStore(mock, "Docs-v1", dim), mock
}

func TestTableName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"docs", "rb_docs"},
		{"Docs-v1", "rb_docs_v1"},
		{"  my collection!! ", "rb_my_collection"},
		{"---", "rb_passages"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, TableName(tt.in))
		})
	}
}

func TestPgvectorStore_Search(t *testing.T) {
	store, mock := newMockStore(t, 3)

	p1, _ := json.Marshal(map[string]any{"text": "Paris is the capital of France.", "source": "fr.md"})
	p2, _ := json.Marshal(map[string]any{"text": "Berlin is the capital of Germany.", "source": "de.md"})
	rows := pgxmock.NewRows([]string{"payload", "similarity"}).
		AddRow(p1, 0.91).
		AddRow(p2, 0.42)

	mock.ExpectQuery(regexp.QuoteMeta(`1 - (embedding <=> $1) AS similarity`)).
		WithArgs(pgxmock.AnyArg(), 2).
		WillReturnRows(rows)

	hits, err := store.Search(context.Background(), []float32{0.1, 0.2, 0.3}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "Paris is the capital of France.", hits[0].Text())
	assert.Equal(t, "fr.md", hits[0].Payload["source"])
	require.NotNil(t, hits[0].Score)
	assert.InDelta(t, 0.91, *hits[0].Score, 1e-9)
	assert.InDelta(t, 0.42, *hits[1].Score, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgvectorStore_SearchEmptyTable(t *testing.T) {
	store, mock := newMockStore(t, 2)
	mock.ExpectQuery("FROM").
		WithArgs(pgxmock.AnyArg(), 5).
		WillReturnRows(pgxmock.NewRows([]string{"payload", "similarity"}))

	hits, err := store.Search(context.Background(), []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgvectorStore_SearchMissingTable(t *testing.T) {
	store, mock := newMockStore(t, 2)
	mock.ExpectQuery("FROM").
		WithArgs(pgxmock.AnyArg(), 5).
		WillReturnError(&pgconn.PgError{Code: "42P01", Message: `relation "rb_docs_v1" does not exist`})

	_, err := store.Search(context.Background(), []float32{1, 0}, 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRetrieval)
	assert.ErrorIs(t, err, domain.ErrCollectionNotFound)
}

func TestPgvectorStore_SearchTransportError(t *testing.T) {
	store, mock := newMockStore(t, 2)
	mock.ExpectQuery("FROM").
		WithArgs(pgxmock.AnyArg(), 5).
		WillReturnError(errors.New("connection reset"))

	_, err := store.Search(context.Background(), []float32{1, 0}, 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRetrieval)
	assert.NotErrorIs(t, err, domain.ErrCollectionNotFound)
}

func TestPgvectorStore_SearchDimensionMismatch(t *testing.T) {
	store, mock := newMockStore(t, 3)

	_, err := store.Search(context.Background(), []float32{1, 0}, 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgvectorStore_EnsureCollectionCreates(t *testing.T) {
	store, mock := newMockStore(t, 4)

	mock.ExpectExec("CREATE EXTENSION IF NOT EXISTS vector").
		WillReturnResult(pgxmock.NewResult("CREATE EXTENSION", 0))
	mock.ExpectQuery("SELECT a.atttypmod").
		WithArgs("rb_docs_v1").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta(`embedding vector(4) NOT NULL`)).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec("USING hnsw").
		WillReturnResult(pgxmock.NewResult("CREATE INDEX", 0))

	require.NoError(t, store.EnsureCollection(context.Background(), false))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgvectorStore_EnsureCollectionRecreate(t *testing.T) {
	store, mock := newMockStore(t, 4)

	mock.ExpectExec("CREATE EXTENSION").
		WillReturnResult(pgxmock.NewResult("CREATE EXTENSION", 0))
	mock.ExpectExec(regexp.QuoteMeta(`DROP TABLE IF EXISTS "rb_docs_v1"`)).
		WillReturnResult(pgxmock.NewResult("DROP TABLE", 0))
	mock.ExpectQuery("SELECT a.atttypmod").
		WithArgs("rb_docs_v1").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS").
		WillReturnResult(pgxmock.NewResult("CREATE INDEX", 0))

	require.NoError(t, store.EnsureCollection(context.Background(), true))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgvectorStore_EnsureCollectionExisting(t *testing.T) {
	tests := []struct {
		name     string
		existing int
		wantErr  bool
	}{
		{name: "same dimension", existing: 4},
		{name: "different dimension", existing: 8, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t, 4)
			mock.ExpectExec("CREATE EXTENSION").
				WillReturnResult(pgxmock.NewResult("CREATE EXTENSION", 0))
			mock.ExpectQuery("SELECT a.atttypmod").
				WithArgs("rb_docs_v1").
				WillReturnRows(pgxmock.NewRows([]string{"atttypmod"}).AddRow(tt.existing))

			err := store.EnsureCollection(context.Background(), false)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrConfiguration)
				assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
			} else {
				require.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPgvectorStore_ResolveDimension(t *testing.T) {
	t.Run("existing table", func(t *testing.T) {
		store, mock := newMockStore(t, 768)
		mock.ExpectQuery("SELECT a.atttypmod").
			WithArgs("rb_docs_v1").
			WillReturnRows(pgxmock.NewRows([]string{"atttypmod"}).AddRow(1536))

		require.NoError(t, store.ResolveDimension(context.Background()))
		assert.Equal(t, 1536, store.Dimension())

		_, err := store.Search(context.Background(), make([]float32, 768), 5)
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing table keeps configured size", func(t *testing.T) {
		store, mock := newMockStore(t, 768)
		mock.ExpectQuery("SELECT a.atttypmod").
			WithArgs("rb_docs_v1").
			WillReturnError(pgx.ErrNoRows)

		require.NoError(t, store.ResolveDimension(context.Background()))
		assert.Equal(t, 768, store.Dimension())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgvectorStore_Upsert(t *testing.T) {
	store, mock := newMockStore(t, 2)
	points := []domain.Point{
		{ID: "0b7c3c8e-7e0e-5a55-9b1f-0c3c1e2d9a01", Vector: []float32{1, 0}, Payload: map[string]any{"text": "alpha", "source": "a.md"}},
		{ID: "0b7c3c8e-7e0e-5a55-9b1f-0c3c1e2d9a02", Vector: []float32{0, 1}, Payload: map[string]any{"text": "beta", "source": "b.md"}},
	}

	mock.ExpectBegin()
	for _, p := range points {
		mock.ExpectExec("ON CONFLICT \\(id\\) DO UPDATE").
			WithArgs(p.ID, p.Payload["text"], p.Payload["source"], pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	require.NoError(t, store.Upsert(context.Background(), points))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgvectorStore_UpsertRollsBackOnError(t *testing.T) {
	store, mock := newMockStore(t, 2)
	points := []domain.Point{
		{ID: "0b7c3c8e-7e0e-5a55-9b1f-0c3c1e2d9a01", Vector: []float32{1, 0}, Payload: map[string]any{"text": "alpha"}},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO").
		WithArgs(points[0].ID, "alpha", "", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := store.Upsert(context.Background(), points)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRetrieval)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgvectorStore_UpsertRejectsWrongDimension(t *testing.T) {
	store, mock := newMockStore(t, 3)

	err := store.Upsert(context.Background(), []domain.Point{{ID: "x", Vector: []float32{1}}})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgvectorStore_Name(t *testing.T) {
	store, _ := newMockStore(t, 3)
	assert.Equal(t, "pgvector:Docs-v1", store.Name())
	assert.Equal(t, 3, store.Dimension())
}
