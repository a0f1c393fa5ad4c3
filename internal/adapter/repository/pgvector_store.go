package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"ragbench/internal/domain"
)

var tracer = otel.Tracer("ragbench/adapter/pgvector")

const pgUndefinedTable = "42P01"

var invalidTableChars = regexp.MustCompile(`[^a-z0-9_]+`)

// TableName maps a collection name onto a lowercase SQL identifier.
func TableName(collection string) string {
	name := invalidTableChars.ReplaceAllString(strings.ToLower(collection), "_")
	name = strings.Trim(name, "_")
	if name == "" {
		name = "passages"
	}
	return "rb_" + name
}

// PgvectorStore keeps one collection in a table with a vector(D) column and an
// HNSW cosine index. It implements domain.VectorIndex and domain.IndexWriter.
type PgvectorStore struct {
	db         DB
	txManager  domain.TransactionManager
	collection string
	table      string
	dimension  int
	// indexDim is the declared vector(n) size of the table, 0 until known.
	indexDim int
}

var (
	_ domain.VectorIndex = (*PgvectorStore)(nil)
	_ domain.IndexWriter = (*PgvectorStore)(nil)
)

// NewPgvectorStore binds a collection of the given vector dimension.
func NewPgvectorStore(db DB, collection string, dimension int) *PgvectorStore {
	return &PgvectorStore{
		db:         db,
		txManager:  NewPostgresTransactionManager(db),
		collection: collection,
		table:      TableName(collection),
		dimension:  dimension,
	}
}

func (s *PgvectorStore) ident() string {
	return pgx.Identifier{s.table}.Sanitize()
}

// Search returns up to topK rows by descending cosine similarity.
func (s *PgvectorStore) Search(ctx context.Context, vector []float32, topK int) ([]domain.ScoredPoint, error) {
	ctx, span := tracer.Start(ctx, "pgvector.search")
	defer span.End()
	span.SetAttributes(attribute.String("pgvector.table", s.table), attribute.Int("pgvector.limit", topK))

	if len(vector) != s.Dimension() {
		return nil, fmt.Errorf("%w: %w: query vector has %d dims, table %s has %d",
			domain.ErrRetrieval, domain.ErrDimensionMismatch, len(vector), s.table, s.Dimension())
	}

	query := fmt.Sprintf(`
		SELECT payload, 1 - (embedding <=> $1) AS similarity
		FROM %s
		ORDER BY embedding <=> $1 ASC
		LIMIT $2
	`, s.ident())

	rows, err := executor(ctx, s.db).Query(ctx, query, pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, s.searchError(err)
	}
	defer rows.Close()

	var out []domain.ScoredPoint
	for rows.Next() {
		var payloadBytes []byte
		var similarity float64
		if err := rows.Scan(&payloadBytes, &similarity); err != nil {
			return nil, fmt.Errorf("%w: scan %s row: %w", domain.ErrRetrieval, s.table, err)
		}
		payload := map[string]any{}
		if len(payloadBytes) > 0 {
			if err := json.Unmarshal(payloadBytes, &payload); err != nil {
				return nil, fmt.Errorf("%w: decode payload: %w", domain.ErrRetrieval, err)
			}
		}
		out = append(out, domain.ScoredPoint{
			Score:   domain.Float64Ptr(similarity),
			Payload: payload,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, s.searchError(err)
	}
	return out, nil
}

func (s *PgvectorStore) searchError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable {
		return fmt.Errorf("%w: %w: %s", domain.ErrRetrieval, domain.ErrCollectionNotFound, s.collection)
	}
	return fmt.Errorf("%w: search %s: %w", domain.ErrRetrieval, s.table, err)
}

// EnsureCollection creates the table and its HNSW index, dropping the table first
// when recreate is set. An existing table must have the configured dimension.
func (s *PgvectorStore) EnsureCollection(ctx context.Context, recreate bool) error {
	exec := executor(ctx, s.db)
	if _, err := exec.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("%w: enable pgvector: %w", domain.ErrRetrieval, err)
	}
	if recreate {
		if _, err := exec.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, s.ident())); err != nil {
			return fmt.Errorf("%w: drop %s: %w", domain.ErrRetrieval, s.table, err)
		}
	}

	existing, found, err := s.tableDimension(ctx, exec)
	switch {
	case err != nil:
		return err
	case !found:
		if err := s.createTable(ctx, exec); err != nil {
			return err
		}
		s.indexDim = s.dimension
		return nil
	case existing > 0 && existing != s.dimension:
		return fmt.Errorf("%w: %w: table %s has %d dims, embedder has %d",
			domain.ErrConfiguration, domain.ErrDimensionMismatch, s.table, existing, s.dimension)
	}
	s.indexDim = existing
	return nil
}

// ResolveDimension reads the declared vector size of an existing table, so
// Dimension reports what the index expects. A missing table is left for Search
// to report.
func (s *PgvectorStore) ResolveDimension(ctx context.Context) error {
	existing, found, err := s.tableDimension(ctx, executor(ctx, s.db))
	if err != nil || !found {
		return err
	}
	s.indexDim = existing
	return nil
}

// tableDimension returns the vector(n) size of the embedding column. For vector
// columns atttypmod holds the declared dimension.
func (s *PgvectorStore) tableDimension(ctx context.Context, exec dbExecutor) (int, bool, error) {
	var existing int
	err := exec.QueryRow(ctx, `
		SELECT a.atttypmod
		FROM pg_attribute a
		WHERE a.attrelid = to_regclass($1) AND a.attname = 'embedding' AND NOT a.attisdropped
	`, s.table).Scan(&existing)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("%w: inspect %s: %w", domain.ErrRetrieval, s.table, err)
	}
	return existing, true, nil
}

func (s *PgvectorStore) createTable(ctx context.Context, exec dbExecutor) error {
	create := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			content TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			payload JSONB NOT NULL DEFAULT '{}'::jsonb,
			embedding vector(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`, s.ident(), s.dimension)
	if _, err := exec.Exec(ctx, create); err != nil {
		return fmt.Errorf("%w: create %s: %w", domain.ErrRetrieval, s.table, err)
	}

	index := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops)`,
		pgx.Identifier{s.table + "_embedding_idx"}.Sanitize(), s.ident())
	if _, err := exec.Exec(ctx, index); err != nil {
		return fmt.Errorf("%w: index %s: %w", domain.ErrRetrieval, s.table, err)
	}
	return nil
}

// Upsert writes all points in one transaction, replacing rows with the same id.
func (s *PgvectorStore) Upsert(ctx context.Context, points []domain.Point) error {
	if len(points) == 0 {
		return nil
	}
	for _, p := range points {
		if len(p.Vector) != s.dimension {
			return fmt.Errorf("%w: %w: point %s has %d dims, table %s has %d",
				domain.ErrRetrieval, domain.ErrDimensionMismatch, p.ID, len(p.Vector), s.table, s.dimension)
		}
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, content, source, payload, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET content = EXCLUDED.content, source = EXCLUDED.source,
			payload = EXCLUDED.payload, embedding = EXCLUDED.embedding
	`, s.ident())

	err := s.txManager.RunInTx(ctx, func(ctx context.Context) error {
		exec := executor(ctx, s.db)
		for _, p := range points {
			payloadBytes, err := json.Marshal(p.Payload)
			if err != nil {
				return fmt.Errorf("marshal payload of %s: %w", p.ID, err)
			}
			text, _ := p.Payload[domain.PayloadTextKey].(string)
			source, _ := p.Payload[domain.PayloadSourceKey].(string)
			if _, err := exec.Exec(ctx, query, p.ID, text, source, payloadBytes, pgvector.NewVector(p.Vector)); err != nil {
				return fmt.Errorf("upsert point %s: %w", p.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: upsert %d points into %s: %w", domain.ErrRetrieval, len(points), s.table, err)
	}
	return nil
}

// Dimension returns the table's vector size once resolved, else the configured size.
func (s *PgvectorStore) Dimension() int {
	if s.indexDim > 0 {
		return s.indexDim
	}
	return s.dimension
}

// Name returns "pgvector:<collection>".
func (s *PgvectorStore) Name() string { return "pgvector:" + s.collection }
