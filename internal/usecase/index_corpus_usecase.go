package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"ragbench/internal/domain"
	"ragbench/internal/indexing"
	"ragbench/internal/infra/metrics"
)

// IndexOptions controls one indexing pass.
type IndexOptions struct {
	Corpus     string
	Collection string
	// Recreate drops and recreates the collection and discards any cursor.
	Recreate bool
	// Resume continues from the cursor when it matches Corpus and Collection.
	Resume bool
	// BatchSize is the number of corpus records embedded and upserted together.
	BatchSize int
}

// IndexStats reports what an indexing pass did.
type IndexStats struct {
	Records   int `json:"records"`
	Skipped   int `json:"skipped"`
	Chunks    int `json:"chunks"`
	Embedded  int `json:"embedded"`
	CacheHits int `json:"cache_hits"`
	Upserted  int `json:"upserted"`
}

// IndexCorpusUsecase chunks corpus records, embeds the passages and upserts them.
type IndexCorpusUsecase struct {
	embedder domain.Embedder
	writer   domain.IndexWriter
	chunker  domain.Chunker
	cache    *lru.Cache[string, []float32]
	cursor   *indexing.CursorManager
	logger   *slog.Logger
}

// NewIndexCorpusUsecase wires the indexer. cache and cursor may be nil.
func NewIndexCorpusUsecase(
	embedder domain.Embedder,
	writer domain.IndexWriter,
	chunker domain.Chunker,
	cache *lru.Cache[string, []float32],
	cursor *indexing.CursorManager,
	logger *slog.Logger,
) *IndexCorpusUsecase {
	if logger == nil {
		logger = slog.Default()
	}
	return &IndexCorpusUsecase{
		embedder: embedder,
		writer:   writer,
		chunker:  chunker,
		cache:    cache,
		cursor:   cursor,
		logger:   logger,
	}
}

// Execute indexes records. The cursor is saved after every upserted batch, so an
// interrupted run resumes at the first batch that did not complete.
func (u *IndexCorpusUsecase) Execute(ctx context.Context, records []domain.CorpusRecord, opts IndexOptions) (*IndexStats, error) {
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("%w: batch size must be positive, got %d", domain.ErrConfiguration, opts.BatchSize)
	}

	if u.cursor != nil {
		if err := u.cursor.Lock(); err != nil {
			return nil, err
		}
		defer func() {
			if err := u.cursor.Unlock(); err != nil {
				u.logger.Warn("cursor_unlock_failed", slog.String("error", err.Error()))
			}
		}()
	}

	if err := u.writer.EnsureCollection(ctx, opts.Recreate); err != nil {
		return nil, domain.WrapKind(domain.ErrRetrieval, "ensure collection", err)
	}

	start, err := u.startLine(opts)
	if err != nil {
		return nil, err
	}
	stats := &IndexStats{Records: len(records), Skipped: min(start, len(records))}
	processed := stats.Skipped

	for lo := start; lo < len(records); lo += opts.BatchSize {
		hi := min(lo+opts.BatchSize, len(records))
		batchStart := time.Now()

		points, err := u.buildPoints(ctx, records[lo:hi], stats)
		if err != nil {
			return stats, err
		}
		if len(points) > 0 {
			if err := u.writer.Upsert(ctx, points); err != nil {
				return stats, domain.WrapKind(domain.ErrRetrieval, "upsert", err)
			}
		}
		stats.Upserted += len(points)
		processed += hi - lo
		metrics.RecordIndexed(len(points))
		metrics.RecordStage(metrics.StageIndexBatch, time.Since(batchStart))

		if u.cursor != nil {
			if err := u.cursor.Save(indexing.Cursor{
				Corpus:         opts.Corpus,
				Collection:     opts.Collection,
				NextLine:       hi,
				ProcessedCount: processed,
			}); err != nil {
				return stats, err
			}
		}
		u.logger.Info("index_batch_upserted",
			slog.Int("from", lo),
			slog.Int("to", hi),
			slog.Int("points", len(points)),
			slog.Int64("duration_ms", time.Since(batchStart).Milliseconds()))
	}

	u.logger.Info("index_completed",
		slog.String("collection", opts.Collection),
		slog.Int("records", stats.Records),
		slog.Int("skipped", stats.Skipped),
		slog.Int("upserted", stats.Upserted),
		slog.Int("cache_hits", stats.CacheHits))
	return stats, nil
}

func (u *IndexCorpusUsecase) startLine(opts IndexOptions) (int, error) {
	if u.cursor == nil {
		return 0, nil
	}
	if opts.Recreate || !opts.Resume {
		return 0, u.cursor.Reset()
	}
	c, err := u.cursor.Load()
	if err != nil {
		return 0, err
	}
	if !c.Matches(opts.Corpus, opts.Collection) {
		u.logger.Info("cursor_ignored",
			slog.String("cursor_corpus", c.Corpus),
			slog.String("cursor_collection", c.Collection))
		return 0, nil
	}
	if !c.IsEmpty() {
		u.logger.Info("index_resuming", slog.Int("next_line", c.NextLine))
	}
	return c.NextLine, nil
}

func (u *IndexCorpusUsecase) buildPoints(ctx context.Context, records []domain.CorpusRecord, stats *IndexStats) ([]domain.Point, error) {
	type pending struct {
		chunk  domain.Chunk
		source string
	}
	var chunks []pending
	for _, rec := range records {
		source := rec.Source
		if source == "" {
			source = "unknown"
		}
		for _, c := range u.chunker.Chunk(rec.Text) {
			chunks = append(chunks, pending{chunk: c, source: source})
		}
	}
	stats.Chunks += len(chunks)

	vectors := make(map[string][]float32, len(chunks))
	var missing []string
	for _, p := range chunks {
		h := p.chunk.Hash
		if _, ok := vectors[h]; ok {
			continue
		}
		if u.cache != nil {
			if v, ok := u.cache.Get(h); ok {
				vectors[h] = v
				stats.CacheHits++
				continue
			}
		}
		vectors[h] = nil
		missing = append(missing, h)
	}

	if len(missing) > 0 {
		texts := make([]string, len(missing))
		byHash := make(map[string]string, len(chunks))
		for _, p := range chunks {
			byHash[p.chunk.Hash] = p.chunk.Content
		}
		for i, h := range missing {
			texts[i] = byHash[h]
		}
		embedded, err := u.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, domain.WrapKind(domain.ErrEmbedding, "embed batch", err)
		}
		if len(embedded) != len(texts) {
			return nil, fmt.Errorf("%w: expected %d vectors, got %d", domain.ErrEmbedding, len(texts), len(embedded))
		}
		for i, h := range missing {
			if d := u.embedder.Dimension(); d > 0 && len(embedded[i]) != d {
				return nil, fmt.Errorf("%w: %w: got %d dims, want %d", domain.ErrEmbedding, domain.ErrDimensionMismatch, len(embedded[i]), d)
			}
			vectors[h] = embedded[i]
			if u.cache != nil {
				u.cache.Add(h, embedded[i])
			}
		}
		stats.Embedded += len(missing)
	}

	points := make([]domain.Point, 0, len(chunks))
	seen := make(map[string]struct{}, len(chunks))
	for _, p := range chunks {
		id := domain.PointID(p.source, p.chunk.Hash)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		points = append(points, domain.Point{
			ID:     id,
			Vector: vectors[p.chunk.Hash],
			Payload: map[string]any{
				domain.PayloadTextKey:   p.chunk.Content,
				domain.PayloadSourceKey: p.source,
				"ordinal":               p.chunk.Ordinal,
			},
		})
	}
	return points, nil
}
