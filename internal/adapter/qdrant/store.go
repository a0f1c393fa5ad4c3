// Package qdrant implements the vector index gateway on a Qdrant collection over gRPC.
package qdrant

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"ragbench/internal/domain"
)

var tracer = otel.Tracer("ragbench/adapter/qdrant")

// API is the subset of *qdrant.Client the store uses.
type API interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	DeleteCollection(ctx context.Context, collectionName string) error
	GetCollectionInfo(ctx context.Context, collectionName string) (*qdrant.CollectionInfo, error)
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
}

// Config holds connection settings.
type Config struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

// Dial opens a gRPC client.
func Dial(cfg Config) (*qdrant.Client, error) {
	port := cfg.Port
	if port == 0 {
		port = 6334
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connect qdrant %s:%d: %w", domain.ErrRetrieval, cfg.Host, port, err)
	}
	return client, nil
}

// Store is one collection. It implements both domain.VectorIndex and domain.IndexWriter.
type Store struct {
	api        API
	collection string
	dimension  int
	// indexDim is the size the collection was created with, 0 until known.
	indexDim int
}

var (
	_ domain.VectorIndex = (*Store)(nil)
	_ domain.IndexWriter = (*Store)(nil)
)

// NewStore binds a collection of the given vector dimension.
func NewStore(api API, collection string, dimension int) *Store {
	return &Store{api: api, collection: collection, dimension: dimension}
}

// Search returns up to topK points by descending cosine similarity.
func (s *Store) Search(ctx context.Context, vector []float32, topK int) ([]domain.ScoredPoint, error) {
	ctx, span := tracer.Start(ctx, "qdrant.query")
	defer span.End()
	span.SetAttributes(attribute.String("qdrant.collection", s.collection), attribute.Int("qdrant.limit", topK))

	hits, err := s.api.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		// Distinguish a missing collection from a transport failure.
		if exists, eerr := s.api.CollectionExists(ctx, s.collection); eerr == nil && !exists {
			return nil, fmt.Errorf("%w: %w: %s", domain.ErrRetrieval, domain.ErrCollectionNotFound, s.collection)
		}
		return nil, fmt.Errorf("%w: query %s: %w", domain.ErrRetrieval, s.collection, err)
	}

	out := make([]domain.ScoredPoint, 0, len(hits))
	for _, h := range hits {
		out = append(out, domain.ScoredPoint{
			Score:   domain.Float64Ptr(float64(h.GetScore())),
			Payload: payloadToMap(h.GetPayload()),
		})
	}
	return out, nil
}

// EnsureCollection creates the collection with cosine distance, dropping it first
// when recreate is set. An existing collection must have the configured dimension.
func (s *Store) EnsureCollection(ctx context.Context, recreate bool) error {
	exists, err := s.api.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("%w: check collection %s: %w", domain.ErrRetrieval, s.collection, err)
	}
	if exists && recreate {
		if err := s.api.DeleteCollection(ctx, s.collection); err != nil {
			return fmt.Errorf("%w: drop collection %s: %w", domain.ErrRetrieval, s.collection, err)
		}
		exists = false
	}
	if !exists {
		err := s.api.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(s.dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("%w: create collection %s: %w", domain.ErrRetrieval, s.collection, err)
		}
		s.indexDim = s.dimension
		return nil
	}

	size, err := s.collectionSize(ctx)
	if err != nil {
		return err
	}
	if size != 0 && size != s.dimension {
		return fmt.Errorf("%w: %w: collection %s has %d dims, embedder has %d",
			domain.ErrConfiguration, domain.ErrDimensionMismatch, s.collection, size, s.dimension)
	}
	s.indexDim = size
	return nil
}

// ResolveDimension reads the vector size of the existing collection, so Dimension
// reports what the index expects rather than what the embedder produces. A missing
// collection is left for Search to report.
func (s *Store) ResolveDimension(ctx context.Context) error {
	exists, err := s.api.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("%w: check collection %s: %w", domain.ErrRetrieval, s.collection, err)
	}
	if !exists {
		return nil
	}
	size, err := s.collectionSize(ctx)
	if err != nil {
		return err
	}
	s.indexDim = size
	return nil
}

func (s *Store) collectionSize(ctx context.Context) (int, error) {
	info, err := s.api.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return 0, fmt.Errorf("%w: collection info %s: %w", domain.ErrRetrieval, s.collection, err)
	}
	return int(info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()), nil
}

// Upsert writes points and waits for them to be indexed.
func (s *Store) Upsert(ctx context.Context, points []domain.Point) error {
	if len(points) == 0 {
		return nil
	}
	structs := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		payload, err := qdrant.TryValueMap(p.Payload)
		if err != nil {
			return fmt.Errorf("convert payload of %s: %w", p.ID, err)
		}
		structs = append(structs, &qdrant.PointStruct{
			Id:      qdrant.NewID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: payload,
		})
	}
	_, err := s.api.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         structs,
	})
	if err != nil {
		return fmt.Errorf("%w: upsert %d points into %s: %w", domain.ErrRetrieval, len(points), s.collection, err)
	}
	return nil
}

// Dimension returns the collection's vector size once resolved, else the configured size.
func (s *Store) Dimension() int {
	if s.indexDim > 0 {
		return s.indexDim
	}
	return s.dimension
}

// Name returns "qdrant:<collection>".
func (s *Store) Name() string { return "qdrant:" + s.collection }

func payloadToMap(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = fromValue(v)
	}
	return out
}

func fromValue(v *qdrant.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_ListValue:
		items := kind.ListValue.GetValues()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = fromValue(item)
		}
		return out
	case *qdrant.Value_StructValue:
		return payloadToMap(kind.StructValue.GetFields())
	default:
		return nil
	}
}
