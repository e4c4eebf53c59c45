// Package qdrantstore implements a hybrid Store backend: symbols,
// edges, files, repo-map, and FTS keyword search stay in an embedded
// sqlite.Store (Qdrant has no relational or full-text query surface of
// its own), while vector search is delegated to a Qdrant collection via
// github.com/qdrant/go-client, exercising the corpus's gRPC vector
// database client for deployments that already run Qdrant.
package qdrantstore

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	qdrant "github.com/qdrant/go-client/qdrant"

	"github.com/codeintel/engine/internal/storage"
	"github.com/codeintel/engine/internal/storage/sqlite"
)

// Store composes an embedded sqlite.Store for everything but vector
// search.
type Store struct {
	rel        *sqlite.Store
	conn       *grpc.ClientConn
	points     qdrant.PointsClient
	collections qdrant.CollectionsClient
	collection string
}

// Config holds Qdrant connection parameters.
type Config struct {
	RelationalPath string // sqlite file backing symbols/edges/files/FTS
	Addr           string // Qdrant gRPC address, e.g. "localhost:6334"
	Collection     string
	Dimension      uint64
}

// Open connects to Qdrant, ensures the collection exists, and opens the
// companion sqlite store for relational/FTS data.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	rel, err := sqlite.Open(ctx, cfg.RelationalPath)
	if err != nil {
		return nil, err
	}

	conn, err := grpc.NewClient(cfg.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		rel.Close()
		return nil, fmt.Errorf("%w: %v", storage.ErrStoreOpen, err)
	}

	s := &Store{
		rel:         rel,
		conn:        conn,
		points:      qdrant.NewPointsClient(conn),
		collections: qdrant.NewCollectionsClient(conn),
		collection:  cfg.Collection,
	}
	if err := s.ensureCollection(ctx, cfg.Dimension); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureCollection(ctx context.Context, dim uint64) error {
	_, err := s.collections.Get(ctx, &qdrant.GetCollectionInfoRequest{CollectionName: s.collection})
	if err == nil {
		return nil
	}
	_, err = s.collections.Create(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     dim,
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", storage.ErrStoreOpen, err)
	}
	return nil
}

func (s *Store) Symbols() storage.SymbolRepo   { return s.rel.Symbols() }
func (s *Store) Edges() storage.EdgeRepo       { return s.rel.Edges() }
func (s *Store) Files() storage.FileRepo       { return s.rel.Files() }
func (s *Store) Keywords() storage.KeywordRepo { return s.rel.Keywords() }
func (s *Store) RepoMap() storage.RepoMapRepo  { return s.rel.RepoMap() }
func (s *Store) Vectors() storage.VectorRepo {
	return &vectorRepo{points: s.points, collection: s.collection}
}

func (s *Store) NeedsReembedding(ctx context.Context, modelID string) (bool, error) {
	return s.rel.NeedsReembedding(ctx, modelID)
}
func (s *Store) SetEmbeddingModelID(ctx context.Context, modelID string) error {
	return s.rel.SetEmbeddingModelID(ctx, modelID)
}
func (s *Store) SizeBytes() (int64, error) { return s.rel.SizeBytes() }

func (s *Store) Close() error {
	err := s.rel.Close()
	if cerr := s.conn.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
