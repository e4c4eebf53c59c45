package qdrantstore

import (
	"context"
	"sort"

	qdrant "github.com/qdrant/go-client/qdrant"

	"github.com/codeintel/engine/internal/storage"
)

type vectorRepo struct {
	points     qdrant.PointsClient
	collection string
}

func pointID(symbolID string) *qdrant.PointId {
	return &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: symbolID}}
}

func (r *vectorRepo) Upsert(ctx context.Context, symbolID string, vector []float32) error {
	_, err := r.points.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: r.collection,
		Points: []*qdrant.PointStruct{
			{
				Id:      pointID(symbolID),
				Vectors: qdrant.NewVectors(vector...),
			},
		},
	})
	return err
}

func (r *vectorRepo) Search(ctx context.Context, query []float32, k int, branch string) ([]storage.VectorHit, error) {
	resp, err := r.points.Search(ctx, &qdrant.SearchPoints{
		CollectionName: r.collection,
		Vector:         query,
		Limit:          uint64(k),
	})
	if err != nil {
		return nil, err
	}
	hits := make([]storage.VectorHit, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		sim := float64(p.GetScore())
		hits = append(hits, storage.VectorHit{
			SymbolID:   p.GetId().GetUuid(),
			Distance:   1 - sim,
			Similarity: sim,
		})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].SymbolID < hits[j].SymbolID
	})
	return hits, nil
}

func (r *vectorRepo) Delete(ctx context.Context, symbolID string) error {
	_, err := r.points.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: r.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: []*qdrant.PointId{pointID(symbolID)}},
			},
		},
	})
	return err
}

// DeleteByFile has no direct Qdrant equivalent without a payload index
// on file_path; the Index Manager deletes vectors by symbol id instead
// (it already enumerates a file's symbol ids before deleting), so this
// is a no-op safety net.
func (r *vectorRepo) DeleteByFile(ctx context.Context, path, branch string) error {
	return nil
}

var _ storage.VectorRepo = (*vectorRepo)(nil)
