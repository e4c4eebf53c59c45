package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"
	"sort"

	"github.com/codeintel/engine/internal/storage"
)

type vectorRepo struct{ db *sql.DB }

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}

func (r *vectorRepo) Upsert(ctx context.Context, symbolID string, vector []float32) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO vectors (symbol_id, embedding, branch, file_path, updated_at)
		SELECT ?, ?, branch, file_path, ?
		FROM symbols WHERE id = ?
		ON CONFLICT(symbol_id) DO UPDATE SET embedding=excluded.embedding, updated_at=excluded.updated_at
	`, symbolID, encodeVector(vector), timeToUnixNow(), symbolID)
	return err
}

func timeToUnixNow() int64 {
	return nowFunc().UnixNano()
}

// cosineSimilarity is the only documented similarity metric for the
// pure-language fallback path, mapped as similarity = 1 - distance with
// distance = 1 - cosine(a, b).
func cosineSimilarity(a, b []float32) float64 {
	var dot, na, nb float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Search performs a branch-filtered, pure-Go cosine scan over the
// vectors table — the fallback path spec requires when no native vector
// extension is available. The contract (input/output shape) is
// identical to a native ANN index; only latency differs.
func (r *vectorRepo) Search(ctx context.Context, query []float32, k int, branch string) ([]storage.VectorHit, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT symbol_id, embedding FROM vectors WHERE branch=?`, branch)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []storage.VectorHit
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, err
		}
		sim := cosineSimilarity(query, decodeVector(blob))
		hits = append(hits, storage.VectorHit{SymbolID: id, Distance: 1 - sim, Similarity: sim})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].SymbolID < hits[j].SymbolID // deterministic tie-break
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (r *vectorRepo) Delete(ctx context.Context, symbolID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM vectors WHERE symbol_id=?`, symbolID)
	return err
}

func (r *vectorRepo) DeleteByFile(ctx context.Context, path, branch string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM vectors WHERE file_path=? AND branch=?`, path, branch)
	return err
}

var _ storage.VectorRepo = (*vectorRepo)(nil)
