package pgstore

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/codeintel/engine/internal/storage"
	"github.com/codeintel/engine/internal/symbol"
)

type symbolRepo struct{ pool *pgxpool.Pool }

const symCols = `id, name, qualified_name, type, language, file_path, start_line, end_line, content, signature, docstring, content_hash, is_external, branch, embedding_model_id, updated_at, revision_id`

func scanSym(row pgx.Row) (symbol.Symbol, error) {
	var s symbol.Symbol
	err := row.Scan(&s.ID, &s.Name, &s.QualifiedName, &s.Type, &s.Language, &s.FilePath,
		&s.StartLine, &s.EndLine, &s.Content, &s.Signature, &s.Docstring, &s.ContentHash,
		&s.IsExternal, &s.Branch, &s.EmbeddingModelID, &s.UpdatedAt, &s.RevisionID)
	return s, err
}

func (r *symbolRepo) Upsert(ctx context.Context, s symbol.Symbol) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO symbols (`+symCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, qualified_name=excluded.qualified_name,
			type=excluded.type, language=excluded.language, file_path=excluded.file_path,
			start_line=excluded.start_line, end_line=excluded.end_line, content=excluded.content,
			signature=excluded.signature, docstring=excluded.docstring, content_hash=excluded.content_hash,
			is_external=excluded.is_external, branch=excluded.branch, embedding_model_id=excluded.embedding_model_id,
			updated_at=excluded.updated_at, revision_id=excluded.revision_id
	`, s.ID, s.Name, s.QualifiedName, s.Type, s.Language, s.FilePath, s.StartLine, s.EndLine,
		s.Content, s.Signature, s.Docstring, s.ContentHash, s.IsExternal, s.Branch, s.EmbeddingModelID,
		s.UpdatedAt, s.RevisionID)
	return err
}

func (r *symbolRepo) UpsertMany(ctx context.Context, syms []symbol.Symbol) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	for _, s := range syms {
		if err := (&symbolRepo{pool: r.pool}).upsertTx(ctx, tx, s); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *symbolRepo) upsertTx(ctx context.Context, tx pgx.Tx, s symbol.Symbol) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO symbols (`+symCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, content=excluded.content, content_hash=excluded.content_hash,
			updated_at=excluded.updated_at, revision_id=excluded.revision_id
	`, s.ID, s.Name, s.QualifiedName, s.Type, s.Language, s.FilePath, s.StartLine, s.EndLine,
		s.Content, s.Signature, s.Docstring, s.ContentHash, s.IsExternal, s.Branch, s.EmbeddingModelID,
		s.UpdatedAt, s.RevisionID)
	return err
}

func (r *symbolRepo) ByID(ctx context.Context, id string) (symbol.Symbol, bool, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+symCols+` FROM symbols WHERE id=$1`, id)
	s, err := scanSym(row)
	if err == pgx.ErrNoRows {
		return symbol.Symbol{}, false, nil
	}
	return s, err == nil, err
}

func (r *symbolRepo) queryMany(ctx context.Context, q string, args ...any) ([]symbol.Symbol, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []symbol.Symbol
	for rows.Next() {
		s, err := scanSym(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *symbolRepo) ByFile(ctx context.Context, path, branch string) ([]symbol.Symbol, error) {
	return r.queryMany(ctx, `SELECT `+symCols+` FROM symbols WHERE file_path=$1 AND branch=$2`, path, branch)
}
func (r *symbolRepo) ByName(ctx context.Context, name, branch string) ([]symbol.Symbol, error) {
	return r.queryMany(ctx, `SELECT `+symCols+` FROM symbols WHERE name=$1 AND branch=$2`, name, branch)
}
func (r *symbolRepo) ByType(ctx context.Context, t symbol.Type, branch string) ([]symbol.Symbol, error) {
	return r.queryMany(ctx, `SELECT `+symCols+` FROM symbols WHERE type=$1 AND branch=$2`, t, branch)
}
func (r *symbolRepo) DeleteByFile(ctx context.Context, path, branch string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM symbols WHERE file_path=$1 AND branch=$2`, path, branch)
	return err
}
func (r *symbolRepo) DeleteByBranch(ctx context.Context, branch string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM symbols WHERE branch=$1`, branch)
	return err
}
func (r *symbolRepo) Count(ctx context.Context, branch string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM symbols WHERE branch=$1`, branch).Scan(&n)
	return n, err
}
func (r *symbolRepo) All(ctx context.Context, branch string, limit int) ([]symbol.Symbol, error) {
	return r.queryMany(ctx, `SELECT `+symCols+` FROM symbols WHERE branch=$1 LIMIT $2`, branch, limit)
}

var _ storage.SymbolRepo = (*symbolRepo)(nil)

// --- edges ---

type edgeRepo struct{ pool *pgxpool.Pool }

const edgeCols = `id, source_id, target_id, type, confidence, origin, branch, source_line, target_line, updated_at, metadata`

func scanEdge(row pgx.Row) (symbol.Edge, error) {
	var e symbol.Edge
	err := row.Scan(&e.ID, &e.SourceID, &e.TargetID, &e.Type, &e.Confidence, &e.Origin, &e.Branch,
		&e.SourceLine, &e.TargetLine, &e.UpdatedAt, new(string))
	return e, err
}

func (r *edgeRepo) Upsert(ctx context.Context, e symbol.Edge) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO edges (`+edgeCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT(id) DO UPDATE SET confidence=excluded.confidence, updated_at=excluded.updated_at
	`, e.ID, e.SourceID, e.TargetID, e.Type, e.Confidence, e.Origin, e.Branch, e.SourceLine, e.TargetLine, e.UpdatedAt, "")
	return err
}

func (r *edgeRepo) UpsertMany(ctx context.Context, edges []symbol.Edge) error {
	for _, e := range edges {
		if err := r.Upsert(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *edgeRepo) ByID(ctx context.Context, id string) (symbol.Edge, bool, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+edgeCols+` FROM edges WHERE id=$1`, id)
	e, err := scanEdge(row)
	if err == pgx.ErrNoRows {
		return symbol.Edge{}, false, nil
	}
	return e, err == nil, err
}

func (r *edgeRepo) queryMany(ctx context.Context, q string, args ...any) ([]symbol.Edge, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []symbol.Edge
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *edgeRepo) Callers(ctx context.Context, targetID, branch string) ([]symbol.Edge, error) {
	return r.queryMany(ctx, `SELECT `+edgeCols+` FROM edges WHERE target_id=$1 AND branch=$2 AND type=$3`, targetID, branch, symbol.Calls)
}
func (r *edgeRepo) Callees(ctx context.Context, sourceID, branch string) ([]symbol.Edge, error) {
	return r.queryMany(ctx, `SELECT `+edgeCols+` FROM edges WHERE source_id=$1 AND branch=$2 AND type=$3`, sourceID, branch, symbol.Calls)
}
func (r *edgeRepo) DeleteByEndpoint(ctx context.Context, symbolID, branch string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM edges WHERE (source_id=$1 OR target_id=$1) AND branch=$2`, symbolID, branch)
	return err
}
func (r *edgeRepo) DeleteByBranch(ctx context.Context, branch string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM edges WHERE branch=$1`, branch)
	return err
}
func (r *edgeRepo) AllByBranch(ctx context.Context, branch string) ([]symbol.Edge, error) {
	return r.queryMany(ctx, `SELECT `+edgeCols+` FROM edges WHERE branch=$1`, branch)
}

var _ storage.EdgeRepo = (*edgeRepo)(nil)

// --- files ---

type fileRepo struct{ pool *pgxpool.Pool }

const fileCols = `file_path, branch, file_hash, mtime, size, last_indexed, language, status, symbol_count, importance_rank, error_message`

func scanFileRow(row pgx.Row) (symbol.FileRecord, error) {
	var f symbol.FileRecord
	err := row.Scan(&f.FilePath, &f.Branch, &f.FileHash, &f.Mtime, &f.Size, &f.LastIndexed,
		&f.Language, &f.Status, &f.SymbolCount, &f.ImportanceRank, &f.ErrorMessage)
	return f, err
}

func (r *fileRepo) Upsert(ctx context.Context, f symbol.FileRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO files (`+fileCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT(file_path, branch) DO UPDATE SET file_hash=excluded.file_hash, mtime=excluded.mtime,
			size=excluded.size, last_indexed=excluded.last_indexed, status=excluded.status,
			symbol_count=excluded.symbol_count, error_message=excluded.error_message
	`, f.FilePath, f.Branch, f.FileHash, f.Mtime, f.Size, f.LastIndexed, f.Language, f.Status,
		f.SymbolCount, f.ImportanceRank, f.ErrorMessage)
	return err
}

func (r *fileRepo) ByPath(ctx context.Context, path, branch string) (symbol.FileRecord, bool, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+fileCols+` FROM files WHERE file_path=$1 AND branch=$2`, path, branch)
	f, err := scanFileRow(row)
	if err == pgx.ErrNoRows {
		return symbol.FileRecord{}, false, nil
	}
	return f, err == nil, err
}

func (r *fileRepo) queryMany(ctx context.Context, q string, args ...any) ([]symbol.FileRecord, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []symbol.FileRecord
	for rows.Next() {
		f, err := scanFileRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *fileRepo) ByStatus(ctx context.Context, status symbol.FileStatus, branch string) ([]symbol.FileRecord, error) {
	return r.queryMany(ctx, `SELECT `+fileCols+` FROM files WHERE status=$1 AND branch=$2`, status, branch)
}
func (r *fileRepo) ByBranch(ctx context.Context, branch string) ([]symbol.FileRecord, error) {
	return r.queryMany(ctx, `SELECT `+fileCols+` FROM files WHERE branch=$1`, branch)
}
func (r *fileRepo) UpdateStatus(ctx context.Context, path, branch string, status symbol.FileStatus, errMsg string) error {
	_, err := r.pool.Exec(ctx, `UPDATE files SET status=$1, error_message=$2 WHERE file_path=$3 AND branch=$4`, status, errMsg, path, branch)
	return err
}
func (r *fileRepo) UpdateSymbolCount(ctx context.Context, path, branch string, count int) error {
	_, err := r.pool.Exec(ctx, `UPDATE files SET symbol_count=$1 WHERE file_path=$2 AND branch=$3`, count, path, branch)
	return err
}
func (r *fileRepo) DeleteByPath(ctx context.Context, path, branch string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM files WHERE file_path=$1 AND branch=$2`, path, branch)
	return err
}
func (r *fileRepo) DeleteByBranch(ctx context.Context, branch string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM files WHERE branch=$1`, branch)
	return err
}

var _ storage.FileRepo = (*fileRepo)(nil)

// --- keywords (Postgres to_tsvector/to_tsquery, no BM25 — ts_rank_cd
// substitutes as the ranking function, still "lower is better" after
// negation to keep the KeywordHit.Rank contract consistent with sqlite) ---

type keywordRepo struct{ pool *pgxpool.Pool }

func (r *keywordRepo) Index(ctx context.Context, symbolID, name, qualifiedName, content, filePath, branch string) error {
	return nil // symbols.search_vector is a generated column; nothing to index separately
}

func (r *keywordRepo) Search(ctx context.Context, query, branch string, limit int) ([]storage.KeywordHit, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, -ts_rank_cd(search_vector, plainto_tsquery('simple', $1)) AS rank
		FROM symbols
		WHERE branch=$2 AND search_vector @@ plainto_tsquery('simple', $1)
		ORDER BY rank
		LIMIT $3
	`, query, branch, limit)
	if err != nil {
		return nil, nil // malformed query degrades to empty result, not an error
	}
	defer rows.Close()
	var hits []storage.KeywordHit
	for rows.Next() {
		var h storage.KeywordHit
		if err := rows.Scan(&h.SymbolID, &h.Rank); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (r *keywordRepo) Delete(ctx context.Context, symbolID string) error { return nil }
func (r *keywordRepo) DeleteByFile(ctx context.Context, path, branch string) error { return nil }
func (r *keywordRepo) Rebuild(ctx context.Context) error                          { return nil }

var _ storage.KeywordRepo = (*keywordRepo)(nil)

// --- vectors (native pgvector column, server-side nearest-neighbor) ---

type vectorRepo struct{ pool *pgxpool.Pool }

func (r *vectorRepo) Upsert(ctx context.Context, symbolID string, vec []float32) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO vectors (symbol_id, embedding, branch, file_path, updated_at)
		SELECT $1, $2, branch, file_path, now() FROM symbols WHERE id=$1
		ON CONFLICT(symbol_id) DO UPDATE SET embedding=excluded.embedding, updated_at=excluded.updated_at
	`, symbolID, pgvector.NewVector(vec))
	return err
}

func (r *vectorRepo) Search(ctx context.Context, query []float32, k int, branch string) ([]storage.VectorHit, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT symbol_id, embedding <=> $1 AS distance
		FROM vectors
		WHERE branch=$2
		ORDER BY distance
		LIMIT $3
	`, pgvector.NewVector(query), branch, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var hits []storage.VectorHit
	for rows.Next() {
		var h storage.VectorHit
		if err := rows.Scan(&h.SymbolID, &h.Distance); err != nil {
			return nil, err
		}
		h.Similarity = 1 - h.Distance
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (r *vectorRepo) Delete(ctx context.Context, symbolID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM vectors WHERE symbol_id=$1`, symbolID)
	return err
}
func (r *vectorRepo) DeleteByFile(ctx context.Context, path, branch string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM vectors WHERE file_path=$1 AND branch=$2`, path, branch)
	return err
}

var _ storage.VectorRepo = (*vectorRepo)(nil)

// --- repo map ---

type repoMapRepo struct{ pool *pgxpool.Pool }

func (r *repoMapRepo) Upsert(ctx context.Context, e symbol.RepoMapEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO repo_map (file_path, branch, importance_score, in_degree, out_degree, symbol_summary)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT(file_path, branch) DO UPDATE SET importance_score=excluded.importance_score,
			in_degree=excluded.in_degree, out_degree=excluded.out_degree, symbol_summary=excluded.symbol_summary
	`, e.FilePath, e.Branch, e.ImportanceScore, e.InDegree, e.OutDegree, e.SymbolSummary)
	return err
}

func (r *repoMapRepo) ByBranch(ctx context.Context, branch string) ([]symbol.RepoMapEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT file_path, branch, importance_score, in_degree, out_degree, symbol_summary FROM repo_map WHERE branch=$1`, branch)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []symbol.RepoMapEntry
	for rows.Next() {
		var e symbol.RepoMapEntry
		if err := rows.Scan(&e.FilePath, &e.Branch, &e.ImportanceScore, &e.InDegree, &e.OutDegree, &e.SymbolSummary); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

var _ storage.RepoMapRepo = (*repoMapRepo)(nil)
