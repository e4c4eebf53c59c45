package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/codeintel/engine/internal/storage"
)

type keywordRepo struct{ db *sql.DB }

func (r *keywordRepo) Index(ctx context.Context, symbolID, name, qualifiedName, content, filePath, branch string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO fts_symbols_content (symbol_id, name, qualified_name, content, file_path, branch)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT(symbol_id) DO UPDATE SET
			name=excluded.name, qualified_name=excluded.qualified_name,
			content=excluded.content, file_path=excluded.file_path, branch=excluded.branch
	`, symbolID, name, qualifiedName, content, filePath, branch)
	return err
}

// Search runs the trigram FTS5 query, branch-filtering the result and
// surfacing the library's bm25() ranking (ascending, lower is better).
// Malformed queries never propagate as an error per the error-handling
// taxonomy: the FTS boundary catches them and returns an empty hit list.
func (r *keywordRepo) Search(ctx context.Context, query, branch string, limit int) ([]storage.KeywordHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.symbol_id, bm25(fts_symbols) AS rank
		FROM fts_symbols
		JOIN fts_symbols_content c ON c.rowid = fts_symbols.rowid
		WHERE fts_symbols MATCH ? AND c.branch = ?
		ORDER BY rank
		LIMIT ?
	`, query, branch, limit)
	if err != nil {
		// A malformed MATCH expression (unbalanced quote, bare '*(') is
		// reported by the driver as a query error; treat it as the
		// FtsQuerySyntax case and degrade to an empty result rather than
		// propagating a fatal error to the caller.
		return nil, nil
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

func (r *keywordRepo) Delete(ctx context.Context, symbolID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM fts_symbols_content WHERE symbol_id=?`, symbolID)
	return err
}

func (r *keywordRepo) DeleteByFile(ctx context.Context, path, branch string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM fts_symbols_content WHERE file_path=? AND branch=?`, path, branch)
	return err
}

// Rebuild recreates the FTS index from fts_symbols_content, used after a
// bulk load or to recover from index corruption.
func (r *keywordRepo) Rebuild(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO fts_symbols(fts_symbols) VALUES('rebuild')`)
	return err
}

var _ storage.KeywordRepo = (*keywordRepo)(nil)
