package sqlite

import (
	"context"
	"database/sql"

	"github.com/codeintel/engine/internal/storage"
	"github.com/codeintel/engine/internal/symbol"
)

type repoMapRepo struct{ db *sql.DB }

func (r *repoMapRepo) Upsert(ctx context.Context, entry symbol.RepoMapEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO repo_map (file_path, branch, importance_score, in_degree, out_degree, symbol_summary)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT(file_path, branch) DO UPDATE SET
			importance_score=excluded.importance_score, in_degree=excluded.in_degree,
			out_degree=excluded.out_degree, symbol_summary=excluded.symbol_summary
	`, entry.FilePath, entry.Branch, entry.ImportanceScore, entry.InDegree, entry.OutDegree, entry.SymbolSummary)
	return err
}

func (r *repoMapRepo) ByBranch(ctx context.Context, branch string) ([]symbol.RepoMapEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT file_path, branch, importance_score, in_degree, out_degree, symbol_summary FROM repo_map WHERE branch=?`, branch)
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
