package sqlite

import (
	"context"
	"database/sql"

	"github.com/codeintel/engine/internal/storage"
	"github.com/codeintel/engine/internal/symbol"
)

type fileRepo struct{ db *sql.DB }

const fileColumns = `file_path, branch, file_hash, mtime, size, last_indexed, language, status, symbol_count, importance_rank, error_message`

func scanFile(row interface{ Scan(...any) error }) (symbol.FileRecord, error) {
	var f symbol.FileRecord
	var lastIndexed int64
	err := row.Scan(&f.FilePath, &f.Branch, &f.FileHash, &f.Mtime, &f.Size, &lastIndexed,
		&f.Language, &f.Status, &f.SymbolCount, &f.ImportanceRank, &f.ErrorMessage)
	if err != nil {
		return symbol.FileRecord{}, err
	}
	f.LastIndexed = unixToTime(lastIndexed)
	return f, nil
}

func (r *fileRepo) Upsert(ctx context.Context, f symbol.FileRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO files (`+fileColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(file_path, branch) DO UPDATE SET
			file_hash=excluded.file_hash, mtime=excluded.mtime, size=excluded.size,
			last_indexed=excluded.last_indexed, language=excluded.language, status=excluded.status,
			symbol_count=excluded.symbol_count, importance_rank=excluded.importance_rank,
			error_message=excluded.error_message
	`, f.FilePath, f.Branch, f.FileHash, f.Mtime, f.Size, timeToUnix(f.LastIndexed),
		f.Language, f.Status, f.SymbolCount, f.ImportanceRank, f.ErrorMessage)
	return err
}

func (r *fileRepo) ByPath(ctx context.Context, path, branch string) (symbol.FileRecord, bool, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE file_path=? AND branch=?`, path, branch)
	f, err := scanFile(row)
	if err == sql.ErrNoRows {
		return symbol.FileRecord{}, false, nil
	}
	if err != nil {
		return symbol.FileRecord{}, false, err
	}
	return f, true, nil
}

func (r *fileRepo) query(ctx context.Context, query string, args ...any) ([]symbol.FileRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []symbol.FileRecord
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *fileRepo) ByStatus(ctx context.Context, status symbol.FileStatus, branch string) ([]symbol.FileRecord, error) {
	return r.query(ctx, `SELECT `+fileColumns+` FROM files WHERE status=? AND branch=?`, status, branch)
}

func (r *fileRepo) ByBranch(ctx context.Context, branch string) ([]symbol.FileRecord, error) {
	return r.query(ctx, `SELECT `+fileColumns+` FROM files WHERE branch=?`, branch)
}

func (r *fileRepo) UpdateStatus(ctx context.Context, path, branch string, status symbol.FileStatus, errMsg string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE files SET status=?, error_message=? WHERE file_path=? AND branch=?`,
		status, errMsg, path, branch)
	return err
}

func (r *fileRepo) UpdateSymbolCount(ctx context.Context, path, branch string, count int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE files SET symbol_count=? WHERE file_path=? AND branch=?`, count, path, branch)
	return err
}

func (r *fileRepo) DeleteByPath(ctx context.Context, path, branch string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE file_path=? AND branch=?`, path, branch)
	return err
}

func (r *fileRepo) DeleteByBranch(ctx context.Context, branch string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE branch=?`, branch)
	return err
}

var _ storage.FileRepo = (*fileRepo)(nil)
