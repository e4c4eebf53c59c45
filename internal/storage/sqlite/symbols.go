package sqlite

import (
	"context"
	"database/sql"

	"github.com/codeintel/engine/internal/storage"
	"github.com/codeintel/engine/internal/symbol"
)

type symbolRepo struct{ db *sql.DB }

const symbolColumns = `id, name, qualified_name, type, language, file_path, start_line, end_line,
	content, signature, docstring, content_hash, is_external, branch, embedding_model_id, updated_at, revision_id`

func scanSymbol(row interface{ Scan(...any) error }) (symbol.Symbol, error) {
	var s symbol.Symbol
	var isExternal int
	var updatedAt int64
	err := row.Scan(&s.ID, &s.Name, &s.QualifiedName, &s.Type, &s.Language, &s.FilePath,
		&s.StartLine, &s.EndLine, &s.Content, &s.Signature, &s.Docstring, &s.ContentHash,
		&isExternal, &s.Branch, &s.EmbeddingModelID, &updatedAt, &s.RevisionID)
	if err != nil {
		return symbol.Symbol{}, err
	}
	s.IsExternal = isExternal != 0
	s.UpdatedAt = unixToTime(updatedAt)
	return s, nil
}

func (r *symbolRepo) Upsert(ctx context.Context, s symbol.Symbol) error {
	return r.upsertTx(ctx, r.db, s)
}

func (r *symbolRepo) upsertTx(ctx context.Context, execer execer, s symbol.Symbol) error {
	_, err := execer.ExecContext(ctx, `
		INSERT INTO symbols (`+symbolColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, qualified_name=excluded.qualified_name, type=excluded.type,
			language=excluded.language, file_path=excluded.file_path, start_line=excluded.start_line,
			end_line=excluded.end_line, content=excluded.content, signature=excluded.signature,
			docstring=excluded.docstring, content_hash=excluded.content_hash, is_external=excluded.is_external,
			branch=excluded.branch, embedding_model_id=excluded.embedding_model_id,
			updated_at=excluded.updated_at, revision_id=excluded.revision_id
	`, s.ID, s.Name, s.QualifiedName, s.Type, s.Language, s.FilePath, s.StartLine, s.EndLine,
		s.Content, s.Signature, s.Docstring, s.ContentHash, boolToInt(s.IsExternal), s.Branch,
		s.EmbeddingModelID, timeToUnix(s.UpdatedAt), s.RevisionID)
	return err
}

func (r *symbolRepo) UpsertMany(ctx context.Context, syms []symbol.Symbol) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, s := range syms {
		if err := r.upsertTx(ctx, tx, s); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *symbolRepo) ByID(ctx context.Context, id string) (symbol.Symbol, bool, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+symbolColumns+` FROM symbols WHERE id=?`, id)
	s, err := scanSymbol(row)
	if err == sql.ErrNoRows {
		return symbol.Symbol{}, false, nil
	}
	if err != nil {
		return symbol.Symbol{}, false, err
	}
	return s, true, nil
}

func (r *symbolRepo) query(ctx context.Context, query string, args ...any) ([]symbol.Symbol, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []symbol.Symbol
	for rows.Next() {
		s, err := scanSymbol(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *symbolRepo) ByFile(ctx context.Context, path, branch string) ([]symbol.Symbol, error) {
	return r.query(ctx, `SELECT `+symbolColumns+` FROM symbols WHERE file_path=? AND branch=?`, path, branch)
}

func (r *symbolRepo) ByName(ctx context.Context, name, branch string) ([]symbol.Symbol, error) {
	return r.query(ctx, `SELECT `+symbolColumns+` FROM symbols WHERE name=? AND branch=?`, name, branch)
}

func (r *symbolRepo) ByType(ctx context.Context, t symbol.Type, branch string) ([]symbol.Symbol, error) {
	return r.query(ctx, `SELECT `+symbolColumns+` FROM symbols WHERE type=? AND branch=?`, t, branch)
}

func (r *symbolRepo) DeleteByFile(ctx context.Context, path, branch string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM symbols WHERE file_path=? AND branch=?`, path, branch)
	return err
}

func (r *symbolRepo) DeleteByBranch(ctx context.Context, branch string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM symbols WHERE branch=?`, branch)
	return err
}

func (r *symbolRepo) Count(ctx context.Context, branch string) (int, error) {
	var n int
	var err error
	if branch == "" {
		err = r.db.QueryRowContext(ctx, `SELECT count(*) FROM symbols`).Scan(&n)
	} else {
		err = r.db.QueryRowContext(ctx, `SELECT count(*) FROM symbols WHERE branch=?`, branch).Scan(&n)
	}
	return n, err
}

func (r *symbolRepo) All(ctx context.Context, branch string, limit int) ([]symbol.Symbol, error) {
	return r.query(ctx, `SELECT `+symbolColumns+` FROM symbols WHERE branch=? LIMIT ?`, branch, limit)
}

var _ storage.SymbolRepo = (*symbolRepo)(nil)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}
