package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/codeintel/engine/internal/storage"
	"github.com/codeintel/engine/internal/symbol"
)

type edgeRepo struct{ db *sql.DB }

const edgeColumns = `id, source_id, target_id, type, confidence, origin, branch, source_line, target_line, updated_at, metadata`

func scanEdge(row interface{ Scan(...any) error }) (symbol.Edge, error) {
	var e symbol.Edge
	var updatedAt int64
	var metaJSON string
	err := row.Scan(&e.ID, &e.SourceID, &e.TargetID, &e.Type, &e.Confidence, &e.Origin, &e.Branch,
		&e.SourceLine, &e.TargetLine, &updatedAt, &metaJSON)
	if err != nil {
		return symbol.Edge{}, err
	}
	e.UpdatedAt = unixToTime(updatedAt)
	if metaJSON != "" {
		_ = json.Unmarshal([]byte(metaJSON), &e.Metadata)
	}
	return e, nil
}

func (r *edgeRepo) upsertTx(ctx context.Context, execer execer, e symbol.Edge) error {
	var metaJSON string
	if len(e.Metadata) > 0 {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return err
		}
		metaJSON = string(b)
	}
	_, err := execer.ExecContext(ctx, `
		INSERT INTO edges (`+edgeColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			source_id=excluded.source_id, target_id=excluded.target_id, type=excluded.type,
			confidence=excluded.confidence, origin=excluded.origin, branch=excluded.branch,
			source_line=excluded.source_line, target_line=excluded.target_line,
			updated_at=excluded.updated_at, metadata=excluded.metadata
	`, e.ID, e.SourceID, e.TargetID, e.Type, e.Confidence, e.Origin, e.Branch,
		e.SourceLine, e.TargetLine, timeToUnix(e.UpdatedAt), metaJSON)
	return err
}

func (r *edgeRepo) Upsert(ctx context.Context, e symbol.Edge) error {
	return r.upsertTx(ctx, r.db, e)
}

func (r *edgeRepo) UpsertMany(ctx context.Context, edges []symbol.Edge) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, e := range edges {
		if err := r.upsertTx(ctx, tx, e); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *edgeRepo) ByID(ctx context.Context, id string) (symbol.Edge, bool, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+edgeColumns+` FROM edges WHERE id=?`, id)
	e, err := scanEdge(row)
	if err == sql.ErrNoRows {
		return symbol.Edge{}, false, nil
	}
	if err != nil {
		return symbol.Edge{}, false, err
	}
	return e, true, nil
}

func (r *edgeRepo) query(ctx context.Context, query string, args ...any) ([]symbol.Edge, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
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

// Callers returns CALLS edges with target_id=targetID, the indexed lookup
// impact analysis and graph expansion rely on.
func (r *edgeRepo) Callers(ctx context.Context, targetID, branch string) ([]symbol.Edge, error) {
	return r.query(ctx, `SELECT `+edgeColumns+` FROM edges WHERE target_id=? AND branch=? AND type=?`,
		targetID, branch, symbol.Calls)
}

// Callees returns CALLS edges with source_id=sourceID.
func (r *edgeRepo) Callees(ctx context.Context, sourceID, branch string) ([]symbol.Edge, error) {
	return r.query(ctx, `SELECT `+edgeColumns+` FROM edges WHERE source_id=? AND branch=? AND type=?`,
		sourceID, branch, symbol.Calls)
}

func (r *edgeRepo) DeleteByEndpoint(ctx context.Context, symbolID, branch string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM edges WHERE (source_id=? OR target_id=?) AND branch=?`,
		symbolID, symbolID, branch)
	return err
}

func (r *edgeRepo) DeleteByBranch(ctx context.Context, branch string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM edges WHERE branch=?`, branch)
	return err
}

func (r *edgeRepo) AllByBranch(ctx context.Context, branch string) ([]symbol.Edge, error) {
	return r.query(ctx, `SELECT `+edgeColumns+` FROM edges WHERE branch=?`, branch)
}

var _ storage.EdgeRepo = (*edgeRepo)(nil)
