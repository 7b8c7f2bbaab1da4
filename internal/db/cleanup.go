package db

import (
	"context"
	"fmt"
)

// PruneRuns keeps the newest keep runs and deletes everything older.
// Child rows are deleted explicitly so pruning does not depend on the
// foreign_keys pragma being honoured.
func (db *DB) PruneRuns(ctx context.Context, keep int) (int, error) {
	if keep < 1 {
		keep = 1
	}

	db.LockWrite()
	defer db.UnlockWrite()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stale := `SELECT run_id FROM runs ORDER BY created_at_utc DESC LIMIT -1 OFFSET ?`
	queries := []struct {
		name  string
		query string
	}{
		{name: "entry_nodes", query: "DELETE FROM entry_nodes WHERE run_id IN (" + stale + ")"},
		{name: "stations", query: "DELETE FROM stations WHERE run_id IN (" + stale + ")"},
		{name: "stitched_segments", query: "DELETE FROM stitched_segments WHERE run_id IN (" + stale + ")"},
		{name: "runs", query: "DELETE FROM runs WHERE run_id IN (" + stale + ")"},
	}

	runsDeleted := 0
	totalDeleted := 0
	for _, q := range queries {
		result, err := tx.ExecContext(ctx, q.query, keep)
		if err != nil {
			return 0, fmt.Errorf("failed to prune %s: %w", q.name, err)
		}
		rows, _ := result.RowsAffected()
		totalDeleted += int(rows)
		if q.name == "runs" {
			runsDeleted = int(rows)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit prune: %w", err)
	}

	if runsDeleted > 0 {
		db.log.Infow("pruned old runs", "runs", runsDeleted, "rows", totalDeleted, "kept", keep)
	}
	return runsDeleted, nil
}
