package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// CopyFrom bulk-inserts rows into a table using PostgreSQL COPY protocol.
func CopyFrom(ctx context.Context, pool Pool, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	n, err := pool.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s", table)
	}
	return n, nil
}

// ReplaceConfig scopes a replace to the rows whose KeyColumn equals Key.
type ReplaceConfig struct {
	Table     string
	KeyColumn string
	Key       any
	Columns   []string
}

// ReplaceFrom deletes the rows matching cfg.Key and COPYs rows in their
// place, in one transaction. An empty rows slice just clears the scope.
func ReplaceFrom(ctx context.Context, pool Pool, cfg ReplaceConfig, rows [][]any) (int64, error) {
	if cfg.Table == "" || cfg.KeyColumn == "" {
		return 0, eris.New("db: replace: table and key column are required")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: replace: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	del := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", tableIdent(cfg.Table), pgx.Identifier{cfg.KeyColumn}.Sanitize())
	if _, err := tx.Exec(ctx, del, cfg.Key); err != nil {
		return 0, eris.Wrapf(err, "db: replace: clear %s", cfg.Table)
	}

	var n int64
	if len(rows) > 0 {
		n, err = tx.CopyFrom(ctx, pgx.Identifier{cfg.Table}, cfg.Columns, pgx.CopyFromRows(rows))
		if err != nil {
			return 0, eris.Wrapf(err, "db: replace: COPY INTO %s", cfg.Table)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: replace: commit tx")
	}
	return n, nil
}
