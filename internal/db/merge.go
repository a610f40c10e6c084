package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// MergeConfig describes a keyed bulk merge. Every column other than Key is
// overwritten when a row with the same key already exists.
type MergeConfig struct {
	Table   string
	Key     string
	Columns []string
}

func (c MergeConfig) validate() error {
	if c.Table == "" || c.Key == "" {
		return eris.New("db: merge: table and key are required")
	}
	for _, col := range c.Columns {
		if col == c.Key {
			return nil
		}
	}
	return eris.Errorf("db: merge: key %q missing from columns", c.Key)
}

// MergeFrom stages rows in a transaction-scoped temp table via COPY and
// merges them into cfg.Table in one statement. It returns the number of
// rows inserted or updated.
func MergeFrom(ctx context.Context, pool Pool, cfg MergeConfig, rows [][]any) (int64, error) {
	if err := cfg.validate(); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: merge: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	stage := "_stage_" + strings.ReplaceAll(cfg.Table, ".", "_")
	create := fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{stage}.Sanitize(), tableIdent(cfg.Table))
	if _, err := tx.Exec(ctx, create); err != nil {
		return 0, eris.Wrapf(err, "db: merge: stage %s", cfg.Table)
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{stage}, cfg.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: merge: COPY INTO %s", stage)
	}

	tag, err := tx.Exec(ctx, mergeSQL(cfg, stage))
	if err != nil {
		return 0, eris.Wrapf(err, "db: merge: into %s", cfg.Table)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: merge: commit tx")
	}
	return tag.RowsAffected(), nil
}

func mergeSQL(cfg MergeConfig, stage string) string {
	cols := make([]string, len(cfg.Columns))
	var set []string
	for i, c := range cfg.Columns {
		cols[i] = pgx.Identifier{c}.Sanitize()
		if c != cfg.Key {
			set = append(set, cols[i]+" = EXCLUDED."+cols[i])
		}
	}
	list := strings.Join(cols, ", ")
	key := pgx.Identifier{cfg.Key}.Sanitize()

	action := "DO NOTHING"
	if len(set) > 0 {
		action = "DO UPDATE SET " + strings.Join(set, ", ")
	}
	return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) %s",
		tableIdent(cfg.Table), list, list, pgx.Identifier{stage}.Sanitize(), key, action)
}

// tableIdent quotes a table name, splitting an optional schema prefix.
func tableIdent(table string) string {
	return pgx.Identifier(strings.SplitN(table, ".", 2)).Sanitize()
}
