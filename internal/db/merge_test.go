package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeFrom_InvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     MergeConfig
		wantErr string
	}{
		{"no table", MergeConfig{Key: "id", Columns: []string{"id"}}, "table and key are required"},
		{"no key", MergeConfig{Table: "vendors", Columns: []string{"id"}}, "table and key are required"},
		{"key not a column", MergeConfig{Table: "vendors", Key: "id", Columns: []string{"name"}}, `key "id" missing`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MergeFrom(context.Background(), nil, tt.cfg, [][]any{{"v1"}})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMergeFrom_EmptyRows(t *testing.T) {
	n, err := MergeFrom(context.Background(), nil, MergeConfig{Table: "vendors", Key: "id", Columns: []string{"id"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestMergeFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_stage_vendors" \(LIKE "vendors" INCLUDING DEFAULTS\) ON COMMIT DROP`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_stage_vendors"}, []string{"id", "doc"}).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "vendors" \("id", "doc"\) SELECT "id", "doc" FROM "_stage_vendors" ON CONFLICT \("id"\) DO UPDATE SET "doc" = EXCLUDED."doc"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := MergeFrom(context.Background(), mock, MergeConfig{
		Table:   "vendors",
		Key:     "id",
		Columns: []string{"id", "doc"},
	}, [][]any{{"v1", "{}"}, {"v2", "{}"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMergeFrom_CopyErrorRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_stage_audit_vendors" \(LIKE "audit"."vendors"`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_stage_audit_vendors"}, []string{"id"}).WillReturnError(errors.New("copy failed"))
	mock.ExpectRollback()

	_, err = MergeFrom(context.Background(), mock, MergeConfig{Table: "audit.vendors", Key: "id", Columns: []string{"id"}}, [][]any{{"v1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "copy failed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMergeSQL_KeyOnly(t *testing.T) {
	got := mergeSQL(MergeConfig{Table: "tags", Key: "id", Columns: []string{"id"}}, "_stage_tags")
	assert.Equal(t, `INSERT INTO "tags" ("id") SELECT "id" FROM "_stage_tags" ON CONFLICT ("id") DO NOTHING`, got)
}

func TestTableIdent(t *testing.T) {
	assert.Equal(t, `"vendors"`, tableIdent("vendors"))
	assert.Equal(t, `"audit"."vendors"`, tableIdent("audit.vendors"))
}
