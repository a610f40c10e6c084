package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/posture/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_Ping(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`SELECT 1`).WillReturnResult(pgxmock.NewResult("SELECT", 1))

	require.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS assessments`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetAssessment_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, status, doc, created_at, updated_at FROM assessments WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetAssessment(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetAssessment(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	doc := []byte(`{"organization":{"id":"org-1","name":"Acme","size":"MIDMARKET"},"template":{"id":"tpl-1"},"priorities":{"jurisdictions":["EU"]}}`)
	mock.ExpectQuery(`FROM assessments WHERE id = \$1`).
		WithArgs("a1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "status", "doc", "created_at", "updated_at"}).
			AddRow("a1", "IN_PROGRESS", doc, created, created))

	a, err := s.GetAssessment(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, model.AssessmentInProgress, a.Status)
	assert.Equal(t, "Acme", a.Organization.Name)
	assert.Equal(t, model.SizeMidmarket, a.Organization.Size)
	assert.Equal(t, []string{"EU"}, a.Priorities.Jurisdictions)
	assert.Equal(t, created, a.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveAssessment_AssignsID(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO assessments .* ON CONFLICT \(id\) DO UPDATE`).
		WithArgs(pgxmock.AnyArg(), "DRAFT", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	a := &model.Assessment{Organization: model.Organization{Name: "Acme"}}
	require.NoError(t, s.SaveAssessment(context.Background(), a))
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, model.AssessmentDraft, a.Status)
	assert.False(t, a.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListAssessments_StatusFilter(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM assessments WHERE 1=1 AND status = \$1 ORDER BY id LIMIT \$2 OFFSET \$3`).
		WithArgs("COMPLETED", 10, 20).
		WillReturnRows(pgxmock.NewRows([]string{"id", "status", "doc", "created_at", "updated_at"}).
			AddRow("a1", "COMPLETED", []byte(`{}`), now, now).
			AddRow("a2", "COMPLETED", []byte(`{}`), now, now))

	out, err := s.ListAssessments(context.Background(), AssessmentFilter{Status: model.AssessmentCompleted, Limit: 10, Offset: 20})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "a2", out[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListGaps(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM gaps WHERE assessment_id = \$1 ORDER BY id`).
		WithArgs("a1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "assessment_id", "title", "category", "severity", "priority",
			"priority_score", "estimated_effort", "estimated_cost", "documentation",
		}).
			AddRow("g1", "a1", "No DPA", "privacy", "HIGH", "HIGH", 9, "SMALL", "UNDER_10K", false).
			AddRow("g2", "a1", "No policy", "governance", "LOW", "", 2, "", "", true))

	gaps, err := s.ListGaps(context.Background(), "a1")
	require.NoError(t, err)
	require.Len(t, gaps, 2)
	assert.Equal(t, model.SeverityHigh, gaps[0].Severity)
	assert.Equal(t, 9, gaps[0].PriorityScore)
	assert.Equal(t, model.EffortSmall, gaps[0].EstimatedEffort)
	assert.Equal(t, model.CostUnder10K, gaps[0].EstimatedCost)
	assert.True(t, gaps[1].Documentation)
	assert.Empty(t, gaps[1].EstimatedCost)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertGap_RequiresIDs(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	err := s.UpsertGap(context.Background(), model.Gap{ID: "g1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assessment id")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteGap_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM gaps WHERE assessment_id = \$1 AND id = \$2`).
		WithArgs("a1", "nope").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := s.DeleteGap(context.Background(), "a1", "nope")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ImportGaps(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "gaps" WHERE "assessment_id" = \$1`).
		WithArgs("a1").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectCopyFrom(pgx.Identifier{"gaps"}, gapColumns).WillReturnResult(2)
	mock.ExpectCommit()

	gaps := []model.Gap{
		{ID: "g1", Category: "privacy", Severity: model.SeverityHigh, PriorityScore: 9},
		{ID: "g2", Category: "access", Severity: model.SeverityLow, PriorityScore: 3},
	}
	n, err := s.ImportGaps(context.Background(), "a1", gaps)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, "a1", gaps[0].AssessmentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ImportRisks_CopyError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "risks"`).WithArgs("a1").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"risks"}, []string{"id", "assessment_id", "title", "category", "risk_level", "control_effectiveness"}).
		WillReturnError(fmt.Errorf("connection reset"))
	mock.ExpectRollback()

	_, err := s.ImportRisks(context.Background(), "a1", []model.Risk{{ID: "r1", RiskLevel: model.RiskHigh}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "import risks")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListVendors(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, name, pricing_range, implementation_weeks, doc FROM vendors ORDER BY id`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "pricing_range", "implementation_weeks", "doc"}).
			AddRow("v1", "Shield", "RANGE_10K_50K", 6, []byte(`{"categories":["privacy","access"],"geographic_coverage":["GLOBAL"]}`)))

	vendors, err := s.ListVendors(context.Background())
	require.NoError(t, err)
	require.Len(t, vendors, 1)
	assert.Equal(t, []string{"privacy", "access"}, vendors[0].Categories)
	assert.Equal(t, []string{"GLOBAL"}, vendors[0].GeographicCoverage)
	assert.Equal(t, 6, vendors[0].ImplementationWeeks)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ImportVendors(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_stage_vendors"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_stage_vendors"}, []string{"id", "name", "pricing_range", "implementation_weeks", "doc"}).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "vendors" .* ON CONFLICT \("id"\) DO UPDATE`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := s.ImportVendors(context.Background(), []model.Vendor{
		{ID: "v1", Name: "Shield", Categories: []string{"privacy"}},
		{ID: "v2", Name: "Vault", Categories: []string{"access"}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ImportVendors_MissingID(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	_, err := s.ImportVendors(context.Background(), []model.Vendor{{Name: "anonymous"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vendor id is required")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestScoreResult(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	at := time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM score_results WHERE assessment_id = \$1 AND kind = \$2`).
		WithArgs("a1", "weighted").
		WillReturnRows(pgxmock.NewRows([]string{"id", "assessment_id", "kind", "score", "band", "config_hash", "payload", "created_at"}).
			AddRow("r1", "a1", "weighted", 78.5, "Medium", "abc", []byte(`{"overall_score":78.5}`), at))

	rec, err := s.LatestScoreResult(context.Background(), "a1", ScoreKindWeighted)
	require.NoError(t, err)
	assert.Equal(t, ScoreKindWeighted, rec.Kind)
	assert.InDelta(t, 78.5, rec.Score, 0.0001)
	assert.JSONEq(t, `{"overall_score":78.5}`, string(rec.Payload))
	assert.Equal(t, at, rec.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestScoreResult_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM score_results`).
		WithArgs("a1", "legacy").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.LatestScoreResult(context.Background(), "a1", ScoreKindLegacy)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveScoreResult(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO score_results`).
		WithArgs(pgxmock.AnyArg(), "a1", "legacy", 64.0, "High", "hash", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rec := &ScoreRecord{AssessmentID: "a1", Kind: ScoreKindLegacy, Score: 64, Band: "High", ConfigHash: "hash", Payload: []byte(`{}`)}
	require.NoError(t, s.SaveScoreResult(context.Background(), rec))
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Close(t *testing.T) {
	closed := false
	s := &PostgresStore{closeFn: func() { closed = true }}
	require.NoError(t, s.Close())
	assert.True(t, closed)
}
