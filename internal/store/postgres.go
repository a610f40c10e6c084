package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/posture/internal/db"
	"github.com/sells-group/posture/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS assessments (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'DRAFT',
	doc        JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS gaps (
	id               TEXT NOT NULL,
	assessment_id    TEXT NOT NULL REFERENCES assessments(id) ON DELETE CASCADE,
	title            TEXT NOT NULL DEFAULT '',
	category         TEXT NOT NULL DEFAULT '',
	severity         TEXT NOT NULL,
	priority         TEXT NOT NULL DEFAULT '',
	priority_score   INTEGER NOT NULL,
	estimated_effort TEXT NOT NULL DEFAULT '',
	estimated_cost   TEXT NOT NULL DEFAULT '',
	documentation    BOOLEAN NOT NULL DEFAULT false,
	PRIMARY KEY (assessment_id, id)
);

CREATE TABLE IF NOT EXISTS risks (
	id                    TEXT NOT NULL,
	assessment_id         TEXT NOT NULL REFERENCES assessments(id) ON DELETE CASCADE,
	title                 TEXT NOT NULL DEFAULT '',
	category              TEXT NOT NULL DEFAULT '',
	risk_level            TEXT NOT NULL,
	control_effectiveness DOUBLE PRECISION,
	PRIMARY KEY (assessment_id, id)
);

CREATE TABLE IF NOT EXISTS vendors (
	id                   TEXT PRIMARY KEY,
	name                 TEXT NOT NULL DEFAULT '',
	pricing_range        TEXT NOT NULL DEFAULT '',
	implementation_weeks INTEGER NOT NULL DEFAULT 0,
	doc                  JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS score_results (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	assessment_id TEXT NOT NULL,
	kind          TEXT NOT NULL,
	score         DOUBLE PRECISION NOT NULL,
	band          TEXT NOT NULL DEFAULT '',
	config_hash   TEXT NOT NULL DEFAULT '',
	payload       JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_assessments_status ON assessments(status);
CREATE INDEX IF NOT EXISTS idx_gaps_assessment ON gaps(assessment_id);
CREATE INDEX IF NOT EXISTS idx_risks_assessment ON risks(assessment_id);
CREATE INDEX IF NOT EXISTS idx_score_results_lookup ON score_results(assessment_id, kind, created_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveAssessment(ctx context.Context, a *model.Assessment) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Status == "" {
		a.Status = model.AssessmentDraft
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	doc, err := marshalAssessment(a)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO assessments (id, status, doc, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at`,
		a.ID, string(a.Status), doc, a.CreatedAt, a.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: save assessment %s", a.ID)
}

func (s *PostgresStore) GetAssessment(ctx context.Context, id string) (*model.Assessment, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, status, doc, created_at, updated_at FROM assessments WHERE id = $1`, id)
	a, err := scanPgAssessment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("assessment", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get assessment %s", id)
	}
	return a, nil
}

func (s *PostgresStore) ListAssessments(ctx context.Context, filter AssessmentFilter) ([]model.Assessment, error) {
	query := `SELECT id, status, doc, created_at, updated_at FROM assessments WHERE 1=1`
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	args = append(args, filter.limit())
	query += fmt.Sprintf(` ORDER BY id LIMIT $%d`, len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list assessments")
	}
	defer rows.Close()

	var out []model.Assessment
	for rows.Next() {
		a, err := scanPgAssessment(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan assessment")
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list assessments iterate")
}

func scanPgAssessment(row pgx.Row) (*model.Assessment, error) {
	var a model.Assessment
	var status string
	var doc []byte
	if err := row.Scan(&a.ID, &status, &doc, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Status = model.AssessmentStatus(status)
	if err := unmarshalAssessment(&a, doc); err != nil {
		return nil, err
	}
	return &a, nil
}

var gapColumns = []string{
	"id", "assessment_id", "title", "category", "severity", "priority",
	"priority_score", "estimated_effort", "estimated_cost", "documentation",
}

func gapRow(g model.Gap) []any {
	return []any{
		g.ID, g.AssessmentID, g.Title, g.Category, string(g.Severity), string(g.Priority),
		g.PriorityScore, string(g.EstimatedEffort), string(g.EstimatedCost), g.Documentation,
	}
}

func (s *PostgresStore) ListGaps(ctx context.Context, assessmentID string) ([]model.Gap, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, assessment_id, title, category, severity, priority, priority_score, estimated_effort, estimated_cost, documentation
		FROM gaps WHERE assessment_id = $1 ORDER BY id`, assessmentID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list gaps for %s", assessmentID)
	}
	defer rows.Close()

	var out []model.Gap
	for rows.Next() {
		var g model.Gap
		var sev, pri, effort, cost string
		if err := rows.Scan(&g.ID, &g.AssessmentID, &g.Title, &g.Category, &sev, &pri, &g.PriorityScore, &effort, &cost, &g.Documentation); err != nil {
			return nil, eris.Wrap(err, "postgres: scan gap")
		}
		g.Severity = model.Severity(sev)
		g.Priority = model.Priority(pri)
		g.EstimatedEffort = model.Effort(effort)
		g.EstimatedCost = model.CostRange(cost)
		out = append(out, g)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list gaps iterate")
}

func (s *PostgresStore) UpsertGap(ctx context.Context, g model.Gap) error {
	if err := validateGap(g); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO gaps (id, assessment_id, title, category, severity, priority, priority_score, estimated_effort, estimated_cost, documentation)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (assessment_id, id) DO UPDATE SET
			title = EXCLUDED.title, category = EXCLUDED.category, severity = EXCLUDED.severity,
			priority = EXCLUDED.priority, priority_score = EXCLUDED.priority_score,
			estimated_effort = EXCLUDED.estimated_effort, estimated_cost = EXCLUDED.estimated_cost,
			documentation = EXCLUDED.documentation`,
		gapRow(g)...,
	)
	return eris.Wrapf(err, "postgres: upsert gap %s", g.ID)
}

func (s *PostgresStore) DeleteGap(ctx context.Context, assessmentID, gapID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM gaps WHERE assessment_id = $1 AND id = $2`, assessmentID, gapID)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete gap %s", gapID)
	}
	if tag.RowsAffected() == 0 {
		return notFound("gap", gapID)
	}
	return nil
}

// ImportGaps replaces every gap of an assessment using COPY.
func (s *PostgresStore) ImportGaps(ctx context.Context, assessmentID string, gaps []model.Gap) (int64, error) {
	rows := make([][]any, 0, len(gaps))
	for i := range gaps {
		gaps[i].AssessmentID = assessmentID
		if err := validateGap(gaps[i]); err != nil {
			return 0, err
		}
		rows = append(rows, gapRow(gaps[i]))
	}
	n, err := db.ReplaceFrom(ctx, s.pool, db.ReplaceConfig{
		Table:     "gaps",
		KeyColumn: "assessment_id",
		Key:       assessmentID,
		Columns:   gapColumns,
	}, rows)
	return n, eris.Wrapf(err, "postgres: import gaps for %s", assessmentID)
}

func (s *PostgresStore) ListRisks(ctx context.Context, assessmentID string) ([]model.Risk, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, assessment_id, title, category, risk_level, control_effectiveness
		FROM risks WHERE assessment_id = $1 ORDER BY id`, assessmentID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list risks for %s", assessmentID)
	}
	defer rows.Close()

	var out []model.Risk
	for rows.Next() {
		var r model.Risk
		var level string
		if err := rows.Scan(&r.ID, &r.AssessmentID, &r.Title, &r.Category, &level, &r.ControlEffectiveness); err != nil {
			return nil, eris.Wrap(err, "postgres: scan risk")
		}
		r.RiskLevel = model.RiskLevel(level)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list risks iterate")
}

// ImportRisks replaces every risk of an assessment using COPY.
func (s *PostgresStore) ImportRisks(ctx context.Context, assessmentID string, risks []model.Risk) (int64, error) {
	rows := make([][]any, 0, len(risks))
	for _, r := range risks {
		if r.ID == "" {
			return 0, eris.New("postgres: risk id is required")
		}
		rows = append(rows, []any{r.ID, assessmentID, r.Title, r.Category, string(r.RiskLevel), r.ControlEffectiveness})
	}
	n, err := db.ReplaceFrom(ctx, s.pool, db.ReplaceConfig{
		Table:     "risks",
		KeyColumn: "assessment_id",
		Key:       assessmentID,
		Columns:   []string{"id", "assessment_id", "title", "category", "risk_level", "control_effectiveness"},
	}, rows)
	return n, eris.Wrapf(err, "postgres: import risks for %s", assessmentID)
}

func (s *PostgresStore) ListVendors(ctx context.Context) ([]model.Vendor, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, pricing_range, implementation_weeks, doc FROM vendors ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list vendors")
	}
	defer rows.Close()

	var out []model.Vendor
	for rows.Next() {
		var v model.Vendor
		var pricing string
		var doc []byte
		if err := rows.Scan(&v.ID, &v.Name, &pricing, &v.ImplementationWeeks, &doc); err != nil {
			return nil, eris.Wrap(err, "postgres: scan vendor")
		}
		v.PricingRange = model.CostRange(pricing)
		if err := unmarshalVendor(&v, doc); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list vendors iterate")
}

func vendorRow(v model.Vendor) ([]any, error) {
	if err := validateVendor(v); err != nil {
		return nil, err
	}
	doc, err := marshalVendor(v)
	if err != nil {
		return nil, err
	}
	return []any{v.ID, v.Name, string(v.PricingRange), v.ImplementationWeeks, doc}, nil
}

func (s *PostgresStore) UpsertVendor(ctx context.Context, v model.Vendor) error {
	row, err := vendorRow(v)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO vendors (id, name, pricing_range, implementation_weeks, doc) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, pricing_range = EXCLUDED.pricing_range,
			implementation_weeks = EXCLUDED.implementation_weeks, doc = EXCLUDED.doc`,
		row...,
	)
	return eris.Wrapf(err, "postgres: upsert vendor %s", v.ID)
}

// ImportVendors bulk upserts vendors through a COPY staging table.
func (s *PostgresStore) ImportVendors(ctx context.Context, vendors []model.Vendor) (int64, error) {
	rows := make([][]any, 0, len(vendors))
	for _, v := range vendors {
		row, err := vendorRow(v)
		if err != nil {
			return 0, err
		}
		rows = append(rows, row)
	}
	n, err := db.MergeFrom(ctx, s.pool, db.MergeConfig{
		Table:   "vendors",
		Key:     "id",
		Columns: []string{"id", "name", "pricing_range", "implementation_weeks", "doc"},
	}, rows)
	return n, eris.Wrap(err, "postgres: import vendors")
}

func (s *PostgresStore) SaveScoreResult(ctx context.Context, rec *ScoreRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO score_results (id, assessment_id, kind, score, band, config_hash, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.AssessmentID, string(rec.Kind), rec.Score, rec.Band, rec.ConfigHash, []byte(rec.Payload), rec.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: save score result for %s", rec.AssessmentID)
}

func (s *PostgresStore) LatestScoreResult(ctx context.Context, assessmentID string, kind ScoreKind) (*ScoreRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, assessment_id, kind, score, band, config_hash, payload, created_at
		FROM score_results WHERE assessment_id = $1 AND kind = $2
		ORDER BY created_at DESC LIMIT 1`, assessmentID, string(kind))

	var rec ScoreRecord
	var k string
	var payload []byte
	err := row.Scan(&rec.ID, &rec.AssessmentID, &k, &rec.Score, &rec.Band, &rec.ConfigHash, &payload, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("score result", assessmentID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: latest score result for %s", assessmentID)
	}
	rec.Kind = ScoreKind(k)
	rec.Payload = payload
	return &rec, nil
}
