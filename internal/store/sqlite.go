package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/posture/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Connection-scoped pragmas like foreign_keys must hold on every query.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS assessments (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'DRAFT',
	doc        TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
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
	documentation    INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (assessment_id, id)
);

CREATE TABLE IF NOT EXISTS risks (
	id                    TEXT NOT NULL,
	assessment_id         TEXT NOT NULL REFERENCES assessments(id) ON DELETE CASCADE,
	title                 TEXT NOT NULL DEFAULT '',
	category              TEXT NOT NULL DEFAULT '',
	risk_level            TEXT NOT NULL,
	control_effectiveness REAL,
	PRIMARY KEY (assessment_id, id)
);

CREATE TABLE IF NOT EXISTS vendors (
	id                   TEXT PRIMARY KEY,
	name                 TEXT NOT NULL DEFAULT '',
	pricing_range        TEXT NOT NULL DEFAULT '',
	implementation_weeks INTEGER NOT NULL DEFAULT 0,
	doc                  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS score_results (
	id            TEXT PRIMARY KEY,
	assessment_id TEXT NOT NULL,
	kind          TEXT NOT NULL,
	score         REAL NOT NULL,
	band          TEXT NOT NULL DEFAULT '',
	config_hash   TEXT NOT NULL DEFAULT '',
	payload       TEXT NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_assessments_status ON assessments(status);
CREATE INDEX IF NOT EXISTS idx_gaps_assessment ON gaps(assessment_id);
CREATE INDEX IF NOT EXISTS idx_risks_assessment ON risks(assessment_id);
CREATE INDEX IF NOT EXISTS idx_score_results_lookup ON score_results(assessment_id, kind, created_at);
`

// Migrate creates the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Ping checks the database.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	return t, eris.Wrapf(err, "sqlite: parse time %q", s)
}

func (s *SQLiteStore) SaveAssessment(ctx context.Context, a *model.Assessment) error {
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
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO assessments (id, status, doc, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status, doc = excluded.doc, updated_at = excluded.updated_at`,
		a.ID, string(a.Status), string(doc), formatTime(a.CreatedAt), formatTime(a.UpdatedAt),
	)
	return eris.Wrapf(err, "sqlite: save assessment %s", a.ID)
}

func (s *SQLiteStore) GetAssessment(ctx context.Context, id string) (*model.Assessment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, doc, created_at, updated_at FROM assessments WHERE id = ?`, id)
	a, err := scanAssessment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("assessment", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get assessment %s", id)
	}
	return a, nil
}

func (s *SQLiteStore) ListAssessments(ctx context.Context, filter AssessmentFilter) ([]model.Assessment, error) {
	query := `SELECT id, status, doc, created_at, updated_at FROM assessments WHERE 1=1`
	var args []any
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY id LIMIT ?`
	args = append(args, filter.limit())
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list assessments")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan assessment")
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list assessments iterate")
}

func scanAssessment(row scannable) (*model.Assessment, error) {
	var a model.Assessment
	var status, doc, created, updated string
	if err := row.Scan(&a.ID, &status, &doc, &created, &updated); err != nil {
		return nil, err
	}
	a.Status = model.AssessmentStatus(status)
	if err := unmarshalAssessment(&a, []byte(doc)); err != nil {
		return nil, err
	}
	var err error
	if a.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &a, nil
}

const sqliteGapColumns = `id, assessment_id, title, category, severity, priority, priority_score, estimated_effort, estimated_cost, documentation`

func (s *SQLiteStore) ListGaps(ctx context.Context, assessmentID string) ([]model.Gap, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteGapColumns+` FROM gaps WHERE assessment_id = ? ORDER BY id`, assessmentID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list gaps for %s", assessmentID)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Gap
	for rows.Next() {
		var g model.Gap
		var sev, pri, effort, cost string
		var doc bool
		if err := rows.Scan(&g.ID, &g.AssessmentID, &g.Title, &g.Category, &sev, &pri, &g.PriorityScore, &effort, &cost, &doc); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan gap")
		}
		g.Severity = model.Severity(sev)
		g.Priority = model.Priority(pri)
		g.EstimatedEffort = model.Effort(effort)
		g.EstimatedCost = model.CostRange(cost)
		g.Documentation = doc
		out = append(out, g)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list gaps iterate")
}

func insertGap(ctx context.Context, exec execer, g model.Gap) error {
	_, err := exec.ExecContext(ctx, `
		INSERT INTO gaps (`+sqliteGapColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(assessment_id, id) DO UPDATE SET
			title = excluded.title, category = excluded.category, severity = excluded.severity,
			priority = excluded.priority, priority_score = excluded.priority_score,
			estimated_effort = excluded.estimated_effort, estimated_cost = excluded.estimated_cost,
			documentation = excluded.documentation`,
		g.ID, g.AssessmentID, g.Title, g.Category, string(g.Severity), string(g.Priority), g.PriorityScore,
		string(g.EstimatedEffort), string(g.EstimatedCost), g.Documentation,
	)
	return eris.Wrapf(err, "sqlite: upsert gap %s", g.ID)
}

func (s *SQLiteStore) UpsertGap(ctx context.Context, g model.Gap) error {
	if err := validateGap(g); err != nil {
		return err
	}
	return insertGap(ctx, s.db, g)
}

func (s *SQLiteStore) DeleteGap(ctx context.Context, assessmentID, gapID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM gaps WHERE assessment_id = ? AND id = ?`, assessmentID, gapID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete gap %s", gapID)
	}
	return checkRowsAffected(res, "gap", gapID)
}

// ImportGaps replaces every gap of an assessment in one transaction.
func (s *SQLiteStore) ImportGaps(ctx context.Context, assessmentID string, gaps []model.Gap) (int64, error) {
	for i := range gaps {
		gaps[i].AssessmentID = assessmentID
		if err := validateGap(gaps[i]); err != nil {
			return 0, err
		}
	}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM gaps WHERE assessment_id = ?`, assessmentID); err != nil {
			return eris.Wrapf(err, "sqlite: clear gaps for %s", assessmentID)
		}
		for _, g := range gaps {
			if err := insertGap(ctx, tx, g); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int64(len(gaps)), nil
}

func (s *SQLiteStore) ListRisks(ctx context.Context, assessmentID string) ([]model.Risk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, assessment_id, title, category, risk_level, control_effectiveness FROM risks WHERE assessment_id = ? ORDER BY id`,
		assessmentID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list risks for %s", assessmentID)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Risk
	for rows.Next() {
		var r model.Risk
		var level string
		var eff sql.NullFloat64
		if err := rows.Scan(&r.ID, &r.AssessmentID, &r.Title, &r.Category, &level, &eff); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan risk")
		}
		r.RiskLevel = model.RiskLevel(level)
		if eff.Valid {
			v := eff.Float64
			r.ControlEffectiveness = &v
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list risks iterate")
}

// ImportRisks replaces every risk of an assessment in one transaction.
func (s *SQLiteStore) ImportRisks(ctx context.Context, assessmentID string, risks []model.Risk) (int64, error) {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM risks WHERE assessment_id = ?`, assessmentID); err != nil {
			return eris.Wrapf(err, "sqlite: clear risks for %s", assessmentID)
		}
		for _, r := range risks {
			if r.ID == "" {
				return eris.New("sqlite: risk id is required")
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO risks (id, assessment_id, title, category, risk_level, control_effectiveness) VALUES (?, ?, ?, ?, ?, ?)`,
				r.ID, assessmentID, r.Title, r.Category, string(r.RiskLevel), nullFloat(r.ControlEffectiveness),
			)
			if err != nil {
				return eris.Wrapf(err, "sqlite: insert risk %s", r.ID)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int64(len(risks)), nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func (s *SQLiteStore) ListVendors(ctx context.Context) ([]model.Vendor, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, pricing_range, implementation_weeks, doc FROM vendors ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list vendors")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Vendor
	for rows.Next() {
		var v model.Vendor
		var pricing, doc string
		if err := rows.Scan(&v.ID, &v.Name, &pricing, &v.ImplementationWeeks, &doc); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan vendor")
		}
		v.PricingRange = model.CostRange(pricing)
		if err := unmarshalVendor(&v, []byte(doc)); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list vendors iterate")
}

func upsertVendor(ctx context.Context, exec execer, v model.Vendor) error {
	if err := validateVendor(v); err != nil {
		return err
	}
	doc, err := marshalVendor(v)
	if err != nil {
		return err
	}
	_, err = exec.ExecContext(ctx, `
		INSERT INTO vendors (id, name, pricing_range, implementation_weeks, doc) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, pricing_range = excluded.pricing_range,
			implementation_weeks = excluded.implementation_weeks, doc = excluded.doc`,
		v.ID, v.Name, string(v.PricingRange), v.ImplementationWeeks, string(doc),
	)
	return eris.Wrapf(err, "sqlite: upsert vendor %s", v.ID)
}

func (s *SQLiteStore) UpsertVendor(ctx context.Context, v model.Vendor) error {
	return upsertVendor(ctx, s.db, v)
}

// ImportVendors upserts vendors in one transaction.
func (s *SQLiteStore) ImportVendors(ctx context.Context, vendors []model.Vendor) (int64, error) {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, v := range vendors {
			if err := upsertVendor(ctx, tx, v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int64(len(vendors)), nil
}

func (s *SQLiteStore) SaveScoreResult(ctx context.Context, rec *ScoreRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO score_results (id, assessment_id, kind, score, band, config_hash, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.AssessmentID, string(rec.Kind), rec.Score, rec.Band, rec.ConfigHash, string(rec.Payload), formatTime(rec.CreatedAt),
	)
	return eris.Wrapf(err, "sqlite: save score result for %s", rec.AssessmentID)
}

func (s *SQLiteStore) LatestScoreResult(ctx context.Context, assessmentID string, kind ScoreKind) (*ScoreRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, assessment_id, kind, score, band, config_hash, payload, created_at
		FROM score_results WHERE assessment_id = ? AND kind = ?
		ORDER BY created_at DESC, rowid DESC LIMIT 1`, assessmentID, string(kind))

	var rec ScoreRecord
	var k, payload, created string
	err := row.Scan(&rec.ID, &rec.AssessmentID, &k, &rec.Score, &rec.Band, &rec.ConfigHash, &payload, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("score result", assessmentID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: latest score result for %s", assessmentID)
	}
	rec.Kind = ScoreKind(k)
	rec.Payload = []byte(payload)
	if rec.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	if err := fn(tx); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit tx")
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scannable interface {
	Scan(dest ...any) error
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return notFound(entity, id)
	}
	return nil
}
