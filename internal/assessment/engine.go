// Package assessment ties the store, the scorers, the strategy matrix
// generator and vendor matching together behind one Engine.
package assessment

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/posture/internal/config"
	"github.com/sells-group/posture/internal/fixture"
	"github.com/sells-group/posture/internal/matching"
	"github.com/sells-group/posture/internal/model"
	"github.com/sells-group/posture/internal/riskscore"
	"github.com/sells-group/posture/internal/scorer"
	"github.com/sells-group/posture/internal/store"
	"github.com/sells-group/posture/internal/strategy"
)

// Engine runs scoring, matrix and matching operations against a store.
// Every gap or vendor mutation made through it invalidates the affected
// cached matrices before returning.
type Engine struct {
	store     store.Store
	scorer    *scorer.Scorer
	generator *strategy.Generator
	cfg       *config.Config

	legacyHash string
}

// NewEngine creates an Engine. A nil cache disables matrix caching.
func NewEngine(st store.Store, cache strategy.Cache, cfg *config.Config) *Engine {
	legacyHash := scorer.ConfigHash(struct {
		Legacy config.LegacyConfig
		Bands  config.BandThresholds
	}{cfg.Legacy, cfg.Scoring.Bands})

	return &Engine{
		store:      st,
		scorer:     scorer.NewScorer(cfg.Scoring),
		generator:  strategy.NewGenerator(st, cache, cfg.Strategy),
		cfg:        cfg,
		legacyHash: legacyHash,
	}
}

// Ping checks the backing store.
func (e *Engine) Ping(ctx context.Context) error {
	return eris.Wrap(e.store.Ping(ctx), "assessment: ping store")
}

// LegacyResult is a legacy score with the hash of the policy that produced it.
type LegacyResult struct {
	AssessmentID string `json:"assessment_id"`
	riskscore.Result
	ConfigHash string `json:"config_hash"`
}

// Score computes and records the weighted score of an assessment.
func (e *Engine) Score(ctx context.Context, assessmentID string) (*scorer.Result, error) {
	a, err := e.store.GetAssessment(ctx, assessmentID)
	if err != nil {
		return nil, eris.Wrap(err, "assessment: load")
	}
	res, err := e.scorer.Score(a)
	if err != nil {
		return nil, err
	}
	if err := e.record(ctx, store.ScoreKindWeighted, assessmentID, res.OverallScore, string(res.RiskBand), res.ConfigHash, res); err != nil {
		return nil, err
	}
	return res, nil
}

// LegacyScore computes and records the gap/risk component score.
func (e *Engine) LegacyScore(ctx context.Context, assessmentID string) (*LegacyResult, error) {
	if _, err := e.store.GetAssessment(ctx, assessmentID); err != nil {
		return nil, eris.Wrap(err, "assessment: load")
	}
	gaps, err := e.store.ListGaps(ctx, assessmentID)
	if err != nil {
		return nil, eris.Wrap(err, "assessment: list gaps")
	}
	risks, err := e.store.ListRisks(ctx, assessmentID)
	if err != nil {
		return nil, eris.Wrap(err, "assessment: list risks")
	}
	r, err := riskscore.Calculate(gaps, risks, e.cfg.Legacy, e.cfg.Scoring.Bands)
	if err != nil {
		return nil, eris.Wrapf(err, "assessment: legacy score %s", assessmentID)
	}
	out := &LegacyResult{
		AssessmentID: assessmentID,
		Result:       r,
		ConfigHash:   e.legacyHash,
	}
	if err := e.record(ctx, store.ScoreKindLegacy, assessmentID, float64(r.OverallRiskScore), string(r.RiskLevel), out.ConfigHash, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) record(ctx context.Context, kind store.ScoreKind, assessmentID string, score float64, band, hash string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrap(err, "assessment: marshal score result")
	}
	rec := &store.ScoreRecord{
		AssessmentID: assessmentID,
		Kind:         kind,
		Score:        score,
		Band:         band,
		ConfigHash:   hash,
		Payload:      data,
	}
	if err := e.store.SaveScoreResult(ctx, rec); err != nil {
		return eris.Wrap(err, "assessment: record score")
	}
	zap.L().Debug("assessment: score recorded",
		zap.String("assessment_id", assessmentID),
		zap.String("kind", string(kind)),
		zap.Float64("score", score),
	)
	return nil
}

// StrategyMatrix returns the (possibly cached) matrix of an assessment.
func (e *Engine) StrategyMatrix(ctx context.Context, assessmentID string) (*strategy.Matrix, error) {
	if _, err := e.store.GetAssessment(ctx, assessmentID); err != nil {
		return nil, eris.Wrap(err, "assessment: load")
	}
	return e.generator.Generate(ctx, assessmentID)
}

// InvalidateMatrix drops the cached matrix of an assessment.
func (e *Engine) InvalidateMatrix(ctx context.Context, assessmentID string) error {
	return e.generator.Invalidate(ctx, assessmentID)
}

// Matches is the vendor matching output for an assessment.
type Matches struct {
	AssessmentID string                      `json:"assessment_id"`
	Overall      []matching.VendorMatchScore `json:"overall"`
	Buckets      *matching.BucketMatches     `json:"buckets"`
	Insights     []matching.Insight          `json:"insights,omitempty"`
}

// VendorMatches ranks vendors against all gaps and per matrix bucket. A
// limit <= 0 returns every vendor. Insights compare the top two overall.
func (e *Engine) VendorMatches(ctx context.Context, assessmentID string, limit int) (*Matches, error) {
	a, err := e.store.GetAssessment(ctx, assessmentID)
	if err != nil {
		return nil, eris.Wrap(err, "assessment: load")
	}
	gaps, err := e.store.ListGaps(ctx, assessmentID)
	if err != nil {
		return nil, eris.Wrap(err, "assessment: list gaps")
	}
	vendors, err := e.store.ListVendors(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "assessment: list vendors")
	}

	overall, err := matching.MatchVendors(vendors, a.Organization, a.Priorities, gaps, e.cfg.Matching, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "assessment: match vendors for %s", assessmentID)
	}
	m, err := e.generator.Generate(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	buckets, err := matching.MatchBuckets(m, vendors, a.Organization, a.Priorities, e.cfg.Matching, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "assessment: match buckets for %s", assessmentID)
	}

	out := &Matches{AssessmentID: assessmentID, Overall: overall, Buckets: buckets}
	if len(overall) >= 2 {
		out.Insights = matching.Insights(overall[0], overall[1], e.cfg.Matching.Insights)
	}
	return out, nil
}

// RecordGap validates and stores a gap, then invalidates its matrix.
func (e *Engine) RecordGap(ctx context.Context, g model.Gap) error {
	sev, err := model.ParseSeverity(string(g.Severity))
	if err != nil {
		return eris.Wrapf(err, "assessment: gap %s", g.ID)
	}
	g.Severity = sev
	if g.EstimatedEffort, err = model.ParseEffort(string(g.EstimatedEffort)); err != nil {
		return eris.Wrapf(err, "assessment: gap %s", g.ID)
	}
	if g.EstimatedCost, err = model.ParseCostRange(string(g.EstimatedCost)); err != nil {
		return eris.Wrapf(err, "assessment: gap %s", g.ID)
	}
	if _, err := e.store.GetAssessment(ctx, g.AssessmentID); err != nil {
		return eris.Wrap(err, "assessment: load")
	}
	if err := e.store.UpsertGap(ctx, g); err != nil {
		return eris.Wrap(err, "assessment: record gap")
	}
	return e.generator.Invalidate(ctx, g.AssessmentID)
}

// RemoveGap deletes a gap, then invalidates its matrix.
func (e *Engine) RemoveGap(ctx context.Context, assessmentID, gapID string) error {
	if err := e.store.DeleteGap(ctx, assessmentID, gapID); err != nil {
		return eris.Wrap(err, "assessment: remove gap")
	}
	return e.generator.Invalidate(ctx, assessmentID)
}

// RecordVendor stores a vendor. Vendor coverage feeds every matrix, so all
// cached matrices are dropped.
func (e *Engine) RecordVendor(ctx context.Context, v model.Vendor) error {
	if err := v.Normalize(); err != nil {
		return eris.Wrapf(err, "assessment: vendor %s", v.ID)
	}
	if err := e.store.UpsertVendor(ctx, v); err != nil {
		return eris.Wrap(err, "assessment: record vendor")
	}
	return e.generator.InvalidateAll(ctx)
}

// Import applies a fixture bundle and drops the matrices it affects.
func (e *Engine) Import(ctx context.Context, b *fixture.Bundle) (fixture.Counts, error) {
	c, err := b.Apply(ctx, e.store)
	if err != nil {
		return c, err
	}
	if c.Vendors > 0 {
		return c, e.generator.InvalidateAll(ctx)
	}
	return c, e.generator.Invalidate(ctx, b.Assessment.ID)
}
