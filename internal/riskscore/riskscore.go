// Package riskscore computes the legacy gap/risk component score. Each
// component is an independent pure function returning a value in [0, 100]
// where higher means a stronger posture; Calculate blends them.
package riskscore

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/posture/internal/config"
	"github.com/sells-group/posture/internal/model"
)

const maxScore = 100.0

// Result holds the four component scores and their blend.
type Result struct {
	ComplianceScore    float64         `json:"compliance_score"`
	RiskScore          float64         `json:"risk_score"`
	MaturityScore      float64         `json:"maturity_score"`
	DocumentationScore float64         `json:"documentation_score"`
	OverallRiskScore   int             `json:"overall_risk_score"`
	RiskLevel          model.RiskLevel `json:"risk_level"`
	GapCount           int             `json:"gap_count"`
	RiskCount          int             `json:"risk_count"`
}

func severityPoints(sev model.Severity, p config.SeverityPoints) (float64, error) {
	switch sev {
	case model.SeverityCritical:
		return p.Critical, nil
	case model.SeverityHigh:
		return p.High, nil
	case model.SeverityMedium:
		return p.Medium, nil
	case model.SeverityLow:
		return p.Low, nil
	}
	return 0, eris.Wrapf(model.ErrUnknownValue, "riskscore: severity %q", string(sev))
}

func levelPoints(level model.RiskLevel, p config.SeverityPoints) (float64, error) {
	switch level {
	case model.RiskCritical:
		return p.Critical, nil
	case model.RiskHigh:
		return p.High, nil
	case model.RiskMedium:
		return p.Medium, nil
	case model.RiskLow:
		return p.Low, nil
	}
	return 0, eris.Wrapf(model.ErrUnknownValue, "riskscore: risk level %q", string(level))
}

func floor(v float64) float64 {
	return math.Max(0, math.Min(maxScore, v))
}

// ComplianceScore deducts a fixed number of points per gap by severity.
// No gaps scores 100.
func ComplianceScore(gaps []model.Gap, cfg config.LegacyConfig) (float64, error) {
	score := maxScore
	for _, g := range gaps {
		p, err := severityPoints(g.Severity, cfg.GapDeductions)
		if err != nil {
			return 0, eris.Wrapf(err, "riskscore: gap %s", g.ID)
		}
		score -= p
	}
	return floor(score), nil
}

// RiskScore deducts points per risk by level, then blends in the average
// control effectiveness of the risks that report one. No risks scores 100.
func RiskScore(risks []model.Risk, cfg config.LegacyConfig) (float64, error) {
	if len(risks) == 0 {
		return maxScore, nil
	}
	score := maxScore
	var effSum float64
	var effN int
	for _, r := range risks {
		p, err := levelPoints(r.RiskLevel, cfg.RiskDeductions)
		if err != nil {
			return 0, eris.Wrapf(err, "riskscore: risk %s", r.ID)
		}
		score -= p
		if r.ControlEffectiveness != nil && !math.IsNaN(*r.ControlEffectiveness) {
			effSum += floor(*r.ControlEffectiveness)
			effN++
		}
	}
	score = floor(score)
	if effN == 0 {
		return score, nil
	}
	w := cfg.ControlEffectivenessWeight
	return floor(score*(1-w) + (effSum/float64(effN))*w), nil
}

// MaturityScore deducts for foundational (critical, high) and advanced
// (medium, low) findings across both gaps and risks.
func MaturityScore(gaps []model.Gap, risks []model.Risk, cfg config.LegacyConfig) (float64, error) {
	score := maxScore
	for _, g := range gaps {
		p, err := severityPoints(g.Severity, cfg.MaturityDeductions)
		if err != nil {
			return 0, eris.Wrapf(err, "riskscore: gap %s", g.ID)
		}
		score -= p
	}
	for _, r := range risks {
		p, err := levelPoints(r.RiskLevel, cfg.MaturityDeductions)
		if err != nil {
			return 0, eris.Wrapf(err, "riskscore: risk %s", r.ID)
		}
		score -= p
	}
	return floor(score), nil
}

// IsDocumentationGap reports whether a gap concerns documentation, either
// by flag or by a configured category.
func IsDocumentationGap(g model.Gap, cfg config.LegacyConfig) bool {
	if g.Documentation {
		return true
	}
	cat := model.NormalizeKey(g.Category)
	for _, c := range cfg.DocumentationCategories {
		if model.NormalizeKey(c) == cat {
			return true
		}
	}
	return false
}

// DocumentationScore deducts only for documentation gaps.
func DocumentationScore(gaps []model.Gap, cfg config.LegacyConfig) (float64, error) {
	score := maxScore
	for _, g := range gaps {
		if !IsDocumentationGap(g, cfg) {
			continue
		}
		p, err := severityPoints(g.Severity, cfg.DocumentationDeductions)
		if err != nil {
			return 0, eris.Wrapf(err, "riskscore: gap %s", g.ID)
		}
		score -= p
	}
	return floor(score), nil
}

// LevelFor maps a blended score onto a risk level using the overall score
// band thresholds.
func LevelFor(score float64, b config.BandThresholds) model.RiskLevel {
	switch {
	case score >= b.Low:
		return model.RiskLow
	case score >= b.Medium:
		return model.RiskMedium
	case score >= b.High:
		return model.RiskHigh
	default:
		return model.RiskCritical
	}
}

// Calculate computes every component and blends them with the configured
// weights, rounding to the nearest integer.
func Calculate(gaps []model.Gap, risks []model.Risk, cfg config.LegacyConfig, bands config.BandThresholds) (Result, error) {
	var res Result
	var err error
	if res.ComplianceScore, err = ComplianceScore(gaps, cfg); err != nil {
		return Result{}, err
	}
	if res.RiskScore, err = RiskScore(risks, cfg); err != nil {
		return Result{}, err
	}
	if res.MaturityScore, err = MaturityScore(gaps, risks, cfg); err != nil {
		return Result{}, err
	}
	if res.DocumentationScore, err = DocumentationScore(gaps, cfg); err != nil {
		return Result{}, err
	}

	blend := res.ComplianceScore*cfg.ComplianceWeight +
		res.RiskScore*cfg.RiskWeight +
		res.MaturityScore*cfg.MaturityWeight +
		res.DocumentationScore*cfg.DocumentationWeight
	res.OverallRiskScore = int(math.Round(floor(blend)))
	res.RiskLevel = LevelFor(float64(res.OverallRiskScore), bands)
	res.GapCount = len(gaps)
	res.RiskCount = len(risks)
	return res, nil
}
