package matching

import (
	"fmt"
	"math"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/posture/internal/config"
	"github.com/sells-group/posture/internal/model"
	"github.com/sells-group/posture/internal/strategy"
)

// BaseScore holds the four base components, max 100 with default policy.
type BaseScore struct {
	RiskAreaCoverage   float64 `json:"risk_area_coverage"`
	SizeFit            float64 `json:"size_fit"`
	GeographicCoverage float64 `json:"geographic_coverage"`
	PriceFit           float64 `json:"price_fit"`
	Total              float64 `json:"total"`
}

// VendorMatchScore is a vendor's full score against one set of gaps.
type VendorMatchScore struct {
	VendorID          string    `json:"vendor_id"`
	VendorName        string    `json:"vendor_name"`
	Base              BaseScore `json:"base"`
	Boost             Boost     `json:"boost"`
	TotalScore        float64   `json:"total_score"`
	CoveredCategories []string  `json:"covered_categories,omitempty"`
}

// Score computes base plus boost for one vendor.
func Score(v *model.Vendor, org model.Organization, p model.AssessmentPriorities, gaps []model.Gap, cfg config.MatchingConfig) (VendorMatchScore, error) {
	price, err := PriceFit(v, p.BudgetRange, cfg)
	if err != nil {
		return VendorMatchScore{}, err
	}
	size, err := SizeFit(v, org.Size, cfg)
	if err != nil {
		return VendorMatchScore{}, err
	}
	base := BaseScore{
		RiskAreaCoverage:   RiskAreaCoverage(v, gaps, cfg),
		SizeFit:            size,
		GeographicCoverage: GeographicCoverage(v, p.Jurisdictions, cfg),
		PriceFit:           price,
	}
	base.Total = base.RiskAreaCoverage + base.SizeFit + base.GeographicCoverage + base.PriceFit

	boost, err := PriorityBoost(v, p, cfg)
	if err != nil {
		return VendorMatchScore{}, err
	}
	return VendorMatchScore{
		VendorID:          v.ID,
		VendorName:        v.Name,
		Base:              base,
		Boost:             boost,
		TotalScore:        base.Total + boost.Total,
		CoveredCategories: coveredCategories(v, model.Categories(gaps)),
	}, nil
}

// Rank sorts scores by total, highest first, with ties broken by vendor ID.
func Rank(scores []VendorMatchScore) {
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].TotalScore != scores[j].TotalScore {
			return scores[i].TotalScore > scores[j].TotalScore
		}
		return scores[i].VendorID < scores[j].VendorID
	})
}

// MatchVendors scores and ranks every vendor. A positive limit truncates.
func MatchVendors(vendors []model.Vendor, org model.Organization, p model.AssessmentPriorities, gaps []model.Gap, cfg config.MatchingConfig, limit int) ([]VendorMatchScore, error) {
	out := make([]VendorMatchScore, 0, len(vendors))
	for i := range vendors {
		s, err := Score(&vendors[i], org, p, gaps, cfg)
		if err != nil {
			return nil, eris.Wrapf(err, "matching: vendor %s", vendors[i].ID)
		}
		out = append(out, s)
	}
	Rank(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// BucketMatches holds ranked vendors for each strategy timeframe.
type BucketMatches struct {
	AssessmentID string             `json:"assessment_id"`
	Immediate    []VendorMatchScore `json:"immediate"`
	NearTerm     []VendorMatchScore `json:"near_term"`
	Strategic    []VendorMatchScore `json:"strategic"`
}

// MatchBuckets ranks vendors against the gaps of each matrix bucket.
func MatchBuckets(m *strategy.Matrix, vendors []model.Vendor, org model.Organization, p model.AssessmentPriorities, cfg config.MatchingConfig, limit int) (*BucketMatches, error) {
	out := &BucketMatches{AssessmentID: m.AssessmentID}
	targets := []*[]VendorMatchScore{&out.Immediate, &out.NearTerm, &out.Strategic}
	for i, b := range m.Buckets() {
		scores, err := MatchVendors(vendors, org, p, b.Gaps, cfg, limit)
		if err != nil {
			return nil, eris.Wrapf(err, "matching: %s bucket", b.Timeframe)
		}
		*targets[i] = scores
	}
	return out, nil
}

// InsightKind names a differentiator between two vendors.
type InsightKind string

const (
	InsightTotal    InsightKind = "total_score"
	InsightCoverage InsightKind = "coverage"
	InsightPrice    InsightKind = "price"
	InsightBoost    InsightKind = "priority_alignment"
)

// Insight is a human-readable differentiator between two vendors.
type Insight struct {
	Kind     InsightKind `json:"kind"`
	LeaderID string      `json:"leader_id"`
	Delta    float64     `json:"delta"`
	Message  string      `json:"message"`
}

// Insights compares two scored vendors and reports each difference that
// reaches its configured threshold.
func Insights(a, b VendorMatchScore, cfg config.InsightThresholds) []Insight {
	var out []Insight

	hi, lo := a, b
	if lo.TotalScore > hi.TotalScore {
		hi, lo = lo, hi
	}
	if hi.TotalScore > lo.TotalScore {
		pct := 100.0
		if lo.TotalScore > 0 {
			pct = (hi.TotalScore - lo.TotalScore) / lo.TotalScore * 100
		}
		if pct >= cfg.TotalScorePct {
			out = append(out, Insight{
				Kind:     InsightTotal,
				LeaderID: hi.VendorID,
				Delta:    round1(pct),
				Message:  fmt.Sprintf("%s scores %.0f%% higher overall than %s", name(hi), pct, name(lo)),
			})
		}
	}

	if ins, ok := pointInsight(InsightCoverage, a, b, a.Base.RiskAreaCoverage, b.Base.RiskAreaCoverage, cfg.CoveragePoints,
		"%s covers more of your gap categories than %s (+%.0f points)"); ok {
		out = append(out, ins)
	}
	if ins, ok := pointInsight(InsightPrice, a, b, a.Base.PriceFit, b.Base.PriceFit, cfg.PricePoints,
		"%s fits your budget better than %s (+%.0f points)"); ok {
		out = append(out, ins)
	}
	if ins, ok := pointInsight(InsightBoost, a, b, a.Boost.Total, b.Boost.Total, cfg.BoostPoints,
		"%s aligns better with your priorities than %s (+%.0f points)"); ok {
		out = append(out, ins)
	}
	return out
}

func pointInsight(kind InsightKind, a, b VendorMatchScore, av, bv, threshold float64, format string) (Insight, bool) {
	delta := math.Abs(av - bv)
	if delta == 0 || delta < threshold {
		return Insight{}, false
	}
	leader, other := a, b
	if bv > av {
		leader, other = b, a
	}
	return Insight{
		Kind:     kind,
		LeaderID: leader.VendorID,
		Delta:    round1(delta),
		Message:  fmt.Sprintf(format, name(leader), name(other), delta),
	}, true
}

func name(s VendorMatchScore) string {
	if s.VendorName != "" {
		return s.VendorName
	}
	return s.VendorID
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
