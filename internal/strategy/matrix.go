// Package strategy partitions an assessment's gaps into remediation
// timeframes and ranks vendors by the gap categories they cover.
package strategy

import (
	"fmt"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/posture/internal/config"
	"github.com/sells-group/posture/internal/cost"
	"github.com/sells-group/posture/internal/model"
)

// ErrPriorityScoreRange marks a gap whose priority score falls outside 1-10.
var ErrPriorityScoreRange = eris.New("priority score out of range")

// Timeframe names a remediation bucket.
type Timeframe string

const (
	TimeframeImmediate Timeframe = "immediate"
	TimeframeNearTerm  Timeframe = "near_term"
	TimeframeStrategic Timeframe = "strategic"
)

// Priority score bounds per timeframe, inclusive.
const (
	ImmediateMin = 8
	NearTermMin  = 4
	StrategicMin = 1
	MaxPriority  = 10
)

// Classify returns the timeframe for a priority score.
func Classify(score int) (Timeframe, error) {
	switch {
	case score >= ImmediateMin && score <= MaxPriority:
		return TimeframeImmediate, nil
	case score >= NearTermMin && score < ImmediateMin:
		return TimeframeNearTerm, nil
	case score >= StrategicMin && score < NearTermMin:
		return TimeframeStrategic, nil
	}
	return "", eris.Wrapf(ErrPriorityScoreRange, "strategy: priority score %d", score)
}

// EffortDistribution counts a bucket's gaps by estimated effort.
type EffortDistribution struct {
	Small       int `json:"small"`
	Medium      int `json:"medium"`
	Large       int `json:"large"`
	Unspecified int `json:"unspecified,omitempty"`
}

// VendorCoverage is a vendor's coverage of a bucket's gap categories.
type VendorCoverage struct {
	VendorID          string   `json:"vendor_id"`
	Name              string   `json:"name"`
	CoveredCategories []string `json:"covered_categories"`
	CoverageCount     int      `json:"coverage_count"`
}

// Bucket is one timeframe of the matrix.
type Bucket struct {
	Timeframe          Timeframe          `json:"timeframe"`
	GapCount           int                `json:"gap_count"`
	Gaps               []model.Gap        `json:"gaps,omitempty"`
	Categories         []string           `json:"categories,omitempty"`
	EffortDistribution EffortDistribution `json:"effort_distribution"`
	EstimatedCost      cost.Estimate      `json:"estimated_cost"`
	EstimatedCostRange string             `json:"estimated_cost_range"`
	Vendors            []VendorCoverage   `json:"vendors,omitempty"`
}

// InvalidGap is a gap excluded from every bucket.
type InvalidGap struct {
	GapID         string `json:"gap_id"`
	PriorityScore int    `json:"priority_score"`
	Reason        string `json:"reason"`
}

// Matrix is the full strategy matrix for an assessment. It carries no
// timestamps so a cached matrix equals a freshly built one.
type Matrix struct {
	AssessmentID string       `json:"assessment_id"`
	Immediate    Bucket       `json:"immediate"`
	NearTerm     Bucket       `json:"near_term"`
	Strategic    Bucket       `json:"strategic"`
	InvalidGaps  []InvalidGap `json:"invalid_gaps,omitempty"`
}

// Buckets returns the three buckets in timeline order.
func (m *Matrix) Buckets() []*Bucket {
	return []*Bucket{&m.Immediate, &m.NearTerm, &m.Strategic}
}

// Partition splits gaps by priority score. Gaps outside 1-10 are reported
// in invalid and appear in no bucket.
func Partition(gaps []model.Gap) (immediate, nearTerm, strategic []model.Gap, invalid []InvalidGap) {
	for _, g := range gaps {
		tf, err := Classify(g.PriorityScore)
		if err != nil {
			invalid = append(invalid, InvalidGap{
				GapID:         g.ID,
				PriorityScore: g.PriorityScore,
				Reason:        fmt.Sprintf("%s: %d not in [%d, %d]", ErrPriorityScoreRange.Error(), g.PriorityScore, StrategicMin, MaxPriority),
			})
			continue
		}
		switch tf {
		case TimeframeImmediate:
			immediate = append(immediate, g)
		case TimeframeNearTerm:
			nearTerm = append(nearTerm, g)
		case TimeframeStrategic:
			strategic = append(strategic, g)
		}
	}
	return immediate, nearTerm, strategic, invalid
}

// Distribution counts gaps by effort. Gaps without an estimate are counted
// as unspecified; an unknown effort is an error.
func Distribution(gaps []model.Gap) (EffortDistribution, error) {
	var d EffortDistribution
	for _, g := range gaps {
		switch g.EstimatedEffort {
		case model.EffortSmall:
			d.Small++
		case model.EffortMedium:
			d.Medium++
		case model.EffortLarge:
			d.Large++
		case "":
			d.Unspecified++
		default:
			return EffortDistribution{}, eris.Wrapf(model.ErrUnknownValue, "strategy: gap %s effort %q", g.ID, string(g.EstimatedEffort))
		}
	}
	return d, nil
}

// RankVendors orders vendors by the number of distinct gap categories they
// cover, descending, with ties broken by vendor ID. Vendors covering nothing
// are omitted. A positive limit truncates the list.
func RankVendors(gaps []model.Gap, vendors []model.Vendor, limit int) []VendorCoverage {
	cats := model.Categories(gaps)
	if len(cats) == 0 {
		return nil
	}
	var out []VendorCoverage
	for i := range vendors {
		v := &vendors[i]
		set := v.CategorySet()
		var covered []string
		for _, c := range cats {
			if set[c] {
				covered = append(covered, c)
			}
		}
		if len(covered) == 0 {
			continue
		}
		out = append(out, VendorCoverage{
			VendorID:          v.ID,
			Name:              v.Name,
			CoveredCategories: covered,
			CoverageCount:     len(covered),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CoverageCount != out[j].CoverageCount {
			return out[i].CoverageCount > out[j].CoverageCount
		}
		return out[i].VendorID < out[j].VendorID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// sortGaps orders a bucket's gaps by priority score, highest first, then ID.
func sortGaps(gaps []model.Gap) {
	sort.SliceStable(gaps, func(i, j int) bool {
		if gaps[i].PriorityScore != gaps[j].PriorityScore {
			return gaps[i].PriorityScore > gaps[j].PriorityScore
		}
		return gaps[i].ID < gaps[j].ID
	})
}

func buildBucket(tf Timeframe, gaps []model.Gap, vendors []model.Vendor, calc *cost.Calculator, limit int) (Bucket, error) {
	sortGaps(gaps)
	b := Bucket{
		Timeframe:  tf,
		GapCount:   len(gaps),
		Gaps:       gaps,
		Categories: model.Categories(gaps),
	}
	var err error
	if b.EffortDistribution, err = Distribution(gaps); err != nil {
		return Bucket{}, err
	}
	if b.EstimatedCost, err = calc.Gaps(gaps); err != nil {
		return Bucket{}, eris.Wrapf(err, "strategy: %s cost", tf)
	}
	b.EstimatedCostRange = b.EstimatedCost.Label
	b.Vendors = RankVendors(gaps, vendors, limit)
	return b, nil
}

// Build computes the matrix for an assessment. It is pure: the same gaps and
// vendors always produce an equal matrix.
func Build(assessmentID string, gaps []model.Gap, vendors []model.Vendor, cfg config.StrategyConfig) (*Matrix, error) {
	calc := cost.NewCalculator(cfg)
	imm, near, strat, invalid := Partition(gaps)

	m := &Matrix{AssessmentID: assessmentID, InvalidGaps: invalid}
	var err error
	if m.Immediate, err = buildBucket(TimeframeImmediate, imm, vendors, calc, cfg.MaxVendorsPerBucket); err != nil {
		return nil, err
	}
	if m.NearTerm, err = buildBucket(TimeframeNearTerm, near, vendors, calc, cfg.MaxVendorsPerBucket); err != nil {
		return nil, err
	}
	if m.Strategic, err = buildBucket(TimeframeStrategic, strat, vendors, calc, cfg.MaxVendorsPerBucket); err != nil {
		return nil, err
	}
	return m, nil
}
