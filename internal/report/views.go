package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/sells-group/posture/internal/assessment"
	"github.com/sells-group/posture/internal/matching"
	"github.com/sells-group/posture/internal/scorer"
	"github.com/sells-group/posture/internal/strategy"
)

// WriteScore renders a weighted score: a summary row and one row per section.
func WriteScore(w io.Writer, res *scorer.Result, f Format, opts Options) error {
	summary := sheet{
		Title:    "Score " + res.AssessmentID,
		Header:   []string{"Assessment", "Overall", "Band", "Methodology", "Answered", "Questions", "Config"},
		labelCol: 2,
		Rows: [][]string{{
			res.AssessmentID, f1(res.OverallScore), string(res.RiskBand), string(res.Methodology),
			strconv.Itoa(res.AnsweredQuestions), strconv.Itoa(res.TotalQuestions), res.ConfigHash,
		}},
	}
	sections := sheet{
		Title:    "Sections",
		Header:   []string{"Section", "Name", "Weight", "Score (0-5)", "Scaled", "Answered", "Methodology"},
		labelCol: -1,
	}
	for _, s := range res.SectionScores {
		sections.Rows = append(sections.Rows, []string{
			s.SectionID, s.Name, strconv.FormatFloat(s.Weight, 'f', -1, 64), f2(s.Score), f1(s.ScaledScore),
			strconv.Itoa(s.Answered) + "/" + strconv.Itoa(s.Total), string(s.Methodology),
		})
	}
	sheets := []sheet{summary, sections}
	if len(res.Warnings) > 0 {
		warn := sheet{Title: "Warnings", Header: []string{"Warning"}, labelCol: -1}
		for _, msg := range res.Warnings {
			warn.Rows = append(warn.Rows, []string{msg})
		}
		sheets = append(sheets, warn)
	}
	return render(w, f, opts, res, sheets...)
}

// WriteLegacy renders the legacy component scores.
func WriteLegacy(w io.Writer, res *assessment.LegacyResult, f Format, opts Options) error {
	s := sheet{
		Title: "Legacy score " + res.AssessmentID,
		Header: []string{
			"Assessment", "Compliance", "Risk", "Maturity", "Documentation",
			"Overall", "Level", "Gaps", "Risks",
		},
		labelCol: 6,
		Rows: [][]string{{
			res.AssessmentID, f1(res.ComplianceScore), f1(res.RiskScore), f1(res.MaturityScore),
			f1(res.DocumentationScore), strconv.Itoa(res.OverallRiskScore), string(res.RiskLevel),
			strconv.Itoa(res.GapCount), strconv.Itoa(res.RiskCount),
		}},
	}
	return render(w, f, opts, res, s)
}

// WriteMatrix renders the strategy matrix: one row per bucket, then the
// gaps of every bucket and any excluded gaps.
func WriteMatrix(w io.Writer, m *strategy.Matrix, f Format, opts Options) error {
	buckets := sheet{
		Title:    "Strategy matrix " + m.AssessmentID,
		Header:   []string{"Timeframe", "Gaps", "Categories", "Small", "Medium", "Large", "Unspecified", "Estimated cost", "Top vendors"},
		labelCol: 0,
	}
	gaps := sheet{
		Title:    "Gaps",
		Header:   []string{"Timeframe", "Gap", "Title", "Category", "Severity", "Priority score", "Effort", "Cost"},
		labelCol: 4,
	}
	for _, b := range m.Buckets() {
		vendors := make([]string, 0, len(b.Vendors))
		for _, v := range b.Vendors {
			vendors = append(vendors, v.Name+" ("+strconv.Itoa(v.CoverageCount)+")")
		}
		d := b.EffortDistribution
		buckets.Rows = append(buckets.Rows, []string{
			string(b.Timeframe), strconv.Itoa(b.GapCount), strings.Join(b.Categories, ", "),
			strconv.Itoa(d.Small), strconv.Itoa(d.Medium), strconv.Itoa(d.Large), strconv.Itoa(d.Unspecified),
			b.EstimatedCostRange, strings.Join(vendors, ", "),
		})
		for _, g := range b.Gaps {
			gaps.Rows = append(gaps.Rows, []string{
				string(b.Timeframe), g.ID, g.Title, g.Category, string(g.Severity),
				strconv.Itoa(g.PriorityScore), string(g.EstimatedEffort), string(g.EstimatedCost),
			})
		}
	}
	sheets := []sheet{buckets, gaps}
	if len(m.InvalidGaps) > 0 {
		inv := sheet{Title: "Excluded gaps", Header: []string{"Gap", "Priority score", "Reason"}, labelCol: -1}
		for _, g := range m.InvalidGaps {
			inv.Rows = append(inv.Rows, []string{g.GapID, strconv.Itoa(g.PriorityScore), g.Reason})
		}
		sheets = append(sheets, inv)
	}
	return render(w, f, opts, m, sheets...)
}

// WriteMatches renders vendor matches ranked overall, then any insights.
func WriteMatches(w io.Writer, res *assessment.Matches, f Format, opts Options) error {
	sheets := []sheet{matchSheet("Vendor matches "+res.AssessmentID, res.Overall)}
	if res.Buckets != nil {
		sheets = append(sheets,
			matchSheet("Immediate", res.Buckets.Immediate),
			matchSheet("Near term", res.Buckets.NearTerm),
			matchSheet("Strategic", res.Buckets.Strategic),
		)
	}
	if len(res.Insights) > 0 {
		ins := sheet{Title: "Insights", Header: []string{"Kind", "Leader", "Delta", "Insight"}, labelCol: -1}
		for _, i := range res.Insights {
			ins.Rows = append(ins.Rows, []string{string(i.Kind), i.LeaderID, f1(i.Delta), i.Message})
		}
		sheets = append(sheets, ins)
	}
	return render(w, f, opts, res, sheets...)
}

func matchSheet(title string, scores []matching.VendorMatchScore) sheet {
	s := sheet{
		Title: title,
		Header: []string{
			"Rank", "Vendor", "Name", "Total", "Base", "Risk area", "Size", "Geo", "Price", "Boost", "Covers",
		},
		labelCol: -1,
	}
	for i, m := range scores {
		s.Rows = append(s.Rows, []string{
			strconv.Itoa(i + 1), m.VendorID, m.VendorName, f1(m.TotalScore), f1(m.Base.Total),
			f1(m.Base.RiskAreaCoverage), f1(m.Base.SizeFit), f1(m.Base.GeographicCoverage), f1(m.Base.PriceFit),
			f1(m.Boost.Total), strings.Join(m.CoveredCategories, ", "),
		})
	}
	return s
}

// WriteBatch renders a batch scoring summary.
func WriteBatch(w io.Writer, sum *assessment.BatchSummary, f Format, opts Options) error {
	s := sheet{
		Title:    "Batch: " + strconv.Itoa(sum.Succeeded) + " scored, " + strconv.Itoa(sum.Failed) + " failed",
		Header:   []string{"Assessment", "Overall", "Band", "Methodology", "Error"},
		labelCol: 2,
	}
	for _, it := range sum.Items {
		if it.Result == nil {
			s.Rows = append(s.Rows, []string{it.AssessmentID, "", "", "", it.Error})
			continue
		}
		s.Rows = append(s.Rows, []string{
			it.AssessmentID, f1(it.Result.OverallScore), string(it.Result.RiskBand), string(it.Result.Methodology), "",
		})
	}
	return render(w, f, opts, sum, s)
}

func f2(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
