package scorer

import (
	"fmt"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/posture/internal/config"
	"github.com/sells-group/posture/internal/model"
)

// Methodology tells consumers whether a score covers every question.
type Methodology string

const (
	MethodologyComplete Methodology = "complete"
	MethodologyPartial  Methodology = "partial"
)

// RiskBand is the qualitative label for an overall score.
type RiskBand string

const (
	BandLow      RiskBand = "Low"
	BandMedium   RiskBand = "Medium"
	BandHigh     RiskBand = "High"
	BandCritical RiskBand = "Critical"
)

// QuestionScore is the evidence-scaled score of one answer.
type QuestionScore struct {
	QuestionID  string             `json:"question_id"`
	Weight      float64            `json:"weight"`
	RawScore    float64            `json:"raw_score"`
	Tier        model.EvidenceTier `json:"tier"`
	Multiplier  float64            `json:"multiplier"`
	ScaledScore float64            `json:"scaled_score"`
}

// SectionScore aggregates the answered questions of a section.
type SectionScore struct {
	SectionID   string          `json:"section_id"`
	Name        string          `json:"name,omitempty"`
	Weight      float64         `json:"weight"`
	Score       float64         `json:"score"`        // 0-5
	ScaledScore float64         `json:"scaled_score"` // 0-100
	Answered    int             `json:"answered"`
	Total       int             `json:"total"`
	Methodology Methodology     `json:"methodology"`
	Questions   []QuestionScore `json:"questions"`
}

// Overall is the template-level aggregate.
type Overall struct {
	Score            float64     `json:"overall_score"`
	RiskBand         RiskBand    `json:"risk_band"`
	Methodology      Methodology `json:"methodology"`
	AnsweredSections int         `json:"answered_sections"`
}

// Result is the full weighted scoring output for an assessment.
type Result struct {
	AssessmentID      string         `json:"assessment_id"`
	OverallScore      float64        `json:"overall_score"`
	RiskBand          RiskBand       `json:"risk_band"`
	Methodology       Methodology    `json:"methodology"`
	SectionScores     []SectionScore `json:"section_scores"`
	AnsweredQuestions int            `json:"answered_questions"`
	TotalQuestions    int            `json:"total_questions"`
	Warnings          []string       `json:"warnings,omitempty"`
	ConfigHash        string         `json:"config_hash"`
}

// ScoreQuestion scales a raw 0-5 quality score by the multiplier of the best
// evidence tier among the answer's linked documents.
func ScoreQuestion(questionID string, raw float64, tiers []model.EvidenceTier, m config.TierMultipliers) (QuestionScore, error) {
	if math.IsNaN(raw) || raw < 0 || raw > MaxRawScore {
		return QuestionScore{}, eris.Errorf("scorer: question %s raw quality score %v outside [0, %v]", questionID, raw, MaxRawScore)
	}
	tier, err := BestTier(tiers)
	if err != nil {
		return QuestionScore{}, eris.Wrapf(err, "scorer: question %s", questionID)
	}
	mul, err := TierMultiplier(tier, m)
	if err != nil {
		return QuestionScore{}, err
	}
	return QuestionScore{
		QuestionID:  questionID,
		RawScore:    raw,
		Tier:        tier,
		Multiplier:  mul,
		ScaledScore: raw * mul,
	}, nil
}

// AggregateSection computes the weighted mean of the answered questions in a
// section. Unanswered questions are excluded from both numerator and
// denominator. scores is keyed by question ID; entries for questions outside
// the section are ignored.
func AggregateSection(section model.Section, scores map[string]QuestionScore, tolerance float64) (SectionScore, []string) {
	var warnings []string
	out := SectionScore{
		SectionID: section.ID,
		Name:      section.Name,
		Weight:    section.Weight,
		Total:     len(section.Questions),
	}

	weights := make([]float64, 0, len(section.Questions))
	for _, q := range section.Questions {
		weights = append(weights, q.Weight)
		if q.Weight < 0 {
			warnings = append(warnings, fmt.Sprintf("section %s question %s has negative weight %.3f; treated as 0", section.ID, q.ID, q.Weight))
		}
		qs, ok := scores[q.ID]
		if !ok {
			continue
		}
		qs.Weight = math.Max(q.Weight, 0)
		out.Questions = append(out.Questions, qs)
	}
	if len(section.Questions) == 0 {
		warnings = append(warnings, fmt.Sprintf("section %s has no questions", section.ID))
	} else if sum := weightSum(weights); !wellFormed(sum, tolerance) {
		warnings = append(warnings, fmt.Sprintf("section %s question weights sum to %.3f; renormalized over answered questions", section.ID, sum))
	}

	out.Answered = len(out.Questions)
	out.Methodology = MethodologyPartial
	if out.Total > 0 && out.Answered == out.Total {
		out.Methodology = MethodologyComplete
	}
	if out.Answered == 0 {
		return out, warnings
	}

	var num, den float64
	for _, qs := range out.Questions {
		num += qs.ScaledScore * qs.Weight
		den += qs.Weight
	}
	if den > 0 {
		out.Score = num / den
	} else {
		warnings = append(warnings, fmt.Sprintf("section %s answered questions carry no weight; using unweighted mean", section.ID))
		var sum float64
		for _, qs := range out.Questions {
			sum += qs.ScaledScore
		}
		out.Score = sum / float64(out.Answered)
	}
	out.Score = clamp(out.Score, 0, MaxRawScore)
	out.ScaledScore = clamp(out.Score*sectionScale, 0, 100)
	return out, warnings
}

// CalculateOverall combines section scaled scores using section weights over
// the sections with at least one answer. With no answered section the score
// is 0 and the methodology partial.
func CalculateOverall(sections []SectionScore, cfg config.ScoringConfig) (Overall, []string) {
	var warnings []string
	weights := make([]float64, 0, len(sections))
	complete := len(sections) > 0

	var num, den, unweighted float64
	var answered int
	for _, s := range sections {
		weights = append(weights, s.Weight)
		if s.Methodology != MethodologyComplete {
			complete = false
		}
		if s.Answered == 0 {
			continue
		}
		answered++
		w := math.Max(s.Weight, 0)
		num += s.ScaledScore * w
		den += w
		unweighted += s.ScaledScore
	}
	if len(sections) > 0 {
		if sum := weightSum(weights); !wellFormed(sum, cfg.WeightTolerance) {
			warnings = append(warnings, fmt.Sprintf("section weights sum to %.3f; renormalized over answered sections", sum))
		}
	}

	out := Overall{Methodology: MethodologyPartial, AnsweredSections: answered}
	if complete {
		out.Methodology = MethodologyComplete
	}
	switch {
	case answered == 0:
		out.Score = 0
	case den > 0:
		out.Score = num / den
	default:
		warnings = append(warnings, "answered sections carry no weight; using unweighted mean")
		out.Score = unweighted / float64(answered)
	}
	out.Score = clamp(out.Score, 0, 100)
	out.RiskBand = BandFor(out.Score, cfg.Bands)
	return out, warnings
}

// BandFor maps an overall score to its risk band. Each threshold is the
// inclusive minimum of its band.
func BandFor(score float64, b config.BandThresholds) RiskBand {
	switch {
	case score >= b.Low:
		return BandLow
	case score >= b.Medium:
		return BandMedium
	case score >= b.High:
		return BandHigh
	default:
		return BandCritical
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}

// Scorer computes weighted results for whole assessments. It holds no
// mutable state and is safe for concurrent use.
type Scorer struct {
	cfg  config.ScoringConfig
	hash string
}

// NewScorer creates a Scorer with the given policy.
func NewScorer(cfg config.ScoringConfig) *Scorer {
	return &Scorer{cfg: cfg, hash: ConfigHash(cfg)}
}

// Score computes the weighted result for an assessment whose answers and
// documents are already loaded. Iteration follows template order, so equal
// inputs give identical output.
func (s *Scorer) Score(a *model.Assessment) (*Result, error) {
	if a == nil {
		return nil, eris.New("scorer: nil assessment")
	}
	var warnings []string
	docs := a.DocumentIndex()

	known := make(map[string]bool, a.Template.QuestionCount())
	for _, sec := range a.Template.Sections {
		for _, q := range sec.Questions {
			known[q.ID] = true
		}
	}

	scores := make(map[string]QuestionScore, len(a.Answers))
	for _, ans := range a.Answers {
		if !known[ans.QuestionID] {
			warnings = append(warnings, fmt.Sprintf("answer for unknown question %s ignored", ans.QuestionID))
			continue
		}
		if _, dup := scores[ans.QuestionID]; dup {
			warnings = append(warnings, fmt.Sprintf("duplicate answer for question %s; last one wins", ans.QuestionID))
		}
		tiers := make([]model.EvidenceTier, 0, len(ans.LinkedDocumentIDs))
		for _, id := range ans.LinkedDocumentIDs {
			doc, ok := docs[id]
			if !ok {
				warnings = append(warnings, fmt.Sprintf("question %s links unknown document %s; ignored", ans.QuestionID, id))
				continue
			}
			tiers = append(tiers, doc.EvidenceTier)
		}
		qs, err := ScoreQuestion(ans.QuestionID, ans.RawQualityScore, tiers, s.cfg.TierMultipliers)
		if err != nil {
			return nil, eris.Wrapf(err, "scorer: assessment %s", a.ID)
		}
		scores[ans.QuestionID] = qs
	}

	res := &Result{
		AssessmentID:   a.ID,
		TotalQuestions: a.Template.QuestionCount(),
		ConfigHash:     s.hash,
	}
	for _, sec := range a.Template.Sections {
		ss, w := AggregateSection(sec, scores, s.cfg.WeightTolerance)
		warnings = append(warnings, w...)
		res.AnsweredQuestions += ss.Answered
		res.SectionScores = append(res.SectionScores, ss)
	}

	overall, w := CalculateOverall(res.SectionScores, s.cfg)
	warnings = append(warnings, w...)
	res.OverallScore = overall.Score
	res.RiskBand = overall.RiskBand
	res.Methodology = overall.Methodology
	res.Warnings = warnings

	if len(warnings) > 0 {
		log := zap.L().With(zap.String("assessment_id", a.ID))
		for _, msg := range warnings {
			log.Warn("scorer: data quality", zap.String("detail", msg))
		}
	}
	return res, nil
}
