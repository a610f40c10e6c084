// Package matching scores vendors against an organization's gaps, profile
// and stated priorities.
package matching

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/posture/internal/config"
	"github.com/sells-group/posture/internal/model"
)

// RiskAreaCoverage awards risk_area_max scaled by the share of distinct gap
// categories the vendor covers. With no gaps there is nothing to cover and
// the vendor gets full credit.
func RiskAreaCoverage(v *model.Vendor, gaps []model.Gap, cfg config.MatchingConfig) float64 {
	cats := model.Categories(gaps)
	if len(cats) == 0 {
		return cfg.RiskAreaMax
	}
	return cfg.RiskAreaMax * float64(len(coveredCategories(v, cats))) / float64(len(cats))
}

func coveredCategories(v *model.Vendor, cats []string) []string {
	set := v.CategorySet()
	var out []string
	for _, c := range cats {
		if set[c] {
			out = append(out, c)
		}
	}
	return out
}

// SizeFit compares the organization's size with the vendor's target
// segments on the ordered scale STARTUP < SMB < MIDMARKET < ENTERPRISE. An
// unstated org size or no segments earns nothing; an unknown size on either
// side is an error.
func SizeFit(v *model.Vendor, size model.CompanySize, cfg config.MatchingConfig) (float64, error) {
	if size != "" && !size.Valid() {
		return 0, eris.Wrapf(model.ErrUnknownValue, "matching: organization size %q", string(size))
	}
	for _, seg := range v.TargetSegments {
		if !seg.Valid() {
			return 0, eris.Wrapf(model.ErrUnknownValue, "matching: vendor %s segment %q", v.ID, string(seg))
		}
	}
	if size == "" {
		return 0, nil
	}
	rank := size.Rank()
	best := 0.0
	for _, seg := range v.TargetSegments {
		switch d := seg.Rank() - rank; {
		case d == 0:
			return cfg.SizeExact, nil
		case d == 1 || d == -1:
			best = cfg.SizeAdjacent
		}
	}
	return best, nil
}

// GeographicCoverage awards geo_max when the vendor covers every
// jurisdiction or declares GLOBAL, and proportional credit otherwise.
// Matching ignores case. No jurisdictions means no constraint.
func GeographicCoverage(v *model.Vendor, jurisdictions []string, cfg config.MatchingConfig) float64 {
	wanted := distinct(jurisdictions)
	if len(wanted) == 0 {
		return cfg.GeoMax
	}
	cover := make(map[string]bool, len(v.GeographicCoverage))
	for _, g := range v.GeographicCoverage {
		k := model.NormalizeKey(g)
		if k == model.NormalizeKey(model.GlobalCoverage) {
			return cfg.GeoMax
		}
		cover[k] = true
	}
	var n int
	for _, j := range wanted {
		if cover[j] {
			n++
		}
	}
	return cfg.GeoMax * float64(n) / float64(len(wanted))
}

// PriceFit awards price_fit when the vendor's minimum price does not exceed
// the budget's maximum; buckets touching at a boundary overlap. Either side
// undeclared earns price_unknown.
func PriceFit(v *model.Vendor, budget model.CostRange, cfg config.MatchingConfig) (float64, error) {
	if v.PricingRange == "" || budget == "" {
		return cfg.PriceUnknown, nil
	}
	if !v.PricingRange.Valid() {
		return 0, eris.Wrapf(model.ErrUnknownValue, "matching: vendor %s pricing range %q", v.ID, string(v.PricingRange))
	}
	if !budget.Valid() {
		return 0, eris.Wrapf(model.ErrUnknownValue, "matching: budget range %q", string(budget))
	}
	vendorMin, _ := v.PricingRange.Bounds()
	_, budgetMax := budget.Bounds()
	if budgetMax == model.Unbounded || vendorMin <= budgetMax {
		return cfg.PriceFit, nil
	}
	return 0, nil
}

// Boost is the priority-alignment bonus added on top of the base score.
type Boost struct {
	Priority          float64  `json:"priority"`
	Features          float64  `json:"features"`
	Deployment        float64  `json:"deployment"`
	Speed             float64  `json:"speed"`
	Total             float64  `json:"total"`
	MatchedPriorities []string `json:"matched_priorities,omitempty"`
	MatchedFeatures   []string `json:"matched_features,omitempty"`
}

// PriorityBoost rewards alignment with the organization's ranked priorities,
// must-have features, deployment preference and implementation speed. The
// ranked-priority boost is the tier of the best-ranked priority the vendor
// covers.
func PriorityBoost(v *model.Vendor, p model.AssessmentPriorities, cfg config.MatchingConfig) (Boost, error) {
	var b Boost
	cats := v.CategorySet()
	points := []float64{cfg.PriorityBoosts.First, cfg.PriorityBoosts.Second, cfg.PriorityBoosts.Third}
	for i, pr := range p.TopPriorities {
		if i >= len(points) {
			break
		}
		if k := model.NormalizeKey(pr); cats[k] {
			b.Priority = max(b.Priority, points[i])
			b.MatchedPriorities = append(b.MatchedPriorities, k)
		}
	}

	if must := distinct(p.MustHaveFeatures); len(must) > 0 {
		have := make(map[string]bool, len(v.Features))
		for _, f := range v.Features {
			have[model.NormalizeKey(f)] = true
		}
		for _, f := range must {
			if have[f] {
				b.MatchedFeatures = append(b.MatchedFeatures, f)
			}
		}
		b.Features = cfg.FeatureMax * float64(len(b.MatchedFeatures)) / float64(len(must))
	}

	if p.DeploymentPreference != "" && !p.DeploymentPreference.Valid() {
		return Boost{}, eris.Wrapf(model.ErrUnknownValue, "matching: deployment preference %q", string(p.DeploymentPreference))
	}
	for _, d := range v.DeploymentModels {
		if !d.Valid() {
			return Boost{}, eris.Wrapf(model.ErrUnknownValue, "matching: vendor %s deployment %q", v.ID, string(d))
		}
		if p.DeploymentPreference != "" && d == p.DeploymentPreference {
			b.Deployment = cfg.DeploymentBoost
		}
	}

	ok, err := speedMatches(v.ImplementationWeeks, p.ImplementationSpeed, cfg)
	if err != nil {
		return Boost{}, err
	}
	if ok {
		b.Speed = cfg.SpeedBoost
	}

	b.Total = b.Priority + b.Features + b.Deployment + b.Speed
	return b, nil
}

func speedMatches(weeks int, speed model.ImplementationSpeed, cfg config.MatchingConfig) (bool, error) {
	switch speed {
	case "":
		return false, nil
	case model.SpeedFlexible:
		return true, nil
	case model.SpeedImmediate:
		return weeks > 0 && weeks <= cfg.ImmediateMaxWeeks, nil
	case model.SpeedStandard:
		return weeks > 0 && weeks <= cfg.StandardMaxWeeks, nil
	}
	return false, eris.Wrapf(model.ErrUnknownValue, "matching: implementation speed %q", string(speed))
}

func distinct(vals []string) []string {
	seen := make(map[string]bool, len(vals))
	var out []string
	for _, v := range vals {
		k := model.NormalizeKey(v)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
