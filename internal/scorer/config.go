// Package scorer implements the weighted assessment scorer: evidence-scaled
// question scores, weighted section aggregation and the overall 0-100 score
// with its risk band.
package scorer

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/posture/internal/config"
	"github.com/sells-group/posture/internal/model"
)

// MaxRawScore is the upper bound of an AI-derived answer quality score.
const MaxRawScore = 5.0

// sectionScale maps a 0-5 section score onto 0-100.
const sectionScale = 100 / MaxRawScore

// TierMultiplier returns the configured multiplier for a tier.
func TierMultiplier(tier model.EvidenceTier, m config.TierMultipliers) (float64, error) {
	switch tier {
	case model.Tier0:
		return m.Tier0, nil
	case model.Tier1:
		return m.Tier1, nil
	case model.Tier2:
		return m.Tier2, nil
	}
	return 0, eris.Wrapf(model.ErrUnknownValue, "scorer: evidence tier %q", string(tier))
}

// BestTier returns the highest tier among tiers. No tiers means the answer
// is self-declared (TIER_0). Every tier must be known, even when a better
// one is present.
func BestTier(tiers []model.EvidenceTier) (model.EvidenceTier, error) {
	best := model.Tier0
	for _, t := range tiers {
		if !t.Valid() {
			return "", eris.Wrapf(model.ErrUnknownValue, "scorer: evidence tier %q", string(t))
		}
		if t.Level() > best.Level() {
			best = t
		}
	}
	return best, nil
}

// weightSum adds weights, ignoring negatives.
func weightSum(ws []float64) float64 {
	var sum float64
	for _, w := range ws {
		if w > 0 {
			sum += w
		}
	}
	return sum
}

// wellFormed reports whether weights sum to 1 within tolerance.
func wellFormed(sum, tolerance float64) bool {
	return math.Abs(sum-1) <= tolerance
}

// ConfigHash returns a SHA-256 hash of a scoring config for reproducibility.
func ConfigHash(cfg interface{}) string {
	data, err := json.Marshal(cfg)
	if err != nil {
		return ""
	}
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:16]) // 32 hex chars
}
