// Package cost estimates remediation cost ranges from bucketed gap cost
// estimates.
package cost

import (
	"math"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/posture/internal/config"
	"github.com/sells-group/posture/internal/model"
)

// Estimate is the aggregated cost of a set of gaps with its uncertainty band.
type Estimate struct {
	Total float64 `json:"total"`
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Label string  `json:"label"`
}

// Calculator turns cost buckets into money using configured midpoints.
type Calculator struct {
	cfg     config.StrategyConfig
	printer *message.Printer
}

// NewCalculator creates a Calculator with the given strategy policy.
func NewCalculator(cfg config.StrategyConfig) *Calculator {
	return &Calculator{cfg: cfg, printer: message.NewPrinter(language.English)}
}

// Midpoint returns the configured midpoint for a cost bucket. An empty
// bucket (not estimated) contributes zero.
func (c *Calculator) Midpoint(r model.CostRange) (float64, error) {
	m := c.cfg.CostMidpoints
	switch r {
	case "":
		return 0, nil
	case model.CostUnder10K:
		return m.Under10K, nil
	case model.Cost10KTo50K:
		return m.From10KTo50K, nil
	case model.Cost50KTo100K:
		return m.From50KTo100K, nil
	case model.Cost100KTo250K:
		return m.From100KTo250K, nil
	case model.CostOver250K:
		return m.Over250K, nil
	}
	return 0, eris.Wrapf(model.ErrUnknownValue, "cost: cost range %q", string(r))
}

// Gaps sums the midpoints of the gaps' cost buckets and applies the
// uncertainty band.
func (c *Calculator) Gaps(gaps []model.Gap) (Estimate, error) {
	var total float64
	for _, g := range gaps {
		mid, err := c.Midpoint(g.EstimatedCost)
		if err != nil {
			return Estimate{}, eris.Wrapf(err, "cost: gap %s", g.ID)
		}
		total += mid
	}
	band := c.cfg.UncertaintyBand
	est := Estimate{
		Total: total,
		Low:   total * (1 - band),
		High:  total * (1 + band),
	}
	est.Label = c.FormatRange(est.Low, est.High)
	return est, nil
}

// FormatRange renders a range in thousands, e.g. "€21–€39K (estimated)".
// A zero range renders as the bare symbol and 0, e.g. "€0".
func (c *Calculator) FormatRange(low, high float64) string {
	sym := c.cfg.CurrencySymbol
	if high <= 0 {
		return sym + "0"
	}
	lo := int64(math.Round(low / 1000))
	hi := int64(math.Round(high / 1000))
	return c.printer.Sprintf("%s%d–%s%dK (estimated)", sym, lo, sym, hi)
}
