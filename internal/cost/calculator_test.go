package cost

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/posture/internal/config"
	"github.com/sells-group/posture/internal/model"
)

func TestMidpoint(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(config.DefaultStrategy())

	tests := []struct {
		name string
		r    model.CostRange
		want float64
	}{
		{"not estimated", "", 0},
		{"under 10k", model.CostUnder10K, 5_000},
		{"10k-50k", model.Cost10KTo50K, 30_000},
		{"50k-100k", model.Cost50KTo100K, 75_000},
		{"100k-250k", model.Cost100KTo250K, 175_000},
		{"over 250k", model.CostOver250K, 375_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := calc.Midpoint(tt.r)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestMidpoint_Unknown(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(config.DefaultStrategy())

	_, err := calc.Midpoint("PRICELESS")
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrUnknownValue))
}

func TestGaps(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(config.DefaultStrategy())

	est, err := calc.Gaps([]model.Gap{
		{ID: "g1", EstimatedCost: model.Cost10KTo50K},
		{ID: "g2", EstimatedCost: model.CostUnder10K},
		{ID: "g3"},
	})
	require.NoError(t, err)
	assert.InDelta(t, 35_000, est.Total, 0.001)
	assert.InDelta(t, 24_500, est.Low, 0.001)
	assert.InDelta(t, 45_500, est.High, 0.001)
	assert.Equal(t, "€25–€46K (estimated)", est.Label)
}

func TestGaps_Empty(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(config.DefaultStrategy())

	est, err := calc.Gaps(nil)
	require.NoError(t, err)
	assert.Zero(t, est.Total)
	assert.Equal(t, "€0", est.Label)
}

func TestGaps_UnknownBucket(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(config.DefaultStrategy())

	_, err := calc.Gaps([]model.Gap{{ID: "bad", EstimatedCost: "HUGE"}})
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrUnknownValue))
	assert.Contains(t, err.Error(), "gap bad")
}

func TestFormatRange_Grouping(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(config.DefaultStrategy())

	assert.Equal(t, "€1,313–€2,438K (estimated)", calc.FormatRange(1_312_500, 2_437_500))
	assert.Equal(t, "€0", calc.FormatRange(0, 0))
}

func TestFormatRange_CurrencySymbol(t *testing.T) {
	t.Parallel()
	cfg := config.DefaultStrategy()
	cfg.CurrencySymbol = "$"
	calc := NewCalculator(cfg)

	assert.Equal(t, "$0", calc.FormatRange(0, 0))
	assert.Equal(t, "$25–$46K (estimated)", calc.FormatRange(24_500, 45_500))

	est, err := calc.Gaps(nil)
	require.NoError(t, err)
	assert.Equal(t, "$0", est.Label)
}
