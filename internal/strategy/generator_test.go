package strategy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/posture/internal/config"
	"github.com/sells-group/posture/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type countingSource struct {
	mu          sync.Mutex
	gaps        map[string][]model.Gap
	vendors     []model.Vendor
	gapCalls    int
	vendorCalls int
	err         error
}

func (s *countingSource) ListGaps(_ context.Context, id string) ([]model.Gap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gapCalls++
	if s.err != nil {
		return nil, s.err
	}
	return append([]model.Gap(nil), s.gaps[id]...), nil
}

func (s *countingSource) ListVendors(context.Context) ([]model.Vendor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vendorCalls++
	return append([]model.Vendor(nil), s.vendors...), nil
}

func (s *countingSource) calls() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gapCalls, s.vendorCalls
}

func newSource() *countingSource {
	return &countingSource{
		gaps: map[string][]model.Gap{
			"asm-1": {
				{ID: "g1", PriorityScore: 10, Category: "logging", EstimatedCost: model.Cost10KTo50K},
				{ID: "g2", PriorityScore: 4, Category: "backup", EstimatedEffort: model.EffortLarge},
			},
		},
		vendors: []model.Vendor{
			{ID: "v1", Categories: []string{"logging", "backup"}},
			{ID: "v2", Categories: []string{"backup"}},
		},
	}
}

func TestGenerator_CacheHitSkipsSource(t *testing.T) {
	ctx := context.Background()
	src := newSource()
	g := NewGenerator(src, NewMemoryCache(time.Hour), config.DefaultStrategy())

	first, err := g.Generate(ctx, "asm-1")
	require.NoError(t, err)
	second, err := g.Generate(ctx, "asm-1")
	require.NoError(t, err)

	gapCalls, vendorCalls := src.calls()
	assert.Equal(t, 1, gapCalls)
	assert.Equal(t, 1, vendorCalls)
	assert.Equal(t, first, second)

	fresh, err := Build("asm-1", src.gaps["asm-1"], src.vendors, config.DefaultStrategy())
	require.NoError(t, err)
	assert.Equal(t, fresh, second)
}

func TestGenerator_Invalidate(t *testing.T) {
	ctx := context.Background()
	src := newSource()
	g := NewGenerator(src, NewMemoryCache(time.Hour), config.DefaultStrategy())

	_, err := g.Generate(ctx, "asm-1")
	require.NoError(t, err)

	src.mu.Lock()
	src.gaps["asm-1"] = append(src.gaps["asm-1"], model.Gap{ID: "g3", PriorityScore: 9, Category: "logging"})
	src.mu.Unlock()

	require.NoError(t, g.Invalidate(ctx, "asm-1"))
	m, err := g.Generate(ctx, "asm-1")
	require.NoError(t, err)
	assert.Equal(t, 2, m.Immediate.GapCount)

	gapCalls, _ := src.calls()
	assert.Equal(t, 2, gapCalls)
}

func TestGenerator_InvalidateAll(t *testing.T) {
	ctx := context.Background()
	src := newSource()
	src.gaps["asm-2"] = []model.Gap{{ID: "x", PriorityScore: 2, Category: "backup"}}
	g := NewGenerator(src, NewMemoryCache(time.Hour), config.DefaultStrategy())

	_, err := g.Generate(ctx, "asm-1")
	require.NoError(t, err)
	_, err = g.Generate(ctx, "asm-2")
	require.NoError(t, err)

	require.NoError(t, g.InvalidateAll(ctx))
	_, err = g.Generate(ctx, "asm-1")
	require.NoError(t, err)
	_, err = g.Generate(ctx, "asm-2")
	require.NoError(t, err)

	gapCalls, vendorCalls := src.calls()
	assert.Equal(t, 4, gapCalls)
	assert.Equal(t, 4, vendorCalls)
}

func TestGenerator_NilCacheAlwaysRecomputes(t *testing.T) {
	ctx := context.Background()
	src := newSource()
	g := NewGenerator(src, nil, config.DefaultStrategy())

	a, err := g.Generate(ctx, "asm-1")
	require.NoError(t, err)
	b, err := g.Generate(ctx, "asm-1")
	require.NoError(t, err)

	gapCalls, _ := src.calls()
	assert.Equal(t, 2, gapCalls)
	assert.Equal(t, a, b)
}

func TestGenerator_SourceError(t *testing.T) {
	src := newSource()
	src.err = errors.New("db down")
	g := NewGenerator(src, NewMemoryCache(time.Hour), config.DefaultStrategy())

	_, err := g.Generate(context.Background(), "asm-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

type failingCache struct{ NopCache }

func (failingCache) Get(context.Context, string) (*Matrix, bool, error) {
	return nil, false, errors.New("cache unavailable")
}

func TestGenerator_CacheErrorFallsBack(t *testing.T) {
	src := newSource()
	g := NewGenerator(src, failingCache{}, config.DefaultStrategy())

	m, err := g.Generate(context.Background(), "asm-1")
	require.NoError(t, err)
	assert.Equal(t, 1, m.Immediate.GapCount)
}

func TestGenerator_ConcurrentDifferentAssessments(t *testing.T) {
	ctx := context.Background()
	src := newSource()
	for _, id := range []string{"a", "b", "c", "d"} {
		src.gaps[id] = []model.Gap{{ID: id + "-g", PriorityScore: 5, Category: "backup"}}
	}
	g := NewGenerator(src, NewMemoryCache(time.Hour), config.DefaultStrategy())

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			m, err := g.Generate(ctx, id)
			assert.NoError(t, err)
			assert.Equal(t, 1, m.NearTerm.GapCount)
		}(id)
	}
	wg.Wait()
}
