package strategy

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/posture/internal/config"
	"github.com/sells-group/posture/internal/model"
)

// Source loads the inputs of a matrix.
type Source interface {
	ListGaps(ctx context.Context, assessmentID string) ([]model.Gap, error)
	ListVendors(ctx context.Context) ([]model.Vendor, error)
}

// Generator builds matrices through a cache. A cache failure degrades to a
// recompute; it never fails the request.
type Generator struct {
	source Source
	cache  Cache
	cfg    config.StrategyConfig
}

// NewGenerator creates a Generator. A nil cache disables caching.
func NewGenerator(source Source, cache Cache, cfg config.StrategyConfig) *Generator {
	if cache == nil {
		cache = NopCache{}
	}
	return &Generator{source: source, cache: cache, cfg: cfg}
}

// Generate returns the matrix for an assessment, from cache when present.
func (g *Generator) Generate(ctx context.Context, assessmentID string) (*Matrix, error) {
	log := zap.L().With(zap.String("assessment_id", assessmentID))

	m, ok, err := g.cache.Get(ctx, assessmentID)
	if err != nil {
		log.Warn("strategy: cache get failed", zap.Error(err))
	} else if ok {
		log.Debug("strategy: cache hit")
		return m, nil
	}

	gaps, err := g.source.ListGaps(ctx, assessmentID)
	if err != nil {
		return nil, eris.Wrapf(err, "strategy: list gaps for %s", assessmentID)
	}
	vendors, err := g.source.ListVendors(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "strategy: list vendors")
	}

	m, err = Build(assessmentID, gaps, vendors, g.cfg)
	if err != nil {
		return nil, err
	}
	if len(m.InvalidGaps) > 0 {
		log.Warn("strategy: gaps excluded from matrix", zap.Int("count", len(m.InvalidGaps)))
	}

	if err := g.cache.Set(ctx, m); err != nil {
		log.Warn("strategy: cache set failed", zap.Error(err))
	}
	return m, nil
}

// Invalidate drops the cached matrix of one assessment.
func (g *Generator) Invalidate(ctx context.Context, assessmentID string) error {
	return eris.Wrapf(g.cache.Delete(ctx, assessmentID), "strategy: invalidate %s", assessmentID)
}

// InvalidateAll drops every cached matrix. Vendor changes affect all of them.
func (g *Generator) InvalidateAll(ctx context.Context) error {
	return eris.Wrap(g.cache.Clear(ctx), "strategy: invalidate all")
}
