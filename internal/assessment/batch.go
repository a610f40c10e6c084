package assessment

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/posture/internal/scorer"
)

// BatchItem is the outcome of scoring one assessment in a batch.
type BatchItem struct {
	AssessmentID string         `json:"assessment_id"`
	Result       *scorer.Result `json:"result,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// BatchSummary totals a batch run.
type BatchSummary struct {
	Items     []BatchItem `json:"items"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
}

// ScoreBatch scores assessments concurrently, at most concurrency at a
// time. Duplicate IDs are scored once. A failed assessment is reported in
// its item and never aborts the others; only context cancellation fails
// the batch. Items keep the order of first appearance in ids.
func (e *Engine) ScoreBatch(ctx context.Context, ids []string, concurrency int) (*BatchSummary, error) {
	if concurrency <= 0 {
		concurrency = e.cfg.Batch.MaxConcurrentAssessments
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	seen := make(map[string]bool, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}

	log := zap.L().With(zap.Int("assessments", len(unique)), zap.Int("concurrency", concurrency))
	log.Info("assessment: batch scoring started")

	items := make([]BatchItem, len(unique))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, id := range unique {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			items[i].AssessmentID = id
			res, err := e.Score(gctx, id)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Warn("assessment: batch item failed", zap.String("assessment_id", id), zap.Error(err))
				items[i].Error = err.Error()
				return nil // don't fail the group
			}
			items[i].Result = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "assessment: batch")
	}

	sum := &BatchSummary{Items: items}
	for _, it := range items {
		if it.Error != "" {
			sum.Failed++
		} else {
			sum.Succeeded++
		}
	}
	log.Info("assessment: batch scoring finished", zap.Int("succeeded", sum.Succeeded), zap.Int("failed", sum.Failed))
	return sum, nil
}
