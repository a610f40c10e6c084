package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/posture/internal/model"
	"github.com/sells-group/posture/internal/report"
	"github.com/sells-group/posture/internal/store"
)

var (
	batchFlags       outputFlags
	batchStatus      string
	batchLimit       int
	batchConcurrency int
)

var batchCmd = &cobra.Command{
	Use:   "batch [assessment-id...]",
	Short: "Score many assessments concurrently",
	Long: `Scores the given assessments, or every stored assessment matching --status,
with at most --concurrency running at once. A failed assessment is reported
and never stops the rest.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, _, err := initEngine(ctx, "")
		if err != nil {
			return err
		}
		defer env.Close()

		ids := args
		if len(ids) == 0 {
			list, err := env.Store.ListAssessments(ctx, store.AssessmentFilter{
				Status: model.AssessmentStatus(batchStatus),
				Limit:  batchLimit,
			})
			if err != nil {
				return eris.Wrap(err, "list assessments")
			}
			for _, a := range list {
				ids = append(ids, a.ID)
			}
		}
		if len(ids) == 0 {
			zap.L().Info("no assessments to score")
			return nil
		}

		concurrency := batchConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Batch.MaxConcurrentAssessments
		}
		sum, err := env.Engine.ScoreBatch(ctx, ids, concurrency)
		if err != nil {
			return err
		}

		w, closeOut, f, opts, err := batchFlags.open()
		if err != nil {
			return err
		}
		defer closeOut() //nolint:errcheck
		if err := report.WriteBatch(w, sum, f, opts); err != nil {
			return err
		}
		if sum.Failed > 0 {
			return eris.Errorf("%d of %d assessments failed", sum.Failed, len(sum.Items))
		}
		return nil
	},
}

func init() {
	f := batchCmd.Flags()
	f.StringVar(&batchFlags.format, "format", "table", "output format: table, csv, json or xlsx")
	f.StringVarP(&batchFlags.output, "output", "o", "", "output file path (default: stdout)")
	f.BoolVar(&batchFlags.color, "color", true, "colorize risk labels in table output")
	f.StringVar(&batchStatus, "status", string(model.AssessmentCompleted), "assessment status to score when no ids are given")
	f.IntVar(&batchLimit, "limit", 100, "maximum assessments to load when no ids are given")
	f.IntVar(&batchConcurrency, "concurrency", 0, "concurrent assessments (default from config)")
	rootCmd.AddCommand(batchCmd)
}
