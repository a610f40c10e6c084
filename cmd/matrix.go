package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/sells-group/posture/internal/report"
)

var (
	matrixFlags   outputFlags
	matrixRefresh bool
)

var matrixCmd = &cobra.Command{
	Use:   "matrix [assessment-id]",
	Short: "Build the remediation strategy matrix",
	Long: `Partitions gaps into immediate (priority 8-10), near-term (4-7) and strategic
(1-3) buckets with effort distribution, estimated cost range and the vendors
covering the most gap categories in each bucket.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReport(cmd, args, &matrixFlags, func(ctx context.Context, env *engineEnv, id string, w io.Writer, f report.Format, opts report.Options) error {
			if matrixRefresh {
				if err := env.Engine.InvalidateMatrix(ctx, id); err != nil {
					return err
				}
			}
			m, err := env.Engine.StrategyMatrix(ctx, id)
			if err != nil {
				return err
			}
			return report.WriteMatrix(w, m, f, opts)
		})
	},
}

var (
	matchFlags outputFlags
	matchLimit int
)

var matchCmd = &cobra.Command{
	Use:   "match [assessment-id]",
	Short: "Rank vendors against an assessment's gaps and priorities",
	Long: `Scores every vendor on risk-area coverage, size fit, geographic coverage and
price fit, adds boosts for ranked priorities, must-have features, deployment
and implementation speed, and ranks vendors overall and per matrix bucket.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReport(cmd, args, &matchFlags, func(ctx context.Context, env *engineEnv, id string, w io.Writer, f report.Format, opts report.Options) error {
			res, err := env.Engine.VendorMatches(ctx, id, matchLimit)
			if err != nil {
				return err
			}
			return report.WriteMatches(w, res, f, opts)
		})
	},
}

func init() {
	matrixFlags.register(matrixCmd)
	matrixCmd.Flags().BoolVar(&matrixRefresh, "refresh", false, "drop the cached matrix before building")

	matchFlags.register(matchCmd)
	matchCmd.Flags().IntVar(&matchLimit, "limit", 10, "maximum vendors per ranking (0 = all)")

	rootCmd.AddCommand(matrixCmd, matchCmd)
}
