package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/sells-group/posture/internal/report"
)

var scoreFlags outputFlags

var scoreCmd = &cobra.Command{
	Use:   "score [assessment-id]",
	Short: "Compute the weighted overall score of an assessment",
	Long: `Scales each answer's 0-5 quality score by the best evidence tier among its
linked documents, averages answered questions by weight within each section,
and combines sections by weight into a 0-100 score with a risk band.

Examples:
  # Score a stored assessment
  posture score 6f1c2a3e-...

  # Score a YAML bundle without touching the database
  posture score --fixture acme.yaml --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReport(cmd, args, &scoreFlags, func(ctx context.Context, env *engineEnv, id string, w io.Writer, f report.Format, opts report.Options) error {
			res, err := env.Engine.Score(ctx, id)
			if err != nil {
				return err
			}
			return report.WriteScore(w, res, f, opts)
		})
	},
}

var legacyFlags outputFlags

var legacyCmd = &cobra.Command{
	Use:   "legacy [assessment-id]",
	Short: "Compute the legacy gap/risk component score",
	Long: `Blends compliance, risk, maturity and documentation component scores derived
from an assessment's gaps and risks into a 0-100 score and risk level.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReport(cmd, args, &legacyFlags, func(ctx context.Context, env *engineEnv, id string, w io.Writer, f report.Format, opts report.Options) error {
			res, err := env.Engine.LegacyScore(ctx, id)
			if err != nil {
				return err
			}
			return report.WriteLegacy(w, res, f, opts)
		})
	},
}

func init() {
	scoreFlags.register(scoreCmd)
	legacyFlags.register(legacyCmd)
	rootCmd.AddCommand(scoreCmd, legacyCmd)
}
