package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/posture/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "posture",
	Short: "Compliance posture scoring, strategy matrix and vendor matching",
	Long: `Scores compliance assessments from evidence-weighted answers, computes the
legacy gap/risk component score, partitions gaps into an immediate / near-term /
strategic remediation matrix, and ranks vendors against an organization's gaps
and priorities.

Every command reads an assessment from the configured store, or from a YAML
bundle when --fixture is given.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
