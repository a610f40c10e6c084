package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/posture/internal/fixture"
)

var importMigrate bool

var importCmd = &cobra.Command{
	Use:   "import <bundle.yaml>...",
	Short: "Import YAML assessment bundles into the store",
	Long: `Saves each bundle's assessment, replaces its gaps and risks, and upserts the
bundle's vendors. Cached matrices of the affected assessments are dropped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, _, err := initEngine(ctx, "")
		if err != nil {
			return err
		}
		defer env.Close()

		if importMigrate {
			if err := env.Store.Migrate(ctx); err != nil {
				return eris.Wrap(err, "migrate store")
			}
		}

		for _, path := range args {
			b, err := fixture.Load(path)
			if err != nil {
				return err
			}
			counts, err := env.Engine.Import(ctx, b)
			if err != nil {
				return eris.Wrapf(err, "import %s", path)
			}
			zap.L().Info("import complete",
				zap.String("bundle", path),
				zap.String("assessment_id", b.Assessment.ID),
				zap.Int64("gaps", counts.Gaps),
				zap.Int64("risks", counts.Risks),
				zap.Int64("vendors", counts.Vendors),
			)
		}
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the store schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return eris.Wrap(err, "init store")
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}
		zap.L().Info("migration complete", zap.String("driver", cfg.Store.Driver))
		return nil
	},
}

func init() {
	importCmd.Flags().BoolVar(&importMigrate, "migrate", false, "run migrations before importing")
	rootCmd.AddCommand(importCmd, migrateCmd)
}
