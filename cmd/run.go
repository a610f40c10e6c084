package main

import (
	"context"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/posture/internal/report"
)

// reportFunc computes one report for an assessment and renders it to w.
type reportFunc func(ctx context.Context, env *engineEnv, assessmentID string, w io.Writer, f report.Format, opts report.Options) error

// runReport wires signal handling, engine setup and output for the
// single-assessment commands.
func runReport(cmd *cobra.Command, args []string, o *outputFlags, fn reportFunc) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, fixtureID, err := initEngine(ctx, o.fixture)
	if err != nil {
		return err
	}
	defer env.Close()

	id, err := assessmentArg(args, fixtureID)
	if err != nil {
		return err
	}

	w, closeOut, f, opts, err := o.open()
	if err != nil {
		return err
	}
	defer func() {
		if err := closeOut(); err != nil {
			zap.L().Warn("close output", zap.Error(err))
		}
	}()

	zap.L().Debug("running report", zap.String("command", cmd.Name()), zap.String("assessment_id", id))
	return fn(ctx, env, id, w, f, opts)
}
