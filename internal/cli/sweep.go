package cli

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/spf13/cobra"
)

// NewSweepCommand creates the sweep command, which runs a single SLA
// sweep against the configured store and prints the report as JSON.
// Meant for cron-style scheduling when the daemon's built-in sweeper
// is disabled.
func NewSweepCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run a single SLA sweep and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd.Context(), opts, cmd)
		},
	}
}

func runSweep(ctx context.Context, opts *RootOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := slog.Default()

	_, eng, closeDB, err := openEngine(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeDB(); err != nil {
			logger.Error("closing database", "error", err)
		}
	}()

	report, err := eng.CheckOverdueSLAs(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
