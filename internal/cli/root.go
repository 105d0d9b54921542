// Package cli wires configuration, storage, and the engine into the
// stepgated commands.
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/accredia/stepgate/internal/config"
	"github.com/accredia/stepgate/internal/engine"
	"github.com/accredia/stepgate/pkg/api"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	Verbose    bool
}

// NewRootCommand creates the root command for stepgated.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "stepgated",
		Short:         "Workflow navigation and SLA enforcement daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if opts.Verbose {
				level = slog.LevelDebug
			}
			handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
			slog.SetDefault(slog.New(handler))
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "path to config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewSweepCommand(opts))

	return cmd
}

// openEngine loads configuration, opens the configured database, and
// builds an engine on top of it with logging sinks attached. The
// returned closer releases the database handle; it is a no-op for the
// in-memory driver.
func openEngine(ctx context.Context, opts *RootOptions) (*config.Config, api.Engine, func() error, error) {
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return nil, nil, nil, err
	}

	logger := slog.Default()
	audit := api.NewLoggingAuditSink(logger)
	notifier := api.NewLoggingNotifier(logger)

	switch cfg.DB.Driver {
	case "memory":
		eng := engine.NewInMemoryEngineWithSinks(audit, notifier)
		return cfg, eng, func() error { return nil }, nil
	case "sqlite":
		db, err := sql.Open("sqlite", cfg.DB.DSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open sqlite database: %w", err)
		}
		eng, err := engine.NewSQLiteEngineWithSinks(db, audit, notifier)
		if err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		return cfg, eng, db.Close, nil
	case "postgres":
		db, err := sql.Open("pgx", cfg.DB.DSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open postgres database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("ping postgres database: %w", err)
		}
		eng, err := engine.NewPostgresEngineWithSinks(db, audit, notifier)
		if err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		return cfg, eng, db.Close, nil
	default:
		return nil, nil, nil, fmt.Errorf("unsupported db driver %q", cfg.DB.Driver)
	}
}
