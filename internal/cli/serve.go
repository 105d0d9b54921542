package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/accredia/stepgate/internal/httpapi"
	"github.com/accredia/stepgate/pkg/sweeper"
)

// NewServeCommand creates the serve command, which runs the HTTP API
// and, unless disabled, the periodic SLA sweeper.
func NewServeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and SLA sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *RootOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := slog.Default()

	cfg, eng, closeDB, err := openEngine(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeDB(); err != nil {
			logger.Error("closing database", "error", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	httpapi.NewServer(eng).RegisterRoutes(e.Group("/api/v1"))

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      e,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sweepCtx, cancelSweep := context.WithCancel(ctx)
	defer cancelSweep()

	var sw *sweeper.Sweeper
	if cfg.Sweep.Enabled {
		sw = sweeper.New(eng, sweeper.Config{
			Interval: cfg.Interval(),
			Logger:   logger,
		})
		if err := sw.Start(sweepCtx); err != nil {
			return err
		}
		logger.Info("sla sweeper started", "interval", cfg.Interval())
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.Server.Addr, "driver", cfg.DB.Driver)
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", "error", err)
			if err := server.Close(); err != nil {
				logger.Error("server close", "error", err)
			}
		}
	}

	if sw != nil {
		sw.Stop()
	}
	logger.Info("server stopped")
	return nil
}
