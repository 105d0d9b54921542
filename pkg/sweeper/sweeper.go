// Package sweeper runs the engine's SLA sweep on a fixed interval.
//
// The sweep itself is a bounded unit of work with per-candidate failure
// isolation, so the runner is deliberately simple: one tick, one sweep,
// no overlap within a single Sweeper, and no deadline on a sweep. Running
// a sweep concurrently with ordinary human transitions is safe; the
// participant row is the unit of serialization.
package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/accredia/stepgate/pkg/api"
)

// DefaultInterval is used when Config.Interval is zero.
const DefaultInterval = time.Minute

// Config controls a Sweeper.
type Config struct {
	// Interval between sweep ticks. Defaults to DefaultInterval.
	Interval time.Duration

	// Logger receives per-sweep summaries. Defaults to slog.Default().
	Logger *slog.Logger
}

// Sweeper periodically calls Engine.CheckOverdueSLAs.
type Sweeper struct {
	engine   api.Engine
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// New creates a Sweeper over the given engine.
func New(engine api.Engine, cfg Config) *Sweeper {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		engine:   engine,
		interval: interval,
		logger:   logger,
	}
}

// RunOnce performs a single sweep immediately.
func (s *Sweeper) RunOnce(ctx context.Context) (*api.SweepReport, error) {
	return s.engine.CheckOverdueSLAs(ctx)
}

// Start launches the sweep loop in a background goroutine. It runs until
// the context is cancelled or Stop is called.
//
// If Start is called again without Stop, it returns an error.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("sweeper: already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				report, err := s.engine.CheckOverdueSLAs(ctx)
				if err != nil {
					// Only a candidate-list load failure reaches here;
					// log and keep the loop alive for the next tick.
					s.logger.ErrorContext(ctx, "sla sweep failed", slog.Any("error", err))
					continue
				}
				s.logger.InfoContext(ctx, "sla sweep completed",
					slog.Int("checked", report.Checked),
					slog.Int("warnings", report.Warnings),
					slog.Int("breached", report.Breached),
					slog.Int("actions", len(report.Actions)),
				)
			}
		}
	}()

	return nil
}

// Stop cancels the sweep loop and waits for it to exit. It is idempotent.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}
