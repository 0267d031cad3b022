package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/me/shopfloor/internal/logging"
	"github.com/me/shopfloor/pkg/model"
)

// Config holds scheduler configuration.
type Config struct {
	TickInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{TickInterval: time.Second}
}

// Loop implements the Scheduler interface by ticking the engine on a
// fixed period. Tick errors are logged and the loop keeps going.
type Loop struct {
	engine   *Engine
	config   Config
	logger   *slog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewLoop creates a new scheduler loop.
func NewLoop(engine *Engine, cfg Config, logger *slog.Logger) *Loop {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultConfig().TickInterval
	}
	return &Loop{
		engine: engine,
		config: cfg,
		logger: logging.Component(logger, "scheduler"),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the scheduling loop. Blocks until ctx is cancelled or Stop is called.
// The first tick runs immediately so tasks overdue after a restart complete
// without waiting a full period.
func (l *Loop) Start(ctx context.Context) error {
	defer close(l.doneCh)

	l.logger.Info("scheduler started", "tick_interval", l.config.TickInterval)
	ticker := l.engine.Clock().NewTicker(l.config.TickInterval)
	defer ticker.Stop()

	l.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("scheduler stopping (context cancelled)")
			return ctx.Err()
		case <-l.stopCh:
			l.logger.Info("scheduler stopping (stop called)")
			return nil
		case <-ticker.Chan():
			l.tick(ctx)
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	if err := l.Tick(ctx); err != nil {
		l.logger.Error("tick error", "code", model.CodeOf(err), "error", err)
	}
}

// Stop gracefully shuts down the scheduler and waits for the current tick to finish.
// It must only be called after Start.
func (l *Loop) Stop() error {
	l.stopOnce.Do(func() { close(l.stopCh) })
	<-l.doneCh
	return nil
}

// Tick runs a single scheduling iteration.
func (l *Loop) Tick(ctx context.Context) error {
	return l.engine.Tick(ctx)
}
