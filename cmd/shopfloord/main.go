package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/me/shopfloor/internal/config"
	"github.com/me/shopfloor/internal/hub"
	"github.com/me/shopfloor/internal/logging"
	"github.com/me/shopfloor/internal/natspub"
	"github.com/me/shopfloor/internal/protocol"
	"github.com/me/shopfloor/internal/scheduler"
	"github.com/me/shopfloor/internal/server"
	"github.com/me/shopfloor/internal/store"
	"github.com/me/shopfloor/internal/validate"
)

func main() {
	cfg := config.DefaultServerConfig()

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "Listen address")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (text, json)")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Database path (default ~/.shopfloor/tasks.db)")
	flag.StringVar(&cfg.CatalogPath, "catalog", cfg.CatalogPath, "Machine catalog file (default: built-in catalog)")
	flag.DurationVar(&cfg.TickInterval, "tick", cfg.TickInterval, "Scheduler tick interval")
	flag.StringVar(&cfg.NATSURL, "nats-url", cfg.NATSURL, "NATS server for the state mirror (empty disables it)")
	flag.StringVar(&cfg.NATSSubject, "nats-subject", cfg.NATSSubject, "NATS subject for state messages")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")
	configFile := flag.String("config", "", "Path to YAML server config; flags given on the command line take precedence")

	flag.Parse()

	if *configFile != "" {
		fileCfg, err := config.LoadServerConfig(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		flag.Visit(func(f *flag.Flag) { overrideFromFlag(&fileCfg, cfg, f.Name) })
		cfg = fileCfg
	}
	if *debug {
		cfg.LogLevel = "debug"
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// overrideFromFlag copies the field behind an explicitly set flag.
func overrideFromFlag(dst *config.ServerConfig, src config.ServerConfig, name string) {
	switch name {
	case "addr":
		dst.Addr = src.Addr
	case "log-level":
		dst.LogLevel = src.LogLevel
	case "log-format":
		dst.LogFormat = src.LogFormat
	case "db":
		dst.DBPath = src.DBPath
	case "catalog":
		dst.CatalogPath = src.CatalogPath
	case "tick":
		dst.TickInterval = src.TickInterval
	case "nats-url":
		dst.NATSURL = src.NATSURL
	case "nats-subject":
		dst.NATSSubject = src.NATSSubject
	}
}

func run(cfg config.ServerConfig, logger *slog.Logger) error {
	// Resolve database path.
	dbPath := cfg.DBPath
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("cannot determine home directory: %w", err)
		}
		dir := filepath.Join(home, ".shopfloor")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("cannot create %s: %w", dir, err)
		}
		dbPath = filepath.Join(dir, "tasks.db")
	}

	catalog := config.DefaultCatalog()
	if cfg.CatalogPath != "" {
		c, err := config.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			return err
		}
		catalog = c
		logger.Info("catalog loaded", "path", cfg.CatalogPath, "machines", len(catalog.Machines))
	}
	validator := validate.NewCatalogValidator(catalog)

	// Open store and run migrations.
	st, err := store.NewSQLiteStore(dbPath, logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	if err := st.Migrate(context.Background()); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	logger.Info("database ready", "path", dbPath)

	h := hub.New(logger)
	engine := scheduler.NewEngine(st, logger,
		scheduler.WithValidator(validator),
		scheduler.WithPublisher(h),
	)
	if err := engine.Load(context.Background()); err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}

	if cfg.NATSURL != "" {
		nc, err := natspub.Connect(cfg.NATSURL, logger)
		if err != nil {
			return err
		}
		defer nc.Close()
		if err := h.Add(natspub.NewObserver(nc, cfg.NATSSubject, logger)); err != nil {
			logger.Warn("state mirror not attached", "error", err)
		} else {
			logger.Info("state mirror attached", "subject", cfg.NATSSubject)
		}
	}

	loop := scheduler.NewLoop(engine, scheduler.Config{TickInterval: cfg.TickInterval}, logger)

	srv := server.New(cfg, server.Deps{
		Store:     st,
		Engine:    engine,
		Hub:       h,
		Handler:   protocol.NewHandler(engine, validator, logger),
		Catalog:   catalog,
		Scheduler: loop,
	}, logger)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Handler(),
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start scheduler in background.
	srv.StartScheduler(ctx)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		loop.Stop()
		h.Close()
		return err
	}
	logger.Info("shutting down")

	// Stop scheduler before closing observers and the HTTP server.
	if err := loop.Stop(); err != nil {
		logger.Error("scheduler stop error", "error", err)
	}
	h.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
