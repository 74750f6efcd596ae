// Package main is the entry point for the binary prediction market server.
// It wires the in-memory market engine, collateral ledger, WebSocket hub,
// price oracle, background scheduler, and both HTTP surfaces (public API
// and admin backoffice) into a single process.  Postgres, when configured,
// is a write-behind mirror of the engine for history and reporting.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq" // postgres driver
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sideforge/binarymarket/internal/api"
	"github.com/sideforge/binarymarket/internal/backoffice"
	"github.com/sideforge/binarymarket/internal/config"
	"github.com/sideforge/binarymarket/internal/engine"
	"github.com/sideforge/binarymarket/internal/indexer"
	"github.com/sideforge/binarymarket/internal/observability"
	"github.com/sideforge/binarymarket/internal/oracle"
	"github.com/sideforge/binarymarket/internal/repository"
	"github.com/sideforge/binarymarket/internal/scheduler"
	"github.com/sideforge/binarymarket/internal/wallet"
	"github.com/sideforge/binarymarket/internal/ws"
)

func main() {
	// ── 1. Config + logger ────────────────────────────────────────────────────
	_ = godotenv.Load() // .env is optional; real env vars win

	cfg := config.MustLoad()

	var logHandler slog.Handler
	if cfg.IsProd() {
		logHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	logger.Info("starting binarymarket server", "env", cfg.Server.Env, "port", cfg.Server.Port)

	// ── 2. Database (optional in development) ─────────────────────────────────
	var (
		db         *sqlx.DB
		marketRepo *repository.MarketRepository
		tradeRepo  *repository.TradeRepository
	)
	if cfg.DB.DSN != "" {
		var err error
		db, err = sqlx.Connect("postgres", cfg.DB.DSN)
		if err != nil {
			logger.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		db.SetMaxOpenConns(cfg.DB.MaxOpenConns)
		db.SetMaxIdleConns(cfg.DB.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

		if err = db.Ping(); err != nil {
			logger.Error("database ping failed", "err", err)
			os.Exit(1)
		}
		logger.Info("database connected")

		if err = runMigrations(db, "migrations"); err != nil {
			logger.Error("migrations failed", "err", err)
			os.Exit(1)
		}
		logger.Info("migrations applied")

		marketRepo = repository.NewMarketRepository(db)
		tradeRepo = repository.NewTradeRepository(db)
	} else {
		logger.Warn("DATABASE_DSN not set, running without persistence")
	}

	// ── 3. Ledger + metrics ───────────────────────────────────────────────────
	ledger := wallet.NewLedger()

	promReg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(promReg)

	// ── 4. WebSocket hub ──────────────────────────────────────────────────────
	jwtSecret := []byte(cfg.JWT.Secret)
	hub := ws.NewHub(jwtSecret, cfg.Server.AllowedOrigins)

	// ── 5. Event indexer (no-op without a DB) ─────────────────────────────────
	notifiers := engine.MultiNotifier{hub, metrics}
	var ix *indexer.Indexer
	if tradeRepo != nil {
		ix = indexer.New(tradeRepo, 1024)
		notifiers = append(notifiers, ix)
	}

	// ── 6. Market engine ──────────────────────────────────────────────────────
	registry := engine.NewRegistry(
		func(marketID uuid.UUID) engine.Bank { return wallet.NewMarketBank(ledger, marketID) },
		notifiers,
		engine.RegistryConfig{
			MinSeed:          cfg.Engine.MinSeed,
			ProtocolShareBps: cfg.Engine.ProtocolShareBps,
			ProtocolAccount:  cfg.Engine.ProtocolAccount,
		},
	)

	// ── 7. Price oracle ───────────────────────────────────────────────────────
	feed := oracle.NewFeed(cfg.Oracle)

	// ── 8. Root context + signal handling ─────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go hub.Run()
	logger.Info("websocket hub started")

	if ix != nil {
		go ix.Run(ctx)
		logger.Info("event indexer started")
	}

	// ── 9. Scheduler ──────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(registry, marketRepo, hub, logger)
	sched.Start(ctx)

	// ── 10. HTTP routers ──────────────────────────────────────────────────────
	apiRouter := api.SetupRouter(api.RouterDeps{
		Registry:  registry,
		Ledger:    ledger,
		TradeRepo: tradeRepo,
		Hub:       hub,
		Metrics:   promReg,
		Cfg:       cfg,
	})
	adminRouter := backoffice.SetupBackofficeRouter(backoffice.BackofficeDeps{
		Registry:  registry,
		Ledger:    ledger,
		TradeRepo: tradeRepo,
		Feed:      feed,
		Hub:       hub,
		Cfg:       cfg,
	})

	apiSrv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      apiRouter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	adminSrv := &http.Server{
		Addr:         ":" + cfg.Server.BackofficePort,
		Handler:      adminRouter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// ── 11. Start servers ─────────────────────────────────────────────────────
	go func() {
		logger.Info("http server listening", "addr", apiSrv.Addr)
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
			stop() // trigger graceful shutdown
		}
	}()
	go func() {
		logger.Info("backoffice server listening", "addr", adminSrv.Addr)
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("backoffice server error", "err", err)
			stop()
		}
	}()

	// ── 12. Graceful shutdown ─────────────────────────────────────────────────
	<-ctx.Done()
	logger.Info("shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "err", err)
	}
	if err := adminSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("backoffice shutdown error", "err", err)
	}

	if db != nil {
		db.Close()
	}
	logger.Info("server stopped cleanly")
}

// runMigrations reads all *.sql files from dir, sorted by name, and executes
// them sequentially.  Idempotent: SQL files should use IF NOT EXISTS / ON CONFLICT.
func runMigrations(db *sqlx.DB, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("runMigrations: read dir %q: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("runMigrations: read %q: %w", f, err)
		}
		if _, err = db.Exec(string(data)); err != nil {
			return fmt.Errorf("runMigrations: exec %q: %w", f, err)
		}
		slog.Info("migration applied", "file", filepath.Base(f))
	}
	return nil
}
