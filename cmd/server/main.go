package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	webAdapter "procurement-ledger/internal/adapters/web"
	"procurement-ledger/internal/app"
	"procurement-ledger/internal/config"
	"procurement-ledger/internal/core"
	"procurement-ledger/internal/db"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger := config.NewLogger(cfg.LogLevel)
	log := logger.WithField("component", "server")

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("database")
	}
	defer pool.Close()

	flags := cfg.Flags()
	log.WithFields(logrus.Fields{
		"migration_phase": flags.Phase,
		"write_mode":      flags.WriteMode().String(),
	}).Info("migration flags loaded")
	if flags.Phase == core.PhaseUnknown {
		log.Warn("migration flags do not match a known phase, writing both representations")
	}

	resolver := core.NewCategoryResolver(core.NewCategoryCatalog(pool), logger)
	ledger := core.NewEligibilityLedger(core.NewEligibilityStore(pool), resolver, logger)
	orders := core.NewOrderService(pool, ledger, flags, logger)
	procurement := core.NewProcurementService(pool, flags, logger)
	svc := app.NewAppService(flags, ledger, orders, procurement)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           webAdapter.NewHandler(svc, cfg.AllowedOrigins, cfg.JWTSecret, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithField("port", cfg.ServerPort).Info("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server")
	}
	log.Info("server stopped")
}
