package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"procurement-ledger/internal/audit"
	"procurement-ledger/internal/config"
	"procurement-ledger/internal/db"

	"github.com/sirupsen/logrus"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}

	out := flag.String("out", cfg.AuditReportPath, "path of the JSON report")
	xlsx := flag.String("xlsx", "", "optional path of an XLSX export")
	lockTTL := flag.Duration("lock-ttl", 30*time.Minute, "single-run lock TTL")
	flag.Parse()

	logger := config.NewLogger(cfg.LogLevel)
	log := logger.WithField("component", "cascade-audit")

	if !cfg.DryRunEnabled() {
		log.Error("refusing to run: DRY_RUN must be exactly \"true\"")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.RedisURL != "" {
		release, err := audit.AcquireRunLock(ctx, cfg.RedisURL, *lockTTL, log)
		if errors.Is(err, audit.ErrAuditRunning) {
			log.Error(err.Error())
			return 1
		}
		if err != nil {
			log.WithError(err).Warn("run lock disabled")
		}
		defer release()
	}

	pool, err := db.NewReadOnlyPool(ctx, cfg.AuditURL())
	if err != nil {
		config.LogError(logger, "cascade-audit", "db.NewReadOnlyPool", "connect audit database", nil, err)
		return 1
	}
	defer pool.Close()

	auditor := audit.NewAuditor(audit.NewSource(pool), cfg.Flags(), logger)
	report, err := auditor.Run(ctx)
	if err != nil {
		config.LogError(logger, "cascade-audit", "Auditor.Run", "audit failed", nil, err)
		return 1
	}

	if err := audit.WriteJSON(*out, report); err != nil {
		config.LogError(logger, "cascade-audit", "audit.WriteJSON", *out, nil, err)
		return 1
	}
	schemaPath := audit.SchemaPath(*out)
	if err := audit.WriteSchema(schemaPath); err != nil {
		config.LogError(logger, "cascade-audit", "audit.WriteSchema", schemaPath, nil, err)
		return 1
	}
	if *xlsx != "" {
		if err := audit.WriteXLSX(*xlsx, report); err != nil {
			config.LogError(logger, "cascade-audit", "audit.WriteXLSX", *xlsx, nil, err)
			return 1
		}
	}

	log.WithFields(logrus.Fields{
		"correlation_id": report.CorrelationID,
		"report":         *out,
		"schema":         schemaPath,
		"candidates":     report.Summary.TotalCandidates,
	}).Info("report written")
	return 0
}
