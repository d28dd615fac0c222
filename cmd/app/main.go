package main

import (
	"context"
	"fmt"
	"os"

	"procurement-ledger/internal/adapters/cli"
	"procurement-ledger/internal/app"
	"procurement-ledger/internal/config"
	"procurement-ledger/internal/core"
	"procurement-ledger/internal/db"
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
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, cli.Usage)
		return 2
	}

	logger := config.NewLogger(cfg.LogLevel)
	flags := cfg.Flags()
	ctx := context.Background()

	// phase needs no database.
	if os.Args[1] == "phase" || os.Args[1] == "ph" {
		svc := app.NewAppService(flags, nil, nil, nil)
		if err := cli.Run(ctx, svc, os.Args[1:], os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.WithField("component", "cli").WithError(err).Error("database")
		return 1
	}
	defer pool.Close()

	resolver := core.NewCategoryResolver(core.NewCategoryCatalog(pool), logger)
	ledger := core.NewEligibilityLedger(core.NewEligibilityStore(pool), resolver, logger)
	orders := core.NewOrderService(pool, ledger, flags, logger)
	procurement := core.NewProcurementService(pool, flags, logger)
	svc := app.NewAppService(flags, ledger, orders, procurement)

	if err := cli.Run(ctx, svc, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
