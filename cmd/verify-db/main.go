package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"procurement-ledger/internal/config"
	"procurement-ledger/internal/db"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

const migratorLockID = 7462839

type migration struct {
	version  string
	filename string
	path     string
	checksum string
	sql      string
}

func main() {
	os.Exit(run())
}

func run() int {
	dir := flag.String("dir", "migrations", "directory holding NNN_description.sql files")
	check := flag.Bool("check", false, "report pending migrations without applying them")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	logger := config.NewLogger(cfg.LogLevel)
	log := logger.WithField("component", "Migrator")

	if cfg.DatabaseURL == "" {
		log.Error("DATABASE_URL is required")
		return 1
	}

	ctx := context.Background()
	connCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	pool, err := db.NewPool(connCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.WithError(err).Error("connect")
		return 1
	}
	defer pool.Close()

	conn, err := acquireLock(ctx, pool)
	if err != nil {
		log.WithError(err).Error("lock")
		return 1
	}
	defer conn.Release()

	if _, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	checksum TEXT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`); err != nil {
		log.WithError(err).Error("failed to create schema_migrations table")
		return 1
	}

	migrations, err := discoverMigrations(*dir)
	if err != nil {
		log.WithError(err).Error("discover")
		return 1
	}

	pending := 0
	for _, m := range migrations {
		entry := log.WithFields(logrus.Fields{"version": m.version, "file": m.filename})
		applied, err := alreadyApplied(ctx, pool, m)
		if err != nil {
			entry.WithError(err).Error("check migration")
			return 1
		}
		if applied {
			entry.Debug("skip")
			continue
		}
		pending++
		if *check {
			entry.Info("pending")
			continue
		}
		if err := applyMigration(ctx, pool, m); err != nil {
			entry.WithError(err).Error("apply")
			return 1
		}
		entry.Info("applied")
	}

	if *check && pending > 0 {
		log.WithField("pending", pending).Warn("schema is behind")
		return 2
	}
	log.WithField("total", len(migrations)).Info("all migrations processed")
	return 0
}

func acquireLock(ctx context.Context, pool *pgxpool.Pool) (*pgxpool.Conn, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection for lock: %w", err)
	}

	var locked bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", migratorLockID).Scan(&locked); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to query advisory lock: %w", err)
	}
	if !locked {
		conn.Release()
		return nil, errors.New("another migrator is currently running")
	}
	return conn, nil
}

func discoverMigrations(dir string) ([]migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	seen := make(map[string]string)
	var out []migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		name := entry.Name()
		version, err := extractVersion(name)
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[version]; ok {
			return nil, fmt.Errorf("duplicate version %s in %s and %s", version, prev, name)
		}
		seen[version] = name

		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		sum := sha256.Sum256(data)
		out = append(out, migration{
			version:  version,
			filename: name,
			path:     path,
			checksum: hex.EncodeToString(sum[:]),
			sql:      string(data),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].filename < out[j].filename })
	return out, nil
}

func extractVersion(filename string) (string, error) {
	parts := strings.SplitN(filename, "_", 2)
	if len(parts) < 2 || parts[0] == "" {
		return "", fmt.Errorf("invalid migration filename %s, expected NNN_description.sql", filename)
	}
	return parts[0], nil
}

func alreadyApplied(ctx context.Context, pool *pgxpool.Pool, m migration) (bool, error) {
	var existing string
	err := pool.QueryRow(ctx, "SELECT checksum FROM schema_migrations WHERE version = $1", m.version).Scan(&existing)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query schema_migrations: %w", err)
	}
	if existing != m.checksum {
		return false, fmt.Errorf("checksum mismatch for %s: recorded %s, file %s", m.filename, existing, m.checksum)
	}
	return true, nil
}

func applyMigration(ctx context.Context, pool *pgxpool.Pool, m migration) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, m.sql); err != nil {
		return fmt.Errorf("failed to execute migration: %w", err)
	}
	if _, err := tx.Exec(ctx,
		"INSERT INTO schema_migrations (version, filename, checksum) VALUES ($1, $2, $3)",
		m.version, m.filename, m.checksum,
	); err != nil {
		return fmt.Errorf("failed to insert migration record: %w", err)
	}
	return tx.Commit(ctx)
}
