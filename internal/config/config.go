package config

import (
	"fmt"

	"procurement-ledger/internal/core"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the process configuration, parsed once at start-up.
type Config struct {
	DatabaseURL      string `env:"DATABASE_URL"`
	AuditDatabaseURL string `env:"AUDIT_DATABASE_URL"`
	ServerPort       string `env:"SERVER_PORT" envDefault:"8080"`
	AllowedOrigins   string `env:"ALLOWED_ORIGINS"`
	JWTSecret        string `env:"JWT_SECRET"`
	RedisURL         string `env:"REDIS_URL"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
	AuditReportPath  string `env:"AUDIT_REPORT_PATH" envDefault:"reports/cascade-integrity-audit.json"`

	// DryRun must literally equal "true" for the cascade auditor to run.
	DryRun string `env:"DRY_RUN"`

	Migration MigrationEnv
}

// MigrationEnv holds the raw migration toggles. They are kept as strings because
// SAFE_MODE and the other two flags use different literal-match rules.
type MigrationEnv struct {
	SafeMode    string `env:"SAFE_MODE"`
	DualWrite   string `env:"DUAL_WRITE_ENABLED"`
	ReadUnified string `env:"READ_FROM_UNIFIED"`
}

// Load reads .env (if present) and parses the environment into a Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Flags derives the immutable migration flag state.
func (c *Config) Flags() core.MigrationFlags {
	return c.Migration.Flags()
}

// Flags applies the literal-match rules: SAFE_MODE is on unless exactly "false";
// DUAL_WRITE_ENABLED and READ_FROM_UNIFIED are on only when exactly "true".
func (m MigrationEnv) Flags() core.MigrationFlags {
	return core.NewMigrationFlags(
		m.SafeMode != "false",
		m.DualWrite == "true",
		m.ReadUnified == "true",
	)
}

// DryRunEnabled reports whether the auditor safety gate is set.
func (c *Config) DryRunEnabled() bool {
	return c.DryRun == "true"
}

// AuditURL returns the connection string the auditor should use, preferring a
// dedicated replica URL.
func (c *Config) AuditURL() string {
	if c.AuditDatabaseURL != "" {
		return c.AuditDatabaseURL
	}
	return c.DatabaseURL
}
