// Package config provides centralized configuration management for noteflow.
// It loads configuration from an optional .env file, environment variables and
// CLI flag overrides, validates required fields, and provides sensible defaults.
//
// CLI flags control where data lives and whether object storage is mocked
// (--db, --no-s3). Environment variables provide secrets and tuning.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/kuitang/noteflow/internal/crypto"
	"github.com/kuitang/noteflow/internal/logutil"
)

const (
	defaultDatabasePath  = "./data/noteflow.db"
	defaultAutoSaveDelay = time.Second
	defaultCanvasWidth   = 800
	defaultCanvasHeight  = 600
	defaultS3Region      = "auto"
)

// Config holds all application configuration.
type Config struct {
	// Storage
	DatabasePath string // SQLite file; ":memory:" keeps everything in process
	MasterKey    string // optional, 64 hex characters; enables SQLCipher encryption

	// Editing
	AutoSaveDelay time.Duration

	// Canvas
	CanvasWidth      int
	CanvasHeight     int
	CanvasMaxHistory int // 0 = unbounded

	// Logging
	LogLevel string

	// Object storage for exported drawings
	NoS3               bool // If true, uploads go to an in-process fake (--no-s3)
	AWSEndpointS3      string
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSBucketName      string
	AWSPublicURL       string
}

// Flags are the CLI-level overrides. Zero values mean "not set".
type Flags struct {
	EnvFile      string
	DatabasePath string
	LogLevel     string
	NoS3         bool
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// LoadConfig loads configuration from the environment and applies flag overrides.
// If flags.EnvFile names a readable file its variables are loaded first; variables
// already present in the environment win.
func LoadConfig(flags Flags) (*Config, error) {
	if flags.EnvFile != "" {
		if err := godotenv.Load(flags.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", flags.EnvFile, err)
		}
	}

	cfg := &Config{}

	cfg.DatabasePath = getEnvOrDefault("NOTEFLOW_DB", defaultDatabasePath)
	if flags.DatabasePath != "" {
		cfg.DatabasePath = flags.DatabasePath
	}
	cfg.MasterKey = strings.TrimSpace(os.Getenv("NOTEFLOW_MASTER_KEY"))

	cfg.AutoSaveDelay = parseDurationOrDefault("NOTEFLOW_AUTOSAVE_DELAY", defaultAutoSaveDelay)

	cfg.CanvasWidth = parseIntOrDefault("NOTEFLOW_CANVAS_WIDTH", defaultCanvasWidth)
	cfg.CanvasHeight = parseIntOrDefault("NOTEFLOW_CANVAS_HEIGHT", defaultCanvasHeight)
	cfg.CanvasMaxHistory = parseIntOrDefault("NOTEFLOW_CANVAS_MAX_HISTORY", 0)

	cfg.LogLevel = getEnvOrDefault("NOTEFLOW_LOG_LEVEL", "info")
	if flags.LogLevel != "" {
		cfg.LogLevel = flags.LogLevel
	}

	cfg.NoS3 = flags.NoS3
	cfg.AWSEndpointS3 = strings.TrimSpace(os.Getenv("AWS_ENDPOINT_URL_S3"))
	cfg.AWSRegion = getEnvOrDefault("AWS_REGION", defaultS3Region)
	cfg.AWSAccessKeyID = strings.TrimSpace(os.Getenv("AWS_ACCESS_KEY_ID"))
	cfg.AWSSecretAccessKey = strings.TrimSpace(os.Getenv("AWS_SECRET_ACCESS_KEY"))
	cfg.AWSBucketName = strings.TrimSpace(os.Getenv("BUCKET_NAME"))
	cfg.AWSPublicURL = strings.TrimSpace(os.Getenv("S3_PUBLIC_URL"))
	if cfg.AWSPublicURL == "" && cfg.AWSEndpointS3 != "" && cfg.AWSBucketName != "" {
		cfg.AWSPublicURL = strings.TrimRight(cfg.AWSEndpointS3, "/") + "/" + cfg.AWSBucketName
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that configuration values are usable.
// S3 credentials are only required once uploads are configured at all, so a
// purely local setup needs nothing but a database path.
func (c *Config) Validate() error {
	var errs []string

	if strings.TrimSpace(c.DatabasePath) == "" {
		errs = append(errs, "NOTEFLOW_DB must not be empty")
	}
	if c.MasterKey != "" {
		if _, err := crypto.ParseMasterKey(c.MasterKey); err != nil {
			errs = append(errs, "NOTEFLOW_MASTER_KEY must be 64 hex characters (generate with: openssl rand -hex 32)")
		}
	}
	if c.AutoSaveDelay <= 0 {
		errs = append(errs, "NOTEFLOW_AUTOSAVE_DELAY must be positive")
	}
	if c.CanvasWidth <= 0 || c.CanvasHeight <= 0 {
		errs = append(errs, "NOTEFLOW_CANVAS_WIDTH and NOTEFLOW_CANVAS_HEIGHT must be positive")
	}
	if c.CanvasMaxHistory < 0 {
		errs = append(errs, "NOTEFLOW_CANVAS_MAX_HISTORY must not be negative")
	}

	if !c.NoS3 && c.S3Configured() {
		if c.AWSBucketName == "" {
			errs = append(errs, "BUCKET_NAME is required when AWS_ENDPOINT_URL_S3 is set (or use --no-s3)")
		}
		if c.AWSAccessKeyID == "" {
			errs = append(errs, "AWS_ACCESS_KEY_ID is required when AWS_ENDPOINT_URL_S3 is set (or use --no-s3)")
		}
		if c.AWSSecretAccessKey == "" {
			errs = append(errs, "AWS_SECRET_ACCESS_KEY is required when AWS_ENDPOINT_URL_S3 is set (or use --no-s3)")
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// S3Configured reports whether a real object storage endpoint was provided.
func (c *Config) S3Configured() bool {
	return c.AWSEndpointS3 != ""
}

// Encrypted reports whether the database will be opened with SQLCipher.
func (c *Config) Encrypted() bool {
	return c.MasterKey != ""
}

// PrintStartupSummary prints a redacted summary of the configuration.
func (c *Config) PrintStartupSummary(w io.Writer) {
	fmt.Fprintln(w, "noteflow configuration:")
	fmt.Fprintln(w, "  "+logutil.FormatSettingsForLog(map[string]string{
		"NOTEFLOW_DB":             c.DatabasePath,
		"NOTEFLOW_MASTER_KEY":     c.MasterKey,
		"NOTEFLOW_AUTOSAVE_DELAY": c.AutoSaveDelay.String(),
		"AWS_ENDPOINT_URL_S3":     c.AWSEndpointS3,
		"AWS_SECRET_ACCESS_KEY":   c.AWSSecretAccessKey,
		"BUCKET_NAME":             c.AWSBucketName,
	}))
}

// Helper functions for parsing environment variables

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func parseIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return parsed
}
