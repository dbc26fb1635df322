// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	devJWTSecret = "pantrytracker-development-secret"
)

type Config struct {
	Environment string
	Port        string
	DBPath      string
	LogLevel    string
	LogFormat   string

	JWTSecret  string
	SessionTTL time.Duration

	AdminEmail    string
	AdminPassword string

	CatalogURL      string
	CatalogCacheTTL time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CORSOrigin   string
	OTLPEndpoint string

	Backup BackupConfig
}

// BackupConfig points database backups at S3-compatible storage.
type BackupConfig struct {
	Endpoint   string
	Bucket     string
	Region     string
	AccessKey  string
	SecretKey  string
	Prefix     string
	Passphrase string
	Keep       int
}

// Enabled reports whether enough is configured to upload backups.
func (b BackupConfig) Enabled() bool {
	return b.Bucket != "" && b.AccessKey != "" && b.SecretKey != ""
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// Load reads an optional .env file from the working directory, then the
// environment. Variables already set in the environment win over .env.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from the given lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	cfg := &Config{
		Environment:   strings.ToLower(get("PANTRY_ENV", EnvDevelopment)),
		Port:          get("PANTRY_PORT", "8080"),
		DBPath:        get("PANTRY_DB_PATH", "pantrytracker.db"),
		LogLevel:      get("PANTRY_LOG_LEVEL", "info"),
		LogFormat:     get("PANTRY_LOG_FORMAT", "text"),
		JWTSecret:     get("PANTRY_JWT_SECRET", ""),
		AdminEmail:    get("PANTRY_ADMIN_EMAIL", "admin@pantrytracker.local"),
		AdminPassword: getenv("PANTRY_ADMIN_PASSWORD"),
		CatalogURL:    strings.TrimRight(get("PANTRY_CATALOG_URL", "https://world.openfoodfacts.org"), "/"),
		RedisAddr:     get("PANTRY_REDIS_ADDR", ""),
		RedisPassword: getenv("PANTRY_REDIS_PASSWORD"),
		CORSOrigin:    get("PANTRY_CORS_ORIGIN", ""),
		OTLPEndpoint:  get("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		Backup: BackupConfig{
			Endpoint:   get("PANTRY_BACKUP_S3_ENDPOINT", ""),
			Bucket:     get("PANTRY_BACKUP_S3_BUCKET", ""),
			Region:     get("PANTRY_BACKUP_S3_REGION", "us-east-1"),
			AccessKey:  get("PANTRY_BACKUP_S3_ACCESS_KEY", ""),
			SecretKey:  getenv("PANTRY_BACKUP_S3_SECRET_KEY"),
			Prefix:     get("PANTRY_BACKUP_PREFIX", "pantrytracker/"),
			Passphrase: getenv("PANTRY_BACKUP_PASSPHRASE"),
		},
	}

	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return nil, fmt.Errorf("invalid PANTRY_PORT %q: %w", cfg.Port, err)
	}

	switch cfg.LogFormat {
	case "text", "json":
	default:
		return nil, fmt.Errorf("invalid PANTRY_LOG_FORMAT %q: want text or json", cfg.LogFormat)
	}

	var err error
	if cfg.SessionTTL, err = time.ParseDuration(get("PANTRY_SESSION_TTL", "168h")); err != nil {
		return nil, fmt.Errorf("invalid PANTRY_SESSION_TTL: %w", err)
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("invalid PANTRY_SESSION_TTL: must be positive")
	}

	if cfg.CatalogCacheTTL, err = time.ParseDuration(get("PANTRY_CATALOG_CACHE_TTL", "1h")); err != nil {
		return nil, fmt.Errorf("invalid PANTRY_CATALOG_CACHE_TTL: %w", err)
	}

	if cfg.RedisDB, err = strconv.Atoi(get("PANTRY_REDIS_DB", "0")); err != nil {
		return nil, fmt.Errorf("invalid PANTRY_REDIS_DB: %w", err)
	}

	if cfg.Backup.Keep, err = strconv.Atoi(get("PANTRY_BACKUP_KEEP", "7")); err != nil || cfg.Backup.Keep < 1 {
		return nil, fmt.Errorf("invalid PANTRY_BACKUP_KEEP: want a positive integer")
	}

	if cfg.JWTSecret == "" {
		if !cfg.IsDevelopment() {
			return nil, fmt.Errorf("PANTRY_JWT_SECRET is required when PANTRY_ENV=%s", cfg.Environment)
		}
		cfg.JWTSecret = devJWTSecret
	}

	return cfg, nil
}
