// Package config loads service settings from the environment (and an optional .env file).
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
	StorageLocal = "local"
	StorageR2    = "r2"
)

type Config struct {
	Port           string
	DatabaseURL    string
	GatewayToken   string
	StreamSecret   string
	AllowedOrigins []string

	LogLevel  string
	LogFormat string

	Storage StorageConfig

	SyncServiceURL string
	SyncInterval   time.Duration

	ReconcileInterval   time.Duration
	RankRefreshInterval time.Duration

	SeverityXP SeverityXP
}

type StorageConfig struct {
	Driver          string
	UploadDir       string
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	CDNBaseURL      string
}

// SeverityXP carries optional XP overrides. Zero means "use the default".
type SeverityXP struct {
	Critical int64
	High     int64
	Medium   int64
	Low      int64
}

// Load reads .env (if present) and the process environment.
// The returned bool reports whether a .env file was loaded.
func Load() (*Config, bool) {
	loaded := godotenv.Load() == nil

	cfg := &Config{
		Port:           getEnv("PORT", "5200"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		GatewayToken:   os.Getenv("GATEWAY_TOKEN"),
		StreamSecret:   os.Getenv("STREAM_TOKEN_SECRET"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		Storage: StorageConfig{
			Driver:          strings.ToLower(getEnv("STORAGE_DRIVER", StorageLocal)),
			UploadDir:       getEnv("UPLOAD_DIR", "uploads"),
			AccountID:       os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
			AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
			AccessKeySecret: os.Getenv("R2_ACCESS_KEY_SECRET"),
			Bucket:          os.Getenv("R2_BUCKET_NAME"),
			CDNBaseURL:      os.Getenv("CDN_BASE_URL"),
		},
		SyncServiceURL:      os.Getenv("SYNC_SERVICE_URL"),
		SyncInterval:        getDuration("SYNC_INTERVAL", time.Minute),
		ReconcileInterval:   getDuration("RECONCILE_INTERVAL", 6*time.Hour),
		RankRefreshInterval: getDuration("RANK_REFRESH_INTERVAL", 10*time.Minute),
		SeverityXP: SeverityXP{
			Critical: getInt64("XP_CRITICAL"),
			High:     getInt64("XP_HIGH"),
			Medium:   getInt64("XP_MEDIUM"),
			Low:      getInt64("XP_LOW"),
		},
	}
	return cfg, loaded
}

// Validate reports every missing or inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.GatewayToken == "" {
		errs = append(errs, errors.New("GATEWAY_TOKEN is required"))
	}
	if c.StreamSecret == "" {
		errs = append(errs, errors.New("STREAM_TOKEN_SECRET is required"))
	}
	switch c.Storage.Driver {
	case StorageLocal:
	case StorageR2:
		if c.Storage.AccountID == "" || c.Storage.AccessKeyID == "" ||
			c.Storage.AccessKeySecret == "" || c.Storage.Bucket == "" {
			errs = append(errs, errors.New("r2 storage needs CLOUDFLARE_ACCOUNT_ID, R2_ACCESS_KEY_ID, R2_ACCESS_KEY_SECRET and R2_BUCKET_NAME"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func getInt64(key string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(os.Getenv(key)), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
