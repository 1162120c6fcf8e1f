package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
)

// Config holds all application configuration
type Config struct {
	// Database
	DatabaseHost     string `envconfig:"DATABASE_HOST" default:"localhost"`
	DatabasePort     int    `envconfig:"DATABASE_PORT" default:"5432"`
	DatabaseName     string `envconfig:"DATABASE_NAME" default:"nflstats"`
	DatabaseUser     string `envconfig:"DATABASE_USER" default:"nflstats"`
	DatabasePassword string `envconfig:"DATABASE_PASSWORD" required:"true"`
	DatabaseSSLMode  string `envconfig:"DATABASE_SSL_MODE" default:"disable"`

	// Redis (query cache)
	RedisEnabled  bool   `envconfig:"REDIS_ENABLED" default:"true"`
	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Application
	AppEnv   string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// GitHub releases
	GitHubBaseURL  string        `envconfig:"GITHUB_API_BASE_URL" default:"https://api.github.com"`
	GitHubOwner    string        `envconfig:"GITHUB_OWNER" default:"nflverse"`
	GitHubRepo     string        `envconfig:"GITHUB_REPO" default:"nflverse-data"`
	GitHubToken    string        `envconfig:"GITHUB_TOKEN" default:""`
	ReleaseTimeout time.Duration `envconfig:"RELEASE_TIMEOUT" default:"60s"`

	// Sync
	SyncTags             []string `envconfig:"SYNC_TAGS" default:"stats_team"`
	SyncYears            string   `envconfig:"SYNC_YEARS" default:""`
	SyncFetchConcurrency int      `envconfig:"SYNC_FETCH_CONCURRENCY" default:"4"`
	IngestChunkSize      int      `envconfig:"INGEST_CHUNK_SIZE" default:"10000"`
	StatsDir             string   `envconfig:"STATS_DIR" default:""`

	// Scheduler
	EnableScheduler    bool   `envconfig:"ENABLE_SCHEDULER" default:"true"`
	InitialSyncEnabled bool   `envconfig:"INITIAL_SYNC_ENABLED" default:"true"`
	NightlyRefreshCron string `envconfig:"NIGHTLY_REFRESH_CRON" default:"0 2 * * *"`

	// Caching TTL (in seconds)
	CacheTTLQueries int `envconfig:"CACHE_TTL_QUERIES" default:"3600"`

	// Monitoring
	EnableMetrics bool `envconfig:"ENABLE_METRICS" default:"true"`
	MetricsPort   int  `envconfig:"METRICS_PORT" default:"9090"`
}

// Load loads configuration from environment variables
// It first attempts to load from .env file if in development mode
func Load() (*Config, error) {
	// Try to load .env file (ignore error if doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.DatabasePassword == "" {
		return fmt.Errorf("DATABASE_PASSWORD is required")
	}

	if len(c.SyncTags) == 0 {
		return fmt.Errorf("SYNC_TAGS must name at least one release tag")
	}

	if _, err := c.Years(); err != nil {
		return err
	}

	if c.SyncFetchConcurrency < 1 {
		return fmt.Errorf("SYNC_FETCH_CONCURRENCY must be at least 1")
	}

	if c.IngestChunkSize < 1 {
		return fmt.Errorf("INGEST_CHUNK_SIZE must be at least 1")
	}

	if c.EnableScheduler {
		if _, err := cron.ParseStandard(c.NightlyRefreshCron); err != nil {
			return fmt.Errorf("NIGHTLY_REFRESH_CRON: %w", err)
		}
	}

	return nil
}

// Years parses SYNC_YEARS. An empty value means every year.
func (c *Config) Years() ([]int, error) {
	return ParseYears(c.SyncYears)
}

// ParseYears parses a comma separated list of seasons
func ParseYears(s string) ([]int, error) {
	var years []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		y, err := strconv.Atoi(part)
		if err != nil || y < 1900 || y > 2200 {
			return nil, fmt.Errorf("invalid season %q", part)
		}
		years = append(years, y)
	}
	return years, nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DatabaseHost,
		c.DatabasePort,
		c.DatabaseUser,
		c.DatabasePassword,
		c.DatabaseName,
		c.DatabaseSSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// CacheTTL returns the query cache TTL
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLQueries) * time.Second
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// MustLoad loads configuration or panics on error
// Use this in main() where we want to fail fast
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
