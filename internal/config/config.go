package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"yt-hotness/internal/domain"
)

// Database connection modes.
const (
	DBModeDirect  = "direct"
	DBModePooled  = "pooled"
	DBModeDisable = "disable"
)

// DatabaseConfig is resolved once at startup and handed to db.Connect.
type DatabaseConfig struct {
	URL      string
	Mode     string
	CACert   string
	Insecure bool
}

type Config struct {
	Database DatabaseConfig

	YouTubeAPIKey       string
	YouTubeBaseURL      string
	YouTubeRateLimitMin int

	Region             string
	CatalogCategories  []int
	CatalogSyncEnabled bool
	CatalogInterval    time.Duration

	PollInterval   time.Duration
	PollTimezone   string
	PollBatchSize  int
	PollMaxVideos  int
	PollBatchDelay time.Duration

	RedisURL    string
	RunLockTTL  time.Duration
	APIKey      string
	HTTPAddr    string
	LogLevel    string
	LogFormat   string
	Environment string

	TracingEnabled bool
	MetricsEnabled bool
	OTLPEndpoint   string
}

func Load() *Config {
	cfg := &Config{
		YouTubeAPIKey: os.Getenv("YT_API_KEY"),
		RedisURL:      strings.TrimSpace(os.Getenv("REDIS_URL")),
		APIKey:        strings.TrimSpace(os.Getenv("API_KEY")),
	}

	// the pooler URL wins when both are present
	cfg.Database.URL = strings.TrimSpace(os.Getenv("DATABASE_POOL_URL"))
	if cfg.Database.URL == "" {
		cfg.Database.URL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if cfg.Database.URL == "" {
		log.Println("Warning: DATABASE_URL not set")
	}

	cfg.Database.Mode = strings.ToLower(strings.TrimSpace(os.Getenv("DB_MODE")))
	if cfg.Database.Mode == "" {
		cfg.Database.Mode = DBModeDirect
	}

	cfg.Database.CACert = os.Getenv("DB_CA_CERT")
	if cfg.Database.CACert == "" {
		if v := strings.TrimSpace(os.Getenv("DB_CA_CERT_B64")); v != "" {
			decoded, err := base64.StdEncoding.DecodeString(v)
			if err != nil {
				log.Printf("Warning: DB_CA_CERT_B64 is not valid base64: %v", err)
			} else {
				cfg.Database.CACert = string(decoded)
			}
		}
	}
	cfg.Database.Insecure = strings.EqualFold(strings.TrimSpace(os.Getenv("DB_TLS_INSECURE")), "true")

	if cfg.YouTubeAPIKey == "" {
		log.Println("Warning: YT_API_KEY not set")
	}

	cfg.YouTubeBaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("YT_BASE_URL")), "/")
	if cfg.YouTubeBaseURL == "" {
		cfg.YouTubeBaseURL = "https://www.googleapis.com/youtube/v3"
	}

	cfg.YouTubeRateLimitMin = 60
	if v := strings.TrimSpace(os.Getenv("YT_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.YouTubeRateLimitMin = n
		}
	}

	cfg.Region = strings.ToUpper(strings.TrimSpace(os.Getenv("REGION_CODE")))
	if cfg.Region == "" {
		cfg.Region = domain.DefaultRegion
	}

	cfg.CatalogCategories = parseCategories(os.Getenv("CATALOG_CATEGORIES"))
	cfg.CatalogSyncEnabled = strings.EqualFold(strings.TrimSpace(os.Getenv("CATALOG_SYNC_ENABLED")), "true")
	cfg.CatalogInterval = durationEnv("CATALOG_SYNC_INTERVAL", 6*time.Hour)

	cfg.PollInterval = durationEnv("POLL_INTERVAL", 15*time.Minute)

	cfg.PollTimezone = strings.TrimSpace(os.Getenv("POLL_TIMEZONE"))
	if cfg.PollTimezone == "" {
		cfg.PollTimezone = "Asia/Seoul"
	}
	if _, err := time.LoadLocation(cfg.PollTimezone); err != nil {
		log.Printf("Warning: unknown POLL_TIMEZONE=%q, defaulting to Asia/Seoul", cfg.PollTimezone)
		cfg.PollTimezone = "Asia/Seoul"
	}

	cfg.PollBatchSize = 50
	if v := strings.TrimSpace(os.Getenv("POLL_BATCH_SIZE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 50 {
			cfg.PollBatchSize = n
		}
	}

	cfg.PollMaxVideos = 200
	if v := strings.TrimSpace(os.Getenv("POLL_MAX_VIDEOS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PollMaxVideos = n
		}
	}

	cfg.PollBatchDelay = 400 * time.Millisecond
	if v := strings.TrimSpace(os.Getenv("POLL_BATCH_DELAY_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.PollBatchDelay = time.Duration(n) * time.Millisecond
		}
	}

	cfg.RunLockTTL = durationEnv("RUN_LOCK_TTL", 10*time.Minute)

	cfg.HTTPAddr = strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	cfg.LogLevel = strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	cfg.LogFormat = strings.TrimSpace(os.Getenv("LOG_FORMAT"))
	cfg.Environment = strings.TrimSpace(os.Getenv("ENV"))

	cfg.TracingEnabled = !strings.EqualFold(strings.TrimSpace(os.Getenv("TRACING_ENABLED")), "false")
	cfg.MetricsEnabled = strings.EqualFold(strings.TrimSpace(os.Getenv("METRICS_ENABLED")), "true")
	cfg.OTLPEndpoint = strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	if cfg.OTLPEndpoint == "" {
		cfg.OTLPEndpoint = "localhost:4317"
	}

	return cfg
}

// Validate reports configuration errors that must stop the process.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.URL == "" {
		errs = append(errs, errors.New("missing DATABASE_URL or DATABASE_POOL_URL"))
	}
	if c.YouTubeAPIKey == "" {
		errs = append(errs, errors.New("missing YT_API_KEY"))
	}
	if err := c.Database.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (d DatabaseConfig) Validate() error {
	switch d.Mode {
	case DBModePooled, DBModeDisable:
		return nil
	case DBModeDirect:
		if d.CACert == "" && !d.Insecure {
			return errors.New("direct database mode needs DB_CA_CERT, DB_CA_CERT_B64 or DB_TLS_INSECURE=true")
		}
		return nil
	default:
		return fmt.Errorf("unsupported DB_MODE=%q", d.Mode)
	}
}

// Location returns the timezone the poll cadence is anchored to.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.PollTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("Warning: invalid %s=%q, defaulting to %s", key, v, fallback)
		return fallback
	}
	return d
}

func parseCategories(raw string) []int {
	var out []int
	seen := make(map[int]struct{})
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			log.Printf("Warning: ignoring invalid category %q", part)
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	if len(out) == 0 {
		return []int{domain.DefaultCategoryID}
	}
	return out
}
