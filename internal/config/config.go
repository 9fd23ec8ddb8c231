package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	// News API source.
	NewsAPIKey    string
	NewsAPIURL    string
	SourceTimeout time.Duration

	// RSS sweep source.
	RSSEnabled bool
	RSSFeeds   []string

	// Storage backend: "sqlite" or "postgres".
	DBDriver string
	DBDSN    string

	// Refresh job.
	FetchInterval time.Duration
	FetchWorkers  int

	// Kafka article-event publishing.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string

	// Nominatim geocoding for registry entries without coordinates.
	NominatimEnabled   bool
	NominatimURL       string
	NominatimTimeout   time.Duration
	NominatimCacheSize int

	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	fetchInterval, err := envDuration("FETCH_INTERVAL", 10*time.Minute)
	if err != nil {
		return nil, err
	}
	sourceTimeout, err := envDuration("SOURCE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	nominatimTimeout, err := envDuration("NOMINATIM_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := envDuration("SHUTDOWN_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	fetchWorkers, err := envInt("FETCH_WORKERS", 4)
	if err != nil {
		return nil, err
	}
	cacheSize, err := envInt("NOMINATIM_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:  envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "json"),

		NewsAPIKey:    os.Getenv("NEWS_API_KEY"),
		NewsAPIURL:    envOrDefault("NEWS_API_URL", "https://eventregistry.org/api/v1/minuteStreamArticles"),
		SourceTimeout: sourceTimeout,

		RSSEnabled: envBool("RSS_ENABLED", true),
		RSSFeeds:   splitList(os.Getenv("RSS_FEEDS")),

		DBDriver: envOrDefault("DB_DRIVER", "sqlite"),
		DBDSN:    envOrDefault("DB_DSN", "worldonfire.db"),

		FetchInterval: fetchInterval,
		FetchWorkers:  fetchWorkers,

		KafkaEnabled: envBool("KAFKA_ENABLED", false),
		KafkaBrokers: splitList(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "news-articles"),

		NominatimEnabled:   envBool("NOMINATIM_ENABLED", false),
		NominatimURL:       envOrDefault("NOMINATIM_URL", "https://nominatim.openstreetmap.org/search"),
		NominatimTimeout:   nominatimTimeout,
		NominatimCacheSize: cacheSize,

		ShutdownTimeout: shutdownTimeout,
	}

	if cfg.NewsAPIKey == "" {
		return nil, errors.New("NEWS_API_KEY is required")
	}
	if cfg.DBDriver != "sqlite" && cfg.DBDriver != "postgres" {
		return nil, fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", cfg.DBDriver)
	}
	if cfg.DBDSN == "" {
		return nil, errors.New("DB_DSN is required")
	}
	if cfg.FetchInterval < time.Minute {
		return nil, errors.New("FETCH_INTERVAL must be at least 1m")
	}
	if cfg.FetchWorkers < 1 {
		return nil, errors.New("FETCH_WORKERS must be positive")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return fallback
}

// splitList parses a comma-separated list, trimming whitespace and dropping
// empty entries.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
