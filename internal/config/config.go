package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the process-wide settings for the media source provider
// daemon: ambient concerns (logging, tracing, metrics) plus knobs for the
// domain stack wired into the provider (catalog refresh cadence, circuit
// breaker thresholds, preparse concurrency).
type Config struct {
	AppEnv      string
	AppName     string
	LogLevel    string
	MetricsAddr string

	OtelExporterEndpoint string

	// CatalogRefreshInterval controls how often the provider re-polls the
	// SD plugin catalog for its cached List() results.
	CatalogRefreshInterval time.Duration

	// SdBreakerMaxFailures is the number of consecutive SD construction
	// failures before the circuit opens. The provider keeps one breaker for
	// all names: failures of any name count toward it, and while it is open
	// construction is rejected for every name.
	SdBreakerMaxFailures uint32
	// SdBreakerOpenTimeout is how long the breaker stays open before
	// allowing a trial request through.
	SdBreakerOpenTimeout time.Duration

	// PreparseWorkers bounds the number of concurrent in-flight preparse
	// requests the demo preparse engine will run at once.
	PreparseWorkers int
}

// Load reads configuration from the environment, falling back to a default
// for every unset variable; it fails only when a set value does not parse.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:               os.Getenv("APP_ENV"),
		AppName:              os.Getenv("APP_NAME"),
		LogLevel:             os.Getenv("LOG_LEVEL"),
		MetricsAddr:          os.Getenv("METRICS_ADDR"),
		OtelExporterEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if cfg.AppEnv == "" {
		cfg.AppEnv = "development"
	}
	if cfg.AppName == "" {
		cfg.AppName = "mediasource"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.MetricsAddr == "" {
		cfg.MetricsAddr = ":9090"
	}

	var err error
	cfg.CatalogRefreshInterval, err = durationEnv("MEDIASOURCE_CATALOG_REFRESH_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.SdBreakerOpenTimeout, err = durationEnv("MEDIASOURCE_SD_BREAKER_OPEN_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	cfg.SdBreakerMaxFailures = 3
	if v := os.Getenv("MEDIASOURCE_SD_BREAKER_MAX_FAILURES"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid MEDIASOURCE_SD_BREAKER_MAX_FAILURES: %w", err)
		}
		cfg.SdBreakerMaxFailures = uint32(n)
	}

	cfg.PreparseWorkers = 4
	if v := os.Getenv("MEDIASOURCE_PREPARSE_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid MEDIASOURCE_PREPARSE_WORKERS: %w", err)
		}
		cfg.PreparseWorkers = n
	}

	return cfg, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
