package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "domainlens.yaml"

// ConfigPathEnv overrides DefaultConfigFile.
const ConfigPathEnv = "DOMAINLENS_CONFIG"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	path := DefaultConfigFile
	if p := os.Getenv(ConfigPathEnv); p != "" {
		path = p
	}
	return LoadFrom(path)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied config path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "DOMAINLENS_PORT")
	setString(&cfg.Server.CORSOrigin, "DOMAINLENS_CORS_ORIGIN")
	setString(&cfg.Server.AnalyzeMode, "DOMAINLENS_ANALYZE_MODE")
	setDuration(&cfg.Server.SyncTimeout, "DOMAINLENS_SYNC_TIMEOUT")
	setInt64(&cfg.Server.MaxUploadBytes, "DOMAINLENS_MAX_UPLOAD_BYTES")

	// Analyzer
	setString(&cfg.Analyzer.Keyword, "DOMAINLENS_KEYWORD")
	setString(&cfg.Analyzer.UserAgent, "DOMAINLENS_USER_AGENT")
	setDuration(&cfg.Analyzer.Timeout, "DOMAINLENS_FETCH_TIMEOUT")
	setInt64(&cfg.Analyzer.MaxBodyBytes, "DOMAINLENS_MAX_BODY_BYTES")
	setFloat64(&cfg.Analyzer.RequestsPerSecond, "DOMAINLENS_FETCH_RPS")

	// Batch
	setInt(&cfg.Batch.MaxConcurrency, "DOMAINLENS_MAX_CONCURRENCY")
	setInt(&cfg.Batch.MaxDomains, "DOMAINLENS_MAX_DOMAINS")

	// Store
	setString(&cfg.Store.Backend, "DOMAINLENS_STORE_BACKEND")
	setDuration(&cfg.Store.Retention, "DOMAINLENS_STORE_RETENTION")
	setDuration(&cfg.Store.SweepInterval, "DOMAINLENS_STORE_SWEEP_INTERVAL")
	setInt64(&cfg.Store.L1MaxSizeMB, "DOMAINLENS_STORE_L1_SIZE_MB")
	setString(&cfg.Store.KVBucket, "DOMAINLENS_STORE_KV_BUCKET")

	setString(&cfg.NATS.URL, "NATS_URL")
	setBool(&cfg.NATS.EventsEnabled, "DOMAINLENS_NATS_EVENTS")

	// Idempotency
	setBool(&cfg.Idempotency.Enabled, "DOMAINLENS_IDEMPOTENCY_ENABLED")
	setString(&cfg.Idempotency.Bucket, "DOMAINLENS_IDEMPOTENCY_BUCKET")
	setDuration(&cfg.Idempotency.TTL, "DOMAINLENS_IDEMPOTENCY_TTL")

	setInt(&cfg.Breaker.MaxFailures, "DOMAINLENS_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "DOMAINLENS_BREAKER_TIMEOUT")

	setString(&cfg.Logging.Level, "DOMAINLENS_LOG_LEVEL")
	setString(&cfg.Logging.Service, "DOMAINLENS_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "DOMAINLENS_LOG_ASYNC")

	setString(&cfg.OTEL.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.OTEL.ServiceName, "OTEL_SERVICE_NAME")
	setBool(&cfg.OTEL.Insecure, "DOMAINLENS_OTEL_INSECURE")

	setBool(&cfg.MCP.Enabled, "DOMAINLENS_MCP_ENABLED")
}

// validate checks that the configuration is usable.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	switch cfg.Server.AnalyzeMode {
	case AnalyzeModeAsync, AnalyzeModeSync:
	default:
		return fmt.Errorf("server.analyze_mode %q must be async or sync", cfg.Server.AnalyzeMode)
	}
	if cfg.Server.SyncTimeout <= 0 {
		return errors.New("server.sync_timeout must be > 0")
	}
	if cfg.Server.MaxUploadBytes <= 0 {
		return errors.New("server.max_upload_bytes must be > 0")
	}
	if cfg.Analyzer.Keyword == "" {
		return errors.New("analyzer.keyword is required")
	}
	if cfg.Analyzer.Timeout <= 0 {
		return errors.New("analyzer.timeout must be > 0")
	}
	if cfg.Analyzer.MaxBodyBytes <= 0 {
		return errors.New("analyzer.max_body_bytes must be > 0")
	}
	if cfg.Analyzer.RequestsPerSecond < 0 {
		return errors.New("analyzer.requests_per_second must be >= 0")
	}
	if cfg.Batch.MaxConcurrency < 1 {
		return errors.New("batch.max_concurrency must be >= 1")
	}
	if cfg.Batch.MaxDomains < 1 {
		return errors.New("batch.max_domains must be >= 1")
	}
	switch cfg.Store.Backend {
	case StoreMemory, StoreRistretto:
	case StoreNATS, StoreTiered:
		if cfg.NATS.URL == "" {
			return fmt.Errorf("store.backend %q requires nats.url", cfg.Store.Backend)
		}
	default:
		return fmt.Errorf("store.backend %q is not supported", cfg.Store.Backend)
	}
	if cfg.Store.Retention <= 0 {
		return errors.New("store.retention must be > 0")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Idempotency.Enabled && cfg.Idempotency.TTL <= 0 {
		return errors.New("idempotency.ttl must be > 0")
	}

	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
