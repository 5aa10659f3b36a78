// Package config provides hierarchical configuration loading for DomainLens.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Analyze modes for POST /analyze.
const (
	AnalyzeModeAsync = "async"
	AnalyzeModeSync  = "sync"
)

// Task store backends.
const (
	StoreMemory    = "memory"
	StoreRistretto = "ristretto"
	StoreNATS      = "nats"
	StoreTiered    = "tiered"
)

// Config holds all runtime configuration for the DomainLens service.
type Config struct {
	Server      Server      `yaml:"server"`
	Analyzer    Analyzer    `yaml:"analyzer"`
	Batch       Batch       `yaml:"batch"`
	Store       Store       `yaml:"store"`
	NATS        NATS        `yaml:"nats"`
	Idempotency Idempotency `yaml:"idempotency"`
	Breaker     Breaker     `yaml:"breaker"`
	Logging     Logging     `yaml:"logging"`
	OTEL        OTEL        `yaml:"otel"`
	MCP         MCP         `yaml:"mcp"`
}

// Server holds HTTP server configuration.
type Server struct {
	Port           string        `yaml:"port"`
	CORSOrigin     string        `yaml:"cors_origin"`
	AnalyzeMode    string        `yaml:"analyze_mode"`     // "async" | "sync" (default: "async")
	SyncTimeout    time.Duration `yaml:"sync_timeout"`     // Max wait for sync /analyze before falling back to 202
	MaxUploadBytes int64         `yaml:"max_upload_bytes"` // Upload size limit (default: 16 MiB)
}

// Analyzer holds page fetch and scoring configuration.
type Analyzer struct {
	Keyword           string        `yaml:"keyword"`
	UserAgent         string        `yaml:"user_agent"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes"`
	RequestsPerSecond float64       `yaml:"requests_per_second"` // 0 = unthrottled
}

// Batch holds orchestration limits.
type Batch struct {
	MaxConcurrency int `yaml:"max_concurrency"` // Process-wide concurrent fetches (default: 10)
	MaxDomains     int `yaml:"max_domains"`     // Max domains per batch (default: 1000)
}

// Store holds task store configuration.
type Store struct {
	Backend       string        `yaml:"backend"` // "memory" | "ristretto" | "nats" | "tiered"
	Retention     time.Duration `yaml:"retention"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	L1MaxSizeMB   int64         `yaml:"l1_max_size_mb"`
	KVBucket      string        `yaml:"kv_bucket"`
}

// NATS holds NATS connection configuration. An empty URL disables NATS.
type NATS struct {
	URL           string `yaml:"url"`
	EventsEnabled bool   `yaml:"events_enabled"`
}

// Idempotency holds idempotency key configuration.
type Idempotency struct {
	Enabled bool          `yaml:"enabled"`
	Bucket  string        `yaml:"bucket"`
	TTL     time.Duration `yaml:"ttl"`
}

// Breaker holds circuit breaker configuration for remote stores.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Async   bool   `yaml:"async"`
}

// OTEL holds OpenTelemetry exporter configuration.
type OTEL struct {
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
	Insecure    bool   `yaml:"insecure"`
}

// MCP holds Model Context Protocol server configuration.
type MCP struct {
	Enabled bool   `yaml:"enabled"`
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// Defaults returns a Config with sensible defaults for local development.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:           "8080",
			CORSOrigin:     "*",
			AnalyzeMode:    AnalyzeModeAsync,
			SyncTimeout:    5 * time.Minute,
			MaxUploadBytes: 16 << 20,
		},
		Analyzer: Analyzer{
			Keyword:      "salesforce",
			UserAgent:    "Mozilla/5.0 (compatible; DomainLens/1.0)",
			Timeout:      15 * time.Second,
			MaxBodyBytes: 5 << 20,
		},
		Batch: Batch{
			MaxConcurrency: 10,
			MaxDomains:     1000,
		},
		Store: Store{
			Backend:       StoreMemory,
			Retention:     30 * time.Minute,
			SweepInterval: time.Minute,
			L1MaxSizeMB:   64,
			KVBucket:      "DOMAINLENS_TASKS",
		},
		NATS: NATS{
			EventsEnabled: true,
		},
		Idempotency: Idempotency{
			Enabled: true,
			Bucket:  "DOMAINLENS_IDEMPOTENCY",
			TTL:     24 * time.Hour,
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
		Logging: Logging{
			Level:   "info",
			Service: "domainlens",
		},
		OTEL: OTEL{
			ServiceName: "domainlens",
			Insecure:    true,
		},
		MCP: MCP{
			Enabled: true,
			Name:    "domainlens",
			Version: "1.0.0",
		},
	}
}
