package config

import (
	"flag"
	"fmt"
	"io"
	"os"
)

// CLIFlags holds command line overrides for the serve command. Nil fields
// were not given on the command line.
type CLIFlags struct {
	ConfigPath   *string
	Port         *string
	LogLevel     *string
	NatsURL      *string
	StoreBackend *string
	AnalyzeMode  *string
}

// ParseFlags parses serve command flags. Both long and short forms are
// accepted for port (-p) and config (-c).
func ParseFlags(args []string) (CLIFlags, error) {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configPath, port, logLevel string
		natsURL, backend, mode     string
	)
	fs.StringVar(&configPath, "config", "", "path to YAML config")
	fs.StringVar(&configPath, "c", "", "path to YAML config (shorthand)")
	fs.StringVar(&port, "port", "", "HTTP port")
	fs.StringVar(&port, "p", "", "HTTP port (shorthand)")
	fs.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	fs.StringVar(&natsURL, "nats-url", "", "NATS server URL")
	fs.StringVar(&backend, "store", "", "task store backend (memory, ristretto, nats, tiered)")
	fs.StringVar(&mode, "analyze-mode", "", "POST /analyze mode (async, sync)")

	if err := fs.Parse(args); err != nil {
		return CLIFlags{}, fmt.Errorf("parse flags: %w", err)
	}

	var flags CLIFlags
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "config", "c":
			flags.ConfigPath = &configPath
		case "port", "p":
			flags.Port = &port
		case "log-level":
			flags.LogLevel = &logLevel
		case "nats-url":
			flags.NatsURL = &natsURL
		case "store":
			flags.StoreBackend = &backend
		case "analyze-mode":
			flags.AnalyzeMode = &mode
		}
	})
	return flags, nil
}

// LoadWithCLI loads configuration with the hierarchy
// defaults < YAML < ENV < CLI and returns the YAML path that was used.
func LoadWithCLI(flags CLIFlags) (*Config, string, error) {
	path := DefaultConfigFile
	if p := os.Getenv(ConfigPathEnv); p != "" {
		path = p
	}
	if flags.ConfigPath != nil {
		path = *flags.ConfigPath
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, path); err != nil {
		return nil, path, fmt.Errorf("config yaml: %w", err)
	}
	loadEnv(&cfg)
	applyCLI(&cfg, flags)

	if err := validate(&cfg); err != nil {
		return nil, path, fmt.Errorf("config validate: %w", err)
	}
	return &cfg, path, nil
}

func applyCLI(cfg *Config, flags CLIFlags) {
	if flags.Port != nil {
		cfg.Server.Port = *flags.Port
	}
	if flags.LogLevel != nil {
		cfg.Logging.Level = *flags.LogLevel
	}
	if flags.NatsURL != nil {
		cfg.NATS.URL = *flags.NatsURL
	}
	if flags.StoreBackend != nil {
		cfg.Store.Backend = *flags.StoreBackend
	}
	if flags.AnalyzeMode != nil {
		cfg.Server.AnalyzeMode = *flags.AnalyzeMode
	}
}
