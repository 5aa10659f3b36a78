package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	dlhttp "github.com/Strob0t/DomainLens/internal/adapter/http"
	dlmcp "github.com/Strob0t/DomainLens/internal/adapter/mcp"
	dlnats "github.com/Strob0t/DomainLens/internal/adapter/nats"
	"github.com/Strob0t/DomainLens/internal/adapter/otel"
	"github.com/Strob0t/DomainLens/internal/adapter/pageanalyzer"
	"github.com/Strob0t/DomainLens/internal/config"
	"github.com/Strob0t/DomainLens/internal/logger"
	"github.com/Strob0t/DomainLens/internal/middleware"
	"github.com/Strob0t/DomainLens/internal/service"
	"github.com/Strob0t/DomainLens/internal/workpool"
)

const usage = `Usage:
  domainlens [serve] [--config FILE] [--port PORT] [--log-level LEVEL]
                     [--nats-url URL] [--store BACKEND] [--analyze-mode MODE]
  domainlens analyze --input domains.csv [--output FILE] [--format csv|xlsx|json]
                     [--keyword K] [--concurrency N] [--timeout D]
`

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

// run dispatches to a subcommand. A missing command or a leading flag means serve.
func run(args []string, stdout, stderr io.Writer) error {
	cmd := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}
	switch cmd {
	case "serve":
		return serve(args)
	case "analyze":
		return analyzeCommand(args, stderr)
	case "help":
		_, _ = io.WriteString(stdout, usage)
		return nil
	default:
		_, _ = io.WriteString(stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func serve(args []string) error {
	flags, err := config.ParseFlags(args)
	if err != nil {
		return err
	}
	cfg, cfgPath, err := config.LoadWithCLI(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closeLog := logger.New(cfg.Logging)
	defer closeLog.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"file", cfgPath,
		"port", cfg.Server.Port,
		"store", cfg.Store.Backend,
		"analyze_mode", cfg.Server.AnalyzeMode,
		"max_concurrency", cfg.Batch.MaxConcurrency,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Observability ---

	shutdownOTel, err := otel.Setup(ctx, otel.Config{
		Endpoint:    cfg.OTEL.Endpoint,
		ServiceName: cfg.OTEL.ServiceName,
		Insecure:    cfg.OTEL.Insecure,
	})
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(flushCtx); err != nil {
			slog.Warn("otel shutdown failed", "error", err)
		}
	}()

	metrics, err := otel.NewMetrics()
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}

	// --- Infrastructure ---

	var bus *dlnats.Bus
	if cfg.NATS.URL != "" {
		bus, err = dlnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = bus.Close() }()
	}

	stores, err := openStores(ctx, cfg, bus)
	if err != nil {
		return err
	}
	defer stores.Close()

	// --- Services ---

	analyzer := pageanalyzer.New(pageanalyzer.Config{
		Keyword:           cfg.Analyzer.Keyword,
		UserAgent:         cfg.Analyzer.UserAgent,
		Timeout:           cfg.Analyzer.Timeout,
		MaxBodyBytes:      cfg.Analyzer.MaxBodyBytes,
		RequestsPerSecond: cfg.Analyzer.RequestsPerSecond,
	}, nil)

	batches := service.NewBatchService(stores.tasks, analyzer, workpool.New(cfg.Batch.MaxConcurrency), cfg.Batch.MaxDomains)
	batches.SetMetrics(metrics)
	if bus != nil && cfg.NATS.EventsEnabled {
		batches.SetPublisher(bus)
	}

	// --- HTTP ---

	handlers := &dlhttp.Handlers{
		Batches:        batches,
		AnalyzeMode:    cfg.Server.AnalyzeMode,
		SyncTimeout:    cfg.Server.SyncTimeout,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		StoreBackend:   cfg.Store.Backend,
		StoreState:     stores.state,
	}
	if bus != nil {
		handlers.Bus = bus
	}

	var opts dlhttp.RouteOptions
	if stores.idempotency != nil {
		opts.Idempotency = middleware.Idempotency(stores.idempotency, cfg.Idempotency.TTL)
	}
	var mcpServer *dlmcp.Server
	if cfg.MCP.Enabled {
		mcpServer = dlmcp.NewServer(dlmcp.ServerConfig{
			Name:        cfg.MCP.Name,
			Version:     cfg.MCP.Version,
			SyncTimeout: cfg.Server.SyncTimeout,
		}, dlmcp.ServerDeps{Batches: batches})
		opts.MCP = mcpServer.Handler()
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(otel.HTTPMiddleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID)
	r.Use(dlhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(dlhttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(dlhttp.SecurityHeaders)

	dlhttp.MountRoutes(r, handlers, opts)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      cfg.Server.SyncTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown failed", "error", err)
	}
	if mcpServer != nil {
		if err := mcpServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("mcp shutdown failed", "error", err)
		}
	}
	if err := batches.Shutdown(shutdownCtx); err != nil {
		slog.Error("batch shutdown incomplete", "error", err, "running", batches.Running())
		return err
	}
	slog.Info("shutdown complete")
	return nil
}
