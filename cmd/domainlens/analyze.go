package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/Strob0t/DomainLens/internal/adapter/csvinput"
	"github.com/Strob0t/DomainLens/internal/adapter/export"
	"github.com/Strob0t/DomainLens/internal/adapter/memstore"
	"github.com/Strob0t/DomainLens/internal/adapter/pageanalyzer"
	"github.com/Strob0t/DomainLens/internal/config"
	"github.com/Strob0t/DomainLens/internal/domain/batch"
	"github.com/Strob0t/DomainLens/internal/logger"
	"github.com/Strob0t/DomainLens/internal/service"
	"github.com/Strob0t/DomainLens/internal/workpool"
)

const (
	progressInterval = 200 * time.Millisecond
	progressWidth    = 40
)

// analyzeOptions are the flags of the analyze command.
type analyzeOptions struct {
	Input       string
	Output      string
	Format      export.Format
	Keyword     string
	Concurrency int
	Timeout     time.Duration
}

func parseAnalyzeFlags(args []string, cfg *config.Config) (analyzeOptions, error) {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	opts := analyzeOptions{}
	var format string
	fs.StringVar(&opts.Input, "input", "", "CSV file with a 'domain' column")
	fs.StringVar(&opts.Input, "i", "", "input CSV (shorthand)")
	fs.StringVar(&opts.Output, "output", "", "output file (default keyword_analysis_results.<format>)")
	fs.StringVar(&opts.Output, "o", "", "output file (shorthand)")
	fs.StringVar(&format, "format", "", "csv, xlsx or json (default from output extension, else csv)")
	fs.StringVar(&opts.Keyword, "keyword", cfg.Analyzer.Keyword, "keyword to count")
	fs.IntVar(&opts.Concurrency, "concurrency", cfg.Batch.MaxConcurrency, "concurrent fetches")
	fs.DurationVar(&opts.Timeout, "timeout", cfg.Analyzer.Timeout, "per-domain request timeout")

	if err := fs.Parse(args); err != nil {
		return opts, fmt.Errorf("parse flags: %w", err)
	}
	if opts.Input == "" {
		return opts, errors.New("--input is required")
	}
	if opts.Concurrency < 1 {
		return opts, errors.New("--concurrency must be >= 1")
	}
	if opts.Timeout <= 0 {
		return opts, errors.New("--timeout must be positive")
	}
	if strings.TrimSpace(opts.Keyword) == "" {
		return opts, errors.New("--keyword must not be empty")
	}

	if format == "" && opts.Output != "" {
		format = strings.TrimPrefix(filepath.Ext(opts.Output), ".")
	}
	f, err := export.ParseFormat(format)
	if err != nil {
		return opts, err
	}
	opts.Format = f
	if opts.Output == "" {
		opts.Output = f.Filename()
	}
	return opts, nil
}

// analyzeCommand runs one batch in-process against a memory store and
// writes the export file.
func analyzeCommand(args []string, stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	opts, err := parseAnalyzeFlags(args, cfg)
	if err != nil {
		return err
	}

	cfg.Logging.Level = "warn"
	log, closeLog := logger.NewWithWriter(cfg.Logging, stderr)
	defer closeLog.Close()

	domains, err := readDomainFile(opts.Input)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	analyzer := pageanalyzer.New(pageanalyzer.Config{
		Keyword:           opts.Keyword,
		UserAgent:         cfg.Analyzer.UserAgent,
		Timeout:           opts.Timeout,
		MaxBodyBytes:      cfg.Analyzer.MaxBodyBytes,
		RequestsPerSecond: cfg.Analyzer.RequestsPerSecond,
	}, nil)
	svc := service.NewBatchService(memstore.New(0), analyzer, workpool.New(opts.Concurrency), len(domains))

	t, err := runBatch(ctx, svc, domains, progressWriter(stderr))
	if err != nil {
		return err
	}

	if err := writeExport(opts.Output, opts.Format, t); err != nil {
		return err
	}
	log.Info("analysis written", "output", opts.Output, "domains", t.Summary.TotalDomains)
	_, _ = fmt.Fprintf(stderr, "Analyzed %d domains for %q: success rate %.1f%%, average score %.1f -> %s\n",
		t.Summary.TotalDomains, analyzer.Keyword(), t.Summary.SuccessRate, t.Summary.AverageScore, opts.Output)
	return nil
}

func readDomainFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer func() { _ = f.Close() }()

	domains, err := csvinput.ReadDomains(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return domains, nil
}

// runBatch submits domains and polls until the Task is terminal, drawing
// progress when bar is non-nil. Cancelling ctx cancels the batch.
func runBatch(ctx context.Context, svc *service.BatchService, domains []string, bar io.Writer) (*batch.Task, error) {
	t, err := svc.Submit(ctx, domains)
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = svc.Shutdown(shutdownCtx)
			clearProgress(bar)
			return nil, fmt.Errorf("analysis interrupted: %w", ctx.Err())
		case <-ticker.C:
		}

		snap, err := svc.Get(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		drawProgress(bar, snap.Progress, progressWidth)
		switch snap.Status {
		case batch.StatusCompleted:
			drawProgress(bar, 100, progressWidth)
			clearProgress(bar)
			return snap, nil
		case batch.StatusFailed:
			clearProgress(bar)
			return nil, fmt.Errorf("analysis failed: %s", snap.Error)
		}
	}
}

func writeExport(path string, format export.Format, t *batch.Task) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close output: %w", cerr)
		}
	}()
	if err := export.Write(f, format, t.Results, *t.Summary); err != nil {
		return fmt.Errorf("write %s: %w", format, err)
	}
	return nil
}

// progressWriter returns w when it is a terminal, nil otherwise.
func progressWriter(w io.Writer) io.Writer {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	return w
}

// drawProgress renders "\r[####----]  42.0%" on w. A nil w draws nothing.
func drawProgress(w io.Writer, pct float64, width int) {
	if w == nil {
		return
	}
	pct = max(0, min(pct, 100))
	filled := int(pct / 100 * float64(width))
	_, _ = fmt.Fprintf(w, "\r[%s%s] %5.1f%%", strings.Repeat("#", filled), strings.Repeat("-", width-filled), pct)
}

func clearProgress(w io.Writer) {
	if w != nil {
		_, _ = io.WriteString(w, "\n")
	}
}
