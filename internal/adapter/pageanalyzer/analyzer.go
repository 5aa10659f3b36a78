// Package pageanalyzer fetches a domain's landing page and scores it by how
// often a keyword appears in the visible text.
package pageanalyzer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/Strob0t/DomainLens/internal/adapter/otel"
	"github.com/Strob0t/DomainLens/internal/domain/analysis"
)

// Defaults applied by New for zero Config fields.
const (
	DefaultKeyword      = "salesforce"
	DefaultUserAgent    = "Mozilla/5.0 (compatible; DomainLens/1.0)"
	DefaultTimeout      = 15 * time.Second
	DefaultMaxBodyBytes = 5 << 20
)

// Config controls fetching and scoring.
type Config struct {
	Keyword           string
	UserAgent         string
	Timeout           time.Duration
	MaxBodyBytes      int64
	RequestsPerSecond float64 // 0 disables throttling
}

// Analyzer scores single domains. It is safe for concurrent use.
type Analyzer struct {
	client    *http.Client
	keyword   string
	userAgent string
	maxBody   int64
	limiter   *rate.Limiter
}

// New creates an Analyzer. transport may be nil to use the default
// transport; it is wrapped for tracing either way.
func New(cfg Config, transport http.RoundTripper) *Analyzer {
	if cfg.Keyword == "" {
		cfg.Keyword = DefaultKeyword
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	a := &Analyzer{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otel.Transport(transport),
		},
		keyword:   cfg.Keyword,
		userAgent: cfg.UserAgent,
		maxBody:   cfg.MaxBodyBytes,
	}
	if cfg.RequestsPerSecond > 0 {
		a.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return a
}

// Keyword returns the keyword being counted.
func (a *Analyzer) Keyword() string { return a.keyword }

// Analyze fetches the landing page of domain and scores it. It never fails:
// transport and HTTP errors are reported in the result status.
func (a *Analyzer) Analyze(ctx context.Context, domain string) analysis.Result {
	target := analysis.NormalizeDomain(domain)

	ctx, span := otel.StartAnalyzeSpan(ctx, target)
	defer span.End()

	res := a.analyze(ctx, target)

	span.SetAttributes(
		attribute.String("analysis.status", res.Status),
		attribute.Int("analysis.mentions", res.TotalMentions),
	)
	if !res.Succeeded() {
		span.SetStatus(codes.Error, res.Status)
	}
	return res
}

func (a *Analyzer) analyze(ctx context.Context, target string) analysis.Result {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return analysis.Failure(target, err.Error())
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return analysis.Failure(target, err.Error())
	}
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := a.client.Do(req)
	if err != nil {
		return analysis.Failure(target, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return analysis.Failure(target, resp.Status)
	}

	mentions, err := CountMentions(io.LimitReader(resp.Body, a.maxBody), a.keyword)
	if err != nil {
		return analysis.Failure(target, fmt.Sprintf("parse page: %v", err))
	}

	var redirectedTo string
	if final := resp.Request.URL.String(); final != req.URL.String() {
		redirectedTo = final
	}
	return analysis.Success(target, mentions, redirectedTo)
}
