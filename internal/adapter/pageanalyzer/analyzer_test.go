package pageanalyzer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const samplePage = `<!doctype html>
<html><head><title>Acme</title>
<script>var crm = "Salesforce";</script>
<style>.salesforce { color: red }</style>
</head>
<body>
<p>We integrate with Salesforce.</p>
<p>SALESFORCE partner since 2010, salesforce certified.</p>
<noscript>salesforce</noscript>
<template><span>salesforce</span></template>
</body></html>`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(samplePage))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<p>salesforce</p>"))
	})
	mux.HandleFunc("/many", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<p>" + strings.Repeat("Salesforce ", 15) + "</p>"))
	})
	mux.HandleFunc("/ua", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<p>" + r.UserAgent() + "</p>"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAnalyze_CountsVisibleMentions(t *testing.T) {
	srv := newTestServer(t)
	a := New(Config{}, nil)

	res := a.Analyze(context.Background(), srv.URL)
	if res.Status != "Success" {
		t.Fatalf("status = %q, want Success", res.Status)
	}
	if res.TotalMentions != 3 {
		t.Errorf("mentions = %d, want 3", res.TotalMentions)
	}
	if res.Score != 3 {
		t.Errorf("score = %v, want 3", res.Score)
	}
	if res.PagesCrawled != 1 {
		t.Errorf("pages_crawled = %d, want 1", res.PagesCrawled)
	}
	if res.Domain != srv.URL {
		t.Errorf("domain = %q, want %q", res.Domain, srv.URL)
	}
	if res.RedirectedTo != "" {
		t.Errorf("redirected_to = %q, want empty", res.RedirectedTo)
	}
}

func TestAnalyze_ScoreCapped(t *testing.T) {
	srv := newTestServer(t)
	res := New(Config{}, nil).Analyze(context.Background(), srv.URL+"/many")
	if res.TotalMentions != 15 || res.Score != 10 {
		t.Fatalf("got mentions=%d score=%v, want 15 and 10", res.TotalMentions, res.Score)
	}
}

func TestAnalyze_Non2xx(t *testing.T) {
	srv := newTestServer(t)
	res := New(Config{}, nil).Analyze(context.Background(), srv.URL+"/missing")
	if res.Status != "Error: 404 Not Found" {
		t.Fatalf("status = %q, want %q", res.Status, "Error: 404 Not Found")
	}
	if res.Score != 0 || res.PagesCrawled != 0 || res.TotalMentions != 0 {
		t.Fatalf("expected zeroed numbers, got %+v", res)
	}
}

func TestAnalyze_Redirect(t *testing.T) {
	srv := newTestServer(t)
	res := New(Config{}, nil).Analyze(context.Background(), srv.URL+"/old")
	if !res.Succeeded() {
		t.Fatalf("status = %q", res.Status)
	}
	if res.RedirectedTo != srv.URL+"/new" {
		t.Errorf("redirected_to = %q, want %q", res.RedirectedTo, srv.URL+"/new")
	}
	if res.TotalMentions != 1 {
		t.Errorf("mentions = %d, want 1", res.TotalMentions)
	}
}

func TestAnalyze_UppercaseSchemeIsNotRedirect(t *testing.T) {
	srv := newTestServer(t)
	target := "HTTP://" + strings.TrimPrefix(srv.URL, "http://")

	res := New(Config{Keyword: "keyword", Timeout: time.Second}, nil).Analyze(context.Background(), target)
	if !res.Succeeded() {
		t.Fatalf("status = %q, want Success", res.Status)
	}
	if res.RedirectedTo != "" {
		t.Errorf("redirected_to = %q, want empty", res.RedirectedTo)
	}
}

func TestAnalyze_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	res := New(Config{Timeout: 2 * time.Second}, nil).Analyze(context.Background(), url)
	if !strings.HasPrefix(res.Status, "Error: ") {
		t.Fatalf("status = %q, want Error: prefix", res.Status)
	}
	if res.Score != 0 || res.PagesCrawled != 0 {
		t.Fatalf("expected zeroed numbers, got %+v", res)
	}
}

func TestAnalyze_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	res := New(Config{Timeout: 50 * time.Millisecond}, nil).Analyze(context.Background(), srv.URL)
	if !strings.HasPrefix(res.Status, "Error: ") {
		t.Fatalf("status = %q, want Error: prefix", res.Status)
	}
}

func TestAnalyze_SendsUserAgent(t *testing.T) {
	srv := newTestServer(t)
	res := New(Config{Keyword: "domainlens"}, nil).Analyze(context.Background(), srv.URL+"/ua")
	if res.TotalMentions != 1 {
		t.Fatalf("expected default user agent echoed once, got %d mentions", res.TotalMentions)
	}

	res = New(Config{Keyword: "probe", UserAgent: "probe-agent"}, nil).Analyze(context.Background(), srv.URL+"/ua")
	if res.TotalMentions != 1 {
		t.Fatalf("expected custom user agent echoed once, got %d mentions", res.TotalMentions)
	}
}

func TestAnalyze_BodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<p>salesforce</p>" + strings.Repeat("x", 4096) + "<p>salesforce</p>"))
	}))
	t.Cleanup(srv.Close)

	res := New(Config{MaxBodyBytes: 1024}, nil).Analyze(context.Background(), srv.URL)
	if res.TotalMentions != 1 {
		t.Fatalf("mentions = %d, want 1 (tail beyond limit ignored)", res.TotalMentions)
	}
}

func TestAnalyze_LimiterHonoursCancellation(t *testing.T) {
	srv := newTestServer(t)
	a := New(Config{RequestsPerSecond: 0.001}, nil)

	if res := a.Analyze(context.Background(), srv.URL); !res.Succeeded() {
		t.Fatalf("first call should pass the limiter: %q", res.Status)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	res := a.Analyze(ctx, srv.URL)
	if !strings.HasPrefix(res.Status, "Error: ") {
		t.Fatalf("status = %q, want limiter error", res.Status)
	}
}

func TestAnalyze_NormalizesScheme(t *testing.T) {
	res := New(Config{Timeout: time.Second}, nil).Analyze(context.Background(), "  invalid host name  ")
	if !strings.HasPrefix(res.Domain, "https://") {
		t.Fatalf("domain = %q, want https:// prefix", res.Domain)
	}
	if res.Succeeded() {
		t.Fatal("malformed domain must not succeed")
	}
}

func TestCountMentions(t *testing.T) {
	tests := []struct {
		name    string
		html    string
		keyword string
		want    int
	}{
		{"plain", "<p>Salesforce salesforce</p>", "salesforce", 2},
		{"case insensitive keyword", "<p>salesforce</p>", "SalesForce", 1},
		{"non overlapping", "<p>aaaa</p>", "aa", 2},
		{"script ignored", "<script>salesforce</script><p>none</p>", "salesforce", 0},
		{"across elements", "<b>sales</b><i>force</i>", "salesforce", 1},
		{"empty keyword", "<p>x</p>", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CountMentions(strings.NewReader(tt.html), tt.keyword)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("CountMentions = %d, want %d", got, tt.want)
			}
		})
	}
}
