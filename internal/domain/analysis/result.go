// Package analysis defines the per-domain analysis result and the summary
// statistics derived from a finished batch.
package analysis

import "strings"

// StatusSuccess marks a result whose landing page was fetched and scored.
const StatusSuccess = "Success"

// errorPrefix starts every failed result status.
const errorPrefix = "Error: "

// MaxScore caps the keyword score of a single domain.
const MaxScore = 10

// Result is the outcome of analyzing one domain.
type Result struct {
	Domain        string  `json:"domain"`
	Score         float64 `json:"score"`
	Status        string  `json:"status"`
	PagesCrawled  int     `json:"pages_crawled"`
	TotalMentions int     `json:"total_mentions"`
	RedirectedTo  string  `json:"redirected_to,omitempty"`
}

// Succeeded reports whether the result carries a successful fetch.
func (r Result) Succeeded() bool {
	return r.Status == StatusSuccess
}

// Success builds a scored result for a fetched page.
func Success(domain string, mentions int, redirectedTo string) Result {
	if mentions < 0 {
		mentions = 0
	}
	return Result{
		Domain:        domain,
		Score:         ScoreFor(mentions),
		Status:        StatusSuccess,
		PagesCrawled:  1,
		TotalMentions: mentions,
		RedirectedTo:  redirectedTo,
	}
}

// Failure builds a zero-scored result carrying the failure detail.
func Failure(domain, detail string) Result {
	return Result{
		Domain: domain,
		Status: errorPrefix + detail,
	}
}

// IsError reports whether a status string denotes a failed analysis.
func IsError(status string) bool {
	return strings.HasPrefix(status, errorPrefix)
}

// ScoreFor maps a mention count to min(mentions, MaxScore).
func ScoreFor(mentions int) float64 {
	if mentions > MaxScore {
		return MaxScore
	}
	if mentions < 0 {
		return 0
	}
	return float64(mentions)
}

// NormalizeDomain trims the input and prefixes https:// when no http(s)
// scheme is present. The value is not otherwise validated.
func NormalizeDomain(raw string) string {
	d := strings.TrimSpace(raw)
	lower := strings.ToLower(d)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return d
	}
	return "https://" + d
}
