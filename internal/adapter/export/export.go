// Package export renders finished batch results as CSV, XLSX or JSON downloads.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Strob0t/DomainLens/internal/domain"
	"github.com/Strob0t/DomainLens/internal/domain/analysis"
)

// Format is a download format.
type Format string

// Supported formats.
const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// baseName is the download file name without extension.
const baseName = "keyword_analysis_results"

// Columns is the column order shared by the CSV and XLSX results.
var Columns = []string{"domain", "score", "status", "pages_crawled", "total_mentions", "redirected_to"}

// ParseFormat maps a query value to a Format. Empty selects CSV.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatXLSX, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unsupported format %q (want csv, xlsx or json)", domain.ErrValidation, s)
	}
}

// Filename returns the attachment name for f.
func (f Format) Filename() string {
	return baseName + "." + string(f)
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatJSON:
		return "application/json"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Write renders results in format f.
func Write(w io.Writer, f Format, results []analysis.Result, summary analysis.Summary) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, results)
	case FormatXLSX:
		return WriteXLSX(w, results, summary)
	case FormatJSON:
		return WriteJSON(w, results, summary)
	default:
		return fmt.Errorf("%w: unsupported format %q", domain.ErrValidation, f)
	}
}

// WriteCSV writes a header row and one row per result.
func WriteCSV(w io.Writer, results []analysis.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for i := range results {
		if err := cw.Write(row(&results[i])); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes {"results": [...], "summary": {...}}.
func WriteJSON(w io.Writer, results []analysis.Result, summary analysis.Summary) error {
	if results == nil {
		results = []analysis.Result{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Results []analysis.Result `json:"results"`
		Summary analysis.Summary  `json:"summary"`
	}{results, summary})
}

func row(r *analysis.Result) []string {
	return []string{
		r.Domain,
		strconv.FormatFloat(r.Score, 'f', -1, 64),
		r.Status,
		strconv.Itoa(r.PagesCrawled),
		strconv.Itoa(r.TotalMentions),
		r.RedirectedTo,
	}
}
