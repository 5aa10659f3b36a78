package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/Strob0t/DomainLens/internal/domain"
	"github.com/Strob0t/DomainLens/internal/domain/analysis"
)

func sampleResults() ([]analysis.Result, analysis.Summary) {
	results := []analysis.Result{
		analysis.Success("https://a.com", 3, "https://www.a.com/"),
		analysis.Failure("https://b.com", "404 Not Found"),
	}
	return results, analysis.Summarize(results)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"", FormatCSV},
		{"csv", FormatCSV},
		{"XLSX", FormatXLSX},
		{" json ", FormatJSON},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if err != nil {
			t.Fatalf("ParseFormat(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}

	if _, err := ParseFormat("pdf"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation for pdf, got %v", err)
	}
}

func TestFilename(t *testing.T) {
	if got := FormatCSV.Filename(); got != "keyword_analysis_results.csv" {
		t.Errorf("csv filename = %s", got)
	}
	if got := FormatXLSX.Filename(); got != "keyword_analysis_results.xlsx" {
		t.Errorf("xlsx filename = %s", got)
	}
}

func TestWriteCSV(t *testing.T) {
	results, _ := sampleResults()
	var buf bytes.Buffer
	if err := WriteCSV(&buf, results); err != nil {
		t.Fatal(err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	want := [][]string{
		{"domain", "score", "status", "pages_crawled", "total_mentions", "redirected_to"},
		{"https://a.com", "3", "Success", "1", "3", "https://www.a.com/"},
		{"https://b.com", "0", "Error: 404 Not Found", "0", "0", ""},
	}
	for i := range want {
		for j := range want[i] {
			if rows[i][j] != want[i][j] {
				t.Errorf("row %d col %d = %q, want %q", i, j, rows[i][j], want[i][j])
			}
		}
	}
}

func TestWriteJSON(t *testing.T) {
	results, summary := sampleResults()
	var buf bytes.Buffer
	if err := Write(&buf, FormatJSON, results, summary); err != nil {
		t.Fatal(err)
	}

	var got struct {
		Results []analysis.Result `json:"results"`
		Summary analysis.Summary  `json:"summary"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Results) != 2 || got.Summary != summary {
		t.Fatalf("unexpected document %+v", got)
	}
}

func TestWriteXLSX(t *testing.T) {
	results, summary := sampleResults()
	var buf bytes.Buffer
	if err := Write(&buf, FormatXLSX, results, summary); err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) != 2 || sheets[0] != SheetResults || sheets[1] != SheetSummary {
		t.Fatalf("sheets = %v", sheets)
	}

	rows, err := f.GetRows(SheetResults)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "domain" || rows[1][0] != "https://a.com" || rows[2][2] != "Error: 404 Not Found" {
		t.Fatalf("unexpected rows %v", rows)
	}

	rate, err := f.GetCellValue(SheetSummary, "B2")
	if err != nil {
		t.Fatal(err)
	}
	if rate != "50" {
		t.Errorf("success_rate cell = %q, want 50", rate)
	}
}
