package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/Strob0t/DomainLens/internal/domain/analysis"
)

// Sheet names in the XLSX workbook.
const (
	SheetResults = "Results"
	SheetSummary = "Summary"
)

// WriteXLSX writes a workbook with a Results sheet and a Summary sheet.
func WriteXLSX(w io.Writer, results []analysis.Result, summary analysis.Summary) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetResults); err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}
	if _, err := f.NewSheet(SheetSummary); err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}

	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetResults, "A1", &header); err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}
	if err := f.SetRowStyle(SheetResults, 1, 1, bold); err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}

	for i := range results {
		r := &results[i]
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("xlsx: %w", err)
		}
		values := []any{r.Domain, r.Score, r.Status, r.PagesCrawled, r.TotalMentions, r.RedirectedTo}
		if err := f.SetSheetRow(SheetResults, cell, &values); err != nil {
			return fmt.Errorf("xlsx: %w", err)
		}
	}
	if err := f.SetColWidth(SheetResults, "A", "A", 40); err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}
	if err := f.SetColWidth(SheetResults, "C", "C", 30); err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}

	rows := [][]any{
		{"total_domains", summary.TotalDomains},
		{"success_rate", summary.SuccessRate},
		{"average_score", summary.AverageScore},
	}
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("xlsx: %w", err)
		}
		if err := f.SetSheetRow(SheetSummary, cell, &rows[i]); err != nil {
			return fmt.Errorf("xlsx: %w", err)
		}
	}
	if err := f.SetColWidth(SheetSummary, "A", "A", 20); err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}
