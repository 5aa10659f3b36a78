// Package csvinput reads domain lists from uploaded CSV files.
package csvinput

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/Strob0t/DomainLens/internal/domain"
)

// ColumnName is the header that holds the domains.
const ColumnName = "domain"

const bom = "\ufeff"

// HasCSVExtension reports whether filename ends in .csv (any case).
func HasCSVExtension(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".csv")
}

// ReadDomains returns the non-blank values of the domain column in file
// order. The first row is the header. Rows shorter than the header are
// treated as blank for the domain column.
func ReadDomains(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: file is empty", domain.ErrValidation)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: invalid CSV: %v", domain.ErrValidation, err)
	}

	col := -1
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, bom)
		}
		if strings.EqualFold(strings.TrimSpace(name), ColumnName) {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("%w: CSV must have a '%s' column", domain.ErrValidation, ColumnName)
	}

	var domains []string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: invalid CSV: %v", domain.ErrValidation, err)
		}
		if col >= len(rec) {
			continue
		}
		if v := strings.TrimSpace(rec[col]); v != "" {
			domains = append(domains, v)
		}
	}

	if len(domains) == 0 {
		return nil, fmt.Errorf("%w: no domains found", domain.ErrValidation)
	}
	return domains, nil
}
