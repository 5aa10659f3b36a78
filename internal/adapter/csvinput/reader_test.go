package csvinput

import (
	"errors"
	"strings"
	"testing"

	"github.com/Strob0t/DomainLens/internal/domain"
)

func TestReadDomains(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"single column", "domain\na.com\nb.com\n", []string{"a.com", "b.com"}},
		{"case insensitive header", "Domain\na.com\n", []string{"a.com"}},
		{"padded header", " domain ,name\na.com,A\n", []string{"a.com"}},
		{"bom", "\ufeffdomain\na.com\n", []string{"a.com"}},
		{"second column", "name,domain\nAcme,acme.com\nBeta,beta.io\n", []string{"acme.com", "beta.io"}},
		{"blank values skipped", "domain\na.com\n\n  \nb.com\n", []string{"a.com", "b.com"}},
		{"short rows skipped", "name,domain\nsolo\nAcme,acme.com\n", []string{"acme.com"}},
		{"values trimmed", "domain\n  a.com  \n", []string{"a.com"}},
		{"crlf", "domain\r\na.com\r\nb.com\r\n", []string{"a.com", "b.com"}},
		{"quoted", "domain,note\n\"https://a.com\",\"x, y\"\n", []string{"https://a.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadDomains(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReadDomainsErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty file", "", "file is empty"},
		{"missing column", "url\na.com\n", "CSV must have a 'domain' column"},
		{"header only", "domain\n", "no domains found"},
		{"all blank", "domain\n\n   \n", "no domains found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadDomains(strings.NewReader(tt.input))
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestHasCSVExtension(t *testing.T) {
	tests := map[string]bool{
		"domains.csv": true,
		"DOMAINS.CSV": true,
		"a.b.csv":     true,
		"domains.txt": false,
		"csv":         false,
		"":            false,
	}
	for name, want := range tests {
		if got := HasCSVExtension(name); got != want {
			t.Errorf("HasCSVExtension(%q) = %v, want %v", name, got, want)
		}
	}
}
