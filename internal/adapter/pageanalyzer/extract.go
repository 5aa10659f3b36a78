package pageanalyzer

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// hiddenSelector matches elements whose text never renders.
const hiddenSelector = "script, style, noscript, template"

// VisibleText parses HTML and returns its text with hidden elements removed.
func VisibleText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", err
	}
	doc.Find(hiddenSelector).Remove()
	return doc.Text(), nil
}

// CountMentions counts non-overlapping, case-insensitive occurrences of
// keyword in the visible text of the HTML read from r.
func CountMentions(r io.Reader, keyword string) (int, error) {
	text, err := VisibleText(r)
	if err != nil {
		return 0, err
	}
	keyword = strings.ToLower(keyword)
	if keyword == "" {
		return 0, nil
	}
	return strings.Count(strings.ToLower(text), keyword), nil
}
