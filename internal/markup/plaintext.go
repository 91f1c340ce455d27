package markup

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PlainText extracts the text of an HTML fragment for search matching.
// Markup that cannot be parsed is returned as-is; search would rather match
// against raw markup than lose the content entirely.
func PlainText(content string) string {
	if content == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return content
	}
	return doc.Text()
}
