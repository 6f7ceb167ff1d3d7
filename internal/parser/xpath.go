package parser

import (
	"strings"

	"github.com/antchfx/htmlquery"
)

const titleXPath = "//head/title | //title"

// ExtractTitle returns the trimmed text of the document <title>, or ""
// when the markup has none.
func ExtractTitle(markup string) string {
	doc, err := htmlquery.Parse(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	node, err := htmlquery.Query(doc, titleXPath)
	if err != nil || node == nil {
		return ""
	}
	return cleanText(htmlquery.InnerText(node))
}
