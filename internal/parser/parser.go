// Package parser turns rendered listing and article markup into teasers,
// main-content text and page metadata.
package parser

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/IshaanNene/newsdesk/internal/types"
)

var (
	spaceRun    = regexp.MustCompile(`[ \t\f\r\v\x{00a0}]+`)
	blankLineRe = regexp.MustCompile(`\n{3,}`)
)

// loadDocument parses markup into a goquery document.
func loadDocument(markup string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, &types.ParseError{Err: err}
	}
	return doc, nil
}

// cleanText collapses all whitespace runs, including newlines, to one space.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeWhitespace collapses horizontal whitespace inside each line,
// trims every line and keeps at most one blank line between blocks.
func NormalizeWhitespace(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
	}
	out := strings.Join(lines, "\n")
	out = blankLineRe.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

var blockTags = map[string]bool{
	"p": true, "div": true, "section": true, "article": true, "li": true,
	"ul": true, "ol": true, "br": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "blockquote": true, "figure": true,
	"figcaption": true, "table": true, "tr": true, "pre": true, "main": true,
}

// blockText renders the text of a selection, separating block-level
// elements with line breaks.
func blockText(sel *goquery.Selection) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if blockTags[n.Data] {
				b.WriteString("\n")
				defer b.WriteString("\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return NormalizeWhitespace(b.String())
}
