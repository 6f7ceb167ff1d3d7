package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const minMainContentLen = 100

// MainContentSelectors is the ordered list of article body containers.
var MainContentSelectors = []string{
	"article",
	".article-content",
	".post-content",
	".entry-content",
	".content",
	"main",
	"#content",
}

// noiseSelectors are removed before any main-content text is taken.
var noiseSelectors = "script, style, noscript, iframe, nav, header, footer, aside, form, .ads, .ad, .advertisement, [class*='advert'], .share, .social, .related"

// ExtractMainContent returns the readable body text of a single article
// page, or "" when nothing usable is found.
func ExtractMainContent(markup string) string {
	doc, err := loadDocument(markup)
	if err != nil {
		return ""
	}
	return MainContentFromDocument(doc)
}

// MainContentFromDocument is ExtractMainContent over a parsed document.
// The document is modified in place.
func MainContentFromDocument(doc *goquery.Document) string {
	doc.Find(noiseSelectors).Remove()

	for _, sel := range MainContentSelectors {
		var text string
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			t := blockText(s)
			if runeLen(t) > minMainContentLen {
				text = t
				return false
			}
			return true
		})
		if text != "" {
			return text
		}
	}

	var paras []string
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		t := cleanText(p.Text())
		if runeLen(t) > minSnippetLen {
			paras = append(paras, t)
		}
	})
	return NormalizeWhitespace(strings.Join(paras, "\n\n"))
}

// BodyText returns the whitespace-normalized text of <body>.
func BodyText(markup string) string {
	doc, err := loadDocument(markup)
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript").Remove()
	return blockText(doc.Find("body"))
}
