package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PageMeta is the page-level metadata used when rewriting a single article.
type PageMeta struct {
	Title         string            `json:"title"`
	Image         string            `json:"image,omitempty"`
	Description   string            `json:"description,omitempty"`
	SiteName      string            `json:"siteName,omitempty"`
	PublishedTime string            `json:"publishedTime,omitempty"`
	OpenGraph     map[string]string `json:"openGraph,omitempty"`
	Twitter       map[string]string `json:"twitter,omitempty"`
}

var contentImageSelectors = []string{
	"article img",
	".content img",
	".post-content img",
	".featured-image img",
	"img",
}

// MetaExtractor reads title, lead image and social meta tags.
type MetaExtractor struct {
	images imageResolver
}

// NewMetaExtractor creates a meta extractor resolving URLs against origin.
func NewMetaExtractor(origin string, markers []string) *MetaExtractor {
	return &MetaExtractor{images: newImageResolver(origin, markers)}
}

// Extract parses markup into PageMeta. Missing fields stay empty.
func (m *MetaExtractor) Extract(markup string) (PageMeta, error) {
	doc, err := loadDocument(markup)
	if err != nil {
		return PageMeta{}, err
	}

	meta := PageMeta{
		OpenGraph: extractOpenGraph(doc),
		Twitter:   extractTwitterCard(doc),
	}

	meta.Title = ExtractTitle(markup)
	if meta.Title == "" {
		meta.Title = cleanText(doc.Find("h1").First().Text())
	}

	meta.Description = meta.OpenGraph["description"]
	if meta.Description == "" {
		meta.Description = strings.TrimSpace(doc.Find(`meta[name="description"]`).AttrOr("content", ""))
	}
	meta.SiteName = meta.OpenGraph["site_name"]
	meta.PublishedTime = strings.TrimSpace(doc.Find(`meta[property="article:published_time"]`).AttrOr("content", ""))

	meta.Image = m.leadImage(doc, meta)
	return meta, nil
}

func (m *MetaExtractor) leadImage(doc *goquery.Document, meta PageMeta) string {
	for _, raw := range []string{meta.OpenGraph["image"], meta.Twitter["image"], meta.Twitter["image:src"]} {
		if raw != "" && !isInlineSVG(raw) {
			return m.images.resolve(raw)
		}
	}
	for _, sel := range contentImageSelectors {
		var src string
		doc.Find(sel).EachWithBreak(func(_ int, img *goquery.Selection) bool {
			src = imgSrc(img)
			return src == ""
		})
		if src != "" {
			return m.images.resolve(src)
		}
	}
	return ""
}

// extractOpenGraph parses og: meta tags.
func extractOpenGraph(doc *goquery.Document) map[string]string {
	data := make(map[string]string)
	doc.Find(`meta[property^="og:"]`).Each(func(_ int, sel *goquery.Selection) {
		property, _ := sel.Attr("property")
		content, _ := sel.Attr("content")
		key := strings.TrimPrefix(property, "og:")
		if _, seen := data[key]; !seen && content != "" {
			data[key] = strings.TrimSpace(content)
		}
	})
	return data
}

// extractTwitterCard parses twitter: meta tags.
func extractTwitterCard(doc *goquery.Document) map[string]string {
	data := make(map[string]string)
	doc.Find(`meta[name^="twitter:"], meta[property^="twitter:"]`).Each(func(_ int, sel *goquery.Selection) {
		name := sel.AttrOr("name", sel.AttrOr("property", ""))
		content, _ := sel.Attr("content")
		key := strings.TrimPrefix(name, "twitter:")
		if _, seen := data[key]; !seen && content != "" {
			data[key] = strings.TrimSpace(content)
		}
	})
	return data
}
