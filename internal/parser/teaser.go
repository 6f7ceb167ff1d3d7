package parser

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/newsdesk/internal/config"
	"github.com/IshaanNene/newsdesk/internal/types"
)

const minSnippetLen = 20

var (
	titleClassSelectors   = []string{".title", "[class*='title']", "[class*='Title']"}
	contentSelectors      = []string{".description", ".excerpt", ".summary", ".sapo", "[class*='desc']", "[class*='excerpt']", "[class*='summary']", "p"}
	dateSelectors         = []string{".date", ".time", "[class*='date']", "[class*='time']", "[class*='Date']"}
	categorySelectors     = []string{".category", "[class*='category']", "[class*='Category']", ".tag", "[class*='tag'] a", ".label"}
	fallbackContainerExpr = "div"
)

// candidate holds the per-field lookup results for one container. A nil
// field means the lookup found nothing.
type candidate struct {
	image    *string
	title    *string
	content  *string
	url      *string
	date     *string
	category *string
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// teaser collapses a candidate into a Teaser, or reports false when the
// candidate lacks a title or has neither image nor content.
func (c candidate) teaser() (types.Teaser, bool) {
	if c.title == nil {
		return types.Teaser{}, false
	}
	if c.image == nil && c.content == nil {
		return types.Teaser{}, false
	}
	return types.Teaser{
		Image:    deref(c.image),
		Title:    *c.title,
		Content:  deref(c.content),
		URL:      deref(c.url),
		Date:     deref(c.date),
		Category: deref(c.category),
	}, true
}

func some(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// TeaserExtractor pulls article teasers out of listing pages using an
// ordered list of container selectors.
type TeaserExtractor struct {
	selectors []string
	images    imageResolver
	origin    *url.URL
	logger    *slog.Logger
}

// NewTeaserExtractor creates an extractor from configuration.
func NewTeaserExtractor(cfg config.ExtractorConfig, logger *slog.Logger) *TeaserExtractor {
	selectors := cfg.Selectors
	if len(selectors) == 0 {
		selectors = config.DefaultSelectors()
	}
	e := &TeaserExtractor{
		selectors: append([]string(nil), selectors...),
		images:    newImageResolver(cfg.Origin, cfg.OptimizerMarkers),
		logger:    logger.With("component", "teaser_extractor"),
	}
	e.origin = e.images.origin
	return e
}

// Selectors returns a copy of the configured selector list.
func (e *TeaserExtractor) Selectors() []string {
	return append([]string(nil), e.selectors...)
}

// Extract returns up to maxItems teasers. A non-empty override replaces
// the configured selector list. The first selector whose containers yield
// at least one valid teaser wins; later selectors are not tried.
func (e *TeaserExtractor) Extract(markup, override string, maxItems int) ([]types.Teaser, error) {
	doc, err := loadDocument(markup)
	if err != nil {
		return nil, err
	}
	return e.ExtractFromDocument(doc, override, maxItems), nil
}

// ExtractFromDocument is Extract over an already parsed document.
func (e *TeaserExtractor) ExtractFromDocument(doc *goquery.Document, override string, maxItems int) []types.Teaser {
	if maxItems <= 0 {
		maxItems = 50
	}
	selectors := e.selectors
	if override = strings.TrimSpace(override); override != "" {
		selectors = []string{override}
	}

	for _, sel := range selectors {
		containers := doc.Find(sel)
		if containers.Length() == 0 {
			continue
		}
		teasers := e.collect(containers, maxItems)
		if len(teasers) > 0 {
			e.logger.Debug("selector matched", "selector", sel, "containers", containers.Length(), "teasers", len(teasers))
			return teasers
		}
	}

	fallback := innermostCardDivs(doc)
	teasers := e.collect(fallback, maxItems)
	e.logger.Debug("fallback heuristic", "containers", fallback.Length(), "teasers", len(teasers))
	return teasers
}

func (e *TeaserExtractor) collect(containers *goquery.Selection, maxItems int) []types.Teaser {
	var out []types.Teaser
	containers.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if t, ok := e.scan(s).teaser(); ok {
			out = append(out, t)
		}
		return len(out) < maxItems
	})
	return out
}

// innermostCardDivs returns divs holding both an image and a link that do
// not themselves contain a smaller such div.
func innermostCardDivs(doc *goquery.Document) *goquery.Selection {
	isCard := func(s *goquery.Selection) bool {
		return s.Find("img").Length() > 0 && (s.Find("a[href]").Length() > 0 || s.ParentsFiltered("a[href]").Length() > 0)
	}
	return doc.Find(fallbackContainerExpr).FilterFunction(func(_ int, s *goquery.Selection) bool {
		if !isCard(s) {
			return false
		}
		nested := false
		s.Find("div").EachWithBreak(func(_ int, inner *goquery.Selection) bool {
			if inner.Find("img").Length() > 0 && inner.Find("a[href]").Length() > 0 {
				nested = true
				return false
			}
			return true
		})
		return !nested
	})
}

// scan runs every field lookup independently against one container.
func (e *TeaserExtractor) scan(s *goquery.Selection) candidate {
	c := candidate{
		image:    e.images.pickImage(s),
		title:    scanTitle(s),
		url:      e.scanURL(s),
		date:     scanDate(s),
		category: scanFirstText(s, categorySelectors, 0),
	}
	c.content = scanContent(s, deref(c.title))
	return c
}

func scanTitle(s *goquery.Selection) *string {
	for _, h := range []string{"h1", "h2", "h3", "h4", "h5", "h6"} {
		if t := cleanText(s.Find(h).First().Text()); t != "" {
			return &t
		}
	}
	if t := scanFirstText(s, titleClassSelectors, 0); t != nil {
		return t
	}
	var title *string
	s.Find("a[title]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		title = some(cleanText(a.AttrOr("title", "")))
		return title == nil
	})
	if title == nil && goquery.NodeName(s) == "a" {
		title = some(cleanText(s.AttrOr("title", "")))
	}
	return title
}

func scanContent(s *goquery.Selection, title string) *string {
	for _, sel := range contentSelectors {
		var found *string
		s.Find(sel).EachWithBreak(func(_ int, n *goquery.Selection) bool {
			t := cleanText(n.Text())
			if runeLen(t) > minSnippetLen && t != title {
				found = &t
				return false
			}
			return true
		})
		if found != nil {
			return found
		}
	}
	return nil
}

func scanFirstText(s *goquery.Selection, selectors []string, minLen int) *string {
	for _, sel := range selectors {
		var found *string
		s.Find(sel).EachWithBreak(func(_ int, n *goquery.Selection) bool {
			t := cleanText(n.Text())
			if t != "" && runeLen(t) > minLen {
				found = &t
				return false
			}
			return true
		})
		if found != nil {
			return found
		}
	}
	return nil
}

func scanDate(s *goquery.Selection) *string {
	if tm := s.Find("time").First(); tm.Length() > 0 {
		if dt := strings.TrimSpace(tm.AttrOr("datetime", "")); dt != "" {
			return &dt
		}
		if t := cleanText(tm.Text()); t != "" {
			return &t
		}
	}
	return scanFirstText(s, dateSelectors, 0)
}

func (e *TeaserExtractor) scanURL(s *goquery.Selection) *string {
	var href string
	if goquery.NodeName(s) == "a" {
		href = s.AttrOr("href", "")
	}
	if !usableHref(href) {
		href = ""
		s.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			if h := a.AttrOr("href", ""); usableHref(h) {
				href = h
				return false
			}
			return true
		})
	}
	if href == "" {
		if parent := s.ParentsFiltered("a[href]").First(); parent.Length() > 0 {
			href = parent.AttrOr("href", "")
		}
	}
	if !usableHref(href) {
		return nil
	}
	return some(e.resolveLink(href))
}

func usableHref(h string) bool {
	h = strings.TrimSpace(h)
	return h != "" && !strings.HasPrefix(h, "#") && !strings.HasPrefix(strings.ToLower(h), "javascript:")
}

func (e *TeaserExtractor) resolveLink(href string) string {
	href = strings.TrimSpace(href)
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if ref.IsAbs() {
		return ref.String()
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	if e.origin == nil {
		return href
	}
	return e.origin.ResolveReference(ref).String()
}
