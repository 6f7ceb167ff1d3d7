package pipeline

import (
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/IshaanNene/newsdesk/internal/types"
)

// TrimMiddleware trims whitespace from every teaser field.
type TrimMiddleware struct{}

func (m *TrimMiddleware) Name() string { return "trim" }

func (m *TrimMiddleware) Process(t *types.Teaser) (*types.Teaser, error) {
	t.Title = strings.TrimSpace(t.Title)
	t.Content = strings.TrimSpace(t.Content)
	t.Image = strings.TrimSpace(t.Image)
	t.URL = strings.TrimSpace(t.URL)
	t.Date = strings.TrimSpace(t.Date)
	t.Category = strings.TrimSpace(t.Category)
	return t, nil
}

// SanitizeMiddleware strips markup that leaked into text fields and
// collapses whitespace.
type SanitizeMiddleware struct {
	policy *bluemonday.Policy
}

func NewSanitizeMiddleware() *SanitizeMiddleware {
	return &SanitizeMiddleware{policy: bluemonday.StrictPolicy()}
}

func (m *SanitizeMiddleware) Name() string { return "sanitize" }

func (m *SanitizeMiddleware) clean(s string) string {
	if s == "" {
		return s
	}
	cleaned := html.UnescapeString(m.policy.Sanitize(s))
	return strings.Join(strings.Fields(cleaned), " ")
}

func (m *SanitizeMiddleware) Process(t *types.Teaser) (*types.Teaser, error) {
	t.Title = m.clean(t.Title)
	t.Content = m.clean(t.Content)
	t.Category = m.clean(t.Category)
	return t, nil
}

// DateNormalizeMiddleware rewrites recognised dates into outFormat.
// Unrecognised dates are left as extracted.
type DateNormalizeMiddleware struct {
	outFormat string
	inFormats []string
}

func NewDateNormalizeMiddleware(outFormat string) *DateNormalizeMiddleware {
	if outFormat == "" {
		outFormat = time.RFC3339
	}
	return &DateNormalizeMiddleware{
		outFormat: outFormat,
		inFormats: []string{
			time.RFC3339,
			time.RFC1123,
			time.RFC1123Z,
			"2006-01-02",
			"2006-01-02T15:04:05",
			"2006-01-02 15:04:05",
			"02/01/2006",
			"02/01/2006 15:04",
			"15:04 02/01/2006",
			"January 2, 2006",
			"Jan 2, 2006",
			"2 Jan 2006",
			"2006/01/02",
		},
	}
}

func (m *DateNormalizeMiddleware) Name() string { return "date_normalize" }

func (m *DateNormalizeMiddleware) Process(t *types.Teaser) (*types.Teaser, error) {
	s := strings.TrimSpace(t.Date)
	if s == "" {
		return t, nil
	}
	for _, format := range m.inFormats {
		parsed, err := time.Parse(format, s)
		if err == nil {
			t.Date = parsed.Format(m.outFormat)
			break
		}
	}
	return t, nil
}

// RequiredFieldsMiddleware drops teasers that break the teaser invariant,
// and optionally those without a link.
type RequiredFieldsMiddleware struct {
	RequireURL bool
}

func (m *RequiredFieldsMiddleware) Name() string { return "required_fields" }

func (m *RequiredFieldsMiddleware) Process(t *types.Teaser) (*types.Teaser, error) {
	if !t.Valid() {
		return nil, nil
	}
	if m.RequireURL && t.URL == "" {
		return nil, nil
	}
	return t, nil
}
