package crawler

import (
	"net/url"
	"strings"
	"time"

	"github.com/gosimple/slug"

	"github.com/IshaanNene/newsdesk/internal/parser"
)

const maxTitleSlug = 50

var unsafeFilenameChars = strings.NewReplacer(`"`, "", `\`, "", "/", "-", "\r", "", "\n", "")

// GenerateFilename names a downloaded page. A custom name wins; otherwise
// the slug of the page title (at most 50 characters); otherwise
// domain-path-YYYY-MM-DD derived from the URL.
func GenerateFilename(rawURL, markup, custom string, now time.Time) string {
	if custom = strings.TrimSpace(unsafeFilenameChars.Replace(custom)); custom != "" {
		return custom + ".html"
	}

	if title := parser.ExtractTitle(markup); title != "" {
		if s := truncateSlug(slug.Make(title), maxTitleSlug); s != "" {
			return s + ".html"
		}
	}

	date := now.UTC().Format("2006-01-02")
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "crawled-page-" + date + ".html"
	}
	domain := strings.TrimPrefix(u.Hostname(), "www.")
	path := strings.Trim(strings.ReplaceAll(u.Path, "/", "-"), "-")
	if path == "" {
		return domain + "-" + date + ".html"
	}
	return domain + "-" + path + "-" + date + ".html"
}

func truncateSlug(s string, limit int) string {
	if len(s) > limit {
		s = s[:limit]
	}
	return strings.Trim(s, "-")
}
