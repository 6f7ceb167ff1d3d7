package parser

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// imageResolver normalizes image URLs against a site origin and unwraps
// image-optimizer redirects.
type imageResolver struct {
	origin  *url.URL
	markers []string
}

func newImageResolver(origin string, markers []string) imageResolver {
	r := imageResolver{markers: markers}
	if origin != "" {
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			r.origin = &url.URL{Scheme: u.Scheme, Host: u.Host}
		}
	}
	return r
}

func isInlineSVG(raw string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(raw)), "data:image/svg")
}

func isAbsoluteOrRootRelative(raw string) bool {
	lower := strings.ToLower(raw)
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(raw, "//") ||
		strings.HasPrefix(raw, "/")
}

func (r imageResolver) hasMarker(raw string) bool {
	for _, m := range r.markers {
		if m != "" && strings.Contains(raw, m) {
			return true
		}
	}
	return false
}

// absolute makes protocol-relative and root-relative URLs absolute.
// Other forms are returned unchanged.
func (r imageResolver) absolute(raw string) string {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return ""
	case strings.HasPrefix(raw, "//"):
		return "https:" + raw
	case strings.HasPrefix(raw, "/") && r.origin != nil:
		return r.origin.String() + raw
	}
	return raw
}

// resolve returns the final image URL for a raw attribute value.
func (r imageResolver) resolve(raw string) string {
	abs := r.absolute(raw)
	if abs == "" || !r.hasMarker(abs) {
		return abs
	}
	u, err := url.Parse(abs)
	if err != nil {
		return abs
	}
	inner := u.Query().Get("url")
	if inner == "" {
		return abs
	}
	return r.absolute(inner)
}

type srcsetEntry struct {
	url    string
	weight float64
}

// parseSrcset splits a srcset attribute into its candidates.
func parseSrcset(srcset string) []srcsetEntry {
	var entries []srcsetEntry
	for _, part := range strings.Split(srcset, ",") {
		fields := strings.Fields(strings.TrimSpace(part))
		if len(fields) == 0 {
			continue
		}
		e := srcsetEntry{url: fields[0]}
		if len(fields) > 1 {
			d := fields[len(fields)-1]
			if n, err := strconv.ParseFloat(strings.TrimRight(d, "wxWX"), 64); err == nil {
				e.weight = n
			}
		}
		entries = append(entries, e)
	}
	return entries
}

// bestSrcsetURL picks the highest-resolution candidate. Candidates without
// descriptors keep document order, so the last entry wins.
func bestSrcsetURL(srcset string) string {
	entries := parseSrcset(srcset)
	if len(entries) == 0 {
		return ""
	}
	idx := make([]int, len(entries))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return entries[idx[a]].weight < entries[idx[b]].weight
	})
	return entries[idx[len(idx)-1]].url
}

func imgSrc(img *goquery.Selection) string {
	for _, attr := range []string{"src", "data-src", "data-lazy-src", "data-original"} {
		if v := strings.TrimSpace(img.AttrOr(attr, "")); v != "" && !isInlineSVG(v) {
			if attr == "src" && strings.HasPrefix(v, "data:") {
				continue
			}
			return v
		}
	}
	return ""
}

// pickImage chooses the best image inside a container:
// optimizer srcset, then any srcset, then an absolute or root-relative
// src, then any other src.
func (r imageResolver) pickImage(container *goquery.Selection) *string {
	imgs := container.Find("img")
	if goquery.NodeName(container) == "img" {
		imgs = container
	}

	var anySrcset, direct, other string
	var chosen string
	imgs.EachWithBreak(func(_ int, img *goquery.Selection) bool {
		if isInlineSVG(img.AttrOr("src", "")) && img.AttrOr("srcset", "") == "" {
			return true
		}
		if srcset := strings.TrimSpace(img.AttrOr("srcset", img.AttrOr("data-srcset", ""))); srcset != "" {
			best := bestSrcsetURL(srcset)
			if best != "" && !isInlineSVG(best) {
				if r.hasMarker(srcset) {
					chosen = best
					return false
				}
				if anySrcset == "" {
					anySrcset = best
				}
			}
		}
		src := imgSrc(img)
		switch {
		case src == "":
		case isAbsoluteOrRootRelative(src):
			if direct == "" {
				direct = src
			}
		default:
			if other == "" {
				other = src
			}
		}
		return true
	})

	for _, c := range []string{chosen, anySrcset, direct, other} {
		if c == "" {
			continue
		}
		if resolved := r.resolve(c); resolved != "" {
			return &resolved
		}
	}
	return nil
}
