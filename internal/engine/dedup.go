package engine

import (
	"context"
	"fmt"

	"github.com/IshaanNene/newsdesk/internal/types"
)

// URLLookup reports which of a batch of URLs are already stored.
type URLLookup interface {
	ExistingURLs(ctx context.Context, urls []string) (map[string]bool, error)
}

// FilterStats counts what the de-duplication gate dropped.
type FilterStats struct {
	Input      int `json:"input"`
	MissingURL int `json:"missingUrl"`
	InBatch    int `json:"inBatch"`
	Existing   int `json:"existing"`
	New        int `json:"new"`
}

// Duplicates is the number of teasers dropped as already known.
func (s FilterStats) Duplicates() int { return s.InBatch + s.Existing }

// FilterNew returns the teasers whose URL is neither repeated earlier in
// the batch nor already stored. URLs are compared as exact strings. Order
// is preserved and the store is queried once per call.
func FilterNew(ctx context.Context, teasers []types.Teaser, lookup URLLookup) ([]types.Teaser, FilterStats, error) {
	stats := FilterStats{Input: len(teasers)}

	seen := make(map[string]struct{}, len(teasers))
	candidates := make([]types.Teaser, 0, len(teasers))
	urls := make([]string, 0, len(teasers))
	for _, t := range teasers {
		if t.URL == "" {
			stats.MissingURL++
			continue
		}
		if _, dup := seen[t.URL]; dup {
			stats.InBatch++
			continue
		}
		seen[t.URL] = struct{}{}
		candidates = append(candidates, t)
		urls = append(urls, t.URL)
	}
	if len(candidates) == 0 {
		return nil, stats, nil
	}

	existing, err := lookup.ExistingURLs(ctx, urls)
	if err != nil {
		return nil, stats, fmt.Errorf("lookup existing urls: %w", err)
	}

	fresh := candidates[:0]
	for _, t := range candidates {
		if existing[t.URL] {
			stats.Existing++
			continue
		}
		fresh = append(fresh, t)
	}
	stats.New = len(fresh)
	return fresh, stats, nil
}
