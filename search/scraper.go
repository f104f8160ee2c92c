package search

import (
	"context"
	"errors"
	"time"
)

// ErrScrapeTimeout is returned when a scrape does not complete within its
// per-resource timeout.
var ErrScrapeTimeout = errors.New("search: scrape timed out")

// Scraper fetches and extracts plain text from a single URL. Implementations
// must honor ctx cancellation promptly: the aggregator's global wall-clock
// cap relies on it to abandon slow resources.
type Scraper interface {
	Scrape(ctx context.Context, url string, kind ResourceType) (string, error)
}

// scrapeWithTimeout wraps a Scraper call with a per-resource deadline,
// translating a context.DeadlineExceeded into ErrScrapeTimeout so callers
// can distinguish it from other scrape failures.
func scrapeWithTimeout(ctx context.Context, s Scraper, url string, kind ResourceType, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	text, err := s.Scrape(ctx, url, kind)
	if err != nil {
		if ctx.Err() != nil {
			return "", ErrScrapeTimeout
		}
		return "", err
	}
	return text, nil
}
