package search_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luislascano01/Stratvithor/llm"
	"github.com/luislascano01/Stratvithor/search"
	"github.com/luislascano01/Stratvithor/summarizer"
)

// stubSearchAPI returns the same fixed hit (including a duplicate URL
// across "different" queries) so the aggregator's URL-dedup behavior is
// exercised deterministically regardless of which query "wins" the race.
type stubSearchAPI struct {
	results []search.SearchResult
}

func (s stubSearchAPI) Search(_ context.Context, _ search.SearchRequest) (search.SearchResponse, error) {
	return search.SearchResponse{Results: s.results}, nil
}

func (stubSearchAPI) Health(_ context.Context) (bool, error) { return true, nil }

// slowScraper never returns within the context deadline, exercising the
// scraper-timeout path: the resource is dropped and the run continues.
type slowScraper struct{}

func (slowScraper) Scrape(ctx context.Context, _ string, _ search.ResourceType) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

// fixedScraper returns canned text keyed by URL.
type fixedScraper struct {
	byURL map[string]string
}

func (f fixedScraper) Scrape(_ context.Context, url string, _ search.ResourceType) (string, error) {
	if text, ok := f.byURL[url]; ok {
		return text, nil
	}
	return "", nil
}

func TestAggregateDropsResourceOnScraperTimeout(t *testing.T) {
	api := stubSearchAPI{results: []search.SearchResult{
		{URL: "https://example.com/a", Title: "A", Extension: "html"},
	}}
	agg := search.NewAggregator(
		api,
		llm.MockClient{},
		slowScraper{},
		nil,
		search.AggregatorConfig{PerResourceTimeout: 20 * time.Millisecond},
	)

	resources := agg.Aggregate(context.Background(), "general", "particular")
	require.Empty(t, resources)
}

func TestAggregateDropsUnusableTextAndDedupsURLs(t *testing.T) {
	svc := summarizer.New(summarizer.MockModel{}, nil, summarizer.Config{})
	defer svc.Shutdown()

	api := stubSearchAPI{results: []search.SearchResult{
		{URL: "https://example.com/dup", Title: "Dup", Extension: "html"},
		{URL: "https://example.com/dup", Title: "Dup again", Extension: "html"},
		{URL: "https://example.com/empty", Title: "Empty", Extension: "html"},
	}}
	scraper := fixedScraper{byURL: map[string]string{
		"https://example.com/dup": "a real article body with enough words to summarize",
	}}
	agg := search.NewAggregator(api, llm.MockClient{}, scraper, svc, search.AggregatorConfig{})

	resources := agg.Aggregate(context.Background(), "general", "particular")
	require.Len(t, resources, 1)
	require.Equal(t, "https://example.com/dup", resources[0].URL)
}
