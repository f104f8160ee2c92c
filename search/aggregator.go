package search

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	conc "github.com/sourcegraph/conc/pool"

	"github.com/luislascano01/Stratvithor/llm"
	"github.com/luislascano01/Stratvithor/summarizer"
)

// chunkTokenThreshold is the approximate word count above which a scrape is
// split into fixed-size chunks before summarization.
const chunkTokenThreshold = 500
const chunkWordsPerPiece = 400

// AggregatorConfig tunes fan-out width and per-resource/global timeouts.
type AggregatorConfig struct {
	MaxResultsPerQuery int
	MaxConcurrentFetch int
	PerResourceTimeout time.Duration
	GlobalScrapeBudget time.Duration
}

func (c AggregatorConfig) withDefaults() AggregatorConfig {
	if c.MaxResultsPerQuery <= 0 {
		c.MaxResultsPerQuery = 4
	}
	if c.MaxConcurrentFetch <= 0 {
		c.MaxConcurrentFetch = 8
	}
	if c.PerResourceTimeout <= 0 {
		c.PerResourceTimeout = 20 * time.Second
	}
	if c.GlobalScrapeBudget <= 0 {
		c.GlobalScrapeBudget = 500 * time.Second
	}
	return c
}

// Aggregator implements the SearchAggregator component.
type Aggregator struct {
	cfg        AggregatorConfig
	searchAPI  SearchAPI
	llmClient  llm.Client
	scraper    Scraper
	summarizer *summarizer.Service
	httpClient *http.Client
}

func NewAggregator(searchAPI SearchAPI, llmClient llm.Client, scraper Scraper, summarizerSvc *summarizer.Service, cfg AggregatorConfig) *Aggregator {
	return &Aggregator{
		cfg:        cfg.withDefaults(),
		searchAPI:  searchAPI,
		llmClient:  llmClient,
		scraper:    scraper,
		summarizer: summarizerSvc,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Aggregate runs the full pipeline: query synthesis, search fan-out,
// type detection, isolated scraping, and summarization, returning the
// resources worth citing.
func (a *Aggregator) Aggregate(ctx context.Context, generalPrompt, particularPrompt string) []OnlineResource {
	queries := synthesizeQueries(ctx, a.llmClient, generalPrompt, particularPrompt)
	hits := a.searchFanOut(ctx, queries)
	if len(hits) == 0 {
		return nil
	}

	scrapeCtx, cancel := context.WithTimeout(ctx, a.cfg.GlobalScrapeBudget)
	defer cancel()

	scraped := a.scrapeFanOut(scrapeCtx, hits)

	resources := make([]OnlineResource, 0, len(scraped))
	for _, res := range scraped {
		summary := a.summarizeScrape(ctx, res)
		if isUnusableText(summary) {
			continue
		}
		res.ScrappedText = summary
		resources = append(resources, res)
	}
	return resources
}

// searchFanOut issues every query concurrently but merges results in query
// order so "first occurrence wins" dedup is deterministic regardless of
// completion order.
func (a *Aggregator) searchFanOut(ctx context.Context, queries []string) []OnlineResource {
	perQuery := make([][]OnlineResource, len(queries))

	p := conc.New().WithMaxGoroutines(a.cfg.MaxConcurrentFetch)
	for i, q := range queries {
		i, q := i, q
		p.Go(func() {
			resp, err := a.searchAPI.Search(ctx, SearchRequest{
				GeneralPrompt:    q,
				ParticularPrompt: q,
				MaxResults:       a.cfg.MaxResultsPerQuery,
			})
			if err != nil {
				return
			}
			out := make([]OnlineResource, 0, len(resp.Results))
			for _, r := range resp.Results {
				out = append(out, OnlineResource{
					URL:          r.URL,
					DisplayURL:   r.DisplayURL,
					Title:        r.Title,
					Snippet:      r.Snippet,
					ScrappedText: r.ScrappedText,
					Extension:    ResourceType(r.Extension),
				})
			}
			perQuery[i] = out
		})
	}
	p.Wait()

	seen := make(map[string]struct{})
	var merged []OnlineResource
	for _, group := range perQuery {
		for _, res := range group {
			if res.URL == "" {
				continue
			}
			if _, ok := seen[res.URL]; ok {
				continue
			}
			seen[res.URL] = struct{}{}
			merged = append(merged, res)
		}
	}
	return merged
}

// scrapeFanOut scrapes every hit through the isolated Scraper, bounding
// concurrency and enforcing the per-resource timeout. ctx already carries
// the global wall-clock cap; resources still in flight when it fires are
// simply dropped as the isolated worker processes are killed with it.
func (a *Aggregator) scrapeFanOut(ctx context.Context, hits []OnlineResource) []OnlineResource {
	var mu sync.Mutex
	var out []OnlineResource

	p := conc.New().WithMaxGoroutines(a.cfg.MaxConcurrentFetch)
	for _, hit := range hits {
		hit := hit
		p.Go(func() {
			kind := hit.Extension
			if kind == "" {
				kind = detectResourceType(ctx, a.httpClient, hit.URL)
			}
			text, err := scrapeWithTimeout(ctx, a.scraper, hit.URL, kind, a.cfg.PerResourceTimeout)
			if err != nil || isUnusableText(text) {
				return
			}
			hit.Extension = kind
			hit.ScrappedText = text
			mu.Lock()
			out = append(out, hit)
			mu.Unlock()
		})
	}
	p.Wait()
	return out
}

// summarizeScrape submits the scraped body to the summarizer, splitting
// into fixed-size chunks first when it's long enough to risk overwhelming
// the model, then optionally re-summarizing the concatenation of chunk
// summaries.
func (a *Aggregator) summarizeScrape(ctx context.Context, res OnlineResource) string {
	if a.summarizer == nil {
		return res.ScrappedText
	}

	words := strings.Fields(res.ScrappedText)
	if len(words) <= chunkTokenThreshold {
		return a.summarizeOnce(ctx, res.URL, res.ScrappedText)
	}

	var chunkSummaries []string
	for i := 0; i < len(words); i += chunkWordsPerPiece {
		end := i + chunkWordsPerPiece
		if end > len(words) {
			end = len(words)
		}
		chunk := strings.Join(words[i:end], " ")
		summary := a.summarizeOnce(ctx, fmt.Sprintf("%s#chunk%d", res.URL, i), chunk)
		if summary != "" {
			chunkSummaries = append(chunkSummaries, summary)
		}
	}
	if len(chunkSummaries) == 0 {
		return ""
	}
	return a.summarizeOnce(ctx, res.URL+"#final", strings.Join(chunkSummaries, "\n\n"))
}

func (a *Aggregator) summarizeOnce(ctx context.Context, requestID, text string) string {
	future, err := a.summarizer.Submit(summarizer.Request{
		ID:       requestID,
		Priority: summarizer.PriorityNormal,
		Text:     text,
		Deadline: time.Now().Add(a.cfg.PerResourceTimeout),
	})
	if err != nil {
		return ""
	}
	resp, err := future.GetWithContext(ctx)
	if err != nil || resp.Err != nil {
		return ""
	}
	return resp.SummaryText
}
