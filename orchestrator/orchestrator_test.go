package orchestrator_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luislascano01/Stratvithor/llm"
	"github.com/luislascano01/Stratvithor/orchestrator"
	"github.com/luislascano01/Stratvithor/promptgraph"
	"github.com/luislascano01/Stratvithor/resultstore"
	"github.com/luislascano01/Stratvithor/search"
)

func mustLoad(t *testing.T, doc string) *promptgraph.Graph {
	t.Helper()
	g, err := promptgraph.Load([]byte(doc))
	require.NoError(t, err)
	return g
}

// statusRank orders Status values so a received update stream can be
// checked for the pending < processing < {complete, failed} invariant
// without depending on exactly which transitions a lossy subscriber
// happened to observe.
func statusRank(s resultstore.Status) int {
	switch s {
	case resultstore.Pending:
		return 0
	case resultstore.Processing:
		return 1
	default:
		return 2
	}
}

// requireMonotonicPerNode asserts that, for every node id appearing in
// updates, the statuses observed for that id are non-decreasing in the
// pending < processing < terminal order and never resume after a terminal
// state — this holds regardless of how many transitions a subscriber
// actually caught.
func requireMonotonicPerNode(t *testing.T, updates []resultstore.Update) {
	t.Helper()
	last := make(map[int]resultstore.Status)
	for _, u := range updates {
		if prev, ok := last[u.NodeID]; ok {
			require.False(t, prev.Terminal(), "node %d received an update after reaching a terminal state", u.NodeID)
			require.GreaterOrEqual(t, statusRank(u.State.Status), statusRank(prev), "node %d went backwards from %s to %s", u.NodeID, prev, u.State.Status)
		}
		last[u.NodeID] = u.State.Status
	}
}

func TestTwoNodeChainMockMode(t *testing.T) {
	doc := `
prompts:
  first:
    id: 1
    text: "Summarize recent filings."
  second:
    id: 2
    text: "Summarize competitive position."
prompt_dag:
  - "1 -> 2"
`
	g := mustLoad(t, doc)
	o := orchestrator.New(g, "test-set", llm.MockClient{}, nil, orchestrator.MockFinancialLookup{})

	handle := o.Run(context.Background(), "Acme", orchestrator.Options{Mock: true})
	sub := handle.Results.Subscribe()
	require.NoError(t, handle.Wait())

	var updates []resultstore.Update
	for {
		select {
		case u := <-sub.Updates():
			updates = append(updates, u)
			continue
		default:
		}
		break
	}
	requireMonotonicPerNode(t, updates)

	for _, id := range []int{1, 2} {
		state, ok := handle.Results.Get(id)
		require.True(t, ok)
		require.Equal(t, resultstore.Complete, state.Status)
		require.Equal(t, "Some llm response", state.Result.LLMText)
	}

	first, _ := handle.Results.Get(1)
	require.Equal(t, "first", first.Result.SectionTitle)
	second, _ := handle.Results.Get(2)
	require.Equal(t, "second", second.Result.SectionTitle)
}

func TestDiamondGraphAncestorOrder(t *testing.T) {
	doc := `
prompts:
  a:
    id: 1
    text: "root"
  b:
    id: 2
    text: "left"
  c:
    id: 3
    text: "right"
  d:
    id: 4
    text: "join"
prompt_dag:
  - "1 -> 2"
  - "1 -> 3"
  - "2 -> 4"
  - "3 -> 4"
`
	g := mustLoad(t, doc)
	o := orchestrator.New(g, "test-set", llm.MockClient{}, nil, orchestrator.MockFinancialLookup{})

	handle := o.Run(context.Background(), "Acme", orchestrator.Options{Mock: true})
	require.NoError(t, handle.Wait())

	for _, id := range []int{1, 2, 3, 4} {
		state, ok := handle.Results.Get(id)
		require.True(t, ok)
		require.Equal(t, resultstore.Complete, state.Status)
	}

	ancestors := g.Ancestors(4)
	require.Contains(t, ancestors, 1)
	require.Contains(t, ancestors, 2)
	require.Contains(t, ancestors, 3)
	require.Equal(t, []int{1, 2, 3, 4}, g.TopologicalOrder())
}

func TestSystemPromptParentShortCircuits(t *testing.T) {
	doc := `
prompts:
  root:
    id: 1
    text: "You are a careful financial analyst."
    system: true
  child:
    id: 2
    text: "Summarize the filing."
prompt_dag:
  - "1 -> 2"
`
	g := mustLoad(t, doc)
	o := orchestrator.New(g, "test-set", llm.MockClient{}, nil, orchestrator.MockFinancialLookup{})

	handle := o.Run(context.Background(), "Acme", orchestrator.Options{Mock: true})
	require.NoError(t, handle.Wait())

	root, ok := handle.Results.Get(1)
	require.True(t, ok)
	require.Equal(t, resultstore.Complete, root.Status)
	require.Equal(t, "This is a system prompt", root.Result.LLMText)

	child, ok := handle.Results.Get(2)
	require.True(t, ok)
	require.Equal(t, resultstore.Complete, child.Status)
	require.Equal(t, "Some llm response", child.Result.LLMText)
}

// fixedSearchAPI always returns the same two hits regardless of query text,
// so the aggregator's six synthesized queries collapse to two deduped
// resources after merging.
type fixedSearchAPI struct {
	results []search.SearchResult
}

func (a fixedSearchAPI) Search(_ context.Context, _ search.SearchRequest) (search.SearchResponse, error) {
	return search.SearchResponse{Results: a.results}, nil
}

func (fixedSearchAPI) Health(_ context.Context) (bool, error) { return true, nil }

// fixedScraper returns canned text keyed by URL, never touching the network.
type fixedScraper struct {
	byURL map[string]string
}

func (s fixedScraper) Scrape(_ context.Context, url string, _ search.ResourceType) (string, error) {
	return s.byURL[url], nil
}

// wrappedRetryClient fails with llm.ErrContextTooLong on its first two
// calls, then succeeds, so a node's completeWithRetry loop is forced
// through exactly two halvings of the longest scraped passage. It records
// the total OnlineData payload size sent on each attempt, so a test can
// confirm the retry loop actually transmits a shrinking request instead of
// resending the same one.
type wrappedRetryClient struct {
	attempts     int
	sentPayloads []int
	lastMessages []llm.Message
}

func (c *wrappedRetryClient) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	c.attempts++
	c.lastMessages = req.EffectiveMessages()
	total := 0
	for _, r := range req.OnlineData {
		total += len(r.ScrappedText)
	}
	c.sentPayloads = append(c.sentPayloads, total)
	if c.attempts <= 2 {
		return llm.Response{}, llm.ErrContextTooLong
	}
	return llm.Response{Text: "final summary"}, nil
}

func TestLLMContextLengthRetryHalvesLongestScrape(t *testing.T) {
	longText := strings.Repeat("X", 100000)
	shortText := strings.Repeat("Y", 50)

	api := fixedSearchAPI{results: []search.SearchResult{
		{URL: "https://example.com/long", Extension: "html"},
		{URL: "https://example.com/short", Extension: "html"},
	}}
	scraper := fixedScraper{byURL: map[string]string{
		"https://example.com/long":  longText,
		"https://example.com/short": shortText,
	}}
	agg := search.NewAggregator(api, llm.MockClient{}, scraper, nil, search.AggregatorConfig{})

	client := &wrappedRetryClient{}
	doc := `
prompts:
  only:
    id: 1
    text: "Summarize the attached filings."
prompt_dag: []
`
	g := mustLoad(t, doc)
	o := orchestrator.New(g, "test-set", client, agg, orchestrator.MockFinancialLookup{})

	handle := o.Run(context.Background(), "Acme", orchestrator.Options{WebSearch: true, MaxContextRetries: 5})
	require.NoError(t, handle.Wait())

	state, ok := handle.Results.Get(1)
	require.True(t, ok)
	require.Equal(t, resultstore.Complete, state.Status)
	require.Equal(t, "final summary", state.Result.LLMText)
	require.Equal(t, 3, client.attempts)

	require.Len(t, state.Result.OnlineData.Results, 2)
	for _, r := range state.Result.OnlineData.Results {
		if strings.HasPrefix(r.ScrappedText, "X") {
			require.Len(t, r.ScrappedText, 25000)
		}
	}

	require.Len(t, client.sentPayloads, 3, "one request per attempt")
	require.Greater(t, client.sentPayloads[0], client.sentPayloads[1], "second attempt must transmit a smaller payload than the first")
	require.Greater(t, client.sentPayloads[1], client.sentPayloads[2], "third attempt must transmit a smaller payload than the second")
	require.Positive(t, client.sentPayloads[0], "the first attempt must actually transmit the scraped online data")

	var sawScrapedText bool
	for _, m := range client.lastMessages {
		if strings.Contains(m.Content, "Web search results:") {
			sawScrapedText = true
		}
	}
	require.True(t, sawScrapedText, "the final successful attempt's messages must fold in online data")
}

func TestCycleRejectionNeverStartsOrchestrator(t *testing.T) {
	doc := `
prompts:
  a:
    id: 1
    text: "a"
  b:
    id: 2
    text: "b"
  c:
    id: 3
    text: "c"
prompt_dag:
  - "1 -> 2"
  - "2 -> 3"
  - "3 -> 1"
`
	_, err := promptgraph.Load([]byte(doc))
	require.ErrorIs(t, err, promptgraph.ErrCycleDetected)
}

func TestMockFinancialLookupNeverBlocksRun(t *testing.T) {
	doc := `
prompts:
  only:
    id: 1
    text: "Summarize Acme's balance sheet."
prompt_dag: []
`
	g := mustLoad(t, doc)
	o := orchestrator.New(g, "test-set", llm.MockClient{}, nil, orchestrator.MockFinancialLookup{})

	handle := o.Run(context.Background(), "Acme", orchestrator.Options{Mock: true, IsCompany: true})
	require.NoError(t, handle.Wait())

	state, ok := handle.Results.Get(1)
	require.True(t, ok)
	require.Equal(t, resultstore.Complete, state.Status)
	require.True(t, strings.HasPrefix(state.Result.LLMText, "Some llm response"))
}

// recordingClient never fails; it just records the effective messages sent
// on every call, guarded by a mutex since sibling node tasks call it
// concurrently.
type recordingClient struct {
	mu       sync.Mutex
	messages [][]llm.Message
}

func (c *recordingClient) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, req.EffectiveMessages())
	return llm.Response{Text: "ack"}, nil
}

// TestWebSearchTruncatesAncestorHistory runs a five-node chain with
// WebSearch enabled and confirms every node's completion call carries at
// most the first-two-plus-last history shape truncateForSearchPreview
// produces, once the trailing online-data message is discounted.
func TestWebSearchTruncatesAncestorHistory(t *testing.T) {
	api := fixedSearchAPI{results: []search.SearchResult{
		{URL: "https://example.com/a", Extension: "html"},
	}}
	scraper := fixedScraper{byURL: map[string]string{
		"https://example.com/a": "some scraped body",
	}}
	agg := search.NewAggregator(api, llm.MockClient{}, scraper, nil, search.AggregatorConfig{})

	client := &recordingClient{}
	doc := `
prompts:
  a:
    id: 1
    text: "one"
  b:
    id: 2
    text: "two"
  c:
    id: 3
    text: "three"
  d:
    id: 4
    text: "four"
  e:
    id: 5
    text: "five"
prompt_dag:
  - "1 -> 2 -> 3 -> 4 -> 5"
`
	g := mustLoad(t, doc)
	o := orchestrator.New(g, "test-set", client, agg, orchestrator.MockFinancialLookup{})

	handle := o.Run(context.Background(), "Acme", orchestrator.Options{WebSearch: true})
	require.NoError(t, handle.Wait())

	for id := 1; id <= 5; id++ {
		state, ok := handle.Results.Get(id)
		require.True(t, ok)
		require.Equal(t, resultstore.Complete, state.Status)
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	require.Len(t, client.messages, 5)
	for _, msgs := range client.messages {
		historyLen := len(msgs)
		for _, m := range msgs {
			if strings.Contains(m.Content, "Web search results:") {
				historyLen--
			}
		}
		require.LessOrEqual(t, historyLen, 3, "search-preview truncation must cap ancestor history at 3 messages")
	}
}
