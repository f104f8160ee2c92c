package orchestrator

import (
	"context"
	"errors"
	"strings"

	"github.com/luislascano01/Stratvithor/llm"
	"github.com/luislascano01/Stratvithor/promptgraph"
	"github.com/luislascano01/Stratvithor/resultstore"
	"github.com/luislascano01/Stratvithor/search"
)

// systemPromptText is the canned completion system nodes short-circuit to.
const systemPromptText = "This is a system prompt"

// deps bundles the external collaborators a node task needs. A nil
// Aggregator disables web search regardless of Options.WebSearch; a nil
// FinancialLookup disables the numeric-context step regardless of
// Options.IsCompany.
type deps struct {
	llmClient  llm.Client
	aggregator *search.Aggregator
	finLookup  FinancialLookup
}

// runNode executes the per-node procedure and always leaves the node in a
// terminal ResultStore state — it never returns an error to its caller, so
// a node's own failure can never cancel sibling node tasks.
func runNode(ctx context.Context, g *promptgraph.Graph, store *resultstore.Store, node int, opts Options, d deps, numericContext string) {
	prompt, ok := g.Prompt(node)
	if !ok {
		_ = store.MarkFailed(node, "unknown node")
		return
	}

	_ = store.MarkProcessing(node, "running")

	if prompt.System {
		_ = store.Store(node, resultstore.Result{
			LLMText:      systemPromptText,
			SectionTitle: prompt.SectionTitle,
		})
		return
	}

	if opts.Mock {
		_ = store.Store(node, resultstore.Result{
			LLMText:      "Some llm response",
			SectionTitle: prompt.SectionTitle,
		})
		return
	}

	var onlineData resultstore.OnlineData
	if opts.WebSearch && d.aggregator != nil {
		resources, err := searchForNode(ctx, d.aggregator, prompt.Text, opts)
		if err != nil {
			_ = store.MarkFailed(node, err.Error())
			return
		}
		onlineData = toOnlineData(resources)
	}

	history := buildAncestorHistory(g, store, node)
	if opts.IsCompany && numericContext != "" {
		history = insertNumericContext(history, numericContext)
	}
	if len(onlineData.Results) > 0 {
		history = truncateForSearchPreview(history)
	}

	text, citations, err := completeWithRetry(ctx, d.llmClient, history, onlineData, opts.withDefaults().MaxContextRetries)
	if err != nil {
		_ = store.MarkFailed(node, err.Error())
		return
	}

	onlineData.Results = mergeCitations(onlineData.Results, citations)

	_ = store.Store(node, resultstore.Result{
		LLMText:      text,
		OnlineData:   onlineData,
		SectionTitle: prompt.SectionTitle,
	})
}

func searchForNode(ctx context.Context, agg *search.Aggregator, promptText string, opts Options) ([]search.OnlineResource, error) {
	if len(opts.SearchEndpointCandidates) > 0 {
		if _, err := search.DiscoverEndpoint(ctx, opts.SearchEndpointCandidates, opts.withDefaults().HealthPollInterval, opts.withDefaults().HealthPollBudget); err != nil {
			return nil, errors.New("search endpoint unavailable: " + err.Error())
		}
	}
	return agg.Aggregate(ctx, promptText, promptText), nil
}

// insertNumericContext inserts the financial lookup result as a synthetic
// user message at position 1.
func insertNumericContext(history []AncestorMessage, numericContext string) []AncestorMessage {
	synthetic := AncestorMessage{Entity: EntityUser, Text: numericContext}
	if len(history) == 0 {
		return []AncestorMessage{synthetic}
	}
	out := make([]AncestorMessage, 0, len(history)+1)
	out = append(out, history[0], synthetic)
	out = append(out, history[1:]...)
	return out
}

// completeWithRetry invokes the LLM with (messages, online_data). On a
// context-too-long error it halves the longest scraped passage in
// onlineData and rebuilds the request around the shrunk payload before
// retrying, up to maxRetries times, so each attempt actually transmits a
// smaller context instead of resending the same one.
func completeWithRetry(ctx context.Context, client llm.Client, history []AncestorMessage, onlineData resultstore.OnlineData, maxRetries int) (string, []llm.Citation, error) {
	messages := toLLMMessages(history)

	for attempt := 0; attempt <= maxRetries; attempt++ {
		req := llm.Request{
			Messages:   messages,
			OnlineData: toLLMOnlineData(onlineData),
			WebSearch:  len(onlineData.Results) > 0,
		}
		resp, err := client.Complete(ctx, req)
		if err == nil {
			return resp.Text, resp.Citations, nil
		}
		if !errors.Is(err, llm.ErrContextTooLong) || attempt == maxRetries {
			return "", nil, err
		}
		if !halveLongestScrape(&onlineData) {
			return "", nil, err
		}
	}
	return "", nil, errors.New("llm: context length exceeded after exhausting retries")
}

// toLLMOnlineData converts the ResultStore's reference shape into the
// request-level shape Complete folds into the prompt.
func toLLMOnlineData(data resultstore.OnlineData) []llm.OnlineResource {
	out := make([]llm.OnlineResource, 0, len(data.Results))
	for _, r := range data.Results {
		out = append(out, llm.OnlineResource{
			URL:          r.URL,
			Title:        r.Title,
			Snippet:      r.Snippet,
			ScrappedText: r.ScrappedText,
		})
	}
	return out
}

// halveLongestScrape truncates the longest ScrappedText in place and
// reports whether it made any progress (false once every entry is empty).
func halveLongestScrape(data *resultstore.OnlineData) bool {
	longest := -1
	longestLen := 0
	for i, r := range data.Results {
		if len(r.ScrappedText) > longestLen {
			longest = i
			longestLen = len(r.ScrappedText)
		}
	}
	if longest < 0 || longestLen == 0 {
		return false
	}
	half := longestLen / 2
	data.Results[longest].ScrappedText = data.Results[longest].ScrappedText[:half]
	return true
}

func toOnlineData(resources []search.OnlineResource) resultstore.OnlineData {
	refs := make([]resultstore.ResourceRef, 0, len(resources))
	for _, r := range resources {
		refs = append(refs, resultstore.ResourceRef{
			URL:          r.URL,
			DisplayURL:   r.DisplayURL,
			Title:        r.Title,
			Snippet:      r.Snippet,
			ScrappedText: r.ScrappedText,
			Extension:    string(r.Extension),
		})
	}
	return resultstore.OnlineData{Results: refs}
}

// mergeCitations prepends the LLM's own URL citations to the existing
// reference list, deduplicating by URL.
func mergeCitations(existing []resultstore.ResourceRef, citations []llm.Citation) []resultstore.ResourceRef {
	if len(citations) == 0 {
		return existing
	}
	seen := make(map[string]struct{}, len(existing))
	for _, r := range existing {
		seen[r.URL] = struct{}{}
	}

	prefix := make([]resultstore.ResourceRef, 0, len(citations))
	for _, c := range citations {
		if c.URL == "" {
			continue
		}
		if _, ok := seen[c.URL]; ok {
			continue
		}
		seen[c.URL] = struct{}{}
		prefix = append(prefix, resultstore.ResourceRef{
			URL:   c.URL,
			Title: strings.TrimSpace(c.Title),
		})
	}
	return append(prefix, existing...)
}
