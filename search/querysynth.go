package search

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/luislascano01/Stratvithor/llm"
)

const synthesizedQueryCount = 6
const synthesizedPDFQueryCount = 2

var fencedJSONBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

type synthesizedQueries struct {
	SearchPrompts []string `json:"search_prompts"`
}

// synthesizeQueries asks client for exactly six diverse search queries, two
// of which must contain a PDF filter token. It tolerates a fenced code
// block around the JSON payload and falls back to generic query variants on
// any failure so the aggregator always has something to search with.
func synthesizeQueries(ctx context.Context, client llm.Client, generalPrompt, particularPrompt string) []string {
	req := llm.Request{Messages: []llm.Message{
		{Role: llm.RoleSystem, Content: querySynthesisSystemPrompt()},
		{Role: llm.RoleUser, Content: fmt.Sprintf(
			"General focus: %s\nSpecific prompt: %s\nPropose six distinct Google search queries.",
			generalPrompt, particularPrompt)},
	}}

	resp, err := client.Complete(ctx, req)
	if err != nil || strings.TrimSpace(resp.Text) == "" {
		return fallbackQueries(particularPrompt)
	}

	queries, ok := parseSynthesizedQueries(resp.Text)
	if !ok || len(queries) == 0 {
		return fallbackQueries(particularPrompt)
	}
	return queries
}

func querySynthesisSystemPrompt() string {
	return "You are a helpful assistant that generates Google search queries. " +
		"Produce exactly six (6) distinct search queries. " +
		"Exactly two of those queries must contain the token \"filetype:pdf\". " +
		"Return valid JSON of the form {\"search_prompts\": [\"...\", ...]} with no other keys or text."
}

func parseSynthesizedQueries(text string) ([]string, bool) {
	payload := text
	if m := fencedJSONBlock.FindStringSubmatch(text); m != nil {
		payload = m[1]
	}

	var parsed synthesizedQueries
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return nil, false
	}
	return parsed.SearchPrompts, true
}

func fallbackQueries(prompt string) []string {
	queries := make([]string, 0, synthesizedQueryCount)
	for i := 1; i <= synthesizedQueryCount-synthesizedPDFQueryCount; i++ {
		queries = append(queries, fmt.Sprintf("%s (Query %d)", prompt, i))
	}
	for i := 1; i <= synthesizedPDFQueryCount; i++ {
		queries = append(queries, fmt.Sprintf("%s filetype:pdf (Query %d)", prompt, i))
	}
	return queries
}
