// Package report assembles a completed run's ResultStore snapshot and its
// PromptGraph topology into the final Markdown document.
package report

import (
	"fmt"
	"strings"

	"github.com/luislascano01/Stratvithor/promptgraph"
	"github.com/luislascano01/Stratvithor/resultstore"
)

// headingDemotion is how many levels every completed node's own Markdown
// headings are pushed down, so a node opening with "# Overview" renders as
// "## Overview" beneath its "## i. <section title>" banner.
const headingDemotion = 1

// excerptRunes bounds how much of a resource's scraped text is quoted in
// the references section.
const excerptRunes = 240

// Assemble is a pure function of snapshot and graph: identical inputs
// produce byte-identical Markdown. It never touches the live ResultStore,
// so a caller takes a Snapshot first and assembles against that frozen
// view.
func Assemble(snapshot map[int]resultstore.NodeState, graph *promptgraph.Graph, promptSetName, focus string) string {
	var out strings.Builder

	fmt.Fprintf(&out, "# Aggregated Report\n\n")
	fmt.Fprintf(&out, "**Prompt set:** %s  \n", promptSetName)
	fmt.Fprintf(&out, "**Focus:** %s\n\n", focus)

	ordinal := 0
	var allResources []resultstore.ResourceRef
	for _, id := range graph.TopologicalOrder() {
		state, ok := snapshot[id]
		if !ok || state.Status != resultstore.Complete {
			continue
		}
		ordinal++
		fmt.Fprintf(&out, "## %d. %s\n\n", ordinal, state.Result.SectionTitle)
		out.WriteString(demoteHeadings(state.Result.LLMText, headingDemotion))
		out.WriteString("\n\n")
		allResources = append(allResources, state.Result.OnlineData.Results...)
	}

	out.WriteString("# References\n\n")
	writeReferences(&out, allResources)

	return out.String()
}

// writeReferences emits one bullet per resource, deduplicated by URL with
// first-occurrence order preserved — the same dedup rule the
// SearchAggregator itself applies to search hits.
func writeReferences(out *strings.Builder, resources []resultstore.ResourceRef) {
	seen := make(map[string]struct{}, len(resources))
	for _, r := range resources {
		if r.URL != "" {
			if _, dup := seen[r.URL]; dup {
				continue
			}
			seen[r.URL] = struct{}{}
		}
		out.WriteString(referenceLine(r))
	}
}

func referenceLine(r resultstore.ResourceRef) string {
	title := r.Title
	if title == "" {
		title = r.URL
	}
	if title == "" {
		title = "Untitled source"
	}

	var label string
	if r.URL != "" {
		label = fmt.Sprintf("[%s](%s)", title, r.URL)
	} else {
		label = title
	}

	var line strings.Builder
	fmt.Fprintf(&line, "- %s", label)
	if excerpt := excerpt(r); excerpt != "" {
		fmt.Fprintf(&line, " - %s", excerpt)
	}
	if r.DisplayURL != "" {
		fmt.Fprintf(&line, " (%s)", r.DisplayURL)
	}
	line.WriteString("\n")
	return line.String()
}

// excerpt prefers the search snippet over the full scraped text, since the
// snippet is already a human-sized summary; it falls back to a truncated
// prefix of the scraped text when no snippet was captured.
func excerpt(r resultstore.ResourceRef) string {
	text := r.Snippet
	if text == "" {
		text = r.ScrappedText
	}
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) > excerptRunes {
		return string(runes[:excerptRunes]) + "…"
	}
	return text
}
