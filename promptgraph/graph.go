// Package promptgraph parses a prompt-set document into a validated,
// immutable directed acyclic graph of Prompts, and exposes the topology
// queries the orchestrator needs to schedule and assemble context.
package promptgraph

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Graph is an immutable DAG over prompt ids, built once per run by Load.
type Graph struct {
	prompts      map[int]Prompt
	successors   map[int][]int
	predecessors map[int][]int
	topoOrder    []int
}

// Load parses doc (the raw YAML bytes of a prompt-set document), validates
// every prompt has a positive id, expands `prompt_dag` chain-literals into
// edges, checks every edge endpoint exists, and verifies the result is
// acyclic. It returns ErrInvalidPrompt, ErrDanglingEdge or ErrCycleDetected
// on failure; a Graph is only ever returned fully validated.
func Load(doc []byte) (*Graph, error) {
	var parsed Document
	if err := yaml.Unmarshal(doc, &parsed); err != nil {
		return nil, fmt.Errorf("promptgraph: parse document: %w", err)
	}

	prompts := make(map[int]Prompt, len(parsed.Prompts))
	for key, raw := range parsed.Prompts {
		if raw.ID <= 0 {
			return nil, fmt.Errorf("%w: section %q has no positive id", ErrInvalidPrompt, key)
		}
		if _, exists := prompts[raw.ID]; exists {
			return nil, fmt.Errorf("%w: duplicate id %d", ErrInvalidPrompt, raw.ID)
		}
		prompts[raw.ID] = Prompt{
			ID:           raw.ID,
			SectionTitle: raw.resolvedTitle(key),
			Text:         raw.Text,
			System:       raw.System,
		}
	}

	edges, err := expandChains(parsed.PromptDAG)
	if err != nil {
		return nil, err
	}

	successors := make(map[int][]int)
	predecessors := make(map[int][]int)
	for _, e := range edges {
		if _, ok := prompts[e.from]; !ok {
			return nil, fmt.Errorf("%w: edge references unknown id %d", ErrDanglingEdge, e.from)
		}
		if _, ok := prompts[e.to]; !ok {
			return nil, fmt.Errorf("%w: edge references unknown id %d", ErrDanglingEdge, e.to)
		}
		successors[e.from] = append(successors[e.from], e.to)
		predecessors[e.to] = append(predecessors[e.to], e.from)
	}

	if err := detectCycle(prompts, successors); err != nil {
		return nil, err
	}

	order, err := kahnOrder(prompts, successors, predecessors)
	if err != nil {
		// detectCycle already ran, but Kahn's own stall check is the
		// belt-and-suspenders acyclicity proof.
		return nil, err
	}

	return &Graph{
		prompts:      prompts,
		successors:   successors,
		predecessors: predecessors,
		topoOrder:    order,
	}, nil
}

type edge struct{ from, to int }

// expandChains parses chain-literals of the form "a -> b -> c" into
// consecutive (a,b), (b,c) pairs.
func expandChains(chains []string) ([]edge, error) {
	var edges []edge
	for _, chain := range chains {
		parts := strings.Split(chain, "->")
		if len(parts) < 2 {
			continue
		}
		ids := make([]int, 0, len(parts))
		for _, p := range parts {
			var id int
			if _, err := fmt.Sscanf(strings.TrimSpace(p), "%d", &id); err != nil {
				return nil, fmt.Errorf("%w: malformed chain %q", ErrInvalidPrompt, chain)
			}
			ids = append(ids, id)
		}
		for i := 0; i+1 < len(ids); i++ {
			edges = append(edges, edge{from: ids[i], to: ids[i+1]})
		}
	}
	return edges, nil
}

// color marks DFS visitation state for cycle detection.
type color int

const (
	white color = iota
	gray
	black
)

// detectCycle runs a three-color DFS over every node, visiting successors in
// ascending id order for determinism. A back-edge to a gray node is a cycle.
func detectCycle(prompts map[int]Prompt, successors map[int][]int) error {
	colors := make(map[int]color, len(prompts))
	ids := sortedIDs(prompts)

	var visit func(id int) error
	visit = func(id int) error {
		colors[id] = gray
		next := append([]int(nil), successors[id]...)
		sort.Ints(next)
		for _, n := range next {
			switch colors[n] {
			case gray:
				return fmt.Errorf("%w: involving node %d", ErrCycleDetected, n)
			case white:
				if err := visit(n); err != nil {
					return err
				}
			}
		}
		colors[id] = black
		return nil
	}

	for _, id := range ids {
		if colors[id] == white {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// kahnOrder produces a topological order via Kahn's algorithm, always
// picking the smallest-id ready node so independent runs are reproducible.
func kahnOrder(prompts map[int]Prompt, successors, predecessors map[int][]int) ([]int, error) {
	indegree := make(map[int]int, len(prompts))
	for id := range prompts {
		indegree[id] = len(predecessors[id])
	}

	ready := make([]int, 0, len(prompts))
	for id, deg := range indegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sort.Ints(ready)

	order := make([]int, 0, len(prompts))
	for len(ready) > 0 {
		sort.Ints(ready)
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		next := append([]int(nil), successors[id]...)
		sort.Ints(next)
		for _, n := range next {
			indegree[n]--
			if indegree[n] == 0 {
				ready = append(ready, n)
			}
		}
	}

	if len(order) != len(prompts) {
		return nil, fmt.Errorf("%w: topological sort stalled, %d of %d nodes ordered", ErrCycleDetected, len(order), len(prompts))
	}
	return order, nil
}

func sortedIDs(prompts map[int]Prompt) []int {
	ids := make([]int, 0, len(prompts))
	for id := range prompts {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Prompt returns the prompt with the given id, or false if it does not exist.
func (g *Graph) Prompt(id int) (Prompt, bool) {
	p, ok := g.prompts[id]
	return p, ok
}

// TopologicalOrder returns all node ids in a deterministic topological order.
func (g *Graph) TopologicalOrder() []int {
	return append([]int(nil), g.topoOrder...)
}

// Predecessors returns the immediate parents of id.
func (g *Graph) Predecessors(id int) []int {
	return append([]int(nil), g.predecessors[id]...)
}

// Successors returns the immediate children of id.
func (g *Graph) Successors(id int) []int {
	return append([]int(nil), g.successors[id]...)
}

// Ancestors returns the full set of transitive predecessors of id.
func (g *Graph) Ancestors(id int) map[int]struct{} {
	visited := make(map[int]struct{})
	var walk func(int)
	walk = func(cur int) {
		for _, p := range g.predecessors[cur] {
			if _, seen := visited[p]; !seen {
				visited[p] = struct{}{}
				walk(p)
			}
		}
	}
	walk(id)
	return visited
}

// Len returns the number of prompts in the graph.
func (g *Graph) Len() int { return len(g.prompts) }
