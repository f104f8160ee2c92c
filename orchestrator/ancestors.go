package orchestrator

import (
	"github.com/luislascano01/Stratvithor/llm"
	"github.com/luislascano01/Stratvithor/promptgraph"
	"github.com/luislascano01/Stratvithor/resultstore"
)

// Entity identifies who produced an AncestorMessage, per the glossary's
// {system, user, llm} triple.
type Entity string

const (
	EntitySystem Entity = "system"
	EntityUser   Entity = "user"
	EntityLLM    Entity = "llm"
)

// AncestorMessage is one turn of the chat history assembled by walking a
// node's ancestors.
type AncestorMessage struct {
	Entity Entity
	Text   string
}

// buildAncestorHistory walks Ancestors(node) ∪ {node}, intersects with the
// graph's topological order, and appends the prompt/result pair for each
// ancestor: a system/user message for the ancestor's own prompt, then
// (non-system ancestors only) an llm message if that ancestor completed.
// The current node's own prompt is appended last with no trailing llm
// message.
func buildAncestorHistory(g *promptgraph.Graph, store *resultstore.Store, node int) []AncestorMessage {
	ancestors := g.Ancestors(node)
	ancestors[node] = struct{}{}

	ordered := orderByTopology(g.TopologicalOrder(), ancestors)

	history := make([]AncestorMessage, 0, len(ordered)*2)
	for _, id := range ordered {
		prompt, ok := g.Prompt(id)
		if !ok {
			continue
		}
		entity := EntityUser
		if prompt.System {
			entity = EntitySystem
		}
		history = append(history, AncestorMessage{Entity: entity, Text: prompt.Text})

		if id == node || prompt.System {
			continue
		}
		if state, ok := store.Get(id); ok && state.Status == resultstore.Complete {
			history = append(history, AncestorMessage{Entity: EntityLLM, Text: state.Result.LLMText})
		}
	}
	return history
}

func orderByTopology(topo []int, keep map[int]struct{}) []int {
	ordered := make([]int, 0, len(keep))
	for _, id := range topo {
		if _, ok := keep[id]; ok {
			ordered = append(ordered, id)
		}
	}
	return ordered
}

// truncateForSearchPreview keeps only the first two messages and the last
// one, matching the search-preview variant's history truncation.
func truncateForSearchPreview(history []AncestorMessage) []AncestorMessage {
	if len(history) <= 3 {
		return history
	}
	out := make([]AncestorMessage, 0, 3)
	out = append(out, history[0], history[1], history[len(history)-1])
	return out
}

// toLLMMessages converts the ancestor-assembly entity taxonomy to the llm
// package's chat-role taxonomy (llm maps to assistant).
func toLLMMessages(history []AncestorMessage) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	for _, m := range history {
		role := llm.RoleUser
		switch m.Entity {
		case EntitySystem:
			role = llm.RoleSystem
		case EntityLLM:
			role = llm.RoleAssistant
		}
		out = append(out, llm.Message{Role: role, Content: m.Text})
	}
	return out
}
