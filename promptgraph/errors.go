package promptgraph

import "errors"

// Sentinel error kinds for PromptGraph construction, matched with errors.Is.
var (
	// ErrInvalidPrompt is returned when a prompt in the document has no id
	// or a non-positive id.
	ErrInvalidPrompt = errors.New("promptgraph: invalid prompt")
	// ErrCycleDetected is returned when the edge set contains a cycle.
	ErrCycleDetected = errors.New("promptgraph: cycle detected")
	// ErrDanglingEdge is returned when an edge references an id that is not
	// a defined prompt.
	ErrDanglingEdge = errors.New("promptgraph: dangling edge")
)
