package registry

import (
	"context"

	"github.com/luislascano01/Stratvithor/orchestrator"
	"github.com/luislascano01/Stratvithor/promptgraph"
	"github.com/luislascano01/Stratvithor/resultstore"
)

// DAGNode is one node in the streamed topology view.
type DAGNode struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
}

// DAGLink is one edge in the streamed topology view.
type DAGLink struct {
	Source int `json:"source"`
	Target int `json:"target"`
}

// DAG is the topology a client sees once, at attach time.
type DAG struct {
	Nodes []DAGNode `json:"nodes"`
	Links []DAGLink `json:"links"`
}

// BuildDAG renders graph's nodes and edges into the client-facing shape.
func BuildDAG(graph *promptgraph.Graph) DAG {
	ids := graph.TopologicalOrder()
	dag := DAG{Nodes: make([]DAGNode, 0, len(ids))}
	for _, id := range ids {
		p, _ := graph.Prompt(id)
		dag.Nodes = append(dag.Nodes, DAGNode{ID: id, Label: p.SectionTitle})
		for _, succ := range graph.Successors(id) {
			dag.Links = append(dag.Links, DAGLink{Source: id, Target: succ})
		}
	}
	return dag
}

// Frame is one message sent down a run's client stream: either an InitFrame
// or an UpdateFrame, both marshaling to the wire shapes described by the
// streaming contract.
type Frame interface {
	frameType() string
}

// InitFrame is sent exactly once, immediately on attach.
type InitFrame struct {
	Type string `json:"type"`
	DAG  DAG    `json:"dag"`
}

func (InitFrame) frameType() string { return "init" }

// NewInitFrame builds the attach-time frame for graph.
func NewInitFrame(graph *promptgraph.Graph) InitFrame {
	return InitFrame{Type: "init", DAG: BuildDAG(graph)}
}

// UpdateFrame mirrors one ResultStore transition.
type UpdateFrame struct {
	Type   string              `json:"type"`
	NodeID int                 `json:"node_id"`
	Status resultstore.Status  `json:"status"`
	Result *resultstore.Result `json:"result,omitempty"`
}

func (UpdateFrame) frameType() string { return "update" }

// NewUpdateFrame adapts a ResultStore transition into the wire frame,
// attaching Result only once the node has completed.
func NewUpdateFrame(u resultstore.Update) UpdateFrame {
	frame := UpdateFrame{Type: "update", NodeID: u.NodeID, Status: u.State.Status}
	if u.State.Status == resultstore.Complete {
		result := u.State.Result
		frame.Result = &result
	}
	return frame
}

// ReplaySnapshot renders an init frame followed by one update frame per node
// in snapshot, in graph's topological order — the frame sequence a client
// attaching to a finished or reconstructed run would have seen had it
// attached from the start. Unlike Stream, it terminates on its own: there is
// no live writer to wait on.
func ReplaySnapshot(graph *promptgraph.Graph, snapshot map[int]resultstore.NodeState) []Frame {
	ids := graph.TopologicalOrder()
	frames := make([]Frame, 0, len(ids)+1)
	frames = append(frames, NewInitFrame(graph))
	for _, id := range ids {
		state, ok := snapshot[id]
		if !ok {
			continue
		}
		frames = append(frames, NewUpdateFrame(resultstore.Update{NodeID: id, State: state}))
	}
	return frames
}

// Stream sends the init frame for handle's graph, then forwards every
// subsequent ResultStore transition as an update frame, until ctx is done.
// The returned channel is closed when streaming stops; callers should range
// over it.
func Stream(ctx context.Context, handle *orchestrator.RunHandle) <-chan Frame {
	out := make(chan Frame, 1)
	sub := handle.Results.Subscribe()

	go func() {
		defer close(out)
		defer sub.Close()

		select {
		case out <- NewInitFrame(handle.Graph()):
		case <-ctx.Done():
			return
		}

		for {
			select {
			case u, ok := <-sub.Updates():
				if !ok {
					return
				}
				select {
				case out <- NewUpdateFrame(u):
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
