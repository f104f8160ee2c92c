// Package orchestrator schedules one task per prompt-graph node, joins each
// node's predecessors before running it, and never lets one node's failure
// cancel its siblings.
package orchestrator

import (
	"context"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"github.com/luislascano01/Stratvithor/internal/xsync"
	"github.com/luislascano01/Stratvithor/llm"
	"github.com/luislascano01/Stratvithor/promptgraph"
	"github.com/luislascano01/Stratvithor/resultstore"
	"github.com/luislascano01/Stratvithor/search"
)

// Orchestrator runs a single prompt-set Graph repeatedly, once per focus.
type Orchestrator struct {
	graph         *promptgraph.Graph
	promptSetName string
	deps          deps
}

// New binds a Graph to the collaborators its node tasks call out to. Either
// aggregator or finLookup may be nil; Run only exercises them when the
// corresponding Options flag is set.
func New(graph *promptgraph.Graph, promptSetName string, llmClient llm.Client, aggregator *search.Aggregator, finLookup FinancialLookup) *Orchestrator {
	return &Orchestrator{
		graph:         graph,
		promptSetName: promptSetName,
		deps: deps{
			llmClient:  llmClient,
			aggregator: aggregator,
			finLookup:  finLookup,
		},
	}
}

// RunHandle is the live view of one Run: a ResultStore that fills in as
// nodes complete, and a way to wait for every node to reach a terminal
// state.
type RunHandle struct {
	Results *resultstore.Store

	promptSetName string
	focus         string
	graph         *promptgraph.Graph

	cancel context.CancelFunc
	group  *errgroup.Group
}

// Wait blocks until every node has reached a terminal state; a task
// cancelled while still waiting on its predecessors marks its node Failed
// before returning. Because every node task always returns nil to the
// internal errgroup (failures are recorded on the ResultStore, never
// propagated), Wait returns nil, after a cancellation as well.
func (h *RunHandle) Wait() error {
	return h.group.Wait()
}

// Cancel requests cancellation of every outstanding node task. Tasks past
// their last suspension point may still write one final terminal state.
func (h *RunHandle) Cancel() {
	h.cancel()
}

// PromptSetName reports the name of the prompt set this run was started from.
func (h *RunHandle) PromptSetName() string { return h.promptSetName }

// Focus reports the focus string this run was started with.
func (h *RunHandle) Focus() string { return h.focus }

// Graph returns the PromptGraph this run is executing.
func (h *RunHandle) Graph() *promptgraph.Graph { return h.graph }

// NewReadOnlyHandle builds a RunHandle around an already-populated
// ResultStore with no live node tasks behind it — used to reconstruct a
// persisted run for assembly and subscription, never for re-execution.
// Wait returns immediately and Cancel is a no-op.
func NewReadOnlyHandle(results *resultstore.Store, promptSetName, focus string, graph *promptgraph.Graph) *RunHandle {
	g := &errgroup.Group{}
	return &RunHandle{
		Results:       results,
		promptSetName: promptSetName,
		focus:         focus,
		graph:         graph,
		cancel:        func() {},
		group:         g,
	}
}

// Run spawns one task per graph node in topological order; each task first
// awaits all of its predecessor tasks, then executes the per-node
// procedure. Run returns as soon as the tasks are spawned (after the
// one-time financial lookup when IsCompany is set) — the returned
// RunHandle's Results stream live as the run progresses.
func (o *Orchestrator) Run(parent context.Context, focus string, opts Options) *RunHandle {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(parent)

	store := resultstore.New()
	ids := o.graph.TopologicalOrder()
	store.Init(ids)

	nodeDone := make(map[int]chan struct{}, len(ids))
	for _, id := range ids {
		nodeDone[id] = make(chan struct{})
	}

	numericContext := o.lookupNumericContext(ctx, opts, focus)

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		preds := o.graph.Predecessors(id)
		g.Go(func() error {
			defer close(nodeDone[id])
			for _, p := range preds {
				select {
				case <-nodeDone[p]:
				case <-gctx.Done():
					_ = store.MarkFailed(id, "run cancelled")
					return nil
				}
			}
			runNodeRecovered(gctx, o.graph, store, id, opts, o.deps, numericContext)
			return nil
		})
	}

	return &RunHandle{
		Results:       store,
		promptSetName: o.promptSetName,
		focus:         focus,
		graph:         o.graph,
		cancel:        cancel,
		group:         g,
	}
}

// runNodeRecovered runs runNode with a panic barrier: a panicking node task
// is recorded as a Failed state on the node it was running, instead of
// crashing the whole run out from under its siblings.
func runNodeRecovered(ctx context.Context, g *promptgraph.Graph, store *resultstore.Store, node int, opts Options, d deps, numericContext string) {
	defer func() {
		if r := recover(); r != nil {
			err := &xsync.PanicError{Info: r, Stack: debug.Stack()}
			_ = store.MarkFailed(node, err.Error())
		}
	}()
	runNode(ctx, g, store, node, opts, d, numericContext)
}

func (o *Orchestrator) lookupNumericContext(ctx context.Context, opts Options, focus string) string {
	if !opts.IsCompany || o.deps.finLookup == nil {
		return ""
	}
	text, err := o.deps.finLookup.Lookup(ctx, focus)
	if err != nil {
		return ""
	}
	return text
}
