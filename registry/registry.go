// Package registry maps externally-visible run ids to live Orchestrator
// bindings, and persists finished runs for later read-only reassembly.
package registry

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/luislascano01/Stratvithor/llm"
	"github.com/luislascano01/Stratvithor/orchestrator"
	"github.com/luislascano01/Stratvithor/promptgraph"
	"github.com/luislascano01/Stratvithor/search"
)

// GraphLoader resolves a prompt-set name to both its parsed, validated graph
// and the verbatim document bytes it was parsed from — the latter is kept
// around only so Save can persist an exact copy alongside the run.
type GraphLoader interface {
	Load(promptSetName string) (graph *promptgraph.Graph, document []byte, err error)
}

// Run is one registry entry: an Orchestrator bound to a prompt set, plus
// whatever RunHandle its most recently started Run call produced.
type Run struct {
	ID            string
	PromptSetName string
	Document      []byte
	CreatedAt     time.Time

	orch *orchestrator.Orchestrator

	mu     sync.Mutex
	handle *orchestrator.RunHandle
	focus  string
	online bool
}

// Orchestrator returns the run's bound Orchestrator, ready to Run.
func (r *Run) Orchestrator() *orchestrator.Orchestrator { return r.orch }

// Attach records the RunHandle produced by calling Orchestrator.Run, along
// with the focus string and online flag the run was started with, so a
// later Save can capture them as metadata.
func (r *Run) Attach(handle *orchestrator.RunHandle, focus string, online bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handle = handle
	r.focus = focus
	r.online = online
}

// Handle returns the run's live RunHandle, if Attach has been called.
func (r *Run) Handle() (*orchestrator.RunHandle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handle, r.handle != nil
}

func (r *Run) snapshotMeta() (focus string, online bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.focus, r.online, r.handle != nil
}

// Registry is the single value a server boundary owns to create, look up,
// and persist runs; it holds no other process-wide mutable state.
type Registry struct {
	loader     GraphLoader
	llmClient  llm.Client
	aggregator *search.Aggregator
	finLookup  orchestrator.FinancialLookup

	mu   sync.RWMutex
	runs map[string]*Run

	logger *slog.Logger
}

// New constructs a Registry whose Created Orchestrators are bound to loader
// and the given collaborators. aggregator and finLookup may be nil.
func New(loader GraphLoader, llmClient llm.Client, aggregator *search.Aggregator, finLookup orchestrator.FinancialLookup) *Registry {
	return &Registry{
		loader:     loader,
		llmClient:  llmClient,
		aggregator: aggregator,
		finLookup:  finLookup,
		runs:       make(map[string]*Run),
		logger:     slog.Default(),
	}
}

// Create loads promptSetName's graph, binds a fresh Orchestrator to it, and
// registers the pair under a newly generated run id.
func (r *Registry) Create(promptSetName string) (*Run, error) {
	graph, doc, err := r.loader.Load(promptSetName)
	if err != nil {
		return nil, fmt.Errorf("registry: load prompt set %q: %w", promptSetName, err)
	}

	run := &Run{
		ID:            uuid.NewString(),
		PromptSetName: promptSetName,
		Document:      doc,
		CreatedAt:     time.Now(),
		orch:          orchestrator.New(graph, promptSetName, r.llmClient, r.aggregator, r.finLookup),
	}

	r.mu.Lock()
	r.runs[run.ID] = run
	r.mu.Unlock()

	r.logger.Debug("registry: run created", "run_id", run.ID, "prompt_set", promptSetName)
	return run, nil
}

// Get returns the Run registered under id, if any.
func (r *Registry) Get(id string) (*Run, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	return run, ok
}

// Remove drops a run from the in-memory registry. It has no effect on
// anything already persisted by Save.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.runs, id)
}
