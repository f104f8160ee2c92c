package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // pure-Go sqlite driver

	"github.com/luislascano01/Stratvithor/orchestrator"
	"github.com/luislascano01/Stratvithor/promptgraph"
	"github.com/luislascano01/Stratvithor/report"
	"github.com/luislascano01/Stratvithor/resultstore"
)

// Metadata is the per-run bookkeeping persisted alongside a run's snapshot.
type Metadata struct {
	PromptSet string    `json:"prompt_set"`
	Focus     string    `json:"focus"`
	Online    bool      `json:"online"`
	SavedAt   time.Time `json:"saved_at"`
}

// Store persists finished runs to a local SQLite file, backed by
// modernc.org/sqlite (pure Go, no cgo).
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenStore opens (creating if absent) a SQLite database at path. Callers
// must call Init once before Save/Load.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("registry: open sqlite store: %w", err)
	}
	db.SetMaxOpenConns(1)
	return &Store{db: db, logger: slog.Default()}, nil
}

// Init creates the runs table if it does not already exist.
func (s *Store) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		prompt_set_name TEXT NOT NULL,
		document TEXT NOT NULL,
		report TEXT NOT NULL,
		dag TEXT NOT NULL,
		graph TEXT NOT NULL,
		metadata TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("registry: create runs table: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save serializes run's prompt-set document, its current ResultStore
// snapshot, and the reached-so-far assembled report, writing one row keyed
// by run.ID. The run must have been started (Attach called) at least once.
func (s *Store) Save(ctx context.Context, run *Run) error {
	handle, ok := run.Handle()
	if !ok {
		return fmt.Errorf("registry: run %q has not been started, nothing to save", run.ID)
	}
	focus, online, _ := run.snapshotMeta()

	snapshot := handle.Results.Snapshot()
	graphJSON, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("registry: marshal result snapshot: %w", err)
	}

	dag := BuildDAG(handle.Graph())
	dagJSON, err := json.Marshal(dag)
	if err != nil {
		return fmt.Errorf("registry: marshal dag: %w", err)
	}

	meta := Metadata{
		PromptSet: run.PromptSetName,
		Focus:     focus,
		Online:    online,
		SavedAt:   time.Now(),
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("registry: marshal metadata: %w", err)
	}

	markdown := report.Assemble(snapshot, handle.Graph(), run.PromptSetName, focus)

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (run_id, prompt_set_name, document, report, dag, graph, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.PromptSetName, string(run.Document), markdown, string(dagJSON), string(graphJSON), string(metaJSON),
	)
	if err != nil {
		return fmt.Errorf("registry: save run %q: %w", run.ID, err)
	}
	s.logger.Debug("registry: run saved", "run_id", run.ID, "prompt_set", run.PromptSetName)
	return nil
}

// Load reconstructs a read-only RunHandle for runID: the prompt-set document
// is re-parsed into a Graph, and the persisted per-node snapshot is restored
// into a ResultStore with no live writer behind it. The returned handle
// supports Assemble and Stream but Wait/Cancel are no-ops — it is not
// resumable.
func (s *Store) Load(ctx context.Context, runID string) (*orchestrator.RunHandle, error) {
	var promptSetName, document, graphJSON, metaJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT prompt_set_name, document, graph, metadata FROM runs WHERE run_id = ?`, runID,
	).Scan(&promptSetName, &document, &graphJSON, &metaJSON)
	if err != nil {
		return nil, fmt.Errorf("registry: load run %q: %w", runID, err)
	}

	graph, err := promptgraph.Load([]byte(document))
	if err != nil {
		return nil, fmt.Errorf("registry: reparse prompt-set document for run %q: %w", runID, err)
	}

	var snapshot map[int]resultstore.NodeState
	if err := json.Unmarshal([]byte(graphJSON), &snapshot); err != nil {
		return nil, fmt.Errorf("registry: unmarshal result snapshot for run %q: %w", runID, err)
	}
	store := resultstore.FromSnapshot(snapshot)

	var meta Metadata
	if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
		return nil, fmt.Errorf("registry: unmarshal metadata for run %q: %w", runID, err)
	}

	s.logger.Debug("registry: run loaded", "run_id", runID, "prompt_set", promptSetName)
	return orchestrator.NewReadOnlyHandle(store, promptSetName, meta.Focus, graph), nil
}

// LoadReport returns the Markdown report exactly as it stood at Save time,
// without reassembling it — useful for callers that only need the cached
// text, not a reconstructed run.
func (s *Store) LoadReport(ctx context.Context, runID string) (string, error) {
	var report string
	err := s.db.QueryRowContext(ctx, `SELECT report FROM runs WHERE run_id = ?`, runID).Scan(&report)
	if err != nil {
		return "", fmt.Errorf("registry: load report for run %q: %w", runID, err)
	}
	return report, nil
}
