package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/luislascano01/Stratvithor/internal/config"
	"github.com/luislascano01/Stratvithor/registry"
)

const (
	resumeCmdUse   = "resume <run-id>"
	resumeCmdShort = "Replay a persisted run's client-stream frames (init + one update per node)"
	resumeArgCount = 1
)

// NewResumeCommand builds "reportctl resume", which reconstructs a persisted
// run and prints the frame sequence a client reattaching to it would
// receive: one init frame naming the DAG, then one update frame per node in
// topological order. It never re-executes anything — a persisted run has no
// live node tasks behind it.
func NewResumeCommand() *cobra.Command {
	var (
		configPath string
		dbPath     string
	)

	cmd := &cobra.Command{
		Use:   resumeCmdUse,
		Short: resumeCmdShort,
		Args:  cobra.ExactArgs(resumeArgCount),
		RunE: func(_ *cobra.Command, args []string) error {
			runID := args[0]

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			path := dbPath
			if path == "" {
				path = cfg.Registry.DBPath
			}

			store, err := registry.OpenStore(path)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Init(context.Background()); err != nil {
				return err
			}

			handle, err := store.Load(context.Background(), runID)
			if err != nil {
				return fmt.Errorf("reportctl: resume %q: %w", runID, err)
			}

			enc := json.NewEncoder(os.Stdout)
			for _, frame := range registry.ReplaySnapshot(handle.Graph(), handle.Results.Snapshot()) {
				if err := enc.Encode(frame); err != nil {
					return fmt.Errorf("reportctl: encode frame: %w", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite path the run was saved to (defaults to registry.db_path)")

	return cmd
}
