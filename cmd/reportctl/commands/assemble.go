package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/luislascano01/Stratvithor/internal/config"
	"github.com/luislascano01/Stratvithor/registry"
	"github.com/luislascano01/Stratvithor/report"
)

const (
	assembleCmdUse   = "assemble <run-id>"
	assembleCmdShort = "Reassemble a persisted run's Markdown report from its stored snapshot"
	assembleArgCount = 1
)

// NewAssembleCommand builds "reportctl assemble", which loads a previously
// saved run back into a read-only RunHandle and re-runs report.Assemble
// against it — the same pure function a live run used at Save time.
func NewAssembleCommand() *cobra.Command {
	var (
		configPath string
		dbPath     string
	)

	cmd := &cobra.Command{
		Use:   assembleCmdUse,
		Short: assembleCmdShort,
		Args:  cobra.ExactArgs(assembleArgCount),
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
				return fmt.Errorf("reportctl: assemble %q: %w", runID, err)
			}

			doc := report.Assemble(handle.Results.Snapshot(), handle.Graph(), handle.PromptSetName(), handle.Focus())
			fmt.Fprintln(os.Stdout, doc)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite path the run was saved to (defaults to registry.db_path)")

	return cmd
}
