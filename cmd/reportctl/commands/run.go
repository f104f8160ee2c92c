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
	runCmdUse   = "run <prompt-set> <focus>"
	runCmdShort = "Execute a prompt-set run to completion and print the assembled report"
	runArgCount = 2
)

// NewRunCommand builds "reportctl run", which creates a fresh run from a
// prompt-set document, drives it to completion, and prints the assembled
// Markdown report to stdout.
func NewRunCommand() *cobra.Command {
	var (
		configPath   string
		promptSetDir string
		dbPath       string
		mock         bool
		webSearch    bool
		isCompany    bool
		save         bool
	)

	cmd := &cobra.Command{
		Use:   runCmdUse,
		Short: runCmdShort,
		Args:  cobra.ExactArgs(runArgCount),
		RunE: func(_ *cobra.Command, args []string) error {
			promptSetName, focus := args[0], args[1]

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			reg, err := buildRegistry(cfg, promptSetDir)
			if err != nil {
				return err
			}

			run, err := reg.Create(promptSetName)
			if err != nil {
				return err
			}

			opts := runOptions(cfg, mock, webSearch, isCompany)
			handle := run.Orchestrator().Run(context.Background(), focus, opts)
			if err := handle.Wait(); err != nil {
				return fmt.Errorf("reportctl: run %q failed: %w", run.ID, err)
			}
			run.Attach(handle, focus, webSearch)

			fmt.Fprintf(os.Stdout, "run id: %s\n\n", run.ID)
			fmt.Fprintln(os.Stdout, report.Assemble(handle.Results.Snapshot(), handle.Graph(), promptSetName, focus))

			if !save {
				return nil
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
			return store.Save(context.Background(), run)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	cmd.Flags().StringVar(&promptSetDir, "prompt-set-dir", ".", "directory containing <prompt-set>.yaml documents")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite path to persist the run to (defaults to registry.db_path)")
	cmd.Flags().BoolVar(&mock, "mock", true, "short-circuit every node to the deterministic mock LLM response")
	cmd.Flags().BoolVar(&webSearch, "web-search", false, "enable the search aggregator pipeline for every node")
	cmd.Flags().BoolVar(&isCompany, "is-company", false, "enable the financial numeric-context lookup")
	cmd.Flags().BoolVar(&save, "save", false, "persist the finished run to the registry's SQLite store")

	return cmd
}
