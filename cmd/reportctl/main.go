// Command reportctl drives prompt-set runs from the command line: it can
// execute a run to completion, reassemble a persisted run's report, and
// replay a persisted run's client-stream frames.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/luislascano01/Stratvithor/cmd/reportctl/commands"
	"github.com/luislascano01/Stratvithor/search"
)

func main() {
	// Re-exec as a scrape worker before Cobra ever sees argv — the
	// subprocess scraper launches the binary itself with this hidden
	// subcommand, and it must never be mistaken for a reportctl verb.
	if len(os.Args) > 1 && os.Args[1] == search.WorkerSubcommand {
		search.RunWorkerMain(os.Args[2:])
		return
	}

	rootCmd := &cobra.Command{
		Use:   "reportctl",
		Short: "Run and inspect Report Orchestrator prompt-set executions",
		Long: `reportctl drives prompt-set runs from the command line.

Commands:
  run       Execute a prompt-set run to completion and print its report
  assemble  Reassemble a persisted run's report from its stored snapshot
  resume    Replay a persisted run's client-stream frames`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(commands.NewAssembleCommand())
	rootCmd.AddCommand(commands.NewResumeCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
