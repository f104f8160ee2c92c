package commands_test

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite" // pure-Go sqlite driver

	"github.com/luislascano01/Stratvithor/cmd/reportctl/commands"
)

const testDoc = `
prompts:
  overview:
    id: 1
    text: "Summarize the filing."
  details:
    id: 2
    text: "Summarize the competitive position."
prompt_dag:
  - "1 -> 2"
`

func writePromptSet(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(testDoc), 0o600))
}

// TestRunAssembleResumeEndToEnd exercises the whole reportctl pipeline in
// mock mode: run a prompt set to completion and save it, reassemble it from
// the SQLite store, then replay its client-stream frames.
func TestRunAssembleResumeEndToEnd(t *testing.T) {
	promptSetDir := t.TempDir()
	writePromptSet(t, promptSetDir, "acme-report")
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	runCmd := commands.NewRunCommand()
	runCmd.SetArgs([]string{
		"acme-report", "Acme Inc",
		"--prompt-set-dir", promptSetDir,
		"--db", dbPath,
		"--mock",
		"--save",
	})
	require.NoError(t, runCmd.Execute())

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()
	var runID string
	require.NoError(t, db.QueryRow(`SELECT run_id FROM runs LIMIT 1`).Scan(&runID))
	require.NotEmpty(t, runID)

	assembleCmd := commands.NewAssembleCommand()
	assembleCmd.SetArgs([]string{runID, "--db", dbPath})
	require.NoError(t, assembleCmd.Execute())

	resumeCmd := commands.NewResumeCommand()
	resumeCmd.SetArgs([]string{runID, "--db", dbPath})
	require.NoError(t, resumeCmd.Execute())
}

func TestAssembleUnknownRunFails(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	cmd := commands.NewAssembleCommand()
	cmd.SetArgs([]string{"does-not-exist", "--db", dbPath})
	require.Error(t, cmd.Execute())
}
