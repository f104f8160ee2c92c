// Package commands implements reportctl's CLI command handlers.
package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/luislascano01/Stratvithor/promptgraph"
)

// FileLoader resolves a prompt-set name to "<Dir>/<name>.yaml" on disk. It
// is the GraphLoader registry.New expects when run from the command line.
type FileLoader struct {
	Dir string
}

// Load reads and parses "<name>.yaml" from the loader's directory.
func (l FileLoader) Load(promptSetName string) (*promptgraph.Graph, []byte, error) {
	path := filepath.Join(l.Dir, promptSetName+".yaml")
	doc, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reportctl: read prompt set %q: %w", path, err)
	}
	graph, err := promptgraph.Load(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("reportctl: parse prompt set %q: %w", path, err)
	}
	return graph, doc, nil
}
