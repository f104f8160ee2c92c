package promptgraph

// Prompt is one node's immutable definition for the duration of a run.
type Prompt struct {
	ID           int
	SectionTitle string
	Text         string
	System       bool
}

// rawPrompt mirrors the YAML shape of one entry under the document's
// `prompts` map. Source documents occasionally misspell `section_title` as
// `section_tile` for the same field — both are accepted on load, with
// `SectionTitle` preferred when both are present.
type rawPrompt struct {
	ID           int    `yaml:"id"`
	Text         string `yaml:"text"`
	System       bool   `yaml:"system"`
	SectionTitle string `yaml:"section_title"`
	SectionTile  string `yaml:"section_tile"`
	SectionName  string `yaml:"section_name"`
}

func (r rawPrompt) resolvedTitle(key string) string {
	switch {
	case r.SectionTitle != "":
		return r.SectionTitle
	case r.SectionTile != "":
		return r.SectionTile
	case r.SectionName != "":
		return r.SectionName
	default:
		return key
	}
}

// Document is the parsed shape of a prompt-set document: a mapping of
// section title to prompt body, plus the DAG edges as chain-literals.
type Document struct {
	Prompts   map[string]rawPrompt `yaml:"prompts"`
	PromptDAG []string             `yaml:"prompt_dag"`
}
