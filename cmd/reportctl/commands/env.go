package commands

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go/v3"

	"github.com/luislascano01/Stratvithor/internal/config"
	"github.com/luislascano01/Stratvithor/llm"
	"github.com/luislascano01/Stratvithor/orchestrator"
	"github.com/luislascano01/Stratvithor/registry"
)

const (
	anthropicMaxTokens  = 4096
	defaultAnthropicTag = "claude-sonnet-4-5"
)

// buildLLMClient selects a Client implementation from cfg.LLM.Provider. It
// never falls back silently: an unrecognized provider is a configuration
// error, not a quiet downgrade to the mock.
func buildLLMClient(cfg config.LLMConfig) (llm.Client, error) {
	switch cfg.Provider {
	case "mock":
		return llm.MockClient{}, nil
	case "openai":
		model := openai.ChatModel(cfg.Model)
		if cfg.Model == "" {
			model = openai.ChatModelGPT4o
		}
		return llm.NewOpenAIClient(cfg.APIKey, model), nil
	case "anthropic":
		tag := cfg.Model
		if tag == "" {
			tag = defaultAnthropicTag
		}
		return llm.NewAnthropicClient(cfg.APIKey, anthropic.Model(tag), anthropicMaxTokens), nil
	default:
		return nil, fmt.Errorf("reportctl: unknown llm provider %q", cfg.Provider)
	}
}

// buildRegistry wires a registry.Registry bound to promptSetDir for prompt-set
// resolution, with no search aggregator and the mock financial lookup — reportctl runs
// are mock-first, diagnostic tooling; a server boundary wires the richer
// collaborators itself.
func buildRegistry(cfg *config.Config, promptSetDir string) (*registry.Registry, error) {
	client, err := buildLLMClient(cfg.LLM)
	if err != nil {
		return nil, err
	}
	loader := FileLoader{Dir: promptSetDir}
	return registry.New(loader, client, nil, orchestrator.MockFinancialLookup{}), nil
}

// runOptions derives orchestrator.Options from the merged configuration and
// the command's own flags.
func runOptions(cfg *config.Config, mock, webSearch, isCompany bool) orchestrator.Options {
	return orchestrator.Options{
		Mock:                     mock,
		WebSearch:                webSearch,
		IsCompany:                isCompany,
		SearchEndpointCandidates: cfg.Search.EndpointCandidates,
		HealthPollInterval:       cfg.Search.HealthPollInterval,
		HealthPollBudget:         cfg.Search.HealthPollBudget,
		MaxContextRetries:        cfg.Orchestrator.MaxContextRetries,
	}
}
