// Package config loads Stratvithor's runtime configuration from hardcoded
// defaults, a YAML file, and environment variables, in increasing order of
// precedence: env vars override file values, which override defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// Sentinel validation errors.
var (
	ErrInvalidPort           = errors.New("config: invalid server port")
	ErrInvalidMaxRetries     = errors.New("config: max context retries must be non-negative")
	ErrInvalidHighWaterMark  = errors.New("config: summarizer high water mark must be in (0,1]")
	ErrMissingLLMProvider    = errors.New("config: llm.provider must be set")
	ErrMissingRegistryDBPath = errors.New("config: registry.db_path must be set")
)

const (
	defaultPort              = 8080
	defaultHost              = "0.0.0.0"
	maxPort                  = 65535
	defaultMaxContextRetries = 5
	defaultHighWaterMark     = 0.95
)

// Config holds every setting Stratvithor's server boundary reads at
// startup; node-task and package-level defaults live beside their own code
// (e.g. Options.withDefaults, summarizer.Config.withDefaults) and are only
// overridden here when a deployment needs to change them.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	LLM          LLMConfig          `mapstructure:"llm"`
	Search       SearchConfig       `mapstructure:"search"`
	Summarizer   SummarizerConfig   `mapstructure:"summarizer"`
	Registry     RegistryConfig     `mapstructure:"registry"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
}

// ServerConfig configures the HTTP/WebSocket boundary that exposes the
// registry to clients.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LLMConfig selects and configures the chat-completion backend.
type LLMConfig struct {
	Provider string        `mapstructure:"provider"` // "openai", "anthropic", or "mock"
	Model    string        `mapstructure:"model"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// SearchConfig configures the SearchAggregator's external collaborators.
type SearchConfig struct {
	EndpointCandidates   []string      `mapstructure:"endpoint_candidates"`
	HealthPollInterval   time.Duration `mapstructure:"health_poll_interval"`
	HealthPollBudget     time.Duration `mapstructure:"health_poll_budget"`
	PerResourceTimeout   time.Duration `mapstructure:"per_resource_timeout"`
	GlobalScrapeBudget   time.Duration `mapstructure:"global_scrape_budget"`
	MaxConcurrentFetch   int           `mapstructure:"max_concurrent_fetch"`
	MaxResultsPerQuery   int           `mapstructure:"max_results_per_query"`
	UseSubprocessScraper bool          `mapstructure:"use_subprocess_scraper"`
}

// SummarizerConfig configures the single-worker summarization queue.
type SummarizerConfig struct {
	MaxInputTokens     int           `mapstructure:"max_input_tokens"`
	HighWaterMark      float64       `mapstructure:"high_water_mark"`
	MemoryPollInterval time.Duration `mapstructure:"memory_poll_interval"`
	IdleUnload         bool          `mapstructure:"idle_unload"`
	IdleTimeout        time.Duration `mapstructure:"idle_timeout"`
}

// OrchestratorConfig configures per-run node-task behavior.
type OrchestratorConfig struct {
	MaxContextRetries int `mapstructure:"max_context_retries"`
}

// RegistryConfig configures persisted-run storage.
type RegistryConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// LoggingConfig configures the structured logger every package writes
// through.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "text"
}

// Load reads configuration from configPath (if non-empty), falling back to
// `./stratvithor.yaml` and `$HOME/.stratvithor.yaml`, then overlays
// `STRATVITHOR_`-prefixed environment variables, and finally validates the
// merged result. A missing config file is not an error — defaults apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	applyDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvPrefix("STRATVITHOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("stratvithor")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("server.host", defaultHost)
	v.SetDefault("server.port", defaultPort)

	v.SetDefault("llm.provider", "mock")
	v.SetDefault("llm.timeout", "60s")

	v.SetDefault("search.health_poll_interval", "10s")
	v.SetDefault("search.health_poll_budget", "60s")
	v.SetDefault("search.per_resource_timeout", "20s")
	v.SetDefault("search.global_scrape_budget", "90s")
	v.SetDefault("search.max_concurrent_fetch", 8)
	v.SetDefault("search.max_results_per_query", 5)
	v.SetDefault("search.use_subprocess_scraper", false)

	v.SetDefault("summarizer.max_input_tokens", 1024)
	v.SetDefault("summarizer.high_water_mark", defaultHighWaterMark)
	v.SetDefault("summarizer.memory_poll_interval", "500ms")
	v.SetDefault("summarizer.idle_unload", true)
	v.SetDefault("summarizer.idle_timeout", "30s")

	v.SetDefault("orchestrator.max_context_retries", defaultMaxContextRetries)

	v.SetDefault("registry.db_path", "stratvithor-runs.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks the merged configuration is internally consistent. Every
// violation is reported at once — via multierr — rather than stopping at
// the first, so a bad config file can be fixed in one pass instead of one
// error at a time.
func (c *Config) Validate() error {
	var err error
	if c.Server.Port <= 0 || c.Server.Port > maxPort {
		err = multierr.Append(err, fmt.Errorf("%w: %d", ErrInvalidPort, c.Server.Port))
	}
	if c.Orchestrator.MaxContextRetries < 0 {
		err = multierr.Append(err, fmt.Errorf("%w: %d", ErrInvalidMaxRetries, c.Orchestrator.MaxContextRetries))
	}
	if c.Summarizer.HighWaterMark <= 0 || c.Summarizer.HighWaterMark > 1 {
		err = multierr.Append(err, fmt.Errorf("%w: %f", ErrInvalidHighWaterMark, c.Summarizer.HighWaterMark))
	}
	if c.LLM.Provider == "" {
		err = multierr.Append(err, ErrMissingLLMProvider)
	}
	if c.Registry.DBPath == "" {
		err = multierr.Append(err, ErrMissingRegistryDBPath)
	}
	return err
}
