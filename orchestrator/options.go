package orchestrator

import "time"

// Options configures one Run.
type Options struct {
	// Mock short-circuits every non-system node to the deterministic mock
	// response instead of calling the LLM.
	Mock bool
	// WebSearch enables the SearchAggregator pipeline for every non-system
	// node.
	WebSearch bool
	// IsCompany enables the fin_numeric_context lookup for every
	// non-system node.
	IsCompany bool

	// SearchEndpointCandidates are base URLs polled for /health when
	// WebSearch is set.
	SearchEndpointCandidates []string
	// HealthPollInterval is how often candidates are re-polled.
	HealthPollInterval time.Duration
	// HealthPollBudget bounds the total time spent discovering a healthy
	// search endpoint before the node fails.
	HealthPollBudget time.Duration

	// MaxContextRetries bounds the context-length-exceeded retry loop.
	MaxContextRetries int
}

func (o Options) withDefaults() Options {
	if o.HealthPollInterval <= 0 {
		o.HealthPollInterval = 10 * time.Second
	}
	if o.HealthPollBudget <= 0 {
		o.HealthPollBudget = 60 * time.Second
	}
	if o.MaxContextRetries <= 0 {
		o.MaxContextRetries = 5
	}
	return o
}
