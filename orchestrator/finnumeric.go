package orchestrator

import "context"

// FinancialLookup populates the numeric context read by company-focused
// nodes. It is invoked once at run start, not per node, and its result is
// shared by every node that needs it.
type FinancialLookup interface {
	Lookup(ctx context.Context, focus string) (string, error)
}

// MockFinancialLookup is used by mock-mode runs and tests; it never makes a
// network call.
type MockFinancialLookup struct{}

func (MockFinancialLookup) Lookup(_ context.Context, focus string) (string, error) {
	return "No numeric context available for " + focus, nil
}
