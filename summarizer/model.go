package summarizer

import (
	"context"
	"fmt"
	"strings"
)

// MockModel is a deterministic Model used by tests. It never touches a
// network or GPU.
type MockModel struct{}

func (MockModel) Summarize(_ context.Context, text string, maxLen, _ int) (string, error) {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) > maxLen {
		trimmed = trimmed[:maxLen]
	}
	return fmt.Sprintf("Summary of: %s", trimmed), nil
}

// ConstantMemoryMonitor reports a fixed utilization fraction, useful for
// tests that need to force (or avoid) the high-water-mark wait path.
type ConstantMemoryMonitor float64

func (m ConstantMemoryMonitor) UtilizationFraction() float64 { return float64(m) }
