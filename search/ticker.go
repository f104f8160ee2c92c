package search

import (
	"context"
	"regexp"
	"strings"
)

// tickerPattern matches an inline stock ticker annotation, either an
// exchange-prefixed form ("(NASDAQ: AAPL)", "(NYSE:MSFT)") or a bare
// cashtag ("$AAPL").
var tickerPattern = regexp.MustCompile(`(?i)\((?:NASDAQ|NYSE|OTC)\s*:\s*([A-Z]{1,5})\)|\$([A-Z]{1,5})\b`)

// ExtractTicker looks for a stock ticker symbol inline in text, preferring
// an exchange-prefixed annotation over a bare cashtag when both are
// present. It reports false when no candidate is found — callers on the
// is_company path may use this before falling back to a FinancialLookup
// keyed on the company name itself.
func ExtractTicker(ctx context.Context, text string) (string, bool, error) {
	select {
	case <-ctx.Done():
		return "", false, ctx.Err()
	default:
	}

	matches := tickerPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return "", false, nil
	}
	for _, m := range matches {
		if m[1] != "" {
			return strings.ToUpper(m[1]), true, nil
		}
	}
	return strings.ToUpper(matches[0][2]), true, nil
}
