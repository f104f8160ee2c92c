package search

import "strings"

// knownArchiveBanners and knownPaywallMarkers are prefixes/substrings that
// mark scraped text as unusable, grounded on the paywall-unblocking
// workflow's archive.ph fallback: when even the archive snapshot fails, the
// page returns a banner instead of article text.
var knownArchiveBanners = []string{
	"this snapshot was archived",
	"archive.ph",
	"archive.today",
}

var knownPaywallMarkers = []string{
	"subscribe to continue reading",
	"this content is for subscribers",
	"you have reached your free article limit",
}

// isUnusableText reports whether text is empty, an archive-service banner,
// or a known paywall marker — any of which causes the resource to be
// dropped silently.
func isUnusableText(text string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(text))
	if trimmed == "" {
		return true
	}
	for _, marker := range knownArchiveBanners {
		if strings.HasPrefix(trimmed, marker) {
			return true
		}
	}
	for _, marker := range knownPaywallMarkers {
		if strings.Contains(trimmed, marker) {
			return true
		}
	}
	return false
}
