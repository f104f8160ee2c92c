// Package search implements the SearchAggregator: query synthesis,
// concurrent search fan-out, resource type detection, isolated scraping,
// and summarization integration.
package search

// ResourceType is how a URL's body should be parsed.
type ResourceType string

const (
	TypeHTML ResourceType = "html"
	TypePDF  ResourceType = "pdf"
)

// OnlineResource is one scraped-and-summarized search hit. It carries the
// same fields as resultstore.ResourceRef (the persisted shape), with
// Extension typed as ResourceType; Aggregate replaces ScrappedText with the
// summary before returning it.
type OnlineResource struct {
	URL          string
	DisplayURL   string
	Title        string
	Snippet      string
	ScrappedText string
	Extension    ResourceType
}
