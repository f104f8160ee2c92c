package search

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"
)

const maxScrapeBody = 1 << 20 // 1MB, matching the ambient HTTP-tool convention

// DirectScraper fetches and extracts a URL in-process. It is the engine a
// SubprocessScraper shells out to from an isolated worker process; it may
// also be used directly by callers that accept same-process scraping (e.g.
// unit tests).
type DirectScraper struct {
	client *http.Client
}

func NewDirectScraper() *DirectScraper {
	return &DirectScraper{client: &http.Client{Timeout: 30 * time.Second}}
}

func (d *DirectScraper) Scrape(ctx context.Context, rawURL string, kind ResourceType) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; ReportOrchestratorBot/1.0)")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("http %d from %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxScrapeBody))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	if kind == TypePDF {
		return extractPDF(body)
	}
	return extractHTML(body, rawURL)
}

func extractHTML(body []byte, rawURL string) (string, error) {
	parsed, _ := url.Parse(rawURL)
	article, err := readability.FromReader(bytes.NewReader(body), parsed)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		return strings.TrimSpace(article.TextContent), nil
	}
	return "", fmt.Errorf("readability extraction failed: %w", err)
}

func extractPDF(body []byte) (string, error) {
	if len(body) == 0 {
		return "", fmt.Errorf("empty pdf body")
	}
	r, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	text, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return strings.TrimSpace(string(text)), nil
}
