package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SearchAPI is the external HTTP JSON search backend contract.
type SearchAPI interface {
	Search(ctx context.Context, req SearchRequest) (SearchResponse, error)
	Health(ctx context.Context) (bool, error)
}

// SearchRequest is one query against the external search API.
type SearchRequest struct {
	Credentials      string `json:"credentials,omitempty"`
	GeneralPrompt    string `json:"general_prompt"`
	ParticularPrompt string `json:"particular_prompt"`
	OperatingPath    string `json:"operating_path,omitempty"`
	LLMAPIURL        string `json:"llm_api_url,omitempty"`
	CSEID            string `json:"cse_id,omitempty"`
	MaxResults       int    `json:"max_results,omitempty"`
}

// SearchResult is one hit as returned by the external search API.
type SearchResult struct {
	URL          string `json:"url"`
	DisplayURL   string `json:"display_url"`
	Snippet      string `json:"snippet"`
	Title        string `json:"title"`
	ScrappedText string `json:"scrapped_text"`
	Extension    string `json:"extension"`
}

// SearchResponse is the external API's reply to a SearchRequest.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

// HTTPSearchClient is the real SearchAPI implementation.
type HTTPSearchClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSearchClient(baseURL string) *HTTPSearchClient {
	return &HTTPSearchClient{baseURL: baseURL, client: &http.Client{Timeout: 30 * time.Second}}
}

func (c *HTTPSearchClient) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return SearchResponse{}, fmt.Errorf("marshal search request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return SearchResponse{}, fmt.Errorf("build search request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return SearchResponse{}, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return SearchResponse{}, fmt.Errorf("search api returned %d", resp.StatusCode)
	}

	var out SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return SearchResponse{}, fmt.Errorf("decode search response: %w", err)
	}
	return out, nil
}

func (c *HTTPSearchClient) Health(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, nil
	}
	var status struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return false, err
	}
	return status.Status == "ok", nil
}

// DiscoverEndpoint polls each candidate base URL's /health every interval
// up to budget, returning the first that answers {status:"ok"}.
func DiscoverEndpoint(ctx context.Context, candidates []string, interval, budget time.Duration) (string, error) {
	deadline := time.Now().Add(budget)
	for {
		for _, base := range candidates {
			client := NewHTTPSearchClient(base)
			healthCtx, cancel := context.WithTimeout(ctx, interval)
			ok, err := client.Health(healthCtx)
			cancel()
			if err == nil && ok {
				return base, nil
			}
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("search: no candidate endpoint became healthy within %s", budget)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(interval):
		}
	}
}
