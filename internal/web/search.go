// Package web holds the HTTP clients for the web-search and page-reader
// collaborators. Both are best-effort: failures surface as empty results
// or explicit health-check false, never as task aborts.
package web

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mediascope/researcher/internal/domain"
)

type SearchClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxResults int
	HTTPClient *http.Client
	Logger     *log.Logger
}

// SearchClient queries a SearXNG-compatible metasearch endpoint.
type SearchClient struct {
	baseURL    string
	timeout    time.Duration
	maxResults int
	httpClient *http.Client
	logger     *log.Logger
}

func NewSearchClient(config SearchClientConfig) *SearchClient {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxResults <= 0 {
		config.MaxResults = 10
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	return &SearchClient{
		baseURL:    strings.TrimSuffix(strings.TrimSpace(config.BaseURL), "/"),
		timeout:    config.Timeout,
		maxResults: config.MaxResults,
		httpClient: config.HTTPClient,
		logger:     config.Logger,
	}
}

func (c *SearchClient) Configured() bool {
	return c.baseURL != ""
}

// Healthy probes the search endpoint.
func (c *SearchClient) Healthy(ctx context.Context) bool {
	if !c.Configured() {
		return false
	}
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	request, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return false
	}
	response, err := c.httpClient.Do(request)
	if err != nil {
		c.logf("web search health check failed: %v", err)
		return false
	}
	defer response.Body.Close()
	return response.StatusCode == http.StatusOK
}

type searxngResponse struct {
	Results []struct {
		URL     string  `json:"url"`
		Title   string  `json:"title"`
		Content string  `json:"content"`
		Engine  string  `json:"engine"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Search runs one web search and returns normalized results. Failures are
// logged and return an empty list; web search is strictly best-effort.
func (c *SearchClient) Search(ctx context.Context, query, language string) []domain.WebSearchResult {
	if !c.Configured() {
		return nil
	}
	if strings.TrimSpace(language) == "" {
		language = "en"
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("language", language)

	request, err := http.NewRequestWithContext(callCtx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		c.logf("build web search request for %q: %v", query, err)
		return nil
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		c.logf("web search failed for %q: %v", query, err)
		return nil
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		c.logf("web search for %q returned status %d", query, response.StatusCode)
		return nil
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		c.logf("read web search body for %q: %v", query, err)
		return nil
	}

	var decoded searxngResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		c.logf("decode web search body for %q: %v", query, err)
		return nil
	}

	results := make([]domain.WebSearchResult, 0, c.maxResults)
	for _, raw := range decoded.Results {
		if raw.URL == "" {
			continue
		}
		results = append(results, domain.WebSearchResult{
			URL:     raw.URL,
			Title:   raw.Title,
			Snippet: raw.Content,
			Engine:  raw.Engine,
			Score:   raw.Score,
		})
		if len(results) >= c.maxResults {
			break
		}
	}
	return results
}

func (c *SearchClient) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}
