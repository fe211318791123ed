package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/mediascope/researcher/internal/domain"
)

type ReaderClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *log.Logger
}

// ReaderClient calls the page-reader collaborator, which fetches web pages
// and returns query-focused summaries.
type ReaderClient struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	logger     *log.Logger
}

func NewReaderClient(config ReaderClientConfig) *ReaderClient {
	if config.Timeout <= 0 {
		config.Timeout = 2 * time.Minute
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	return &ReaderClient{
		baseURL:    strings.TrimSuffix(strings.TrimSpace(config.BaseURL), "/"),
		timeout:    config.Timeout,
		httpClient: config.HTTPClient,
		logger:     config.Logger,
	}
}

func (c *ReaderClient) Configured() bool {
	return c.baseURL != ""
}

func (c *ReaderClient) Healthy(ctx context.Context) bool {
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
		c.logf("page reader health check failed: %v", err)
		return false
	}
	defer response.Body.Close()
	return response.StatusCode == http.StatusOK
}

// ReadRequest pairs one page URL with the query the summary should focus on.
type ReadRequest struct {
	URL   string
	Query string
}

type readBatchPayload struct {
	Pages []readPagePayload `json:"pages"`
}

type readPagePayload struct {
	URL   string `json:"url"`
	Query string `json:"query"`
}

type readBatchResponse struct {
	Pages []struct {
		URL       string   `json:"url"`
		Title     string   `json:"title"`
		Summary   string   `json:"summary"`
		KeyPoints []string `json:"key_points"`
		Success   bool     `json:"success"`
		Error     string   `json:"error"`
	} `json:"pages"`
}

// ReadBatch reads a batch of pages and returns one record per requested URL.
// URLs the collaborator omits, and whole-batch failures, come back as failed
// records so callers can mark every attempted URL as tried.
func (c *ReaderClient) ReadBatch(ctx context.Context, requests []ReadRequest) map[string]domain.WebPageRecord {
	records := make(map[string]domain.WebPageRecord, len(requests))
	for _, req := range requests {
		records[req.URL] = domain.WebPageRecord{URL: req.URL, Success: false, ErrorMsg: "not read"}
	}
	if !c.Configured() || len(requests) == 0 {
		return records
	}

	payload := readBatchPayload{Pages: make([]readPagePayload, 0, len(requests))}
	for _, req := range requests {
		payload.Pages = append(payload.Pages, readPagePayload{URL: req.URL, Query: req.Query})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		c.logf("encode page read batch: %v", err)
		return failAll(records, "encode request failed")
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/read", bytes.NewReader(body))
	if err != nil {
		c.logf("build page read request: %v", err)
		return failAll(records, "build request failed")
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		c.logf("page read batch failed: %v", err)
		return failAll(records, "reader unreachable")
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		c.logf("page read batch returned status %d", response.StatusCode)
		return failAll(records, fmt.Sprintf("reader returned status %d", response.StatusCode))
	}

	raw, err := io.ReadAll(response.Body)
	if err != nil {
		c.logf("read page batch body: %v", err)
		return failAll(records, "read response failed")
	}

	var decoded readBatchResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		c.logf("decode page batch body: %v", err)
		return failAll(records, "decode response failed")
	}

	for _, page := range decoded.Pages {
		if _, requested := records[page.URL]; !requested {
			continue
		}
		records[page.URL] = domain.WebPageRecord{
			URL:       page.URL,
			Title:     page.Title,
			Summary:   page.Summary,
			KeyPoints: page.KeyPoints,
			Success:   page.Success,
			ErrorMsg:  page.Error,
		}
	}
	return records
}

func failAll(records map[string]domain.WebPageRecord, reason string) map[string]domain.WebPageRecord {
	for url, record := range records {
		if record.Success {
			continue
		}
		record.ErrorMsg = reason
		records[url] = record
	}
	return records
}

func (c *ReaderClient) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}
