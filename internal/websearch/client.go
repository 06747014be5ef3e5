//-------------------------------------------------------------------------
//
// FlowRAG Server
//
// Copyright (c) 2025 - 2026, the FlowRAG authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package websearch fetches live web snippets for model context. Lookups
// are best-effort: callers degrade to running without web context when a
// search fails.
package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	defaultBaseURL    = "https://serpapi.com/search"
	defaultTimeout    = 15
	defaultMaxResults = 3
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("web search is not configured")

// Error marks a failed lookup. It is non-fatal to workflow execution.
type Error struct {
	Query string
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("web search for %q failed: %v", e.Query, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Snippet is one web search result.
type Snippet struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// Client queries a SerpAPI-compatible search endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient creates a web search client. An empty key produces a client
// whose searches fail with ErrNotConfigured.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout * time.Second,
		},
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithTimeout sets the HTTP timeout.
func WithTimeout(seconds int) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = time.Duration(seconds) * time.Second
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// Configured reports whether the client has an API key.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// searchResponse is the subset of the SerpAPI payload the service reads.
type searchResponse struct {
	OrganicResults []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic_results"`
	Error string `json:"error"`
}

// Search returns up to maxResults snippets for the query.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]Snippet, error) {
	if c.apiKey == "" {
		return nil, &Error{Query: query, Cause: ErrNotConfigured}
	}
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("num", strconv.Itoa(maxResults))
	params.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &Error{Query: query, Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Query: query, Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Query: query, Cause: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Query: query,
			Cause: fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))}
	}

	var searchResp searchResponse
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return nil, &Error{Query: query, Cause: fmt.Errorf("failed to parse response: %w", err)}
	}
	if searchResp.Error != "" {
		return nil, &Error{Query: query, Cause: errors.New(searchResp.Error)}
	}

	snippets := make([]Snippet, 0, maxResults)
	for _, r := range searchResp.OrganicResults {
		if len(snippets) == maxResults {
			break
		}
		snippets = append(snippets, Snippet{
			Title:   r.Title,
			Snippet: r.Snippet,
			URL:     r.Link,
		})
	}
	return snippets, nil
}
