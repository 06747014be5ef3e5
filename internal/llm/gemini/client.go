//-------------------------------------------------------------------------
//
// FlowRAG Server
//
// Copyright (c) 2025 - 2026, the FlowRAG authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package gemini provides a Google Gemini API client.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/flowrag/flowrag-server/internal/llm"
)

const (
	defaultBaseURL        = "https://generativelanguage.googleapis.com/v1beta"
	defaultEmbeddingModel = "text-embedding-004"
	defaultChatModel      = "gemini-1.5-flash"
	defaultTimeout        = 60

	// Gemini rejects requests asking for more output tokens than this.
	maxOutputTokenCap = 8192
)

// Client is a Gemini API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient creates a new Gemini client.
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

// request makes an HTTP request to the Gemini API. The path names the model
// and method, e.g. "/models/gemini-1.5-flash:generateContent".
func (c *Client) request(
	ctx context.Context,
	method, path string,
	body interface{},
) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("x-goog-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, llm.Unavailable(fmt.Sprintf("gemini: request failed: %v", err))
	}

	return resp, nil
}

// apiError represents a Gemini API error payload.
type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// parseError classifies an API error response into the shared taxonomy.
func parseError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return llm.ClassifyStatus(resp.StatusCode,
			fmt.Sprintf("gemini: API error (status %d): failed to read body", resp.StatusCode))
	}

	var errResp apiError
	if err := json.Unmarshal(body, &errResp); err != nil {
		return llm.ClassifyStatus(resp.StatusCode,
			fmt.Sprintf("gemini: API error (status %d): %s", resp.StatusCode, string(body)))
	}

	e := llm.ClassifyStatus(resp.StatusCode,
		fmt.Sprintf("gemini: %s", errResp.Error.Message))

	// Unknown models surface as NOT_FOUND on the model resource.
	if errResp.Error.Status == "NOT_FOUND" {
		e.Code = llm.ErrCodeInvalidModel
		e.Retryable = false
	}

	return e
}
