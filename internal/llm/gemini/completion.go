//-------------------------------------------------------------------------
//
// FlowRAG Server
//
// Copyright (c) 2025 - 2026, the FlowRAG authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/flowrag/flowrag-server/internal/llm"
)

// CompletionProvider implements the llm.CompletionProvider interface.
type CompletionProvider struct {
	client      *Client
	model       string
	maxTokens   int
	temperature float64
}

// NewCompletionProvider creates a new Gemini completion provider.
func NewCompletionProvider(apiKey string, opts ...CompletionOption) *CompletionProvider {
	p := &CompletionProvider{
		client:      NewClient(apiKey),
		model:       defaultChatModel,
		maxTokens:   4096,
		temperature: 0.7,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CompletionOption configures the completion provider.
type CompletionOption func(*CompletionProvider)

// WithCompletionModel sets the generation model.
func WithCompletionModel(model string) CompletionOption {
	return func(p *CompletionProvider) {
		p.model = model
	}
}

// WithMaxTokens sets the default max output tokens.
func WithMaxTokens(tokens int) CompletionOption {
	return func(p *CompletionProvider) {
		p.maxTokens = tokens
	}
}

// WithTemperature sets the default temperature.
func WithTemperature(temp float64) CompletionOption {
	return func(p *CompletionProvider) {
		p.temperature = temp
	}
}

// WithCompletionClient sets a custom client.
func WithCompletionClient(client *Client) CompletionOption {
	return func(p *CompletionProvider) {
		p.client = client
	}
}

// part is a single content part.
type part struct {
	Text string `json:"text"`
}

// content is a role-tagged sequence of parts.
type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

// generationConfig carries Gemini generation parameters.
type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	CandidateCount  int     `json:"candidateCount,omitempty"`
}

// generateRequest is the request format for the generateContent API.
type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

// generateResponse is the response format from the generateContent API.
type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// Complete generates a completion.
func (p *CompletionProvider) Complete(
	ctx context.Context,
	req llm.CompletionRequest,
) (*llm.CompletionResponse, error) {
	model := p.model
	if req.Model != "" {
		model = req.Model
	}

	maxTokens := p.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	if maxTokens > maxOutputTokenCap {
		maxTokens = maxOutputTokenCap
	}

	temperature := p.temperature
	if req.Temperature >= 0 {
		temperature = req.Temperature
	}

	genReq := generateRequest{
		Contents: p.buildContents(req),
		GenerationConfig: &generationConfig{
			Temperature:     temperature,
			MaxOutputTokens: maxTokens,
			CandidateCount:  1,
		},
	}
	if req.SystemPrompt != "" {
		genReq.SystemInstruction = &content{
			Parts: []part{{Text: req.SystemPrompt}},
		}
	}

	path := fmt.Sprintf("/models/%s:generateContent", model)
	resp, err := p.client.request(ctx, http.MethodPost, path, genReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, parseError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var genResp generateResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(genResp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates returned")
	}

	candidate := genResp.Candidates[0]

	// Safety blocks arrive as an empty candidate with a SAFETY finish
	// reason rather than an error status.
	if candidate.FinishReason == "SAFETY" || candidate.FinishReason == "PROHIBITED_CONTENT" {
		return nil, &llm.Error{
			Code:    llm.ErrCodeContentFiltered,
			Message: fmt.Sprintf("gemini: generation blocked: %s", candidate.FinishReason),
		}
	}

	var text strings.Builder
	for _, pt := range candidate.Content.Parts {
		text.WriteString(pt.Text)
	}

	return &llm.CompletionResponse{
		Content:      text.String(),
		Model:        model,
		FinishReason: strings.ToLower(candidate.FinishReason),
		Usage: llm.TokenUsage{
			PromptTokens:     genResp.UsageMetadata.PromptTokenCount,
			CompletionTokens: genResp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      genResp.UsageMetadata.TotalTokenCount,
		},
	}, nil
}

// buildContents converts the request into Gemini contents. Gemini has no
// system role inside contents; system messages fold into the first user turn.
func (p *CompletionProvider) buildContents(req llm.CompletionRequest) []content {
	contents := make([]content, 0, len(req.Messages))

	var pendingSystem []string
	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			pendingSystem = append(pendingSystem, msg.Content)
		case "assistant":
			contents = append(contents, content{
				Role:  "model",
				Parts: []part{{Text: msg.Content}},
			})
		default:
			text := msg.Content
			if len(pendingSystem) > 0 {
				text = strings.Join(pendingSystem, "\n\n") + "\n\n" + text
				pendingSystem = nil
			}
			contents = append(contents, content{
				Role:  "user",
				Parts: []part{{Text: text}},
			})
		}
	}

	return contents
}

// ModelName returns the default model name.
func (p *CompletionProvider) ModelName() string {
	return p.model
}

// Ensure CompletionProvider implements the interface.
var _ llm.CompletionProvider = (*CompletionProvider)(nil)
