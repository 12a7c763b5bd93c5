// Package llmclient implements ports.LLMClient: an external (OpenAI-style)
// chat-completions adapter and a local (Ollama-style) generate adapter, plus
// a retry wrapper both share. Grounded on original_source/backend/app/
// services/llm_client.py's ExternalLLMClient/LocalLLMClient, with the HTTP
// plumbing adapted from 0xcro3dile-localrag-go's internal/adapters/llm/
// ollama.go.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/veridoc-ai/compliance-rag/internal/domain/ports"
)

const defaultExternalTimeout = 60 * time.Second

// ExternalConfig configures a cloud-hosted chat-completions provider.
type ExternalConfig struct {
	Endpoint string // defaults to OpenAI's chat completions endpoint
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// ExternalClient implements ports.LLMClient against an OpenAI-compatible
// chat completions API.
type ExternalClient struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
}

// NewExternalClient builds an ExternalClient. apiKey must be non-empty.
func NewExternalClient(cfg ExternalConfig) (*ExternalClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llmclient: external API key is required")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1/chat/completions"
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultExternalTimeout
	}
	return &ExternalClient{
		endpoint: endpoint,
		apiKey:   cfg.APIKey,
		model:    model,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *responseFmt  `json:"response_format,omitempty"`
}

type responseFmt struct {
	Type string `json:"type"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete implements ports.LLMClient.
func (c *ExternalClient) Complete(ctx context.Context, prompt string, opts ports.CompletionOptions) (string, error) {
	reqBody := chatCompletionRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: opts.Temperature,
	}
	if opts.JSONMode {
		reqBody.ResponseFormat = &responseFmt{Type: "json_object"}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("llmclient: marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("llmclient: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("llmclient: calling external provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("llmclient: external provider returned status %d: %s", resp.StatusCode, body)
	}

	var out chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("llmclient: decoding external provider response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("llmclient: external provider returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}
