package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/veridoc-ai/compliance-rag/internal/domain/ports"
)

const defaultLocalTimeout = 120 * time.Second

// LocalConfig configures a locally hosted generate-style server (Ollama,
// vLLM's Ollama-compatible shim, etc).
type LocalConfig struct {
	BaseURL string // e.g. "http://localhost:11434"
	Model   string
	Timeout time.Duration
}

// LocalClient implements ports.LLMClient against an Ollama-style /api/generate
// endpoint.
type LocalClient struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewLocalClient builds a LocalClient.
func NewLocalClient(cfg LocalConfig) *LocalClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	model := cfg.Model
	if model == "" {
		model = "llama3.2"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultLocalTimeout
	}
	return &LocalClient{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Format  string          `json:"format,omitempty"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Complete implements ports.LLMClient.
func (c *LocalClient) Complete(ctx context.Context, prompt string, opts ports.CompletionOptions) (string, error) {
	reqBody := generateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Stream:  false,
		Options: generateOptions{Temperature: opts.Temperature},
	}
	if opts.JSONMode {
		reqBody.Format = "json"
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("llmclient: marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("llmclient: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("llmclient: calling local server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llmclient: local server returned status %d", resp.StatusCode)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("llmclient: decoding local server response: %w", err)
	}
	return out.Response, nil
}
