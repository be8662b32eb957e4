package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// jsonFormat constrains Ollama output to a JSON document.
var jsonFormat = json.RawMessage(`"json"`)

// OllamaClient wraps the Ollama generate API.
type OllamaClient struct {
	client     *api.Client
	model      string
	jsonFormat bool
}

// NewOllamaClient creates a new Ollama client for baseURL, e.g.
// http://localhost:11434. timeout bounds every generation call; local
// inference can take a while.
func NewOllamaClient(baseURL, model string, timeout time.Duration) (*OllamaClient, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base url: %w", err)
	}
	return &OllamaClient{
		client: api.NewClient(base, &http.Client{Timeout: timeout}),
		model:  model,
	}, nil
}

// WithJSONFormat asks Ollama to constrain the output to valid JSON.
func (c *OllamaClient) WithJSONFormat(enabled bool) *OllamaClient {
	c.jsonFormat = enabled
	return c
}

// Generate sends the prompt and returns the raw model text.
func (c *OllamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	stream := false
	req := &api.GenerateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: &stream,
	}
	if c.jsonFormat {
		req.Format = jsonFormat
	}

	var out strings.Builder
	err := c.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		out.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}

	return out.String(), nil
}
