package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Compile-time interface check.
var _ Provider = (*Ollama)(nil)

const defaultOllamaURL = "http://localhost:11434/api/embed"

// Ollama embeds text through a local Ollama server's /api/embed endpoint.
type Ollama struct {
	baseURL string
	model   string
	dims    int
	client  *http.Client
}

// NewOllama creates an Ollama embedding provider. baseURL defaults to the
// local server; dims must match the model's output dimension.
func NewOllama(baseURL, model string, dims int) *Ollama {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	return &Ollama{
		baseURL: baseURL,
		model:   model,
		dims:    dims,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Dimension returns the configured vector length.
func (o *Ollama) Dimension() int { return o.dims }

// ModelID identifies the backing model.
func (o *Ollama) ModelID() string { return "ollama:" + o.model }

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Generate embeds texts in a single request.
func (o *Ollama) Generate(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(ollamaEmbedRequest{Model: o.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama embed: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: ollama: %v", ErrProviderUnavailable, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: ollama: read response: %v", ErrProviderUnavailable, err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: ollama: status %d: %s", ErrProviderUnavailable, httpResp.StatusCode, respBody)
	}

	var resp ollamaEmbedResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("ollama embed: unmarshal response: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: ollama: got %d embeddings for %d inputs", ErrProviderUnavailable, len(resp.Embeddings), len(texts))
	}

	return resp.Embeddings, nil
}
