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
var _ Provider = (*OpenAI)(nil)

const (
	defaultOpenAIModel = "text-embedding-3-small"
	defaultOpenAIDims  = 1536
	openAIEmbedURL     = "https://api.openai.com/v1/embeddings"

	// The embeddings API caps a single request's input list.
	openAIMaxBatch = 2048
)

// OpenAI embeds text through the OpenAI embeddings API. It makes a single
// attempt per sub-batch; retry with backoff belongs to the cache boundary,
// which wraps every provider the same way.
type OpenAI struct {
	apiKey  string
	model   string
	dims    int
	client  *http.Client
	baseURL string // overridable for tests
}

// NewOpenAI creates an OpenAI embedding provider. model defaults to
// text-embedding-3-small, dims to 1536.
func NewOpenAI(apiKey, model string, dims int) *OpenAI {
	if model == "" {
		model = defaultOpenAIModel
	}
	if dims <= 0 {
		dims = defaultOpenAIDims
	}
	return &OpenAI{
		apiKey:  apiKey,
		model:   model,
		dims:    dims,
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: openAIEmbedURL,
	}
}

// WithBaseURL points the provider at a different endpoint, for proxies and
// OpenAI-compatible servers.
func (o *OpenAI) WithBaseURL(url string) *OpenAI {
	o.baseURL = url
	return o
}

// Dimension returns the configured vector length.
func (o *OpenAI) Dimension() int { return o.dims }

// ModelID identifies the backing model.
func (o *OpenAI) ModelID() string { return "openai:" + o.model }

// Generate embeds texts, sub-batching at the API's input limit. Vectors come
// back in input order.
func (o *OpenAI) Generate(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += openAIMaxBatch {
		end := start + openAIMaxBatch
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := o.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

type openAIEmbedRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (o *OpenAI) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(openAIEmbedRequest{
		Model:      o.model,
		Input:      texts,
		Dimensions: o.dims,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embed: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai embed: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	httpResp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: openai: %v", ErrProviderUnavailable, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: openai: read response: %v", ErrProviderUnavailable, err)
	}

	switch {
	case httpResp.StatusCode == http.StatusOK:
	case httpResp.StatusCode == http.StatusTooManyRequests || httpResp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: openai: status %d: %s", ErrProviderUnavailable, httpResp.StatusCode, respBody)
	default:
		// 4xx other than 429 is a request bug, not an availability problem.
		return nil, fmt.Errorf("openai embed: API error %d: %s", httpResp.StatusCode, respBody)
	}

	var resp openAIEmbedResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("openai embed: unmarshal response: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: openai: got %d embeddings for %d inputs", ErrProviderUnavailable, len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("openai embed: embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}
