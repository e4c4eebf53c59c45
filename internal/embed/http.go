package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	defaultHTTPEndpoint = "https://api.openai.com/v1"
	defaultHTTPModel    = "text-embedding-3-small"
)

// HTTPEmbedder calls an OpenAI-compatible /embeddings endpoint. Any
// provider exposing that wire shape (OpenAI, OpenRouter, a local
// OpenAI-compatible server) can be targeted via WithEndpoint.
type HTTPEmbedder struct {
	endpoint   string
	model      string
	apiKey     string
	dimensions int
	client     *http.Client
}

type httpEmbedRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions *int     `json:"dimensions,omitempty"`
}

type httpEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model,omitempty"`
}

type httpErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Option configures an HTTPEmbedder.
type Option func(*HTTPEmbedder)

func WithEndpoint(endpoint string) Option { return func(e *HTTPEmbedder) { e.endpoint = endpoint } }
func WithModel(model string) Option       { return func(e *HTTPEmbedder) { e.model = model } }
func WithAPIKey(key string) Option        { return func(e *HTTPEmbedder) { e.apiKey = key } }
func WithDimensions(d int) Option         { return func(e *HTTPEmbedder) { e.dimensions = d } }

// NewHTTPEmbedder constructs an embedder reading its API key from
// CODEINTEL_EMBEDDER_API_KEY (or OPENAI_API_KEY) if not supplied via
// WithAPIKey, failing fast at construction if neither is set — a
// configuration error per the error-handling taxonomy.
func NewHTTPEmbedder(opts ...Option) (*HTTPEmbedder, error) {
	e := &HTTPEmbedder{
		endpoint:   defaultHTTPEndpoint,
		model:      defaultHTTPModel,
		dimensions: 1536,
		client:     &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.apiKey == "" {
		e.apiKey = os.Getenv("CODEINTEL_EMBEDDER_API_KEY")
	}
	if e.apiKey == "" {
		e.apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if e.apiKey == "" {
		return nil, fmt.Errorf("embedder: API key not set (CODEINTEL_EMBEDDER_API_KEY or OPENAI_API_KEY)")
	}
	return e, nil
}

func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *HTTPEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(httpEmbedRequest{Model: e.model, Input: texts, Dimensions: &e.dimensions})
	if err != nil {
		return nil, fmt.Errorf("embedder: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embedder: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedder: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embedder: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var eresp httpErrorResponse
		msg := string(respBody)
		if json.Unmarshal(respBody, &eresp) == nil && eresp.Error.Message != "" {
			msg = eresp.Error.Message
		}
		return nil, fmt.Errorf("embedder: status %d: %s", resp.StatusCode, msg)
	}

	var result httpEmbedResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("embedder: decode response: %w", err)
	}
	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("embedder: expected %d embeddings, got %d", len(texts), len(result.Data))
	}
	out := make([][]float32, len(texts))
	for _, item := range result.Data {
		out[item.Index] = item.Embedding
	}
	return out, nil
}

func (e *HTTPEmbedder) Dimension() int { return e.dimensions }
func (e *HTTPEmbedder) ModelID() string { return e.model }
func (e *HTTPEmbedder) Close() error    { return nil }

var _ Embedder = (*HTTPEmbedder)(nil)
