package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

const httpTimeout = 30 * time.Second

// postJSON sends in as JSON and decodes a 200 response into out.
func postJSON(ctx context.Context, client *http.Client, url, apiKey string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(b))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// OllamaEmbedder calls a local Ollama instance.
type OllamaEmbedder struct {
	baseURL string
	model   string
	dims    atomic.Int64
	client  *http.Client
}

type ollamaRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type ollamaResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewOllamaEmbedder uses Ollama's /api/embed endpoint. Dims starts at the model's known size
// (nomic-embed-text 768, all-minilm 384) and follows the first response.
func NewOllamaEmbedder(baseURL, model string) *OllamaEmbedder {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	e := &OllamaEmbedder{baseURL: baseURL, model: model, client: &http.Client{Timeout: httpTimeout}}
	switch model {
	case "all-minilm":
		e.dims.Store(384)
	default:
		e.dims.Store(768)
	}
	return e
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	var res ollamaResponse
	if err := postJSON(ctx, e.client, e.baseURL+"/api/embed", "", ollamaRequest{Model: e.model, Input: text}, &res); err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(res.Embeddings) == 0 || len(res.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("ollama embed: no embedding returned")
	}
	v := res.Embeddings[0]
	e.dims.Store(int64(len(v)))
	return v, nil
}

func (e *OllamaEmbedder) Dims() int { return int(e.dims.Load()) }

// OpenAIEmbedder calls any OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	baseURL string
	apiKey  string
	model   string
	dims    int
	client  *http.Client
}

type openaiEmbedRequest struct {
	Input      string `json:"input"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type openaiEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// NewOpenAIEmbedder defaults to api.openai.com and text-embedding-3-small. A non-zero dims is
// sent as the requested dimensionality.
func NewOpenAIEmbedder(baseURL, apiKey, model string, dims int) *OpenAIEmbedder {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &OpenAIEmbedder{baseURL: baseURL, apiKey: apiKey, model: model, dims: dims, client: &http.Client{Timeout: httpTimeout}}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	var res openaiEmbedResponse
	req := openaiEmbedRequest{Input: text, Model: e.model, Dimensions: e.dims}
	if err := postJSON(ctx, e.client, e.baseURL+"/embeddings", e.apiKey, req, &res); err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	if len(res.Data) == 0 {
		return nil, fmt.Errorf("openai embed: no embedding returned")
	}
	return res.Data[0].Embedding, nil
}

func (e *OpenAIEmbedder) Dims() int {
	if e.dims == 0 {
		return 1536
	}
	return e.dims
}
