package embedding

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/openai/openai-go"
	ooption "github.com/openai/openai-go/option"
)

const defaultOpenAIEmbedModel = "text-embedding-3-small"

// OpenAIEngine calls the embeddings API of OpenAI or any compatible server
// (a custom base URL covers Ollama's OpenAI-compatible endpoint too).
type OpenAIEngine struct {
	client openai.Client
	model  string
	// dims adapts to the first response; atomic because embeds run
	// concurrently from ingest workers and the query path.
	dims atomic.Int32
}

func newOpenAIEngine(cfg Config) (*OpenAIEngine, error) {
	if strings.TrimSpace(cfg.APIKey) == "" && strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("openai embedding provider requires an api key or base url")
	}
	opts := []ooption.RequestOption{}
	if k := strings.TrimSpace(cfg.APIKey); k != "" {
		opts = append(opts, ooption.WithAPIKey(k))
	}
	if u := strings.TrimSpace(cfg.BaseURL); u != "" {
		opts = append(opts, ooption.WithBaseURL(u))
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIEmbedModel
	}
	e := &OpenAIEngine{client: openai.NewClient(opts...), model: model}
	e.dims.Store(1536)
	return e, nil
}

func (e *OpenAIEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *OpenAIEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("no texts to embed")
	}
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings response size mismatch: want %d got %d", len(texts), len(resp.Data))
	}
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for j, f := range d.Embedding {
			vec[j] = float32(f)
		}
		out[i] = vec
	}
	if len(out) > 0 && len(out[0]) > 0 {
		e.dims.Store(int32(len(out[0])))
	}
	return out, nil
}

func (e *OpenAIEngine) Dimensions() int { return int(e.dims.Load()) }

func (e *OpenAIEngine) Name() string { return "openai:" + e.model }
