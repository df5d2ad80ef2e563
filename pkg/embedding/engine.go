package embedding

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Engine produces embedding vectors for catalog documents and queries.
type Engine interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Name() string
}

// Config selects and parameterizes an embedding provider.
type Config struct {
	Provider string // "openai" or "ollama"
	APIKey   string
	BaseURL  string // optional OpenAI-compatible base URL
	Endpoint string // ollama HTTP endpoint, e.g. http://localhost:11434
	Model    string
}

// NewEngine builds an Engine from config. Unknown providers default to
// ollama since it needs no credentials.
func NewEngine(cfg Config) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "openai", "openai_compatible":
		return newOpenAIEngine(cfg)
	case "", "ollama":
		return newOllamaEngine(cfg), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}

// CosineSimilarity computes the cosine similarity between two vectors.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimension mismatch: %d vs %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("empty vectors")
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// SimilarityResult pairs an identifier with its similarity score.
type SimilarityResult struct {
	ID    string
	Score float64
}

// FindTopK ranks candidate vectors against the query vector and returns the
// k best matches in descending score order. Candidates with mismatched
// dimensions are skipped.
func FindTopK(query []float32, candidates map[string][]float32, k int) []SimilarityResult {
	results := make([]SimilarityResult, 0, len(candidates))
	for id, vec := range candidates {
		score, err := CosineSimilarity(query, vec)
		if err != nil {
			continue
		}
		results = append(results, SimilarityResult{ID: id, Score: score})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results
}
