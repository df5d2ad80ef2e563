package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
	}
	for _, c := range cases {
		got, err := CosineSimilarity(c.a, c.b)
		if err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
		if math.Abs(got-c.want) > 1e-9 {
			t.Fatalf("%s: expected %f, got %f", c.name, c.want, got)
		}
	}
}

func TestCosineSimilarityDimensionMismatch(t *testing.T) {
	if _, err := CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}); err == nil {
		t.Fatalf("expected dimension mismatch error")
	}
}

func TestCosineSimilarityZeroVector(t *testing.T) {
	got, err := CosineSimilarity([]float32{0, 0}, []float32{1, 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0 {
		t.Fatalf("zero vector should score 0, got %f", got)
	}
}

func TestFindTopK(t *testing.T) {
	query := []float32{1, 0, 0}
	candidates := map[string][]float32{
		"exact":    {1, 0, 0},
		"close":    {0.9, 0.1, 0},
		"far":      {0, 1, 0},
		"opposite": {-1, 0, 0},
	}
	got := FindTopK(query, candidates, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0].ID != "exact" {
		t.Fatalf("expected exact first, got %s", got[0].ID)
	}
	if got[1].ID != "close" {
		t.Fatalf("expected close second, got %s", got[1].ID)
	}
	if got[0].Score < got[1].Score {
		t.Fatalf("scores out of order: %v", got)
	}
}

func TestFindTopKSkipsMismatchedDims(t *testing.T) {
	got := FindTopK([]float32{1, 0}, map[string][]float32{
		"ok":  {1, 0},
		"bad": {1, 0, 0},
	}, 5)
	if len(got) != 1 || got[0].ID != "ok" {
		t.Fatalf("expected only matching dims, got %v", got)
	}
}

func TestOllamaEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "nomic-embed-text" {
			t.Fatalf("unexpected model %s", req.Model)
		}
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float64{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	eng := newOllamaEngine(Config{Endpoint: srv.URL})
	vec, err := eng.Embed(context.Background(), "mouse weights")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("expected 3 dims, got %d", len(vec))
	}
	// dims adapt to what the daemon actually returned
	if eng.Dimensions() != 3 {
		t.Fatalf("expected adapted dims, got %d", eng.Dimensions())
	}
}

func TestOllamaEmbedServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	eng := newOllamaEngine(Config{Endpoint: srv.URL})
	if _, err := eng.Embed(context.Background(), "anything"); err == nil {
		t.Fatalf("expected error from 404")
	}
}

func TestOllamaEmbedEmptyText(t *testing.T) {
	eng := newOllamaEngine(Config{})
	if _, err := eng.Embed(context.Background(), "   "); err == nil {
		t.Fatalf("expected empty text to be rejected")
	}
}

func TestNewEngineProviderSelection(t *testing.T) {
	eng, err := NewEngine(Config{})
	if err != nil {
		t.Fatalf("NewEngine default: %v", err)
	}
	if eng.Name() != "ollama:nomic-embed-text" {
		t.Fatalf("expected default ollama engine, got %s", eng.Name())
	}
	if _, err := NewEngine(Config{Provider: "mystery"}); err == nil {
		t.Fatalf("expected unknown provider error")
	}
}

func TestOllamaEmbedConcurrent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float64{0.1, 0.2, 0.3, 0.4}})
	}))
	defer srv.Close()

	eng := newOllamaEngine(Config{Endpoint: srv.URL})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := eng.Embed(context.Background(), "concurrent text"); err != nil {
				t.Errorf("Embed: %v", err)
			}
			_ = eng.Dimensions()
		}()
	}
	wg.Wait()
	if eng.Dimensions() != 4 {
		t.Fatalf("expected adapted dims 4, got %d", eng.Dimensions())
	}
}
