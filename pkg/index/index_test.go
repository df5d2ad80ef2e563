package index

import (
	"context"
	"strings"
	"testing"

	"github.com/sidharthgd/LabVerse/pkg/models"
	"github.com/sidharthgd/LabVerse/pkg/store"
)

// staticEngine returns fixed vectors keyed by text keywords.
type staticEngine struct{}

func (staticEngine) Embed(_ context.Context, text string) ([]float32, error) {
	switch {
	case strings.Contains(text, "mice"):
		return []float32{1, 0, 0}, nil
	case strings.Contains(text, "plant"):
		return []float32{0, 1, 0}, nil
	default:
		return []float32{0, 0, 1}, nil
	}
}

func (e staticEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, _ := e.Embed(ctx, t)
		out[i] = v
	}
	return out, nil
}

func (staticEngine) Dimensions() int { return 3 }
func (staticEngine) Name() string    { return "static" }

func openTemp(t *testing.T) {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
}

func miceDoc() models.Document {
	return models.Document{
		ID:          "doc-mice",
		FilePath:    "/data/mice.csv",
		FileName:    "mice.csv",
		FileType:    "csv",
		Description: "mice weight measurements",
	}
}

func plantDoc() models.Document {
	return models.Document{
		ID:          "doc-plants",
		FilePath:    "/data/plants.csv",
		FileName:    "plants.csv",
		FileType:    "csv",
		Description: "plant growth data",
	}
}

func TestAddAndSearch(t *testing.T) {
	openTemp(t)
	ix := New(staticEngine{})

	if ix.Ready() {
		t.Fatalf("empty index should not be ready")
	}
	if err := ix.Add(context.Background(), miceDoc()); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := ix.Add(context.Background(), plantDoc()); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !ix.Ready() || ix.Len() != 2 {
		t.Fatalf("expected ready index with 2 docs, got %d", ix.Len())
	}

	matches, err := ix.Search(context.Background(), "where are the mice files", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("expected matches")
	}
	if matches[0].Doc.ID != "doc-mice" {
		t.Fatalf("expected mice doc first, got %s", matches[0].Doc.ID)
	}
	if matches[0].Score <= 0 {
		t.Fatalf("expected positive score, got %f", matches[0].Score)
	}
}

func TestLoadRestoresFromStore(t *testing.T) {
	openTemp(t)
	ix := New(staticEngine{})
	if err := ix.Add(context.Background(), miceDoc()); err != nil {
		t.Fatalf("Add: %v", err)
	}

	// fresh index over the same store
	ix2 := New(staticEngine{})
	if err := ix2.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ix2.Len() != 1 {
		t.Fatalf("expected 1 doc after load, got %d", ix2.Len())
	}
	if _, ok := ix2.Get("doc-mice"); !ok {
		t.Fatalf("doc missing after load")
	}
	matches, err := ix2.Search(context.Background(), "mice please", 1)
	if err != nil || len(matches) != 1 {
		t.Fatalf("search after load: %v %v", matches, err)
	}
}

func TestRemove(t *testing.T) {
	openTemp(t)
	ix := New(staticEngine{})
	_ = ix.Add(context.Background(), miceDoc())

	if err := ix.Remove("doc-mice"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if ix.Len() != 0 {
		t.Fatalf("expected empty index, got %d", ix.Len())
	}
	if _, err := store.GetDocument("doc-mice"); err == nil {
		t.Fatalf("expected doc removed from store")
	}
}

func TestDocumentsCopy(t *testing.T) {
	openTemp(t)
	ix := New(staticEngine{})
	_ = ix.Add(context.Background(), miceDoc())

	docs := ix.Documents()
	if len(docs) != 1 {
		t.Fatalf("expected 1 doc, got %d", len(docs))
	}
	docs[0].FileName = "mutated.csv"
	if d, _ := ix.Get("doc-mice"); d.FileName != "mice.csv" {
		t.Fatalf("Documents should return copies, index was mutated")
	}
}
