package ingest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sidharthgd/LabVerse/pkg/index"
	"github.com/sidharthgd/LabVerse/pkg/store"
)

// flatEngine gives every text the same vector; enough for indexing tests.
type flatEngine struct{}

func (flatEngine) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (e flatEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i], _ = e.Embed(ctx, "")
	}
	return out, nil
}

func (flatEngine) Dimensions() int { return 3 }
func (flatEngine) Name() string    { return "flat" }

func waitForDocs(t *testing.T, ix *index.Index, want int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if ix.Len() >= want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d indexed docs, have %d", want, ix.Len())
}

// A sync op fans out into more index ops than the queue can hold; with a
// single worker the overflow must be indexed inline rather than parking the
// worker on its own queue.
func TestSyncCompletesWhenQueueSmallerThanListing(t *testing.T) {
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	mirror := t.TempDir()
	for i := 0; i < 5; i++ {
		writeFile(t, mirror, fmt.Sprintf("run%d.csv", i), "id,value\n1,2\n")
	}

	q := NewQueue(2)
	p := NewProcessor(q, 1)
	ix := index.New(flatEngine{})
	sources := NewRegistry()
	sources.Register(NewMirrorConnector("drive", mirror))
	RegisterDefaultHandlers(p, NewScanner(), ix, sources)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	if err := q.TryEnqueue(&Op{Type: OpSync, Source: "drive"}); err != nil {
		t.Fatalf("TryEnqueue sync: %v", err)
	}
	waitForDocs(t, ix, 5)
}

func TestIndexHandlerUsesPayloadHead(t *testing.T) {
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	dir := t.TempDir()
	full := "id,weight\n"
	for i := 0; i < 10; i++ {
		full += fmt.Sprintf("%d,%d\n", i, i*10)
	}
	path := writeFile(t, dir, "mice.csv", full)

	q := NewQueue(4)
	p := NewProcessor(q, 1)
	ix := index.New(flatEngine{})
	RegisterDefaultHandlers(p, NewScanner(), ix, NewRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	// only the header and one row travel in the payload
	head := []byte("id,weight\n0,0\n")
	if err := q.TryEnqueue(&Op{Type: OpIndex, Source: "upload", Path: path, Payload: head}); err != nil {
		t.Fatalf("TryEnqueue: %v", err)
	}
	waitForDocs(t, ix, 1)

	docs := ix.Documents()
	if len(docs) != 1 {
		t.Fatalf("expected one doc, got %d", len(docs))
	}
	d := docs[0]
	if len(d.Columns) != 2 || d.Columns[0] != "id" || d.Columns[1] != "weight" {
		t.Fatalf("unexpected columns %v", d.Columns)
	}
	// row count comes from the payload, not from re-reading the file
	if d.RowCount != 1 {
		t.Fatalf("expected preview row count 1, got %d", d.RowCount)
	}
}
