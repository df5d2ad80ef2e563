// Package index maintains the semantic search index over the document
// catalog. Vectors live in the store next to their documents; a full copy is
// kept in memory because the catalog is thousands of files, not millions,
// and brute-force cosine ranking over that is faster than any ANN setup.
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sidharthgd/LabVerse/pkg/embedding"
	"github.com/sidharthgd/LabVerse/pkg/logger"
	"github.com/sidharthgd/LabVerse/pkg/models"
	"github.com/sidharthgd/LabVerse/pkg/store"
)

// Match is one search hit with its raw cosine score.
type Match struct {
	Doc   models.Document
	Score float64
}

// Index is the in-memory vector index backed by the store.
type Index struct {
	engine embedding.Engine

	mu      sync.RWMutex
	vectors map[string][]float32
	docs    map[string]models.Document
}

// New creates an empty index using the given embedding engine.
func New(engine embedding.Engine) *Index {
	return &Index{
		engine:  engine,
		vectors: make(map[string][]float32),
		docs:    make(map[string]models.Document),
	}
}

// Load populates the in-memory maps from the store. Documents without a
// stored vector stay searchable by listing but are skipped for semantic
// ranking until the next reindex embeds them.
func (ix *Index) Load() error {
	vals, err := store.ListDocuments()
	if err != nil {
		return fmt.Errorf("load documents: %w", err)
	}
	docs := make(map[string]models.Document, len(vals))
	for _, v := range vals {
		var d models.Document
		if err := json.Unmarshal([]byte(v), &d); err != nil {
			logger.Error("index_load_bad_document", "error", err)
			continue
		}
		docs[d.ID] = d
	}
	vectors := make(map[string][]float32, len(docs))
	err = store.ListVectors(func(docID string, vec []float32) error {
		if _, ok := docs[docID]; ok {
			vectors[docID] = vec
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("load vectors: %w", err)
	}
	ix.mu.Lock()
	ix.docs = docs
	ix.vectors = vectors
	ix.mu.Unlock()
	logger.Info("index_loaded", "documents", len(docs), "vectors", len(vectors))
	return nil
}

// Add embeds the document description, persists both records and updates
// the in-memory view.
func (ix *Index) Add(ctx context.Context, doc models.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document has no id")
	}
	if doc.IndexedTS == 0 {
		doc.IndexedTS = time.Now().UTC().UnixNano()
	}
	vec, err := ix.engine.Embed(ctx, doc.Description)
	if err != nil {
		return fmt.Errorf("embed %s: %w", doc.FileName, err)
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	if err := store.SaveDocument(doc.ID, string(b)); err != nil {
		return err
	}
	if err := store.SaveVector(doc.ID, vec); err != nil {
		return err
	}
	ix.mu.Lock()
	ix.docs[doc.ID] = doc
	ix.vectors[doc.ID] = vec
	ix.mu.Unlock()
	return nil
}

// Remove drops a document from the store and the in-memory view.
func (ix *Index) Remove(docID string) error {
	if err := store.DeleteDocument(docID); err != nil {
		return err
	}
	ix.mu.Lock()
	delete(ix.docs, docID)
	delete(ix.vectors, docID)
	ix.mu.Unlock()
	return nil
}

// Search embeds the query and returns the k best documents by cosine score.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]Match, error) {
	qvec, err := ix.engine.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	ix.mu.RLock()
	candidates := make(map[string][]float32, len(ix.vectors))
	for id, v := range ix.vectors {
		candidates[id] = v
	}
	ix.mu.RUnlock()

	ranked := embedding.FindTopK(qvec, candidates, k)
	out := make([]Match, 0, len(ranked))
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	for _, r := range ranked {
		if d, ok := ix.docs[r.ID]; ok {
			out = append(out, Match{Doc: d, Score: r.Score})
		}
	}
	return out, nil
}

// Documents returns a snapshot of all indexed documents.
func (ix *Index) Documents() []models.Document {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]models.Document, 0, len(ix.docs))
	for _, d := range ix.docs {
		out = append(out, d)
	}
	return out
}

// Get returns the indexed document for an ID.
func (ix *Index) Get(docID string) (models.Document, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	d, ok := ix.docs[docID]
	return d, ok
}

// Len returns the number of indexed documents.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// Ready reports whether the index holds at least one embedded document.
func (ix *Index) Ready() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.vectors) > 0
}

// EngineName names the embedding engine backing this index.
func (ix *Index) EngineName() string { return ix.engine.Name() }
