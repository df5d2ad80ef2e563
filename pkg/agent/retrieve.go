package agent

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/sidharthgd/LabVerse/pkg/index"
	"github.com/sidharthgd/LabVerse/pkg/logger"
	"github.com/sidharthgd/LabVerse/pkg/models"
)

// RetrievalResult is the ranked slice of catalog documents relevant to a
// query, plus aggregate metadata about the set.
type RetrievalResult struct {
	Documents  []models.Document      `json:"documents"`
	Scores     []float64              `json:"scores"`
	Metadata   map[string]interface{} `json:"metadata"`
	Confidence float64                `json:"confidence"`
}

// RetrievalFilters narrows candidates before ranking.
type RetrievalFilters struct {
	FileType     string
	MaxSizeBytes int64
}

// Retriever ranks catalog documents against a query by combining semantic
// similarity with entity and recency signals.
type Retriever struct {
	index *index.Index
	max   int
}

func NewRetriever(ix *index.Index, max int) *Retriever {
	if max <= 0 {
		max = 5
	}
	return &Retriever{index: ix, max: max}
}

// Retrieve fetches twice the wanted count by cosine score, filters by
// extracted entities and metadata, then re-ranks with the combined signal.
func (r *Retriever) Retrieve(ctx context.Context, query string, entities EntityResult, filters RetrievalFilters) (RetrievalResult, error) {
	matches, err := r.index.Search(ctx, query, r.max*2)
	if err != nil {
		return RetrievalResult{Metadata: map[string]interface{}{}}, err
	}

	filtered := filterByEntities(matches, entities)
	filtered = filterByMetadata(filtered, filters)

	type scored struct {
		doc   models.Document
		score float64
	}
	ranked := make([]scored, 0, len(filtered))
	for _, m := range filtered {
		ranked = append(ranked, scored{doc: m.Doc, score: rankScore(m, entities)})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > r.max {
		ranked = ranked[:r.max]
	}

	res := RetrievalResult{Metadata: map[string]interface{}{}}
	for _, s := range ranked {
		res.Documents = append(res.Documents, s.doc)
		res.Scores = append(res.Scores, s.score)
	}
	res.Metadata = aggregateMetadata(res.Documents)
	res.Confidence = retrievalConfidence(res.Documents, entities)
	logger.Debug("retrieval_done", "candidates", len(matches), "returned", len(res.Documents))
	return res, nil
}

// filterByEntities keeps documents matching extracted file or column
// references; when the filter would empty the set it falls back to the
// unfiltered candidates.
func filterByEntities(matches []index.Match, entities EntityResult) []index.Match {
	files := entities.Structured[LabelFileName]
	cols := entities.Structured[LabelColumnName]
	if len(files) == 0 && len(cols) == 0 {
		return matches
	}
	var kept []index.Match
	for _, m := range matches {
		if docMatchesFiles(m.Doc, files) || docMatchesColumns(m.Doc, cols) {
			kept = append(kept, m)
		}
	}
	if len(kept) == 0 {
		return matches
	}
	return kept
}

func docMatchesFiles(doc models.Document, files []string) bool {
	for _, f := range files {
		if strings.Contains(strings.ToLower(doc.FileName), strings.ToLower(f)) {
			return true
		}
	}
	return false
}

func docMatchesColumns(doc models.Document, cols []string) bool {
	for _, want := range cols {
		for _, have := range doc.Columns {
			if strings.Contains(strings.ToLower(have), strings.ToLower(want)) {
				return true
			}
		}
	}
	return false
}

func filterByMetadata(matches []index.Match, filters RetrievalFilters) []index.Match {
	if filters.FileType == "" && filters.MaxSizeBytes <= 0 {
		return matches
	}
	var kept []index.Match
	for _, m := range matches {
		if filters.FileType != "" && !strings.EqualFold(m.Doc.FileType, filters.FileType) {
			continue
		}
		if filters.MaxSizeBytes > 0 && m.Doc.SizeBytes > filters.MaxSizeBytes {
			continue
		}
		kept = append(kept, m)
	}
	return kept
}

// rankScore blends the cosine score with entity overlap and recency.
func rankScore(m index.Match, entities EntityResult) float64 {
	score := 0.5 * m.Score
	if docMatchesFiles(m.Doc, entities.Structured[LabelFileName]) {
		score += 0.3
	}
	if docMatchesColumns(m.Doc, entities.Structured[LabelColumnName]) {
		score += 0.2
	}
	if m.Doc.ModifiedTS > 0 {
		age := time.Since(time.Unix(0, m.Doc.ModifiedTS))
		if age < 30*24*time.Hour {
			score += 0.1 * (1 - age.Hours()/(30*24))
		}
	}
	return score
}

func aggregateMetadata(docs []models.Document) map[string]interface{} {
	types := map[string]int{}
	var totalSize int64
	var totalRows int
	colSet := map[string]bool{}
	for _, d := range docs {
		types[d.FileType]++
		totalSize += d.SizeBytes
		totalRows += d.RowCount
		for _, c := range d.Columns {
			colSet[c] = true
		}
	}
	cols := make([]string, 0, len(colSet))
	for c := range colSet {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return map[string]interface{}{
		"total_documents":  len(docs),
		"file_types":       types,
		"total_size_bytes": totalSize,
		"total_rows":       totalRows,
		"columns":          cols,
	}
}

func retrievalConfidence(docs []models.Document, entities EntityResult) float64 {
	if len(docs) == 0 {
		return 0
	}
	conf := 0.6
	files := entities.Structured[LabelFileName]
	if len(files) > 0 {
		matched := 0
		for _, d := range docs {
			if docMatchesFiles(d, files) {
				matched++
			}
		}
		conf += 0.3 * float64(matched) / float64(len(docs))
	}
	if len(docs) >= 2 {
		conf += 0.1
	}
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}
