package agent

import (
	"context"
	"testing"

	"github.com/sidharthgd/LabVerse/pkg/models"
)

func TestExtractKnownFileAndColumn(t *testing.T) {
	e := NewEntityExtractor(nil)
	cat := CatalogContext{
		FileNames: []string{"mice.csv"},
		Columns:   []string{"age", "weight"},
	}
	res := e.Extract(context.Background(), "plot a histogram of weight from mice.csv", cat)

	if len(res.Structured[LabelFileName]) != 1 || res.Structured[LabelFileName][0] != "mice.csv" {
		t.Fatalf("expected mice.csv as FILE_NAME, got %v", res.Structured[LabelFileName])
	}
	if len(res.Structured[LabelColumnName]) != 1 || res.Structured[LabelColumnName][0] != "weight" {
		t.Fatalf("expected weight as COLUMN_NAME, got %v", res.Structured[LabelColumnName])
	}
	if len(res.Structured[LabelVizType]) != 1 || res.Structured[LabelVizType][0] != "histogram" {
		t.Fatalf("expected histogram as VISUALIZATION_TYPE, got %v", res.Structured[LabelVizType])
	}
	if res.Method != "rules" {
		t.Fatalf("expected method rules, got %s", res.Method)
	}
	// catalog-validated entities get boosted to the cap
	for _, ent := range res.Entities {
		if ent.Label == LabelFileName && ent.Confidence != 1.0 {
			t.Fatalf("expected boosted file confidence 1.0, got %f", ent.Confidence)
		}
	}
}

func TestUnknownFileIsPenalized(t *testing.T) {
	e := NewEntityExtractor(nil)
	cat := CatalogContext{FileNames: []string{"mice.csv"}}
	res := e.Extract(context.Background(), "summarize ghost.csv for me please and also results.csv thanks", cat)

	// penalized to 0.45, below the structured threshold
	if got := res.Structured[LabelFileName]; len(got) != 0 {
		t.Fatalf("penalized unknown files should not be structured, got %v", got)
	}
	found := false
	for _, ent := range res.Entities {
		if ent.Text == "ghost.csv" {
			found = true
			if ent.Confidence > 0.46 {
				t.Fatalf("expected penalty on ghost.csv, got %f", ent.Confidence)
			}
		}
	}
	if !found {
		t.Fatalf("ghost.csv entity missing: %v", res.Entities)
	}
}

func TestQuotedColumnFallback(t *testing.T) {
	e := NewEntityExtractor(nil)
	res := e.Extract(context.Background(), `what is the mean of "body temp" here`, CatalogContext{})

	var quoted bool
	for _, ent := range res.Entities {
		if ent.Label == LabelColumnName && ent.Text == "body temp" {
			quoted = true
			if ent.Confidence != 0.6 {
				t.Fatalf("expected quoted-column confidence 0.6, got %f", ent.Confidence)
			}
		}
	}
	if !quoted {
		t.Fatalf("quoted column not extracted: %v", res.Entities)
	}
}

func TestMergeKeepsHigherConfidence(t *testing.T) {
	ents := mergeEntities([]models.Entity{
		{Text: "age", Label: LabelColumnName, Confidence: 0.6},
		{Text: "Age", Label: LabelColumnName, Confidence: 0.85},
	})
	if len(ents) != 1 {
		t.Fatalf("expected one merged entity, got %d", len(ents))
	}
	if ents[0].Confidence != 0.85 {
		t.Fatalf("expected higher confidence kept, got %f", ents[0].Confidence)
	}
}

func TestLLMSupplementWhenSparse(t *testing.T) {
	f := &fakeLLM{reply: `{"entities": [{"text": "mice.csv", "label": "FILE_NAME"}, {"text": "weight", "label": "COLUMN_NAME"}]}`}
	e := NewEntityExtractor(f)
	res := e.Extract(context.Background(), "tell me about the mouse data", CatalogContext{})
	if res.Method != "rules+llm" {
		t.Fatalf("expected llm supplement, got method %s", res.Method)
	}
	if len(res.Structured[LabelFileName]) != 1 {
		t.Fatalf("expected supplemented FILE_NAME, got %v", res.Structured)
	}
	for _, ent := range res.Entities {
		if ent.Text == "mice.csv" && ent.Confidence != 0.65 {
			t.Fatalf("expected supplement confidence 0.65, got %f", ent.Confidence)
		}
	}
}

func TestOverallConfidenceLabelBonus(t *testing.T) {
	e := NewEntityExtractor(nil)
	res := e.Extract(context.Background(), "correlation between weight and age in mice.csv as a scatter plot", CatalogContext{
		FileNames: []string{"mice.csv"},
		Columns:   []string{"weight", "age"},
	})
	if res.Confidence <= 0.8 {
		t.Fatalf("expected high overall confidence with many labels, got %f", res.Confidence)
	}
}
