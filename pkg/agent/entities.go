package agent

import (
	"context"
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/sidharthgd/LabVerse/pkg/llm"
	"github.com/sidharthgd/LabVerse/pkg/logger"
	"github.com/sidharthgd/LabVerse/pkg/models"
)

// Entity labels emitted by the extractor.
const (
	LabelFileName       = "FILE_NAME"
	LabelColumnName     = "COLUMN_NAME"
	LabelStatMethod     = "STATISTICAL_METHOD"
	LabelVizType        = "VISUALIZATION_TYPE"
	LabelFileType       = "FILE_TYPE"
	LabelNumericValue   = "NUMERIC_VALUE"
	LabelDateRange      = "DATE_RANGE"
	LabelAggregation    = "AGGREGATION"
	LabelComparisonWord = "COMPARISON"
)

// EntityResult carries the extracted entities plus the structured view the
// later stages consume.
type EntityResult struct {
	Entities   []models.Entity     `json:"entities"`
	Structured map[string][]string `json:"structured"`
	Confidence float64             `json:"confidence"`
	Method     string              `json:"method"`
}

type entityPattern struct {
	label string
	re    *regexp.Regexp
	conf  float64
}

var entityPatterns = []entityPattern{
	{LabelFileName, regexp.MustCompile(`(?i)\b[\w\-]+\.(?:csv|xlsx?|json|txt|tsv)\b`), 0.9},
	{LabelStatMethod, regexp.MustCompile(`(?i)\b(mean|median|mode|standard deviation|variance|correlation|regression|t-test|anova|chi-square|percentile|quartile)\b`), 0.8},
	{LabelVizType, regexp.MustCompile(`(?i)\b(histogram|scatter ?plot|bar chart|line chart|line graph|heatmap|box ?plot|pie chart|violin plot)\b`), 0.8},
	{LabelFileType, regexp.MustCompile(`(?i)\b(csv|excel|json|spreadsheet|text) files?\b`), 0.7},
	{LabelNumericValue, regexp.MustCompile(`\b\d+(?:\.\d+)?%?\b`), 0.6},
	{LabelDateRange, regexp.MustCompile(`(?i)\b(?:last|past|previous)\s+\d+\s+(?:days?|weeks?|months?|years?)\b|\b\d{4}-\d{2}-\d{2}\b`), 0.7},
	{LabelAggregation, regexp.MustCompile(`(?i)\b(sum|count|total|average|minimum|maximum|group(?:ed)? by)\b`), 0.6},
	{LabelComparisonWord, regexp.MustCompile(`(?i)\b(compare|versus|vs\.?|difference between|greater than|less than)\b`), 0.6},
}

// quoted "words" are treated as likely column names when no catalog column
// matches the query directly.
var quotedColumnRe = regexp.MustCompile(`["'` + "`" + `]([\w ]{2,40})["'` + "`" + `]`)

// CatalogContext is the known file and column universe used to validate
// extracted entities against what actually exists.
type CatalogContext struct {
	FileNames []string
	Columns   []string
}

// EntityExtractor extracts structured references from queries, boosting
// matches that exist in the catalog and falling back to the model when the
// rules find too little.
type EntityExtractor struct {
	llm llm.Client
}

func NewEntityExtractor(client llm.Client) *EntityExtractor {
	return &EntityExtractor{llm: client}
}

// Extract runs the pattern pass, validates against the catalog, and asks the
// model for more entities only when fewer than three were found.
func (e *EntityExtractor) Extract(ctx context.Context, query string, cat CatalogContext) EntityResult {
	ents := extractByPattern(query)
	ents = append(ents, extractColumns(query, cat)...)
	ents = validateAgainstCatalog(ents, cat)
	ents = mergeEntities(ents)

	method := "rules"
	if len(ents) < 3 && e.llm != nil {
		if extra, ok := e.extractLLM(ctx, query); ok {
			ents = mergeEntities(append(ents, extra...))
			method = "rules+llm"
		}
	}

	sort.Slice(ents, func(i, j int) bool {
		if ents[i].Start != ents[j].Start {
			return ents[i].Start < ents[j].Start
		}
		return ents[i].Label < ents[j].Label
	})
	return EntityResult{
		Entities:   ents,
		Structured: structure(ents),
		Confidence: overallEntityConfidence(ents),
		Method:     method,
	}
}

func extractByPattern(query string) []models.Entity {
	var out []models.Entity
	for _, ep := range entityPatterns {
		for _, loc := range ep.re.FindAllStringIndex(query, -1) {
			out = append(out, models.Entity{
				Text:       query[loc[0]:loc[1]],
				Label:      ep.label,
				Start:      loc[0],
				End:        loc[1],
				Confidence: ep.conf,
			})
		}
	}
	return out
}

// extractColumns finds catalog column names mentioned verbatim plus quoted
// spans that look like column references.
func extractColumns(query string, cat CatalogContext) []models.Entity {
	var out []models.Entity
	lower := strings.ToLower(query)
	for _, col := range cat.Columns {
		c := strings.ToLower(col)
		if len(c) < 3 {
			continue
		}
		if idx := strings.Index(lower, c); idx >= 0 {
			out = append(out, models.Entity{
				Text:       query[idx : idx+len(col)],
				Label:      LabelColumnName,
				Start:      idx,
				End:        idx + len(col),
				Confidence: 0.85,
			})
		}
	}
	for _, m := range quotedColumnRe.FindAllStringSubmatchIndex(query, -1) {
		out = append(out, models.Entity{
			Text:       query[m[2]:m[3]],
			Label:      LabelColumnName,
			Start:      m[2],
			End:        m[3],
			Confidence: 0.6,
		})
	}
	return out
}

// validateAgainstCatalog boosts entities that exist in the catalog and
// penalizes ones that do not.
func validateAgainstCatalog(ents []models.Entity, cat CatalogContext) []models.Entity {
	files := map[string]bool{}
	for _, f := range cat.FileNames {
		files[strings.ToLower(f)] = true
	}
	cols := map[string]bool{}
	for _, c := range cat.Columns {
		cols[strings.ToLower(c)] = true
	}
	out := make([]models.Entity, 0, len(ents))
	for _, ent := range ents {
		key := strings.ToLower(ent.Text)
		switch ent.Label {
		case LabelFileName:
			if files[key] {
				ent.Confidence += 0.2
			} else if len(files) > 0 {
				ent.Confidence *= 0.5
			}
		case LabelColumnName:
			if cols[key] {
				ent.Confidence += 0.3
			} else if len(cols) > 0 {
				ent.Confidence *= 0.7
			}
		}
		if ent.Confidence > 1.0 {
			ent.Confidence = 1.0
		}
		out = append(out, ent)
	}
	return out
}

// mergeEntities collapses duplicates on (text, label) keeping the higher
// confidence span.
func mergeEntities(ents []models.Entity) []models.Entity {
	type key struct{ text, label string }
	seen := map[key]int{}
	var out []models.Entity
	for _, ent := range ents {
		k := key{strings.ToLower(ent.Text), ent.Label}
		if i, ok := seen[k]; ok {
			if ent.Confidence > out[i].Confidence {
				out[i] = ent
			}
			continue
		}
		seen[k] = len(out)
		out = append(out, ent)
	}
	return out
}

// structure groups entity texts by label, keeping only confident spans.
func structure(ents []models.Entity) map[string][]string {
	out := map[string][]string{}
	for _, ent := range ents {
		if ent.Confidence < 0.5 {
			continue
		}
		out[ent.Label] = append(out[ent.Label], ent.Text)
	}
	return out
}

func overallEntityConfidence(ents []models.Entity) float64 {
	if len(ents) == 0 {
		return 0
	}
	sum := 0.0
	labels := map[string]bool{}
	for _, ent := range ents {
		sum += ent.Confidence
		labels[ent.Label] = true
	}
	bonus := float64(len(labels)) * 0.05
	if bonus > 0.2 {
		bonus = 0.2
	}
	conf := sum/float64(len(ents)) + bonus
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}

const entitySystemPrompt = `You extract entities from data analysis queries. Respond with JSON only: {"entities": [{"text": "...", "label": "..."}]}. Labels: FILE_NAME, COLUMN_NAME, STATISTICAL_METHOD, VISUALIZATION_TYPE, FILE_TYPE, NUMERIC_VALUE, DATE_RANGE, AGGREGATION, COMPARISON.`

func (e *EntityExtractor) extractLLM(ctx context.Context, query string) ([]models.Entity, bool) {
	raw, err := e.llm.Complete(ctx, entitySystemPrompt, query)
	if err != nil {
		logger.Warn("entity_llm_supplement_failed", "error", err)
		return nil, false
	}
	var parsed struct {
		Entities []struct {
			Text  string `json:"text"`
			Label string `json:"label"`
		} `json:"entities"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &parsed); err != nil {
		logger.Warn("entity_llm_bad_json", "error", err)
		return nil, false
	}
	var out []models.Entity
	for _, pe := range parsed.Entities {
		if strings.TrimSpace(pe.Text) == "" || strings.TrimSpace(pe.Label) == "" {
			continue
		}
		start := strings.Index(strings.ToLower(query), strings.ToLower(pe.Text))
		end := -1
		if start >= 0 {
			end = start + len(pe.Text)
		}
		out = append(out, models.Entity{
			Text:       pe.Text,
			Label:      strings.ToUpper(pe.Label),
			Start:      start,
			End:        end,
			Confidence: 0.65,
		})
	}
	return out, true
}
