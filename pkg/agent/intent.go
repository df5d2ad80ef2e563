// Package agent implements the query understanding and answering pipeline:
// intent classification, entity extraction, clarification checks, catalog
// retrieval, prompt assembly, completion and response post-processing.
package agent

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/sidharthgd/LabVerse/pkg/llm"
	"github.com/sidharthgd/LabVerse/pkg/logger"
)

// Intent labels recognized by the classifier.
const (
	IntentSearchRetrieval      = "search_retrieval"
	IntentMetadataQuery        = "metadata_query"
	IntentDataVisualization    = "data_visualization"
	IntentStatisticalAnalysis  = "statistical_analysis"
	IntentDataCleaning         = "data_cleaning"
	IntentNewDatasetGeneration = "new_dataset_generation"
	IntentFileSummary          = "file_summary"
	IntentCodeGeneration       = "code_generation"
	IntentScientificQuestion   = "scientific_question"
	IntentAccessPermission     = "access_permission"
	IntentHelpInstruction      = "help_instruction"
	IntentError                = "error"
)

// IntentResult is the outcome of classifying one query.
type IntentResult struct {
	Intent           string   `json:"intent"`
	Confidence       float64  `json:"confidence"`
	SecondaryIntents []string `json:"secondary_intents,omitempty"`
	Method           string   `json:"method"`
}

var intentPatterns = map[string][]*regexp.Regexp{
	IntentSearchRetrieval: {
		regexp.MustCompile(`(?i)\b(find|search|look for|locate|show me|list|which files?)\b`),
		regexp.MustCompile(`(?i)\b(files? (with|containing|about)|datasets? (with|containing|about))\b`),
		regexp.MustCompile(`(?i)\bwhere (is|are|can i find)\b`),
	},
	IntentMetadataQuery: {
		regexp.MustCompile(`(?i)\b(how many (rows|columns|records|entries)|row count|column count)\b`),
		regexp.MustCompile(`(?i)\b(what (columns|fields|variables)|column names|schema|data types?)\b`),
		regexp.MustCompile(`(?i)\b(file size|when was|last modified|created)\b`),
	},
	IntentDataVisualization: {
		regexp.MustCompile(`(?i)\b(plot|chart|graph|visuali[sz]e|draw|display)\b`),
		regexp.MustCompile(`(?i)\b(histogram|scatter|bar chart|line chart|heatmap|box ?plot|pie chart)\b`),
		regexp.MustCompile(`(?i)\bshow\b.*\b(distribution|trend|relationship|correlation)\b`),
	},
	IntentStatisticalAnalysis: {
		regexp.MustCompile(`(?i)\b(mean|median|mode|average|std|standard deviation|variance)\b`),
		regexp.MustCompile(`(?i)\b(correlat|regress|t-?test|anova|chi-?square|p-?value|significan)\b`),
		regexp.MustCompile(`(?i)\b(statistic|analy[sz]e|hypothesis|distribution)\b`),
	},
	IntentDataCleaning: {
		regexp.MustCompile(`(?i)\b(clean|missing values?|null|nan|duplicates?|outliers?)\b`),
		regexp.MustCompile(`(?i)\b(normali[sz]e|standardi[sz]e|impute|fill in|drop rows?)\b`),
		regexp.MustCompile(`(?i)\b(fix|remove|filter out)\b.*\b(data|rows?|values?)\b`),
	},
	IntentNewDatasetGeneration: {
		regexp.MustCompile(`(?i)\b(create|generate|make|build)\b.*\b(dataset|table|file|csv)\b`),
		regexp.MustCompile(`(?i)\b(merge|join|combine|concatenate)\b.*\b(files?|datasets?|tables?)\b`),
		regexp.MustCompile(`(?i)\b(export|save|write)\b.*\b(new|to a)\b`),
	},
	IntentFileSummary: {
		regexp.MustCompile(`(?i)\b(summari[sz]e|summary|overview|describe)\b`),
		regexp.MustCompile(`(?i)\bwhat('s| is) in\b`),
		regexp.MustCompile(`(?i)\btell me about\b`),
	},
	IntentCodeGeneration: {
		regexp.MustCompile(`(?i)\b(write|generate|give me)\b.*\b(code|script|function|python)\b`),
		regexp.MustCompile(`(?i)\b(pandas|numpy|matplotlib|seaborn|scipy)\b`),
		regexp.MustCompile(`(?i)\bhow (do|would|can) i\b.*\b(code|program|script)\b`),
	},
	IntentScientificQuestion: {
		regexp.MustCompile(`(?i)\b(why (does|do|is|are)|what causes?|explain|mechanism)\b`),
		regexp.MustCompile(`(?i)\b(hypothesis|theory|literature|published|experiment)\b`),
		regexp.MustCompile(`(?i)\b(biologic|chemic|physic|geolog|clinic)\w*\b`),
	},
	IntentAccessPermission: {
		regexp.MustCompile(`(?i)\b(access|permission|authori[sz]|allowed|restricted)\b`),
		regexp.MustCompile(`(?i)\b(share|grant|revoke)\b.*\b(access|file|data)\b`),
		regexp.MustCompile(`(?i)\bwho (can|has)\b`),
	},
	IntentHelpInstruction: {
		regexp.MustCompile(`(?i)\b(help|how (do|to) (i )?use|what can you do|instructions?)\b`),
		regexp.MustCompile(`(?i)\b(tutorial|guide|getting started|capabilit)\b`),
		regexp.MustCompile(`(?i)^(hi|hello|hey)\b`),
	},
}

// IntentClassifier scores queries against the rule set and falls back to the
// completion model when the rules are not confident enough.
type IntentClassifier struct {
	llm       llm.Client
	threshold float64
}

// NewIntentClassifier builds a classifier. client may be nil; then only the
// rule-based path runs.
func NewIntentClassifier(client llm.Client) *IntentClassifier {
	return &IntentClassifier{llm: client, threshold: 0.7}
}

// Classify runs rule scoring first and consults the model only for low
// confidence results.
func (c *IntentClassifier) Classify(ctx context.Context, query string) IntentResult {
	res := c.classifyRules(query)
	if res.Confidence >= c.threshold || c.llm == nil {
		return res
	}
	if llmRes, ok := c.classifyLLM(ctx, query); ok && llmRes.Confidence > res.Confidence {
		llmRes.SecondaryIntents = res.SecondaryIntents
		return llmRes
	}
	return res
}

func (c *IntentClassifier) classifyRules(query string) IntentResult {
	scores := map[string]int{}
	for intent, patterns := range intentPatterns {
		for _, p := range patterns {
			// repeated cue words all count, not just the first hit
			if n := len(p.FindAllStringIndex(query, -1)); n > 0 {
				scores[intent] += n
			}
		}
	}
	best, bestScore := IntentSearchRetrieval, 0
	for intent, score := range scores {
		if score > bestScore || (score == bestScore && intent < best && bestScore > 0) {
			best, bestScore = intent, score
		}
	}
	if bestScore == 0 {
		return IntentResult{Intent: IntentSearchRetrieval, Confidence: 0.3, Method: "rules"}
	}
	conf := float64(bestScore)*0.2 + 0.3
	if conf > 0.9 {
		conf = 0.9
	}
	var secondary []string
	for intent, score := range scores {
		if intent != best && float64(score) >= float64(bestScore)/2 {
			secondary = append(secondary, intent)
		}
	}
	return IntentResult{Intent: best, Confidence: conf, SecondaryIntents: secondary, Method: "rules"}
}

const intentSystemPrompt = `You classify data analysis queries into exactly one intent label. Respond with JSON only: {"intent": "<label>", "confidence": <0..1>}. Labels: search_retrieval, metadata_query, data_visualization, statistical_analysis, data_cleaning, new_dataset_generation, file_summary, code_generation, scientific_question, access_permission, help_instruction.`

func (c *IntentClassifier) classifyLLM(ctx context.Context, query string) (IntentResult, bool) {
	raw, err := c.llm.Complete(ctx, intentSystemPrompt, query)
	if err != nil {
		logger.Warn("intent_llm_fallback_failed", "error", err)
		return IntentResult{}, false
	}
	var parsed struct {
		Intent     string  `json:"intent"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &parsed); err != nil {
		logger.Warn("intent_llm_bad_json", "error", err)
		return IntentResult{}, false
	}
	if !validIntent(parsed.Intent) {
		return IntentResult{}, false
	}
	if parsed.Confidence <= 0 || parsed.Confidence > 1 {
		parsed.Confidence = 0.75
	}
	return IntentResult{Intent: parsed.Intent, Confidence: parsed.Confidence, Method: "llm"}, true
}

func validIntent(s string) bool {
	_, ok := intentPatterns[s]
	return ok
}

// extractJSONObject pulls the first {...} span out of model output that may
// be wrapped in prose or code fences.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}
