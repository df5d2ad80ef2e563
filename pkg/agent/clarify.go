package agent

import (
	"fmt"
	"strings"

	"github.com/sidharthgd/LabVerse/pkg/models"
)

// Clarification statuses.
const (
	StatusReady               = "ready"
	StatusClarificationNeeded = "clarification_needed"
	StatusAmbiguous           = "ambiguous"
)

// ClarifyResult says whether the pipeline can proceed or has to ask back.
type ClarifyResult struct {
	Status      string   `json:"status"`
	Question    string   `json:"question,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	Confidence  float64  `json:"confidence"`
}

// requirement names an entity label an intent cannot proceed without.
type requirement struct {
	label    string
	question string
}

var intentRequirements = map[string][]requirement{
	IntentDataVisualization: {
		{LabelFileName, "Which file would you like to visualize?"},
		{LabelVizType, "What type of chart would you like (e.g. histogram, scatter plot, bar chart)?"},
	},
	IntentStatisticalAnalysis: {
		{LabelFileName, "Which file should the analysis run on?"},
		{LabelStatMethod, "Which statistical method do you want (e.g. mean, correlation, t-test)?"},
	},
	IntentDataCleaning: {
		{LabelFileName, "Which file would you like to clean?"},
	},
	IntentFileSummary: {
		{LabelFileName, "Which file would you like summarized?"},
	},
}

// Clarifier decides whether enough is known to act on a query. Session focus
// can satisfy a missing file reference.
type Clarifier struct{}

func NewClarifier() *Clarifier { return &Clarifier{} }

// Check inspects the structured entities against the intent's requirements.
func (c *Clarifier) Check(intent IntentResult, entities EntityResult, sess *models.Session) ClarifyResult {
	reqs, ok := intentRequirements[intent.Intent]
	if !ok {
		return ClarifyResult{Status: StatusReady, Confidence: intent.Confidence}
	}

	var missing []requirement
	for _, r := range reqs {
		if len(entities.Structured[r.label]) > 0 {
			continue
		}
		// A file already in focus covers a missing FILE_NAME.
		if r.label == LabelFileName && sess != nil && len(sess.FocusedFiles) > 0 {
			continue
		}
		missing = append(missing, r)
	}
	if len(missing) == 0 {
		return ClarifyResult{Status: StatusReady, Confidence: intent.Confidence}
	}

	questions := make([]string, 0, len(missing))
	for _, r := range missing {
		questions = append(questions, r.question)
	}
	res := ClarifyResult{
		Status:     StatusClarificationNeeded,
		Question:   questions[0],
		Confidence: 0.8,
	}
	if len(questions) > 1 {
		res.Question = fmt.Sprintf("I need a bit more detail: %s", strings.Join(questions, " Also: "))
	}
	res.Suggestions = clarifySuggestions(missing, sess)
	if intent.Confidence < 0.5 {
		res.Status = StatusAmbiguous
	}
	return res
}

func clarifySuggestions(missing []requirement, sess *models.Session) []string {
	var out []string
	for _, r := range missing {
		switch r.label {
		case LabelFileName:
			if sess != nil {
				for _, fc := range sess.FocusedFiles {
					out = append(out, fmt.Sprintf("Use %s", fc.FileName))
					if len(out) >= 3 {
						return out
					}
				}
			}
			out = append(out, "Name the file, e.g. results.csv")
		case LabelVizType:
			out = append(out, "Try: histogram, scatter plot, bar chart")
		case LabelStatMethod:
			out = append(out, "Try: mean, correlation, t-test")
		}
		if len(out) >= 3 {
			break
		}
	}
	if len(out) > 3 {
		out = out[:3]
	}
	return out
}
