package agent

import (
	"strings"
	"testing"

	"github.com/sidharthgd/LabVerse/pkg/models"
)

func TestClarifyVisualizationMissingEverything(t *testing.T) {
	c := NewClarifier()
	intent := IntentResult{Intent: IntentDataVisualization, Confidence: 0.7}
	res := c.Check(intent, EntityResult{Structured: map[string][]string{}}, nil)

	if res.Status != StatusClarificationNeeded {
		t.Fatalf("expected clarification_needed, got %s", res.Status)
	}
	if !strings.HasPrefix(res.Question, "I need a bit more detail") {
		t.Fatalf("expected combined question, got %q", res.Question)
	}
	if res.Confidence != 0.8 {
		t.Fatalf("expected clarify confidence 0.8, got %f", res.Confidence)
	}
	if len(res.Suggestions) == 0 || len(res.Suggestions) > 3 {
		t.Fatalf("expected 1..3 suggestions, got %v", res.Suggestions)
	}
}

func TestClarifyReadyWithEntities(t *testing.T) {
	c := NewClarifier()
	intent := IntentResult{Intent: IntentDataVisualization, Confidence: 0.7}
	ents := EntityResult{Structured: map[string][]string{
		LabelFileName: {"mice.csv"},
		LabelVizType:  {"histogram"},
	}}
	res := c.Check(intent, ents, nil)
	if res.Status != StatusReady {
		t.Fatalf("expected ready, got %s", res.Status)
	}
	if res.Confidence != 0.7 {
		t.Fatalf("expected intent confidence passed through, got %f", res.Confidence)
	}
}

func TestClarifySessionFocusCoversFile(t *testing.T) {
	c := NewClarifier()
	sess := &models.Session{FocusedFiles: map[string]models.FileContext{
		"/data/mice.csv": {FilePath: "/data/mice.csv", FileName: "mice.csv"},
	}}
	intent := IntentResult{Intent: IntentFileSummary, Confidence: 0.6}
	res := c.Check(intent, EntityResult{Structured: map[string][]string{}}, sess)
	if res.Status != StatusReady {
		t.Fatalf("focused file should satisfy FILE_NAME, got %s", res.Status)
	}
}

func TestClarifyAmbiguousOnLowIntentConfidence(t *testing.T) {
	c := NewClarifier()
	intent := IntentResult{Intent: IntentDataCleaning, Confidence: 0.3}
	res := c.Check(intent, EntityResult{Structured: map[string][]string{}}, nil)
	if res.Status != StatusAmbiguous {
		t.Fatalf("expected ambiguous, got %s", res.Status)
	}
}

func TestClarifyUnknownIntentIsReady(t *testing.T) {
	c := NewClarifier()
	intent := IntentResult{Intent: IntentHelpInstruction, Confidence: 0.9}
	res := c.Check(intent, EntityResult{}, nil)
	if res.Status != StatusReady {
		t.Fatalf("intents without requirements should pass, got %s", res.Status)
	}
}
