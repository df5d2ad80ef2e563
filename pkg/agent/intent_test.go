package agent

import (
	"context"
	"errors"
	"testing"
)

// fakeLLM returns a canned completion for every call.
type fakeLLM struct {
	reply string
	err   error
	calls int
}

func (f *fakeLLM) Complete(_ context.Context, _, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeLLM) Name() string { return "fake" }

func TestClassifyRulesVisualization(t *testing.T) {
	c := NewIntentClassifier(nil)
	res := c.Classify(context.Background(), "plot a histogram of age by group")
	if res.Intent != IntentDataVisualization {
		t.Fatalf("expected %s, got %s", IntentDataVisualization, res.Intent)
	}
	if res.Method != "rules" {
		t.Fatalf("expected method rules, got %s", res.Method)
	}
	// two pattern hits: "plot" and "histogram"
	if res.Confidence < 0.69 || res.Confidence > 0.71 {
		t.Fatalf("expected confidence ~0.7, got %f", res.Confidence)
	}
}

func TestClassifyRulesDefault(t *testing.T) {
	c := NewIntentClassifier(nil)
	res := c.Classify(context.Background(), "qwz xyzzy")
	if res.Intent != IntentSearchRetrieval {
		t.Fatalf("expected fallback intent %s, got %s", IntentSearchRetrieval, res.Intent)
	}
	if res.Confidence != 0.3 {
		t.Fatalf("expected default confidence 0.3, got %f", res.Confidence)
	}
}

func TestClassifyLLMFallback(t *testing.T) {
	f := &fakeLLM{reply: `{"intent": "statistical_analysis", "confidence": 0.9}`}
	c := NewIntentClassifier(f)
	res := c.Classify(context.Background(), "qwz xyzzy")
	if res.Intent != IntentStatisticalAnalysis {
		t.Fatalf("expected llm intent, got %s", res.Intent)
	}
	if res.Method != "llm" {
		t.Fatalf("expected method llm, got %s", res.Method)
	}
	if f.calls != 1 {
		t.Fatalf("expected one llm call, got %d", f.calls)
	}
}

func TestClassifyLLMNotConsultedWhenConfident(t *testing.T) {
	f := &fakeLLM{reply: `{"intent": "file_summary", "confidence": 0.99}`}
	c := NewIntentClassifier(f)
	// three viz pattern hits push rule confidence past the threshold
	res := c.Classify(context.Background(), "plot a histogram and show the distribution")
	if res.Intent != IntentDataVisualization {
		t.Fatalf("expected rules to win, got %s", res.Intent)
	}
	if f.calls != 0 {
		t.Fatalf("llm should not be called, got %d calls", f.calls)
	}
}

func TestClassifyLLMBadJSONKeepsRules(t *testing.T) {
	f := &fakeLLM{reply: "I think this is about statistics."}
	c := NewIntentClassifier(f)
	res := c.Classify(context.Background(), "qwz xyzzy")
	if res.Intent != IntentSearchRetrieval || res.Method != "rules" {
		t.Fatalf("expected rules fallback, got %s/%s", res.Intent, res.Method)
	}
}

func TestClassifyLLMErrorKeepsRules(t *testing.T) {
	f := &fakeLLM{err: errors.New("upstream down")}
	c := NewIntentClassifier(f)
	res := c.Classify(context.Background(), "qwz xyzzy")
	if res.Intent != IntentSearchRetrieval {
		t.Fatalf("expected rules fallback, got %s", res.Intent)
	}
}

func TestExtractJSONObject(t *testing.T) {
	raw := "Sure, here you go:\n```json\n{\"intent\": \"file_summary\", \"confidence\": 0.8}\n```"
	got := extractJSONObject(raw)
	if got != `{"intent": "file_summary", "confidence": 0.8}` {
		t.Fatalf("unexpected extraction: %q", got)
	}
}

func TestClassifyRulesCountsRepeatedCues(t *testing.T) {
	c := NewIntentClassifier(nil)

	weak := c.Classify(context.Background(), "plot the data")
	strong := c.Classify(context.Background(), "plot a chart and graph the histogram")
	if strong.Intent != IntentDataVisualization {
		t.Fatalf("expected %s, got %s", IntentDataVisualization, strong.Intent)
	}
	// four cue hits across the patterns saturate the confidence cap
	if strong.Confidence != 0.9 {
		t.Fatalf("expected capped confidence 0.9, got %f", strong.Confidence)
	}
	if strong.Confidence <= weak.Confidence {
		t.Fatalf("repeated cues should raise confidence: %f vs %f", strong.Confidence, weak.Confidence)
	}
}
