package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/sidharthgd/LabVerse/pkg/index"
	"github.com/sidharthgd/LabVerse/pkg/llm"
	"github.com/sidharthgd/LabVerse/pkg/models"
	"github.com/sidharthgd/LabVerse/pkg/session"
	"github.com/sidharthgd/LabVerse/pkg/store"
)

// wordEngine maps each word onto a hashed dimension so texts sharing words
// produce similar vectors. Deterministic and offline.
type wordEngine struct{}

func (wordEngine) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, 16)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := 0
		for _, c := range w {
			h = h*31 + int(c)
		}
		if h < 0 {
			h = -h
		}
		v[h%16]++
	}
	return v, nil
}

func (e wordEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (wordEngine) Dimensions() int { return 16 }
func (wordEngine) Name() string    { return "word-hash" }

type fakeRunner struct{ out string }

func (f fakeRunner) Run(_ context.Context, _ string) (string, error) { return f.out, nil }
func (f fakeRunner) Enabled() bool                                   { return true }

func setupPipeline(t *testing.T, client llm.Client) (*Assistant, *session.Manager) {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ix := index.New(wordEngine{})
	docs := []models.Document{
		{
			ID:          "doc-mice",
			FilePath:    "/data/mice.csv",
			FileName:    "mice.csv",
			FileType:    "csv",
			Columns:     []string{"id", "age", "weight"},
			RowCount:    120,
			Description: "mice weight and age measurements",
		},
		{
			ID:          "doc-plants",
			FilePath:    "/data/plants.csv",
			FileName:    "plants.csv",
			FileType:    "csv",
			Columns:     []string{"species", "height"},
			RowCount:    40,
			Description: "plant growth heights by species",
		},
	}
	for _, d := range docs {
		if err := ix.Add(context.Background(), d); err != nil {
			t.Fatalf("index.Add: %v", err)
		}
	}

	sessions := session.NewManager()
	a := New(sessions, ix, client, fakeRunner{out: "plot saved"})
	return a, sessions
}

func TestRunQueryOfflineCatalogOnly(t *testing.T) {
	a, sessions := setupPipeline(t, nil)

	resp := a.RunQuery(context.Background(), models.QueryRequest{Query: "find the mice weight measurements"})
	if resp.SessionID == "" {
		t.Fatalf("expected a session to be created")
	}
	if resp.Intent != IntentSearchRetrieval {
		t.Fatalf("expected search intent, got %s", resp.Intent)
	}
	if !strings.Contains(resp.Message, "mice.csv") {
		t.Fatalf("offline answer should name the matching file: %q", resp.Message)
	}
	if !strings.Contains(resp.Message, "No language model is configured") {
		t.Fatalf("offline note missing: %q", resp.Message)
	}

	turns, err := sessions.History(resp.SessionID, 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("expected one recorded turn, got %d", len(turns))
	}
	if turns[0].UserQuery != "find the mice weight measurements" {
		t.Fatalf("turn query mismatch: %q", turns[0].UserQuery)
	}
}

func TestRunQueryAsksForClarification(t *testing.T) {
	a, _ := setupPipeline(t, nil)

	resp := a.RunQuery(context.Background(), models.QueryRequest{Query: "clean up the duplicates"})
	if !resp.ClarificationNeeded {
		t.Fatalf("expected clarification, got %+v", resp)
	}
	if resp.Intent != IntentDataCleaning {
		t.Fatalf("expected cleaning intent, got %s", resp.Intent)
	}
	if resp.Message == "" {
		t.Fatalf("clarification question missing")
	}
}

func TestRunQueryFullPipelineWithModel(t *testing.T) {
	client := &fakeLLM{reply: "Here you go:\n```python\nimport pandas as pd\ndf = pd.read_csv('mice.csv')\ndf['weight'].hist()\nplt.savefig('weight.png')\n```\nDone."}
	a, sessions := setupPipeline(t, client)

	resp := a.RunQuery(context.Background(), models.QueryRequest{Query: "plot a histogram of weight from mice.csv"})
	if resp.Intent != IntentDataVisualization {
		t.Fatalf("expected viz intent, got %s", resp.Intent)
	}
	if resp.ClarificationNeeded {
		t.Fatalf("unexpected clarification: %q", resp.Message)
	}
	if resp.Code == "" || resp.CodeType != "python" {
		t.Fatalf("expected extracted code, got %+v", resp)
	}
	if resp.ExecutionResult != "plot saved" {
		t.Fatalf("expected sandbox output, got %q", resp.ExecutionResult)
	}
	if len(resp.Attachments) != 1 || resp.Attachments[0].Name != "weight.png" {
		t.Fatalf("expected plot attachment, got %v", resp.Attachments)
	}
	if resp.Confidence <= 0 || resp.Confidence > 1 {
		t.Fatalf("confidence out of range: %f", resp.Confidence)
	}

	// retrieved files become session focus
	sess, err := sessions.Get(resp.SessionID)
	if err != nil {
		t.Fatalf("Get session: %v", err)
	}
	if _, ok := sess.FocusedFiles["/data/mice.csv"]; !ok {
		t.Fatalf("expected mice.csv in focus, got %v", sess.FocusedFiles)
	}
}

func TestRunQuerySecondTurnUsesFocus(t *testing.T) {
	client := &fakeLLM{reply: "The mean weight is 31.2 grams."}
	a, _ := setupPipeline(t, client)

	first := a.RunQuery(context.Background(), models.QueryRequest{Query: "plot a histogram of weight from mice.csv"})
	if first.SessionID == "" {
		t.Fatalf("no session id on first turn")
	}

	// no file named this time; session focus should avoid a clarification
	second := a.RunQuery(context.Background(), models.QueryRequest{
		Query:     "now give me the mean and standard deviation",
		SessionID: first.SessionID,
	})
	if second.ClarificationNeeded {
		t.Fatalf("focused session should not need clarification: %q", second.Message)
	}
	if second.SessionID != first.SessionID {
		t.Fatalf("session id changed between turns")
	}
}

func TestRunQueryRetrievalCapsAtThreeFiles(t *testing.T) {
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ix := index.New(wordEngine{})
	for i := 0; i < 6; i++ {
		d := models.Document{
			ID:          "doc-assay-" + string(rune('a'+i)),
			FilePath:    "/data/assay_" + string(rune('a'+i)) + ".csv",
			FileName:    "assay_" + string(rune('a'+i)) + ".csv",
			FileType:    "csv",
			Columns:     []string{"sample", "result"},
			Description: "enzyme assay results batch " + string(rune('a'+i)),
		}
		if err := ix.Add(context.Background(), d); err != nil {
			t.Fatalf("index.Add: %v", err)
		}
	}
	a := New(session.NewManager(), ix, nil, nil)

	resp := a.RunQuery(context.Background(), models.QueryRequest{Query: "find the enzyme assay results"})
	if resp.ClarificationNeeded {
		t.Fatalf("unexpected clarification: %q", resp.Message)
	}
	if got := strings.Count(resp.Message, "- "); got != 3 {
		t.Fatalf("expected 3 listed files, got %d in %q", got, resp.Message)
	}
}

func TestRunQueryFocusesRetrievedWithoutNaming(t *testing.T) {
	a, sessions := setupPipeline(t, nil)

	// no file named; the retrieved docs still become session focus
	first := a.RunQuery(context.Background(), models.QueryRequest{Query: "find the plant growth data"})
	if first.ClarificationNeeded {
		t.Fatalf("unexpected clarification: %q", first.Message)
	}
	sess, err := sessions.Get(first.SessionID)
	if err != nil {
		t.Fatalf("Get session: %v", err)
	}
	if _, ok := sess.FocusedFiles["/data/plants.csv"]; !ok {
		t.Fatalf("expected plants.csv in focus, got %v", sess.FocusedFiles)
	}

	second := a.RunQuery(context.Background(), models.QueryRequest{
		Query:     "plot the height distribution",
		SessionID: first.SessionID,
	})
	if second.ClarificationNeeded {
		t.Fatalf("focused session should not need clarification: %q", second.Message)
	}
}
