package agent

import (
	"context"
	"strings"
	"time"

	"github.com/sidharthgd/LabVerse/pkg/index"
	"github.com/sidharthgd/LabVerse/pkg/llm"
	"github.com/sidharthgd/LabVerse/pkg/logger"
	"github.com/sidharthgd/LabVerse/pkg/models"
	"github.com/sidharthgd/LabVerse/pkg/session"
	"github.com/sidharthgd/LabVerse/pkg/telemetry"
)

// CodeRunner executes generated code when a sandbox is configured.
type CodeRunner interface {
	Run(ctx context.Context, code string) (string, error)
	Enabled() bool
}

// Assistant wires the full pipeline behind a single RunQuery call.
type Assistant struct {
	sessions   *session.Manager
	classifier *IntentClassifier
	extractor  *EntityExtractor
	clarifier  *Clarifier
	retriever  *Retriever
	prompts    *PromptBuilder
	post       *PostProcessor
	llm        llm.Client
	index      *index.Index
	runner     CodeRunner
}

// New assembles an Assistant. client and runner may be nil.
func New(sessions *session.Manager, ix *index.Index, client llm.Client, runner CodeRunner) *Assistant {
	return &Assistant{
		sessions:   sessions,
		classifier: NewIntentClassifier(client),
		extractor:  NewEntityExtractor(client),
		clarifier:  NewClarifier(),
		retriever:  NewRetriever(ix, 3),
		prompts:    NewPromptBuilder(),
		post:       NewPostProcessor(),
		llm:        client,
		index:      ix,
		runner:     runner,
	}
}

// RunQuery executes the pipeline for one user query and records the turn.
func (a *Assistant) RunQuery(ctx context.Context, req models.QueryRequest) models.AgentResponse {
	start := time.Now()
	sess, err := a.sessions.GetOrCreate(req.SessionID)
	if err != nil {
		return a.fail(start, "", err)
	}
	if _, err := a.sessions.StartTurn(sess); err != nil {
		return a.fail(start, sess.ID, err)
	}

	endClassify := telemetry.StartSpan(ctx, "classify_intent")
	intent := a.classifier.Classify(ctx, req.Query)
	telemetry.SetSpanData(ctx, "intent", intent.Intent)
	endClassify()

	endExtract := telemetry.StartSpan(ctx, "extract_entities")
	entities := a.extractor.Extract(ctx, req.Query, a.catalogContext())
	endExtract()

	clarify := a.clarifier.Check(intent, entities, sess)

	if clarify.Status != StatusReady {
		resp := a.clarificationResponse(ctx, req.Query, intent, entities, clarify)
		resp.SessionID = sess.ID
		resp.ProcessingTime = time.Since(start).Seconds()
		a.recordTurn(sess, req.Query, resp)
		telemetry.ObserveQuery(intent.Intent, time.Since(start), false)
		return resp
	}

	endRetrieve := telemetry.StartSpan(ctx, "retrieve")
	retrieval, err := a.retriever.Retrieve(ctx, req.Query, entities, RetrievalFilters{})
	endRetrieve()
	if err != nil {
		// A cold index is not fatal for intents that do not need data.
		logger.Warn("retrieval_failed", "session", sess.ID, "error", err)
		retrieval = RetrievalResult{Metadata: map[string]interface{}{}}
	}
	a.focusRetrieved(sess, retrieval)

	history, err := a.sessions.ConversationContext(sess.ID)
	if err != nil {
		logger.Warn("history_load_failed", "session", sess.ID, "error", err)
	}

	var resp models.AgentResponse
	if a.llm == nil {
		resp = a.offlineResponse(intent.Intent, retrieval)
	} else {
		prompt := a.prompts.Build(intent.Intent, req.Query, retrieval, history, sess)
		endLLM := telemetry.StartSpan(ctx, "llm_complete")
		raw, err := a.llm.Complete(ctx, prompt.System, prompt.User)
		endLLM()
		if err != nil {
			telemetry.ObserveLLMFailure()
			out := a.fail(start, sess.ID, err)
			a.recordTurn(sess, req.Query, out)
			telemetry.ObserveQuery(IntentError, time.Since(start), true)
			return out
		}
		resp = a.post.Process(raw, intent.Intent)
	}

	resp.Intent = intent.Intent
	resp.Entities = entities.Entities
	resp.Confidence = 0.3*intent.Confidence + 0.3*entities.Confidence + 0.4*retrieval.Confidence
	resp.SessionID = sess.ID

	if resp.Code != "" && a.runner != nil && a.runner.Enabled() {
		out, err := a.runner.Run(ctx, resp.Code)
		if err != nil {
			logger.Warn("sandbox_run_failed", "session", sess.ID, "error", err)
			resp.ExecutionResult = "execution failed: " + err.Error()
		} else {
			resp.ExecutionResult = out
		}
	}

	resp.ProcessingTime = time.Since(start).Seconds()
	a.recordTurn(sess, req.Query, resp)
	telemetry.ObserveQuery(intent.Intent, time.Since(start), false)
	return resp
}

func (a *Assistant) clarificationResponse(ctx context.Context, query string, intent IntentResult, entities EntityResult, clarify ClarifyResult) models.AgentResponse {
	question := clarify.Question
	if a.llm != nil {
		prompt := a.prompts.BuildClarification(query, clarify)
		if raw, err := a.llm.Complete(ctx, prompt.System, prompt.User); err == nil {
			if q := strings.TrimSpace(raw); q != "" {
				question = q
			}
		}
	}
	return models.AgentResponse{
		Message:             question,
		Intent:              intent.Intent,
		Entities:            entities.Entities,
		ClarificationNeeded: true,
		FollowUpSuggestions: clarify.Suggestions,
		Confidence:          clarify.Confidence,
	}
}

// offlineResponse answers from the catalog alone when no model is configured.
func (a *Assistant) offlineResponse(intent string, retrieval RetrievalResult) models.AgentResponse {
	var sb strings.Builder
	if len(retrieval.Documents) == 0 {
		sb.WriteString("No matching files were found in the catalog.")
	} else {
		sb.WriteString("These files look relevant:\n")
		for i, d := range retrieval.Documents {
			sb.WriteString("- " + d.FileName)
			if d.Description != "" {
				sb.WriteString(": " + d.Description)
			}
			sb.WriteString("\n")
			if i == 4 {
				break
			}
		}
		sb.WriteString("\nNo language model is configured, so only catalog lookups are available.")
	}
	return models.AgentResponse{
		Message:             sb.String(),
		FollowUpSuggestions: followUps(intent),
	}
}

// focusRetrieved records every retrieved file as session focus so follow-up
// turns like "plot it" resolve without re-asking which file is meant.
func (a *Assistant) focusRetrieved(sess *models.Session, retrieval RetrievalResult) {
	for _, d := range retrieval.Documents {
		if err := a.sessions.AddFileFocus(sess, d.FilePath, d.FileName, d.Columns); err != nil {
			logger.Warn("file_focus_failed", "session", sess.ID, "error", err)
		}
	}
}

func (a *Assistant) catalogContext() CatalogContext {
	var cat CatalogContext
	colSet := map[string]bool{}
	for _, d := range a.index.Documents() {
		cat.FileNames = append(cat.FileNames, d.FileName)
		for _, c := range d.Columns {
			if !colSet[c] {
				colSet[c] = true
				cat.Columns = append(cat.Columns, c)
			}
		}
	}
	return cat
}

func (a *Assistant) recordTurn(sess *models.Session, query string, resp models.AgentResponse) {
	turn := models.Turn{
		UserQuery:           query,
		Intent:              resp.Intent,
		Entities:            resp.Entities,
		ClarificationNeeded: resp.ClarificationNeeded,
		AIResponse:          resp.Message,
		CodeGenerated:       resp.Code,
		ExecutionResult:     resp.ExecutionResult,
	}
	if resp.ClarificationNeeded {
		turn.ClarificationQuestion = resp.Message
	}
	if err := a.sessions.CompleteTurn(sess, turn); err != nil {
		logger.Error("turn_record_failed", "session", sess.ID, "error", err)
	}
}

func (a *Assistant) fail(start time.Time, sessionID string, err error) models.AgentResponse {
	logger.Error("query_failed", "session", sessionID, "error", err)
	resp := a.post.Error(err)
	resp.SessionID = sessionID
	resp.ProcessingTime = time.Since(start).Seconds()
	return resp
}
