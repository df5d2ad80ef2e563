package agent

import (
	"fmt"
	"strings"

	"github.com/sidharthgd/LabVerse/pkg/models"
)

// Prompt is an assembled system + user prompt pair ready for the model.
type Prompt struct {
	System    string
	User      string
	MaxTokens int
}

const truncationMarker = "[Content truncated due to length...]"

// per-intent completion budgets; prompt text is truncated at roughly four
// characters per token of the budget.
var intentMaxTokens = map[string]int{
	IntentDataVisualization:   2000,
	IntentStatisticalAnalysis: 3000,
	IntentDataCleaning:        2000,
	IntentFileSummary:         1500,
}

const defaultMaxTokens = 2500

var intentInstructions = map[string]string{
	IntentDataVisualization: `Generate Python code using matplotlib or seaborn to create the requested visualization. Load the data with pandas, build the figure, label axes and title, and save it with plt.savefig. Explain briefly what the chart shows.`,
	IntentStatisticalAnalysis: `Perform the requested statistical analysis. Generate Python code using pandas and scipy where computation is needed, state assumptions, and interpret the results including significance where applicable.`,
	IntentDataCleaning: `Generate Python code using pandas to clean the data as requested. Report what was changed (missing values handled, duplicates removed, types fixed) and preserve the original file, writing the cleaned result to a new file.`,
	IntentFileSummary: `Summarize the file: what it contains, its structure, notable columns and anything unusual. Keep it concise and concrete.`,
	IntentSearchRetrieval: `Answer using the catalog context below. Point the user at the most relevant files and say why each matches.`,
	IntentMetadataQuery: `Answer the metadata question directly from the catalog context below. Do not generate code unless asked.`,
	IntentNewDatasetGeneration: `Generate Python code using pandas to build the requested dataset from the referenced files, and describe the resulting structure.`,
	IntentCodeGeneration: `Write clear, runnable Python code for the request. Use pandas for tabular work. Comment only where the logic is not obvious.`,
	IntentScientificQuestion: `Answer the scientific question grounded in the data context where relevant. Be explicit about uncertainty and what the data can and cannot support.`,
	IntentAccessPermission: `Explain what data access looks like in this workspace. You cannot change permissions yourself; direct the user to their administrator for grants.`,
	IntentHelpInstruction: `Explain what this assistant can do: find and summarize datasets, answer metadata questions, run statistical analyses, generate visualizations and cleaning code. Give a couple of example queries.`,
}

// PromptBuilder renders model prompts from retrieval output, session state
// and user preferences.
type PromptBuilder struct{}

func NewPromptBuilder() *PromptBuilder { return &PromptBuilder{} }

// Build assembles the full prompt for an intent.
func (b *PromptBuilder) Build(intent string, query string, retrieval RetrievalResult, history []models.Turn, sess *models.Session) Prompt {
	maxTokens, ok := intentMaxTokens[intent]
	if !ok {
		maxTokens = defaultMaxTokens
	}

	var sb strings.Builder
	instr, ok := intentInstructions[intent]
	if !ok {
		instr = intentInstructions[IntentSearchRetrieval]
	}
	sb.WriteString(instr)
	sb.WriteString("\n\n")

	if ctx := renderDataContext(retrieval); ctx != "" {
		sb.WriteString("## Available data\n")
		sb.WriteString(ctx)
		sb.WriteString("\n")
	}
	if conv := renderConversation(history); conv != "" {
		sb.WriteString("## Recent conversation\n")
		sb.WriteString(conv)
		sb.WriteString("\n")
	}
	if sess != nil {
		sb.WriteString(renderPreferences(sess.Preferences))
	}
	sb.WriteString("## Request\n")
	sb.WriteString(query)
	sb.WriteString("\n")

	user := truncate(sb.String(), maxTokens*4)
	return Prompt{
		System:    "You are a data analysis assistant for a research lab. You help users explore, analyze and visualize their datasets. Be precise; never invent files or columns that are not in the provided context.",
		User:      user,
		MaxTokens: maxTokens,
	}
}

// BuildClarification renders the response prompt for a clarification turn.
func (b *PromptBuilder) BuildClarification(query string, clarify ClarifyResult) Prompt {
	user := fmt.Sprintf("The user asked: %q\nBefore answering you need to ask: %s\nRephrase that as one short, friendly question.", query, clarify.Question)
	return Prompt{
		System:    "You are a data analysis assistant. Ask exactly one concise clarifying question.",
		User:      user,
		MaxTokens: 200,
	}
}

// renderDataContext formats the top three retrieved files with up to ten
// columns and two sample rows of five columns each.
func renderDataContext(retrieval RetrievalResult) string {
	docs := retrieval.Documents
	if len(docs) > 3 {
		docs = docs[:3]
	}
	var sb strings.Builder
	for _, d := range docs {
		fmt.Fprintf(&sb, "### %s (%s, %d rows)\n", d.FileName, d.FileType, d.RowCount)
		if d.Description != "" {
			sb.WriteString(d.Description)
			sb.WriteString("\n")
		}
		cols := d.Columns
		if len(cols) > 10 {
			cols = cols[:10]
		}
		if len(cols) > 0 {
			fmt.Fprintf(&sb, "Columns: %s\n", strings.Join(cols, ", "))
		}
		for _, c := range cols {
			if desc, ok := d.ColumnDescs[c]; ok && desc != "" {
				fmt.Fprintf(&sb, "  - %s: %s\n", c, desc)
			}
		}
		rows := d.SampleRows
		if len(rows) > 2 {
			rows = rows[:2]
		}
		for i, row := range rows {
			fmt.Fprintf(&sb, "Sample row %d: %s\n", i+1, renderSampleRow(row, cols))
		}
	}
	return sb.String()
}

func renderSampleRow(row map[string]string, cols []string) string {
	if len(cols) > 5 {
		cols = cols[:5]
	}
	parts := make([]string, 0, len(cols))
	for _, c := range cols {
		if v, ok := row[c]; ok {
			parts = append(parts, fmt.Sprintf("%s=%s", c, v))
		}
	}
	return strings.Join(parts, ", ")
}

// renderConversation keeps the last three exchanges at 200 characters each.
func renderConversation(history []models.Turn) string {
	if len(history) > 3 {
		history = history[len(history)-3:]
	}
	var sb strings.Builder
	for _, t := range history {
		fmt.Fprintf(&sb, "User: %s\n", clip(t.UserQuery, 200))
		if t.AIResponse != "" {
			fmt.Fprintf(&sb, "Assistant: %s\n", clip(t.AIResponse, 200))
		}
	}
	return sb.String()
}

func renderPreferences(p models.Preferences) string {
	return fmt.Sprintf("## Preferences\nVisualization style: %s. Significance level: %g. Display at most %d rows. Preferred output format: %s.\n\n",
		p.VisualizationStyle, p.SignificanceLevel, p.MaxDisplayRows, p.PreferredFormat)
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func truncate(s string, maxChars int) string {
	if len(s) <= maxChars {
		return s
	}
	cut := maxChars - len(truncationMarker) - 1
	if cut < 0 {
		cut = 0
	}
	return s[:cut] + "\n" + truncationMarker
}
