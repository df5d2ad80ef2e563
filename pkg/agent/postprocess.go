package agent

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/sidharthgd/LabVerse/pkg/models"
)

var (
	pythonFenceRe = regexp.MustCompile("(?s)```(?:python|py)?\n(.*?)```")
	savefigRe     = regexp.MustCompile(`savefig\(\s*["']([^"']+)["']`)
)

// codeLineRe matches lines that look like Python even without a fence.
var codeLineRe = regexp.MustCompile(`^\s*(import |from \w+ import |def |class |pd\.|np\.|plt\.|df\.|df\[|sns\.)`)

var intentFollowUps = map[string][]string{
	IntentSearchRetrieval: {
		"Would you like a summary of any of these files?",
		"Should I look at the columns of one of them?",
		"Want me to narrow the search further?",
	},
	IntentMetadataQuery: {
		"Want a full summary of this file?",
		"Should I show a few sample rows?",
		"Interested in statistics for any column?",
	},
	IntentDataVisualization: {
		"Would you like a different chart type?",
		"Should I adjust the styling or labels?",
		"Want the same plot for another column?",
	},
	IntentStatisticalAnalysis: {
		"Should I test a different variable?",
		"Want a visualization of these results?",
		"Would you like the assumptions checked?",
	},
	IntentDataCleaning: {
		"Should I apply these changes and save a cleaned copy?",
		"Want a report of what would change first?",
		"Should outliers be handled too?",
	},
	IntentFileSummary: {
		"Want statistics for any of these columns?",
		"Should I plot a distribution?",
		"Interested in similar files in the catalog?",
	},
	IntentCodeGeneration: {
		"Want me to explain any part of the code?",
		"Should I adapt it for a different file?",
		"Need error handling added?",
	},
}

var defaultFollowUps = []string{
	"Is there anything else you'd like to explore in your data?",
	"Would you like help with a specific file?",
}

// errorSuggestions accompany the uniform failure message.
var errorSuggestions = []string{
	"Try rephrasing your question",
	"Check that the file name is spelled correctly",
	"Ask 'what can you do' to see supported operations",
}

// PostProcessor splits raw model output into message text, code and
// attachments, and attaches per-intent follow-up suggestions.
type PostProcessor struct {
	plotsURLPrefix string
}

func NewPostProcessor() *PostProcessor {
	return &PostProcessor{plotsURLPrefix: "/static/plots/"}
}

// Process turns a raw completion into the response structure.
func (p *PostProcessor) Process(raw, intent string) models.AgentResponse {
	code, text := splitCode(raw)
	resp := models.AgentResponse{
		Message: cleanText(text),
		Intent:  intent,
	}
	if code != "" {
		resp.Code = code
		resp.CodeType = "python"
		resp.Attachments = p.plotAttachments(code)
	}
	resp.FollowUpSuggestions = followUps(intent)
	return resp
}

// Error builds the uniform failure response.
func (p *PostProcessor) Error(err error) models.AgentResponse {
	return models.AgentResponse{
		Message:             fmt.Sprintf("I encountered an error while processing your request: %v", err),
		Intent:              IntentError,
		FollowUpSuggestions: errorSuggestions,
	}
}

// splitCode extracts fenced Python blocks; without fences it falls back to a
// line scan for code-looking runs.
func splitCode(raw string) (code, text string) {
	fences := pythonFenceRe.FindAllStringSubmatch(raw, -1)
	if len(fences) > 0 {
		var blocks []string
		for _, m := range fences {
			blocks = append(blocks, strings.TrimRight(m[1], "\n"))
		}
		return strings.Join(blocks, "\n\n"), pythonFenceRe.ReplaceAllString(raw, "")
	}

	lines := strings.Split(raw, "\n")
	var codeLines, textLines []string
	inCode := false
	for _, line := range lines {
		switch {
		case codeLineRe.MatchString(line):
			inCode = true
			codeLines = append(codeLines, line)
		case inCode && (strings.HasPrefix(line, "    ") || strings.HasPrefix(line, "\t") || strings.TrimSpace(line) == ""):
			codeLines = append(codeLines, line)
		default:
			inCode = false
			textLines = append(textLines, line)
		}
	}
	if len(codeLines) < 2 {
		return "", raw
	}
	return strings.TrimRight(strings.Join(codeLines, "\n"), "\n"), strings.Join(textLines, "\n")
}

func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	// collapse the gaps left where code blocks were cut out
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(s)
}

// plotAttachments finds savefig targets in generated code and rewrites them
// as served plot URLs.
func (p *PostProcessor) plotAttachments(code string) []models.Attachment {
	var out []models.Attachment
	seen := map[string]bool{}
	for _, m := range savefigRe.FindAllStringSubmatch(code, -1) {
		name := path.Base(m[1])
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, models.Attachment{
			Type: "image",
			URL:  p.plotsURLPrefix + name,
			Name: name,
		})
	}
	return out
}

func followUps(intent string) []string {
	ups, ok := intentFollowUps[intent]
	if !ok {
		ups = defaultFollowUps
	}
	if len(ups) > 3 {
		ups = ups[:3]
	}
	return ups
}
