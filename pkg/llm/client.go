// Package llm adapts the third-party completion SDKs behind one interface.
// Providers: "openai" (api.openai.com), "openai_compatible" (any server
// speaking the OpenAI chat API, e.g. Ollama or vLLM) and "anthropic".
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	aoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go"
	ooption "github.com/openai/openai-go/option"
)

// Client issues a single completion for a system + user prompt pair.
type Client interface {
	Complete(ctx context.Context, system, user string) (string, error)
	Name() string
}

// Config selects and parameterizes a provider.
type Config struct {
	Provider  string
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// New builds a Client from config. An empty provider yields nil, which
// callers treat as "no LLM configured" (rule-based paths still work).
func New(cfg Config) (Client, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case "":
		return nil, nil
	case "openai", "openai_compatible":
		if strings.TrimSpace(cfg.APIKey) == "" && provider == "openai" {
			return nil, fmt.Errorf("openai provider requires an api key")
		}
		if provider == "openai_compatible" && strings.TrimSpace(cfg.BaseURL) == "" {
			return nil, fmt.Errorf("openai_compatible provider requires a base url")
		}
		opts := []ooption.RequestOption{}
		if k := strings.TrimSpace(cfg.APIKey); k != "" {
			opts = append(opts, ooption.WithAPIKey(k))
		}
		if u := strings.TrimSpace(cfg.BaseURL); u != "" {
			opts = append(opts, ooption.WithBaseURL(u))
		}
		model := cfg.Model
		if model == "" {
			model = "gpt-4o-mini"
		}
		return &openAIClient{client: openai.NewClient(opts...), model: model, timeout: cfg.Timeout}, nil
	case "anthropic":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, fmt.Errorf("anthropic provider requires an api key")
		}
		opts := []aoption.RequestOption{aoption.WithAPIKey(strings.TrimSpace(cfg.APIKey))}
		if u := strings.TrimSpace(cfg.BaseURL); u != "" {
			opts = append(opts, aoption.WithBaseURL(u))
		}
		model := cfg.Model
		if model == "" {
			model = "claude-sonnet-4-5"
		}
		maxTokens := cfg.MaxTokens
		if maxTokens <= 0 {
			maxTokens = 4096
		}
		return &anthropicClient{client: anthropic.NewClient(opts...), model: model, maxTokens: maxTokens, timeout: cfg.Timeout}, nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}

type openAIClient struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

func (c *openAIClient) Complete(ctx context.Context, system, user string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	msgs := []openai.ChatCompletionMessageParamUnion{}
	if strings.TrimSpace(system) != "" {
		msgs = append(msgs, openai.SystemMessage(system))
	}
	msgs = append(msgs, openai.UserMessage(user))
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: msgs,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *openAIClient) Name() string { return "openai:" + c.model }

type anthropicClient struct {
	client    anthropic.Client
	model     string
	maxTokens int
	timeout   time.Duration
}

func (c *anthropicClient) Complete(ctx context.Context, system, user string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}
	if strings.TrimSpace(system) != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("message completion failed: %w", err)
	}
	var sb strings.Builder
	for _, blk := range msg.Content {
		if tb, ok := blk.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("message completion returned no text")
	}
	return sb.String(), nil
}

func (c *anthropicClient) Name() string { return "anthropic:" + c.model }
