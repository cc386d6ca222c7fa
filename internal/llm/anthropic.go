package llm

import (
	"context"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/memoryfabric/agentic-memory/internal/config"
	"github.com/memoryfabric/agentic-memory/internal/errs"
)

const defaultMaxTokens int64 = 1024

// Anthropic implements Provider over the Messages API, grounded on the
// teacher's internal/llm/anthropic/client.go construction pattern and its
// tokenizer.go's use of the /v1/messages/count_tokens endpoint, trimmed
// down from the teacher's full tool-calling/streaming surface to the
// generate/summarize/extract_entities/count_tokens shape this port needs.
type Anthropic struct {
	sdk   anthropic.Client
	model string
}

// NewAnthropic builds an Anthropic-backed Provider from config.
func NewAnthropic(cfg config.LLMConfig) *Anthropic {
	opts := []option.RequestOption{option.WithAPIKey(strings.TrimSpace(cfg.APIKey))}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = string(anthropic.ModelClaude3_7SonnetLatest)
	}
	return &Anthropic{sdk: anthropic.NewClient(opts...), model: model}
}

func (a *Anthropic) Generate(ctx context.Context, prompt string) (string, error) {
	return a.GenerateWithContext(ctx, []Turn{{Role: "user", Content: prompt}})
}

func (a *Anthropic) GenerateWithContext(ctx context.Context, turns []Turn) (string, error) {
	const op = "llm.Anthropic.GenerateWithContext"
	var system string
	var msgs []anthropic.MessageParam
	for _, t := range turns {
		switch t.Role {
		case "system":
			system = t.Content
		case "assistant":
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(t.Content)))
		default:
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(t.Content)))
		}
	}
	if len(msgs) == 0 {
		return "", errs.InvalidArgumentf(op, "at least one user/assistant turn required")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		Messages:  msgs,
		MaxTokens: defaultMaxTokens,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := a.sdk.Messages.New(ctx, params)
	if err != nil {
		return "", errs.Unavailablef(op, "anthropic messages.new: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	return sb.String(), nil
}

func (a *Anthropic) CountTokens(ctx context.Context, text string) (int, error) {
	const op = "llm.Anthropic.CountTokens"
	if strings.TrimSpace(text) == "" {
		return 0, nil
	}
	result, err := a.sdk.Messages.CountTokens(ctx, anthropic.MessageCountTokensParams{
		Model:    anthropic.Model(a.model),
		Messages: []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(text))},
	})
	if err != nil {
		return 0, errs.Unavailablef(op, "anthropic count_tokens: %w", err)
	}
	return int(result.InputTokens), nil
}

// Summarize asks the model for a single consolidated summary of a cluster
// of memory contents (spec §4.6's reflection cycle).
func (a *Anthropic) Summarize(ctx context.Context, texts []string) (string, error) {
	if len(texts) == 0 {
		return "", nil
	}
	var sb strings.Builder
	sb.WriteString("Summarize the common thread across these notes in one or two sentences:\n\n")
	for i, t := range texts {
		sb.WriteString("- ")
		sb.WriteString(t)
		if i < len(texts)-1 {
			sb.WriteString("\n")
		}
	}
	return a.Generate(ctx, sb.String())
}

// ExtractEntities asks the model to list named entities mentioned in text,
// one per line, and splits the response.
func (a *Anthropic) ExtractEntities(ctx context.Context, text string) ([]string, error) {
	prompt := "List the named entities (people, places, organizations, concepts) mentioned in this text, one per line, nothing else:\n\n" + text
	resp, err := a.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, line := range strings.Split(resp, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-"))
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out, nil
}

var _ Provider = (*Anthropic)(nil)
