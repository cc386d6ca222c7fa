package llm

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/memoryfabric/agentic-memory/internal/util"
)

// Mock is a deterministic, offline Provider for tests and for running the
// engine without a configured LLM backend. Summaries are extractive
// (a truncated copy of the first input, prefixed with the input count when
// there is more than one) rather than generated, and entity extraction is a
// capitalized-word heuristic.
type Mock struct{}

// NewMock returns a Mock provider.
func NewMock() *Mock { return &Mock{} }

func (m *Mock) Generate(_ context.Context, prompt string) (string, error) {
	return "mock-response: " + truncate(prompt, 200), nil
}

func (m *Mock) GenerateWithContext(_ context.Context, turns []Turn) (string, error) {
	var sb strings.Builder
	for _, t := range turns {
		if t.Role == "user" {
			sb.WriteString(t.Content)
			sb.WriteString(" ")
		}
	}
	return "mock-response: " + truncate(sb.String(), 200), nil
}

// CountTokens approximates token count with a punctuation-aware word count,
// the rough estimate used when no real tokenizer is configured.
func (m *Mock) CountTokens(_ context.Context, text string) (int, error) {
	return util.CountTokens(text), nil
}

func (m *Mock) Summarize(_ context.Context, texts []string) (string, error) {
	if len(texts) == 0 {
		return "", nil
	}
	if len(texts) == 1 {
		return truncate(texts[0], 240), nil
	}
	return "Consolidated observation across " + strconv.Itoa(len(texts)) + " memories: " + truncate(texts[0], 160), nil
}

var capitalizedWord = regexp.MustCompile(`\b[A-Z][a-zA-Z0-9]{2,}\b`)

func (m *Mock) ExtractEntities(_ context.Context, text string) ([]string, error) {
	matches := capitalizedWord.FindAllString(text, -1)
	seen := map[string]struct{}{}
	var out []string
	for _, w := range matches {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var _ Provider = (*Mock)(nil)
