package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMock_GenerateEchoesPrompt(t *testing.T) {
	m := NewMock()
	out, err := m.Generate(context.Background(), "hello")
	require.NoError(t, err)
	require.Contains(t, out, "hello")
}

func TestMock_GenerateWithContextUsesUserTurns(t *testing.T) {
	m := NewMock()
	out, err := m.GenerateWithContext(context.Background(), []Turn{
		{Role: "system", Content: "be terse"},
		{Role: "user", Content: "what is the capital of France"},
	})
	require.NoError(t, err)
	require.Contains(t, out, "capital of France")
	require.NotContains(t, out, "be terse")
}

func TestMock_CountTokensApproximatesWordCount(t *testing.T) {
	m := NewMock()
	n, err := m.CountTokens(context.Background(), "one two three four")
	require.NoError(t, err)
	require.Greater(t, n, 0)
}

func TestMock_SummarizeSingleVsMultiple(t *testing.T) {
	m := NewMock()
	single, err := m.Summarize(context.Background(), []string{"the sky is blue"})
	require.NoError(t, err)
	require.Equal(t, "the sky is blue", single)

	multi, err := m.Summarize(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Contains(t, multi, "3 memories")
}

func TestMock_ExtractEntitiesDedupes(t *testing.T) {
	m := NewMock()
	ents, err := m.ExtractEntities(context.Background(), "Paris is in France. Paris is beautiful.")
	require.NoError(t, err)
	require.Contains(t, ents, "Paris")
	require.Contains(t, ents, "France")

	count := 0
	for _, e := range ents {
		if e == "Paris" {
			count++
		}
	}
	require.Equal(t, 1, count)
}
