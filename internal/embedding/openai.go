package embedding

import (
	"context"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/memoryfabric/agentic-memory/internal/config"
	"github.com/memoryfabric/agentic-memory/internal/errs"
)

// OpenAI embeds text via the official SDK client, grounded on the
// construction pattern in the teacher's internal/llm/openai/client.go
// (option.WithAPIKey/WithBaseURL), used here for the embeddings endpoint
// instead of chat completions.
type OpenAI struct {
	client    sdk.Client
	model     string
	dimension int
}

// NewOpenAI builds an OpenAI-backed embedding provider from config.
func NewOpenAI(cfg config.EmbeddingConfig) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAI{
		client:    sdk.NewClient(opts...),
		model:     cfg.Model,
		dimension: cfg.Dimensions,
	}
}

func (o *OpenAI) Dimension() int { return o.dimension }

func (o *OpenAI) EmbedText(ctx context.Context, text string, task TaskType) ([]float32, error) {
	out, err := o.EmbedBatch(ctx, []string{text}, task)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (o *OpenAI) EmbedBatch(ctx context.Context, texts []string, task TaskType) ([][]float32, error) {
	const op = "embedding.OpenAI.EmbedBatch"
	if len(texts) == 0 {
		return nil, errs.InvalidArgumentf(op, "no inputs")
	}

	// OpenAI's text-embedding-3 family has no first-class task_type
	// parameter; the search_query/search_document distinction is carried as
	// an instruction prefix, the same convention used by instruction-tuned
	// open models.
	tagged := make([]string, len(texts))
	for i, t := range texts {
		tagged[i] = string(task) + ": " + t
	}

	resp, err := o.client.Embeddings.New(ctx, sdk.EmbeddingNewParams{
		Model: o.model,
		Input: sdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: tagged},
	})
	if err != nil {
		return nil, errs.Unavailablef(op, "openai embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, errs.Internalf(op, "unexpected embedding count: got %d, want %d", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		out[i] = vec
	}
	return out, nil
}

var _ Provider = (*OpenAI)(nil)
