package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/memoryfabric/agentic-memory/internal/config"
	"github.com/memoryfabric/agentic-memory/internal/errs"
)

// HTTPProvider talks to a self-hosted OpenAI-compatible embedding endpoint
// over raw HTTP, grounded on the teacher's internal/embedding/client.go
// (header-mapping logic for Authorization vs. arbitrary API-key headers)
// for servers (e.g. mlx_lm, text-embeddings-inference) that don't speak the
// official OpenAI wire format closely enough for the SDK client.
type HTTPProvider struct {
	cfg        config.EmbeddingConfig
	httpClient *http.Client
}

// NewHTTPProvider builds an HTTPProvider from an EmbeddingConfig.
func NewHTTPProvider(cfg config.EmbeddingConfig) *HTTPProvider {
	return &HTTPProvider{cfg: cfg, httpClient: http.DefaultClient}
}

type embedReq struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResp struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (p *HTTPProvider) Dimension() int { return p.cfg.Dimensions }

func (p *HTTPProvider) EmbedText(ctx context.Context, text string, task TaskType) ([]float32, error) {
	out, err := p.EmbedBatch(ctx, []string{text}, task)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch prefixes each input with the task type the way instruction-tuned
// embedding models (e.g. Nomic, Cohere-style) expect, then posts to the
// configured endpoint.
func (p *HTTPProvider) EmbedBatch(ctx context.Context, texts []string, task TaskType) ([][]float32, error) {
	const op = "embedding.HTTPProvider.EmbedBatch"
	if len(texts) == 0 {
		return nil, errs.InvalidArgumentf(op, "no inputs")
	}
	tagged := make([]string, len(texts))
	for i, t := range texts {
		tagged[i] = string(task) + ": " + t
	}

	reqBody, err := json.Marshal(embedReq{Model: p.cfg.Model, Input: tagged})
	if err != nil {
		return nil, errs.Internalf(op, "marshal request: %w", err)
	}
	timeout := time.Duration(p.cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := p.cfg.BaseURL + p.cfg.Path
	req, err := http.NewRequestWithContext(cctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, errs.Internalf(op, "build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range p.cfg.Headers {
		req.Header.Set(k, v)
	}
	if p.cfg.APIHeader != "" {
		if p.cfg.APIHeader == "Authorization" {
			req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
		} else {
			req.Header.Set(p.cfg.APIHeader, p.cfg.APIKey)
		}
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, errs.Unavailablef(op, "request embedding endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Unavailablef(op, "read response body: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, errs.Unavailablef(op, "embedding endpoint returned %s: %s", resp.Status, string(body))
	}

	var er embedResp
	if err := json.Unmarshal(body, &er); err != nil {
		return nil, errs.Internalf(op, "parse embedding response: %w", err)
	}
	if len(er.Data) != len(texts) {
		return nil, errs.Internalf(op, "unexpected embedding count: got %d, want %d", len(er.Data), len(texts))
	}
	out := make([][]float32, len(er.Data))
	for i := range er.Data {
		out[i] = er.Data[i].Embedding
	}
	return out, nil
}

// CheckReachability verifies the embedding endpoint responds to a minimal
// request; used by health checks.
func CheckReachability(ctx context.Context, p *HTTPProvider) error {
	_, err := p.EmbedText(ctx, "ping", TaskSearchQuery)
	if err != nil {
		return fmt.Errorf("embedding endpoint reachability check failed: %w", err)
	}
	return nil
}
