// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package embedclient is the one concrete implementation of
// internal/ingest's Embedder and internal/search's QueryEmbedder
// interfaces: a thin client over an OpenAI-compatible embeddings
// endpoint. It produces the content vectors the metadata-enrichment
// scheduler writes to the vector store and the query vectors the
// vector-search leg of internal/search compares against; internal/entity
// does not call it. Self-hosted deployments point
// BaseURL at any compatible server (vLLM, Text Embeddings Inference,
// ...); the wire contract is the same regardless of which model answers
// it.
package embedclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/streamforge/discovery/internal/config"
	"github.com/streamforge/discovery/internal/ingest"
	"github.com/streamforge/discovery/internal/search"
)

var (
	_ ingest.Embedder      = (*Client)(nil)
	_ search.QueryEmbedder = (*Client)(nil)
)

// Client calls an external embedding model over HTTP.
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
}

// New builds a Client from an EmbeddingConfig. It panics on an empty
// model name, matching the teacher's fail-fast convention for
// configuration that can only be wrong at construction time, never at
// call time.
func New(cfg config.EmbeddingConfig) *Client {
	if cfg.Model == "" {
		panic("embedclient: model must not be empty")
	}
	oaCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oaCfg.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{api: openai.NewClientWithConfig(oaCfg), model: cfg.Model, timeout: timeout}
}

// Embed satisfies internal/ingest.Embedder: it embeds a content item's
// title and synopsis and derives a quality score from how much synopsis
// text the source actually supplied (the embedding call itself carries no
// independent quality signal, so this is the only honest heuristic
// available at this layer — a thin stand-in until a source-side quality
// signal is wired through).
func (c *Client) Embed(ctx context.Context, title, synopsis string) ([]float32, float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	text := title
	if synopsis != "" {
		text = title + ". " + synopsis
	}
	vec, err := c.embed(ctx, text)
	if err != nil {
		return nil, 0, err
	}
	return vec, synopsisCompleteness(synopsis), nil
}

// EmbedQuery satisfies internal/search.QueryEmbedder: it embeds free-text
// search query terms for content-vector similarity search.
func (c *Client) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.embed(ctx, query)
}

func (c *Client) embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("create embedding: empty response")
	}
	return resp.Data[0].Embedding, nil
}

// synopsisCompleteness bounds a [0,1] proxy for metadata richness: a
// missing or very short synopsis scores low, a few sentences or more
// scores 1.0.
func synopsisCompleteness(synopsis string) float64 {
	const fullCredit = 280 // roughly two sentences
	n := len(strings.TrimSpace(synopsis))
	if n <= 0 {
		return 0
	}
	if n >= fullCredit {
		return 1
	}
	return float64(n) / float64(fullCredit)
}
