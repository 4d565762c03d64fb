// Package embed wraps a Genkit embedder with the batching and
// degradation behavior the ingestion pipeline and chat agent rely on.
package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"golang.org/x/time/rate"
)

// Dimension is the embedding vector size. The schema's vector columns
// and the zero-vector fallback both depend on it.
const Dimension = 768

// DefaultBatchSize is how many texts go to the embedder per request.
const DefaultBatchSize = 10

// defaultRequestsPerSecond caps embedding API calls.
const defaultRequestsPerSecond = 10

// Client generates embeddings through a Genkit embedder.
//
// Client is safe for concurrent use by multiple goroutines.
type Client struct {
	embedder  ai.Embedder
	batchSize int
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// New creates a Client. batchSize <= 0 falls back to DefaultBatchSize.
func New(embedder ai.Embedder, batchSize int, logger *slog.Logger) *Client {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		embedder:  embedder,
		batchSize: batchSize,
		limiter:   rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), defaultRequestsPerSecond),
		logger:    logger,
	}
}

// EmbedText embeds a single text. Empty or whitespace-only input is an
// error; callers that need degradation semantics use EmbedBatch.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text must not be empty")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	resp, err := c.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			{Content: []*ai.Part{ai.NewTextPart(text)}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}

	return resp.Embeddings[0].Embedding, nil
}

// EmbedBatch embeds texts in sequential batches and never fails the
// whole call: the result always has exactly len(texts) vectors. Each
// text in a batch is embedded with its own provider call; an empty text
// or a per-text failure degrades to a zero vector of Dimension in its
// place, leaving the other texts intact.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) [][]float32 {
	results := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))

		for i, text := range texts[start:end] {
			embedding, err := c.EmbedText(ctx, text)
			if err != nil {
				c.logger.Warn("embedding failed, using zero vector",
					"index", start+i, "error", err)
				results = append(results, make([]float32, Dimension))
				continue
			}
			results = append(results, embedding)
		}

		c.logger.Debug("embedded batch", "batch_start", start, "batch_size", end-start)
	}

	return results
}

// Available reports whether the embedding service responds. It probes
// with a single short embedding request; any failure reads as
// unavailable rather than an error.
func (c *Client) Available(ctx context.Context) bool {
	if _, err := c.EmbedText(ctx, "ping"); err != nil {
		c.logger.Debug("embedding service unavailable", "error", err)
		return false
	}
	return true
}
