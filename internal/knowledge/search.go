package knowledge

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/pgvector/pgvector-go"
)

// Search defaults. Callers override them with SearchOption values.
// The default similarity floor of 0 keeps every finite match.
const (
	DefaultTopK          = 5
	DefaultMinSimilarity = 0.0
	defaultSearchTimeout = 10 * time.Second
)

type searchConfig struct {
	folderPath    *string
	topK          int32
	minSimilarity float64
	timeout       time.Duration
}

// SearchOption configures a vector search.
type SearchOption func(*searchConfig)

// WithFolder restricts search to documents ingested from folderPath.
func WithFolder(folderPath string) SearchOption {
	return func(cfg *searchConfig) {
		cfg.folderPath = &folderPath
	}
}

// WithTopK sets the maximum number of results.
func WithTopK(k int32) SearchOption {
	return func(cfg *searchConfig) {
		if k > 0 {
			cfg.topK = k
		}
	}
}

// WithMinSimilarity sets the cosine similarity floor in [0, 1].
func WithMinSimilarity(min float64) SearchOption {
	return func(cfg *searchConfig) {
		cfg.minSimilarity = min
	}
}

func buildSearchConfig(opts []SearchOption) searchConfig {
	cfg := searchConfig{
		topK:          DefaultTopK,
		minSimilarity: DefaultMinSimilarity,
		timeout:       defaultSearchTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Search finds the chunks most similar to queryEmbedding, ordered by
// similarity descending. Only chunks of completed documents with stored
// embeddings are considered. Rows with a non-finite similarity are
// dropped. A 10-second timeout bounds the query.
func (s *Store) Search(ctx context.Context, queryEmbedding []float32, opts ...SearchOption) ([]Result, error) {
	if len(queryEmbedding) == 0 {
		return nil, fmt.Errorf("query embedding must not be empty")
	}

	cfg := buildSearchConfig(opts)

	queryCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	vec := pgvector.NewVector(queryEmbedding)
	rows, err := s.querier.SearchChunks(queryCtx, SearchChunksParams{
		QueryEmbedding: &vec,
		FolderPath:     cfg.folderPath,
		MinSimilarity:  cfg.minSimilarity,
		ResultLimit:    cfg.topK,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search query timeout: %w", err)
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		if math.IsNaN(row.Similarity) || math.IsInf(row.Similarity, 0) {
			s.logger.Warn("dropping search result with non-finite similarity",
				"chunk_id", row.ChunkID)
			continue
		}
		results = append(results, Result{
			ChunkID:      row.ChunkID,
			DocumentID:   row.DocumentID,
			DocumentName: row.DocumentName,
			Content:      row.Content,
			Similarity:   row.Similarity,
		})
	}

	s.logger.Debug("vector search completed", "results", len(results), "top_k", cfg.topK)
	return results, nil
}
