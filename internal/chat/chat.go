// Package chat implements the retrieval-augmented chat agent and the
// conversation service around it.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/koopa0/docuchat/internal/knowledge"
)

// systemPrompt steers the model toward grounded answers.
const systemPrompt = `You are a helpful AI assistant that answers questions based on the provided documents.

INSTRUCTIONS:
- Answer based on the provided context when possible
- Be concise but thorough
- If the context doesn't contain relevant information, acknowledge this and provide what help you can
- Reference specific documents when citing information
- If unsure, acknowledge uncertainty rather than making things up`

// noSourcesContext replaces the document context when retrieval found
// nothing.
const noSourcesContext = "No relevant documents found in the database. " +
	"Please provide a general response or ask for clarification."

// fallbackResponseMessage is returned when generation fails; the turn
// still succeeds.
const fallbackResponseMessage = "I apologize, but I encountered an error generating a response. " +
	"Please try again."

// DefaultTopK is how many chunks retrieval fetches per query.
const DefaultTopK = 5

// Source is one retrieved chunk backing an answer.
type Source struct {
	DocumentName   string    `json:"document_name"`
	ChunkContent   string    `json:"chunk_content"`
	RelevanceScore float64   `json:"relevance_score"`
	ChunkID        uuid.UUID `json:"chunk_id"`
	DocumentID     uuid.UUID `json:"document_id"`
}

// HistoryMessage is one prior turn passed to the model.
type HistoryMessage struct {
	Role    string
	Content string
}

// Reply is the outcome of one agent run.
type Reply struct {
	Message string
	Sources []Source
}

// QueryEmbedder embeds the user query for retrieval.
type QueryEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Searcher finds chunks similar to a query embedding.
type Searcher interface {
	Search(ctx context.Context, queryEmbedding []float32, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
}

// GenerateRequest carries everything the model needs for one answer.
type GenerateRequest struct {
	System  string
	History []HistoryMessage
	Prompt  string
}

// Generator produces the model response.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// Agent answers queries in three stages: retrieve relevant chunks,
// augment the prompt with them, generate a response. Each stage
// degrades instead of failing the turn: retrieval errors yield empty
// sources, generation errors yield a fixed apology.
type Agent struct {
	embedder  QueryEmbedder
	searcher  Searcher
	generator Generator
	topK      int32
	logger    *slog.Logger
}

// NewAgent creates an Agent. topK <= 0 falls back to DefaultTopK.
func NewAgent(embedder QueryEmbedder, searcher Searcher, generator Generator, topK int32, logger *slog.Logger) *Agent {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Agent{
		embedder:  embedder,
		searcher:  searcher,
		generator: generator,
		topK:      topK,
		logger:    logger,
	}
}

// Chat runs the full retrieve, augment, generate sequence. It always
// returns a Reply; degradation is reflected in the content, never as an
// error.
func (a *Agent) Chat(ctx context.Context, query string, history []HistoryMessage, folderPath *string) *Reply {
	sources := a.retrieve(ctx, query, folderPath)
	documentContext := a.augment(sources)
	message := a.generate(ctx, query, documentContext, history)

	return &Reply{Message: message, Sources: sources}
}

// retrieve embeds the query and fetches the most similar chunks. Any
// failure returns an empty source list so the turn can continue.
func (a *Agent) retrieve(ctx context.Context, query string, folderPath *string) []Source {
	embedding, err := a.embedder.EmbedText(ctx, query)
	if err != nil {
		a.logger.Error("query embedding failed", "error", err)
		return []Source{}
	}

	opts := []knowledge.SearchOption{knowledge.WithTopK(a.topK)}
	if folderPath != nil {
		opts = append(opts, knowledge.WithFolder(*folderPath))
	}

	results, err := a.searcher.Search(ctx, embedding, opts...)
	if err != nil {
		a.logger.Error("retrieval failed", "error", err)
		return []Source{}
	}

	sources := make([]Source, len(results))
	for i, r := range results {
		sources[i] = Source{
			DocumentName:   r.DocumentName,
			ChunkContent:   r.Content,
			RelevanceScore: r.Similarity,
			ChunkID:        r.ChunkID,
			DocumentID:     r.DocumentID,
		}
	}

	a.logger.Debug("retrieved chunks", "count", len(sources))
	return sources
}

// augment formats the retrieved chunks into the document context block.
func (a *Agent) augment(sources []Source) string {
	if len(sources) == 0 {
		a.logger.Warn("no sources available for context")
		return noSourcesContext
	}

	parts := make([]string, len(sources))
	for i, source := range sources {
		parts[i] = fmt.Sprintf("[Document %d: %s]\n%s", i+1, source.DocumentName, source.ChunkContent)
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// generate asks the model for an answer. Failure yields the fixed
// fallback message.
func (a *Agent) generate(ctx context.Context, query, documentContext string, history []HistoryMessage) string {
	prompt := fmt.Sprintf("CONTEXT FROM DOCUMENTS:\n%s\n\nUSER QUESTION:\n%s", documentContext, query)

	response, err := a.generator.Generate(ctx, GenerateRequest{
		System:  systemPrompt,
		History: history,
		Prompt:  prompt,
	})
	if err != nil {
		a.logger.Error("generation failed", "error", err)
		return fallbackResponseMessage
	}

	return response
}
