package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/koopa0/docuchat/internal/knowledge"
)

type mockQueryEmbedder struct {
	embedFn func(ctx context.Context, text string) ([]float32, error)
}

func (m *mockQueryEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return m.embedFn(ctx, text)
}

type mockSearcher struct {
	searchFn func(ctx context.Context, embedding []float32, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
}

func (m *mockSearcher) Search(ctx context.Context, embedding []float32, opts ...knowledge.SearchOption) ([]knowledge.Result, error) {
	return m.searchFn(ctx, embedding, opts...)
}

type mockGenerator struct {
	generateFn func(ctx context.Context, req GenerateRequest) (string, error)
	lastReq    GenerateRequest
}

func (m *mockGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	m.lastReq = req
	return m.generateFn(ctx, req)
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func workingEmbedder() *mockQueryEmbedder {
	return &mockQueryEmbedder{
		embedFn: func(_ context.Context, _ string) ([]float32, error) {
			return []float32{0.1, 0.2}, nil
		},
	}
}

func TestChatHappyPath(t *testing.T) {
	chunkID, docID := uuid.New(), uuid.New()
	searcher := &mockSearcher{
		searchFn: func(_ context.Context, _ []float32, _ ...knowledge.SearchOption) ([]knowledge.Result, error) {
			return []knowledge.Result{
				{ChunkID: chunkID, DocumentID: docID, DocumentName: "guide.md", Content: "Go is a language.", Similarity: 0.9},
				{ChunkID: uuid.New(), DocumentID: docID, DocumentName: "guide.md", Content: "It compiles fast.", Similarity: 0.8},
			}, nil
		},
	}
	generator := &mockGenerator{
		generateFn: func(_ context.Context, _ GenerateRequest) (string, error) {
			return "Go is a compiled language.", nil
		},
	}
	agent := NewAgent(workingEmbedder(), searcher, generator, 5, testLogger())

	reply := agent.Chat(context.Background(), "What is Go?", nil, nil)

	if reply.Message != "Go is a compiled language." {
		t.Errorf("message = %q", reply.Message)
	}
	if len(reply.Sources) != 2 {
		t.Fatalf("got %d sources, want 2", len(reply.Sources))
	}
	if reply.Sources[0].ChunkID != chunkID || reply.Sources[0].RelevanceScore != 0.9 {
		t.Errorf("unexpected first source: %+v", reply.Sources[0])
	}

	prompt := generator.lastReq.Prompt
	if !strings.Contains(prompt, "[Document 1: guide.md]\nGo is a language.") {
		t.Errorf("prompt missing first document block: %q", prompt)
	}
	if !strings.Contains(prompt, "\n\n---\n\n[Document 2: guide.md]\nIt compiles fast.") {
		t.Errorf("prompt missing document separator: %q", prompt)
	}
	if !strings.HasPrefix(prompt, "CONTEXT FROM DOCUMENTS:\n") {
		t.Errorf("prompt missing context header: %q", prompt)
	}
	if !strings.HasSuffix(prompt, "USER QUESTION:\nWhat is Go?") {
		t.Errorf("prompt missing user question: %q", prompt)
	}
	if generator.lastReq.System != systemPrompt {
		t.Errorf("system prompt not passed through")
	}
}

func TestChatEmbeddingFailureDegradesToNoSources(t *testing.T) {
	embedder := &mockQueryEmbedder{
		embedFn: func(_ context.Context, _ string) ([]float32, error) {
			return nil, errors.New("embedding service down")
		},
	}
	searcher := &mockSearcher{
		searchFn: func(_ context.Context, _ []float32, _ ...knowledge.SearchOption) ([]knowledge.Result, error) {
			t.Fatal("Search should not be called when embedding fails")
			return nil, nil
		},
	}
	generator := &mockGenerator{
		generateFn: func(_ context.Context, _ GenerateRequest) (string, error) {
			return "General answer.", nil
		},
	}
	agent := NewAgent(embedder, searcher, generator, 5, testLogger())

	reply := agent.Chat(context.Background(), "What is Go?", nil, nil)

	if len(reply.Sources) != 0 {
		t.Errorf("got %d sources, want 0", len(reply.Sources))
	}
	if reply.Message != "General answer." {
		t.Errorf("message = %q", reply.Message)
	}
	if !strings.Contains(generator.lastReq.Prompt, noSourcesContext) {
		t.Errorf("prompt should carry the no-sources context: %q", generator.lastReq.Prompt)
	}
}

func TestChatSearchFailureDegradesToNoSources(t *testing.T) {
	searcher := &mockSearcher{
		searchFn: func(_ context.Context, _ []float32, _ ...knowledge.SearchOption) ([]knowledge.Result, error) {
			return nil, errors.New("database unavailable")
		},
	}
	generator := &mockGenerator{
		generateFn: func(_ context.Context, _ GenerateRequest) (string, error) {
			return "Answer without documents.", nil
		},
	}
	agent := NewAgent(workingEmbedder(), searcher, generator, 5, testLogger())

	reply := agent.Chat(context.Background(), "anything", nil, nil)

	if len(reply.Sources) != 0 {
		t.Errorf("got %d sources, want 0", len(reply.Sources))
	}
	if reply.Message != "Answer without documents." {
		t.Errorf("message = %q", reply.Message)
	}
}

func TestChatGenerationFailureUsesFallback(t *testing.T) {
	searcher := &mockSearcher{
		searchFn: func(_ context.Context, _ []float32, _ ...knowledge.SearchOption) ([]knowledge.Result, error) {
			return []knowledge.Result{
				{ChunkID: uuid.New(), DocumentID: uuid.New(), DocumentName: "a.md", Content: "text", Similarity: 0.7},
			}, nil
		},
	}
	generator := &mockGenerator{
		generateFn: func(_ context.Context, _ GenerateRequest) (string, error) {
			return "", errors.New("model timeout")
		},
	}
	agent := NewAgent(workingEmbedder(), searcher, generator, 5, testLogger())

	reply := agent.Chat(context.Background(), "question", nil, nil)

	if reply.Message != fallbackResponseMessage {
		t.Errorf("message = %q, want fallback", reply.Message)
	}
	// Sources survive even when generation fails.
	if len(reply.Sources) != 1 {
		t.Errorf("got %d sources, want 1", len(reply.Sources))
	}
}

func TestChatPassesHistoryToGenerator(t *testing.T) {
	searcher := &mockSearcher{
		searchFn: func(_ context.Context, _ []float32, _ ...knowledge.SearchOption) ([]knowledge.Result, error) {
			return nil, nil
		},
	}
	generator := &mockGenerator{
		generateFn: func(_ context.Context, _ GenerateRequest) (string, error) {
			return "ok", nil
		},
	}
	agent := NewAgent(workingEmbedder(), searcher, generator, 5, testLogger())

	history := []HistoryMessage{
		{Role: "user", Content: "first question"},
		{Role: "assistant", Content: "first answer"},
	}
	agent.Chat(context.Background(), "follow-up", history, nil)

	if len(generator.lastReq.History) != 2 {
		t.Fatalf("got %d history messages, want 2", len(generator.lastReq.History))
	}
	if generator.lastReq.History[1].Content != "first answer" {
		t.Errorf("history not passed through: %+v", generator.lastReq.History)
	}
}
