// Package knowledge manages ingested documents and their embedded chunks,
// backed by PostgreSQL with pgvector for similarity search.
package knowledge

import (
	"time"

	"github.com/google/uuid"
)

// Document processing status values.
// A document moves processing -> completed on success, or processing ->
// failed with ErrorMessage set.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Document is an ingested source file and its converted Markdown content.
// FileName is unique across the store: re-ingesting a file with the same
// name replaces the previous document and its chunks.
type Document struct {
	ID              uuid.UUID
	FileName        string
	FilePath        string
	FileType        string
	FileSize        int64
	FileHash        string
	FolderPath      string
	MarkdownContent string
	Status          string
	ErrorMessage    string
	Metadata        map[string]string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Chunk is one embedded slice of a document's Markdown content.
// Embedding is nil when embedding generation failed for this chunk.
type Chunk struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	Index      int
	Content    string
	TokenCount int
	Embedding  []float32
	CreatedAt  time.Time
}

// Result is one chunk returned by vector search, with the name of the
// document it came from and its cosine similarity to the query.
type Result struct {
	ChunkID      uuid.UUID
	DocumentID   uuid.UUID
	DocumentName string
	Content      string
	Similarity   float64
}
