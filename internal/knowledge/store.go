package knowledge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Querier defines the interface for database operations on documents and
// chunks. Following Go best practices: interfaces are defined by the
// consumer, not the provider.
//
// This interface allows Store to depend on abstraction rather than concrete
// implementation, improving testability and flexibility.
type Querier interface {
	CreateDocument(ctx context.Context, arg CreateDocumentParams) (Document, error)
	GetDocumentByName(ctx context.Context, fileName string) (Document, error)
	ListDocuments(ctx context.Context, folderPath *string) ([]Document, error)
	UpdateDocumentContent(ctx context.Context, id uuid.UUID, markdown string) error
	UpdateDocumentStatus(ctx context.Context, arg UpdateDocumentStatusParams) error
	DeleteDocumentByName(ctx context.Context, fileName string) (int64, error)
	InsertChunk(ctx context.Context, arg InsertChunkParams) error
	CountChunks(ctx context.Context, documentID uuid.UUID) (int64, error)
	CountDocuments(ctx context.Context) (int64, error)
	SearchChunks(ctx context.Context, arg SearchChunksParams) ([]SearchChunksRow, error)
}

// Store manages documents and embedded chunks in PostgreSQL + pgvector.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	querier Querier
	pool    *pgxpool.Pool // for transaction support, nil in tests
	logger  *slog.Logger
}

// New creates a new Store instance.
//
// Example (production):
//
//	store := knowledge.New(knowledge.NewQueries(dbPool), dbPool, logger)
//
// Example (testing with mock):
//
//	store := knowledge.New(mockQuerier, nil, logger)
func New(querier Querier, pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		querier: querier,
		pool:    pool,
		logger:  logger,
	}
}

// CreateDocument inserts a new document row in processing state.
func (s *Store) CreateDocument(ctx context.Context, arg CreateDocumentParams) (Document, error) {
	if arg.Status == "" {
		arg.Status = StatusProcessing
	}

	doc, err := s.querier.CreateDocument(ctx, arg)
	if err != nil {
		return Document{}, fmt.Errorf("failed to create document %q: %w", arg.FileName, err)
	}

	s.logger.Debug("created document", "id", doc.ID, "file_name", doc.FileName)
	return doc, nil
}

// DocumentByName returns the document with the given file name, or
// ErrDocumentNotFound.
func (s *Store) DocumentByName(ctx context.Context, fileName string) (Document, error) {
	return s.querier.GetDocumentByName(ctx, fileName)
}

// ListDocuments returns all documents, optionally restricted to a folder.
func (s *Store) ListDocuments(ctx context.Context, folderPath *string) ([]Document, error) {
	docs, err := s.querier.ListDocuments(ctx, folderPath)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// SetContent stores the converted Markdown for a document.
func (s *Store) SetContent(ctx context.Context, id uuid.UUID, markdown string) error {
	if err := s.querier.UpdateDocumentContent(ctx, id, markdown); err != nil {
		return fmt.Errorf("failed to update content for document %s: %w", id, err)
	}
	return nil
}

// MarkCompleted transitions a document to completed and clears any error.
func (s *Store) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	err := s.querier.UpdateDocumentStatus(ctx, UpdateDocumentStatusParams{
		ID:     id,
		Status: StatusCompleted,
	})
	if err != nil {
		return fmt.Errorf("failed to mark document %s completed: %w", id, err)
	}

	s.logger.Debug("document completed", "id", id)
	return nil
}

// MarkFailed transitions a document to failed with an error message.
func (s *Store) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	err := s.querier.UpdateDocumentStatus(ctx, UpdateDocumentStatusParams{
		ID:           id,
		Status:       StatusFailed,
		ErrorMessage: &message,
	})
	if err != nil {
		return fmt.Errorf("failed to mark document %s failed: %w", id, err)
	}

	s.logger.Debug("document failed", "id", id, "error_message", message)
	return nil
}

// Replace deletes any existing document with the given file name so a
// fresh ingestion can take its place. Chunks are removed by cascade.
// Returns true when a previous document was deleted.
func (s *Store) Replace(ctx context.Context, fileName string) (bool, error) {
	deleted, err := s.querier.DeleteDocumentByName(ctx, fileName)
	if err != nil {
		return false, fmt.Errorf("failed to delete document %q: %w", fileName, err)
	}

	if deleted > 0 {
		s.logger.Debug("replaced existing document", "file_name", fileName)
	}
	return deleted > 0, nil
}

// AddChunks inserts a document's chunks in index order.
//
// All inserts run in one transaction so a document never ends up with a
// partial chunk set. If pool is nil (testing with mock), inserts run
// without a transaction.
func (s *Store) AddChunks(ctx context.Context, documentID uuid.UUID, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	if s.pool == nil {
		return s.addChunksNonTransactional(ctx, s.querier, documentID, chunks)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil {
			s.logger.Debug("transaction rollback (may be already committed)", "error", err)
		}
	}()

	if err := s.addChunksNonTransactional(ctx, NewQueries(tx), documentID, chunks); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Debug("added chunks", "document_id", documentID, "count", len(chunks))
	return nil
}

func (s *Store) addChunksNonTransactional(ctx context.Context, querier Querier, documentID uuid.UUID, chunks []Chunk) error {
	for _, chunk := range chunks {
		var embedding *pgvector.Vector
		if chunk.Embedding != nil {
			vec := pgvector.NewVector(chunk.Embedding)
			embedding = &vec
		}

		err := querier.InsertChunk(ctx, InsertChunkParams{
			DocumentID: documentID,
			ChunkIndex: chunk.Index,
			Content:    chunk.Content,
			TokenCount: chunk.TokenCount,
			Embedding:  embedding,
		})
		if err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", chunk.Index, err)
		}
	}
	return nil
}

// ChunkCount returns the number of chunks stored for a document.
func (s *Store) ChunkCount(ctx context.Context, documentID uuid.UUID) (int64, error) {
	count, err := s.querier.CountChunks(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks for document %s: %w", documentID, err)
	}
	return count, nil
}

// DocumentCount returns the total number of documents.
func (s *Store) DocumentCount(ctx context.Context) (int64, error) {
	count, err := s.querier.CountDocuments(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}
