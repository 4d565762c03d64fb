package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// DBTX is the subset of pgx operations the queries need.
// Both *pgxpool.Pool and pgx.Tx satisfy it, so the same queries run
// inside and outside transactions.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries runs the document and chunk SQL against a DBTX.
type Queries struct {
	db DBTX
}

// NewQueries creates a Queries bound to db.
func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

// CreateDocumentParams holds the fields for a new document row.
type CreateDocumentParams struct {
	FileName   string
	FilePath   string
	FileType   string
	FileSize   int64
	FileHash   string
	FolderPath string
	Status     string
	Metadata   map[string]string
}

const createDocumentSQL = `
INSERT INTO rag_documents (file_name, file_path, file_type, file_size, file_hash, folder_path, status, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, file_name, file_path, file_type, file_size, file_hash, folder_path,
          markdown_content, status, error_message, metadata, created_at, updated_at`

// CreateDocument inserts a document row and returns it.
func (q *Queries) CreateDocument(ctx context.Context, arg CreateDocumentParams) (Document, error) {
	metadataJSON, err := json.Marshal(arg.Metadata)
	if err != nil {
		return Document{}, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if arg.Metadata == nil {
		metadataJSON = []byte("{}")
	}

	row := q.db.QueryRow(ctx, createDocumentSQL,
		arg.FileName, arg.FilePath, arg.FileType, arg.FileSize,
		arg.FileHash, arg.FolderPath, arg.Status, metadataJSON)
	return scanDocument(row)
}

const getDocumentByNameSQL = `
SELECT id, file_name, file_path, file_type, file_size, file_hash, folder_path,
       markdown_content, status, error_message, metadata, created_at, updated_at
FROM rag_documents
WHERE file_name = $1`

// GetDocumentByName returns the document with the given file name.
func (q *Queries) GetDocumentByName(ctx context.Context, fileName string) (Document, error) {
	row := q.db.QueryRow(ctx, getDocumentByNameSQL, fileName)
	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrDocumentNotFound
	}
	return doc, err
}

const listDocumentsSQL = `
SELECT id, file_name, file_path, file_type, file_size, file_hash, folder_path,
       markdown_content, status, error_message, metadata, created_at, updated_at
FROM rag_documents
WHERE $1::text IS NULL OR folder_path = $1
ORDER BY file_name`

// ListDocuments returns documents ordered by file name. A nil folderPath
// lists every document; otherwise only documents in that folder.
func (q *Queries) ListDocuments(ctx context.Context, folderPath *string) ([]Document, error) {
	rows, err := q.db.Query(ctx, listDocumentsSQL, folderPath)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

const updateDocumentContentSQL = `
UPDATE rag_documents
SET markdown_content = $2, updated_at = now()
WHERE id = $1`

// UpdateDocumentContent stores the converted Markdown for a document.
func (q *Queries) UpdateDocumentContent(ctx context.Context, id uuid.UUID, markdown string) error {
	tag, err := q.db.Exec(ctx, updateDocumentContentSQL, id, markdown)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// UpdateDocumentStatusParams sets a document's terminal status.
// ErrorMessage is nil except for failed documents.
type UpdateDocumentStatusParams struct {
	ID           uuid.UUID
	Status       string
	ErrorMessage *string
}

const updateDocumentStatusSQL = `
UPDATE rag_documents
SET status = $2, error_message = $3, updated_at = now()
WHERE id = $1`

// UpdateDocumentStatus updates a document's processing status.
func (q *Queries) UpdateDocumentStatus(ctx context.Context, arg UpdateDocumentStatusParams) error {
	tag, err := q.db.Exec(ctx, updateDocumentStatusSQL, arg.ID, arg.Status, arg.ErrorMessage)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

const deleteDocumentByNameSQL = `DELETE FROM rag_documents WHERE file_name = $1`

// DeleteDocumentByName removes a document and, via cascade, its chunks.
// Returns the number of documents deleted (0 or 1).
func (q *Queries) DeleteDocumentByName(ctx context.Context, fileName string) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteDocumentByNameSQL, fileName)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// InsertChunkParams holds the fields for a new chunk row.
// Embedding is nil when embedding generation failed for this chunk.
type InsertChunkParams struct {
	DocumentID uuid.UUID
	ChunkIndex int
	Content    string
	TokenCount int
	Embedding  *pgvector.Vector
}

const insertChunkSQL = `
INSERT INTO rag_chunks (document_id, chunk_index, content, token_count, embedding, metadata)
VALUES ($1, $2, $3, $4, $5, '{"chunk_type": "markdown"}'::jsonb)`

// InsertChunk inserts one chunk row.
func (q *Queries) InsertChunk(ctx context.Context, arg InsertChunkParams) error {
	_, err := q.db.Exec(ctx, insertChunkSQL,
		arg.DocumentID, arg.ChunkIndex, arg.Content, arg.TokenCount, arg.Embedding)
	return err
}

const countChunksSQL = `SELECT count(*) FROM rag_chunks WHERE document_id = $1`

// CountChunks returns the number of chunks stored for a document.
func (q *Queries) CountChunks(ctx context.Context, documentID uuid.UUID) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countChunksSQL, documentID).Scan(&count)
	return count, err
}

const countDocumentsSQL = `SELECT count(*) FROM rag_documents`

// CountDocuments returns the total number of documents.
func (q *Queries) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countDocumentsSQL).Scan(&count)
	return count, err
}

// SearchChunksParams drives one vector similarity query.
// FolderPath nil searches all folders. MinSimilarity filters on cosine
// similarity in [0, 1].
type SearchChunksParams struct {
	QueryEmbedding *pgvector.Vector
	FolderPath     *string
	MinSimilarity  float64
	ResultLimit    int32
}

// SearchChunksRow is one row of a vector search.
type SearchChunksRow struct {
	ChunkID      uuid.UUID
	DocumentID   uuid.UUID
	DocumentName string
	Content      string
	Similarity   float64
}

const searchChunksSQL = `
SELECT c.id, c.document_id, d.file_name, c.content,
       1 - (c.embedding <=> $1) AS similarity
FROM rag_chunks c
JOIN rag_documents d ON d.id = c.document_id
WHERE d.status = 'completed'
  AND c.embedding IS NOT NULL
  AND ($2::text IS NULL OR d.folder_path = $2)
  AND 1 - (c.embedding <=> $1) >= $3
ORDER BY c.embedding <=> $1
LIMIT $4`

// SearchChunks runs cosine similarity search over embedded chunks of
// completed documents, nearest first.
func (q *Queries) SearchChunks(ctx context.Context, arg SearchChunksParams) ([]SearchChunksRow, error) {
	rows, err := q.db.Query(ctx, searchChunksSQL,
		arg.QueryEmbedding, arg.FolderPath, arg.MinSimilarity, arg.ResultLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchChunksRow
	for rows.Next() {
		var r SearchChunksRow
		if err := rows.Scan(&r.ChunkID, &r.DocumentID, &r.DocumentName, &r.Content, &r.Similarity); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// scanDocument scans a full rag_documents row.
func scanDocument(row pgx.Row) (Document, error) {
	var (
		doc          Document
		markdown     *string
		errorMessage *string
		metadataJSON []byte
	)
	err := row.Scan(
		&doc.ID, &doc.FileName, &doc.FilePath, &doc.FileType, &doc.FileSize,
		&doc.FileHash, &doc.FolderPath, &markdown, &doc.Status, &errorMessage,
		&metadataJSON, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return Document{}, err
	}

	if markdown != nil {
		doc.MarkdownContent = *markdown
	}
	if errorMessage != nil {
		doc.ErrorMessage = *errorMessage
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &doc.Metadata); err != nil {
			return Document{}, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return doc, nil
}
