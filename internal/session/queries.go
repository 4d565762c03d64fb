package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgx operations the queries need.
// Both *pgxpool.Pool and pgx.Tx satisfy it.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries runs the conversation and message SQL against a DBTX.
type Queries struct {
	db DBTX
}

// NewQueries creates a Queries bound to db.
func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

// CreateConversationParams holds the fields for a new conversation.
type CreateConversationParams struct {
	Title      *string
	FolderPath *string
}

const createConversationSQL = `
INSERT INTO rag_conversations (title, folder_path)
VALUES ($1, $2)
RETURNING id, title, folder_path, is_active, created_at, updated_at`

// CreateConversation inserts a conversation row and returns it.
func (q *Queries) CreateConversation(ctx context.Context, arg CreateConversationParams) (Conversation, error) {
	row := q.db.QueryRow(ctx, createConversationSQL, arg.Title, arg.FolderPath)
	return scanConversation(row)
}

const getConversationSQL = `
SELECT id, title, folder_path, is_active, created_at, updated_at
FROM rag_conversations
WHERE id = $1 AND is_active = TRUE`

// GetConversation returns an active conversation by ID.
func (q *Queries) GetConversation(ctx context.Context, id uuid.UUID) (Conversation, error) {
	row := q.db.QueryRow(ctx, getConversationSQL, id)
	conv, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

const listConversationsSQL = `
SELECT id, title, folder_path, is_active, created_at, updated_at
FROM rag_conversations
WHERE is_active = TRUE
ORDER BY updated_at DESC
LIMIT $1`

// ListConversations returns active conversations, most recently
// updated first.
func (q *Queries) ListConversations(ctx context.Context, limit int32) ([]Conversation, error) {
	rows, err := q.db.Query(ctx, listConversationsSQL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}

const lockConversationSQL = `
SELECT id FROM rag_conversations
WHERE id = $1 AND is_active = TRUE
FOR UPDATE`

// LockConversation takes a row lock on an active conversation so that
// sequence assignment is serialized per conversation. Must run inside a
// transaction.
func (q *Queries) LockConversation(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var locked uuid.UUID
	err := q.db.QueryRow(ctx, lockConversationSQL, id).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrConversationNotFound
	}
	return locked, err
}

const maxSequenceSQL = `
SELECT COALESCE(MAX(sequence), 0) FROM rag_messages WHERE conversation_id = $1`

// MaxSequence returns the highest message sequence in a conversation,
// or 0 when it has no messages.
func (q *Queries) MaxSequence(ctx context.Context, conversationID uuid.UUID) (int32, error) {
	var max int32
	err := q.db.QueryRow(ctx, maxSequenceSQL, conversationID).Scan(&max)
	return max, err
}

// InsertMessageParams holds the fields for a new message row.
type InsertMessageParams struct {
	ConversationID uuid.UUID
	Sequence       int32
	Role           string
	Content        string
	Sources        []SourceRef
	TokenCount     *int
}

const insertMessageSQL = `
INSERT INTO rag_messages (conversation_id, sequence, role, content, sources, token_count)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, conversation_id, sequence, role, content, sources, token_count, created_at`

// InsertMessage inserts a message row and returns it.
func (q *Queries) InsertMessage(ctx context.Context, arg InsertMessageParams) (Message, error) {
	sources := arg.Sources
	if sources == nil {
		sources = []SourceRef{}
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return Message{}, fmt.Errorf("failed to marshal sources: %w", err)
	}

	row := q.db.QueryRow(ctx, insertMessageSQL,
		arg.ConversationID, arg.Sequence, arg.Role, arg.Content, sourcesJSON, arg.TokenCount)
	return scanMessage(row)
}

const listMessagesSQL = `
SELECT id, conversation_id, sequence, role, content, sources, token_count, created_at
FROM rag_messages
WHERE conversation_id = $1
ORDER BY sequence`

// ListMessages returns a conversation's messages in sequence order.
func (q *Queries) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]Message, error) {
	rows, err := q.db.Query(ctx, listMessagesSQL, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

const countMessagesSQL = `
SELECT count(*) FROM rag_messages WHERE conversation_id = $1`

// CountMessages returns the number of messages in a conversation.
func (q *Queries) CountMessages(ctx context.Context, conversationID uuid.UUID) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countMessagesSQL, conversationID).Scan(&count)
	return count, err
}

const touchConversationSQL = `
UPDATE rag_conversations SET updated_at = now() WHERE id = $1`

// TouchConversation bumps a conversation's updated_at.
func (q *Queries) TouchConversation(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, touchConversationSQL, id)
	return err
}

const setConversationFolderSQL = `
UPDATE rag_conversations
SET folder_path = $2, updated_at = now()
WHERE id = $1 AND folder_path IS NULL AND is_active = TRUE`

// SetConversationFolder backfills a conversation's folder scope. Only
// conversations without a scope are updated; an existing scope is
// immutable.
func (q *Queries) SetConversationFolder(ctx context.Context, id uuid.UUID, folderPath string) error {
	_, err := q.db.Exec(ctx, setConversationFolderSQL, id, folderPath)
	return err
}

const updateConversationTitleSQL = `
UPDATE rag_conversations
SET title = $2, updated_at = now()
WHERE id = $1 AND is_active = TRUE`

// UpdateConversationTitle sets a conversation's title.
func (q *Queries) UpdateConversationTitle(ctx context.Context, id uuid.UUID, title string) error {
	tag, err := q.db.Exec(ctx, updateConversationTitleSQL, id, title)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConversationNotFound
	}
	return nil
}

const deactivateConversationSQL = `
UPDATE rag_conversations
SET is_active = FALSE, updated_at = now()
WHERE id = $1 AND is_active = TRUE`

// DeactivateConversation soft-deletes a conversation. Messages stay in
// place for audit.
func (q *Queries) DeactivateConversation(ctx context.Context, id uuid.UUID) error {
	tag, err := q.db.Exec(ctx, deactivateConversationSQL, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConversationNotFound
	}
	return nil
}

func scanConversation(row pgx.Row) (Conversation, error) {
	var (
		conv  Conversation
		title *string
	)
	err := row.Scan(&conv.ID, &title, &conv.FolderPath, &conv.IsActive, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return Conversation{}, err
	}
	if title != nil {
		conv.Title = *title
	}
	return conv, nil
}

func scanMessage(row pgx.Row) (Message, error) {
	var (
		msg         Message
		sequence    int32
		sourcesJSON []byte
	)
	err := row.Scan(&msg.ID, &msg.ConversationID, &sequence, &msg.Role, &msg.Content,
		&sourcesJSON, &msg.TokenCount, &msg.CreatedAt)
	if err != nil {
		return Message{}, err
	}
	msg.Sequence = int(sequence)

	if len(sourcesJSON) > 0 {
		if err := json.Unmarshal(sourcesJSON, &msg.Sources); err != nil {
			return Message{}, fmt.Errorf("failed to unmarshal sources: %w", err)
		}
	}
	return msg, nil
}
