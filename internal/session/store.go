package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier defines the interface for database operations on conversations
// and messages. Following Go best practices: interfaces are defined by the
// consumer, not the provider.
type Querier interface {
	CreateConversation(ctx context.Context, arg CreateConversationParams) (Conversation, error)
	GetConversation(ctx context.Context, id uuid.UUID) (Conversation, error)
	ListConversations(ctx context.Context, limit int32) ([]Conversation, error)
	LockConversation(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	MaxSequence(ctx context.Context, conversationID uuid.UUID) (int32, error)
	InsertMessage(ctx context.Context, arg InsertMessageParams) (Message, error)
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]Message, error)
	CountMessages(ctx context.Context, conversationID uuid.UUID) (int64, error)
	SetConversationFolder(ctx context.Context, id uuid.UUID, folderPath string) error
	TouchConversation(ctx context.Context, id uuid.UUID) error
	UpdateConversationTitle(ctx context.Context, id uuid.UUID, title string) error
	DeactivateConversation(ctx context.Context, id uuid.UUID) error
}

// Store manages conversation persistence with a PostgreSQL backend.
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
//	store := session.New(session.NewQueries(dbPool), dbPool, logger)
//
// Example (testing with mock):
//
//	store := session.New(mockQuerier, nil, logger)
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

// Create starts a new conversation. Title and folderPath may be nil;
// the folder scope is fixed for the conversation's lifetime.
func (s *Store) Create(ctx context.Context, title, folderPath *string) (Conversation, error) {
	conv, err := s.querier.CreateConversation(ctx, CreateConversationParams{
		Title:      title,
		FolderPath: folderPath,
	})
	if err != nil {
		return Conversation{}, fmt.Errorf("failed to create conversation: %w", err)
	}

	s.logger.Debug("created conversation", "id", conv.ID, "title", conv.Title)
	return conv, nil
}

// Get returns an active conversation, or ErrConversationNotFound.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Conversation, error) {
	return s.querier.GetConversation(ctx, id)
}

// List returns active conversations, most recently updated first.
func (s *Store) List(ctx context.Context, limit int32) ([]Conversation, error) {
	if limit <= 0 {
		limit = 50
	}

	convs, err := s.querier.ListConversations(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return convs, nil
}

// Messages returns a conversation's messages in sequence order.
func (s *Store) Messages(ctx context.Context, conversationID uuid.UUID) ([]Message, error) {
	msgs, err := s.querier.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages for conversation %s: %w", conversationID, err)
	}
	return msgs, nil
}

// AppendMessage adds a message to a conversation with the next sequence
// number.
//
// The lock, sequence read, insert, and updated_at bump all run inside one
// transaction: the conversation row is locked first so concurrent appends
// to the same conversation serialize and sequences stay gapless. If pool
// is nil (testing with mock), the same steps run without a transaction.
func (s *Store) AppendMessage(ctx context.Context, conversationID uuid.UUID, role, content string, sources []SourceRef, tokenCount *int) (Message, error) {
	if s.pool == nil {
		return s.appendMessageWith(ctx, s.querier, conversationID, role, content, sources, tokenCount)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Message{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil {
			s.logger.Debug("transaction rollback (may be already committed)", "error", err)
		}
	}()

	msg, err := s.appendMessageWith(ctx, NewQueries(tx), conversationID, role, content, sources, tokenCount)
	if err != nil {
		return Message{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Message{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Debug("appended message",
		"conversation_id", conversationID, "role", role, "sequence", msg.Sequence)
	return msg, nil
}

func (s *Store) appendMessageWith(ctx context.Context, querier Querier, conversationID uuid.UUID, role, content string, sources []SourceRef, tokenCount *int) (Message, error) {
	if _, err := querier.LockConversation(ctx, conversationID); err != nil {
		return Message{}, fmt.Errorf("failed to lock conversation: %w", err)
	}

	maxSeq, err := querier.MaxSequence(ctx, conversationID)
	if err != nil {
		return Message{}, fmt.Errorf("failed to read max sequence: %w", err)
	}

	msg, err := querier.InsertMessage(ctx, InsertMessageParams{
		ConversationID: conversationID,
		Sequence:       maxSeq + 1,
		Role:           role,
		Content:        content,
		Sources:        sources,
		TokenCount:     tokenCount,
	})
	if err != nil {
		return Message{}, fmt.Errorf("failed to insert message: %w", err)
	}

	if err := querier.TouchConversation(ctx, conversationID); err != nil {
		return Message{}, fmt.Errorf("failed to update conversation timestamp: %w", err)
	}

	return msg, nil
}

// MessageCount returns the number of messages in a conversation.
func (s *Store) MessageCount(ctx context.Context, conversationID uuid.UUID) (int64, error) {
	count, err := s.querier.CountMessages(ctx, conversationID)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages for conversation %s: %w", conversationID, err)
	}
	return count, nil
}

// SetFolder backfills a conversation's folder scope. Conversations that
// already have a scope are left unchanged.
func (s *Store) SetFolder(ctx context.Context, id uuid.UUID, folderPath string) error {
	if err := s.querier.SetConversationFolder(ctx, id, folderPath); err != nil {
		return fmt.Errorf("failed to set folder for conversation %s: %w", id, err)
	}

	s.logger.Debug("set conversation folder", "id", id, "folder_path", folderPath)
	return nil
}

// Rename sets a conversation's title.
func (s *Store) Rename(ctx context.Context, id uuid.UUID, title string) error {
	if err := s.querier.UpdateConversationTitle(ctx, id, title); err != nil {
		return fmt.Errorf("failed to rename conversation %s: %w", id, err)
	}

	s.logger.Debug("renamed conversation", "id", id, "title", title)
	return nil
}

// SoftDelete marks a conversation inactive. Messages are retained; the
// conversation disappears from listings and lookups.
func (s *Store) SoftDelete(ctx context.Context, id uuid.UUID) error {
	if err := s.querier.DeactivateConversation(ctx, id); err != nil {
		return fmt.Errorf("failed to delete conversation %s: %w", id, err)
	}

	s.logger.Debug("soft-deleted conversation", "id", id)
	return nil
}
