package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/koopa0/docuchat/internal/session"
)

// ErrFolderMismatch is returned when a conversation's folder scope does
// not match the configured documents root.
var ErrFolderMismatch = errors.New("conversation folder does not match the configured documents root")

// SessionStore is the subset of the session store the chat service uses.
type SessionStore interface {
	Get(ctx context.Context, id uuid.UUID) (session.Conversation, error)
	Create(ctx context.Context, title, folderPath *string) (session.Conversation, error)
	Messages(ctx context.Context, conversationID uuid.UUID) ([]session.Message, error)
	AppendMessage(ctx context.Context, conversationID uuid.UUID, role, content string, sources []session.SourceRef, tokenCount *int) (session.Message, error)
	Rename(ctx context.Context, id uuid.UUID, title string) error
	SetFolder(ctx context.Context, id uuid.UUID, folderPath string) error
}

// Responder runs one retrieval-augmented agent turn.
type Responder interface {
	Chat(ctx context.Context, query string, history []HistoryMessage, folderPath *string) *Reply
}

// Result is the outcome of one chat turn.
type Result struct {
	ConversationID uuid.UUID
	Message        string
	Sources        []Source
}

// Service orchestrates chat turns: conversation lookup or creation,
// history loading, the agent run, and message persistence.
type Service struct {
	agent         Responder
	sessions      SessionStore
	documentsRoot string
	logger        *slog.Logger
}

// NewService creates a Service scoped to documentsRoot.
func NewService(agent Responder, sessions SessionStore, documentsRoot string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		agent:         agent,
		sessions:      sessions,
		documentsRoot: filepath.Clean(documentsRoot),
		logger:        logger,
	}
}

// Chat runs one turn. A nil conversationID starts a new conversation
// scoped to the documents root; otherwise the turn continues the given
// conversation, whose folder scope must still match the root. The user
// message and the assistant reply are both persisted, and the first
// turn titles the conversation from the user message.
func (s *Service) Chat(ctx context.Context, message string, conversationID *uuid.UUID, folderPath *string) (*Result, error) {
	if folderPath != nil && filepath.Clean(*folderPath) != s.documentsRoot {
		return nil, fmt.Errorf("%w: %q", ErrFolderMismatch, *folderPath)
	}

	var conv session.Conversation
	var err error
	if conversationID != nil {
		conv, err = s.sessions.Get(ctx, *conversationID)
		if err != nil {
			return nil, err
		}
		if conv.FolderPath != nil && filepath.Clean(*conv.FolderPath) != s.documentsRoot {
			return nil, fmt.Errorf("%w: %q", ErrFolderMismatch, *conv.FolderPath)
		}
		// Conversations created before folder scoping have no scope;
		// pin them to the documents root on first use.
		if conv.FolderPath == nil {
			root := s.documentsRoot
			if err := s.sessions.SetFolder(ctx, conv.ID, root); err != nil {
				return nil, fmt.Errorf("failed to set conversation folder: %w", err)
			}
			conv.FolderPath = &root
		}
	} else {
		root := s.documentsRoot
		conv, err = s.sessions.Create(ctx, nil, &root)
		if err != nil {
			return nil, err
		}
	}

	var history []HistoryMessage
	if conversationID != nil {
		msgs, err := s.sessions.Messages(ctx, conv.ID)
		if err != nil {
			return nil, err
		}
		history = make([]HistoryMessage, len(msgs))
		for i, msg := range msgs {
			history[i] = HistoryMessage{Role: msg.Role, Content: msg.Content}
		}
	}

	root := s.documentsRoot
	reply := s.agent.Chat(ctx, message, history, &root)

	if _, err := s.sessions.AppendMessage(ctx, conv.ID, session.RoleUser, message, nil, nil); err != nil {
		return nil, fmt.Errorf("failed to persist user message: %w", err)
	}

	sourceRefs := make([]session.SourceRef, len(reply.Sources))
	for i, src := range reply.Sources {
		sourceRefs[i] = session.SourceRef{
			DocumentID:   src.DocumentID,
			ChunkID:      src.ChunkID,
			DocumentName: src.DocumentName,
			Similarity:   src.RelevanceScore,
		}
	}
	if _, err := s.sessions.AppendMessage(ctx, conv.ID, session.RoleAssistant, reply.Message, sourceRefs, nil); err != nil {
		return nil, fmt.Errorf("failed to persist assistant message: %w", err)
	}

	// Title the conversation from its first message.
	if conv.Title == "" && len(history) == 0 {
		title := session.GenerateTitle(message)
		if err := s.sessions.Rename(ctx, conv.ID, title); err != nil {
			s.logger.Warn("failed to set conversation title", "conversation_id", conv.ID, "error", err)
		}
	}

	return &Result{
		ConversationID: conv.ID,
		Message:        reply.Message,
		Sources:        reply.Sources,
	}, nil
}
