// Package session persists chat conversations and their messages.
package session

import (
	"time"

	"github.com/google/uuid"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// TitleMaxLength bounds auto-generated conversation titles.
const TitleMaxLength = 50

// Conversation is one chat thread. FolderPath scopes retrieval for the
// whole conversation and never changes after creation; nil means search
// all folders. Soft-deleted conversations have IsActive false.
type Conversation struct {
	ID         uuid.UUID
	Title      string
	FolderPath *string
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Message is one turn entry in a conversation. Sequence starts at 1 and
// is gapless within a conversation.
type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	Sequence       int
	Role           string
	Content        string
	Sources        []SourceRef
	TokenCount     *int
	CreatedAt      time.Time
}

// SourceRef records one retrieved chunk an assistant message was
// grounded on.
type SourceRef struct {
	DocumentID   uuid.UUID `json:"document_id"`
	ChunkID      uuid.UUID `json:"chunk_id"`
	DocumentName string    `json:"document_name"`
	Similarity   float64   `json:"similarity"`
}

// GenerateTitle derives a conversation title from its first user message,
// truncated to TitleMaxLength characters with an ellipsis.
func GenerateTitle(firstMessage string) string {
	runes := []rune(firstMessage)
	if len(runes) <= TitleMaxLength {
		return firstMessage
	}
	return string(runes[:TitleMaxLength]) + "..."
}
