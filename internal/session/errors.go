package session

import "errors"

// Sentinel errors for the session store.
var (
	// ErrConversationNotFound is returned when a conversation does not
	// exist or has been soft-deleted.
	ErrConversationNotFound = errors.New("conversation not found")
)
