package knowledge

import "errors"

// Sentinel errors for the knowledge store.
var (
	// ErrDocumentNotFound is returned when a document lookup matches nothing.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrNoChunks is returned when chunking a document produced no chunks.
	ErrNoChunks = errors.New("document produced no chunks")
)
