package ingest

// Event types emitted during folder ingestion.
const (
	EventProgress = "progress"
	EventError    = "error"
	EventComplete = "complete"
)

// Event reports ingestion progress to the caller. Total is the number
// of supported files found; Processed counts files ingested
// successfully so far. CurrentFile is set on progress events, File and
// Error on error events.
type Event struct {
	Type        string `json:"type"`
	Total       int    `json:"total"`
	Processed   int    `json:"processed"`
	CurrentFile string `json:"current_file,omitempty"`
	File        string `json:"file,omitempty"`
	Error       string `json:"error,omitempty"`
}
