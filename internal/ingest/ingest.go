// Package ingest runs the document ingestion pipeline: hash, convert,
// chunk, embed, persist. Each file is processed independently so one
// bad document never aborts a folder run.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/koopa0/docuchat/internal/chunk"
	"github.com/koopa0/docuchat/internal/convert"
	"github.com/koopa0/docuchat/internal/knowledge"
)

// ErrFolderNotAllowed is returned when the requested folder is not the
// configured documents root.
var ErrFolderNotAllowed = errors.New("folder is not the configured documents root")

// hashBlockSize is the read size used when hashing files.
const hashBlockSize = 8192

// DocumentStore is the subset of the knowledge store the pipeline uses.
type DocumentStore interface {
	Replace(ctx context.Context, fileName string) (bool, error)
	CreateDocument(ctx context.Context, arg knowledge.CreateDocumentParams) (knowledge.Document, error)
	SetContent(ctx context.Context, id uuid.UUID, markdown string) error
	AddChunks(ctx context.Context, documentID uuid.UUID, chunks []knowledge.Chunk) error
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
}

// Converter turns a source file into Markdown text.
type Converter interface {
	ToMarkdown(path string) (string, error)
}

// Splitter chunks Markdown text.
type Splitter interface {
	Split(text string) []chunk.Chunk
}

// Embedder generates embeddings for chunk texts. The result always has
// one vector per input text.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) [][]float32
}

// Pipeline ingests a folder of documents into the knowledge store.
type Pipeline struct {
	store         DocumentStore
	converter     Converter
	splitter      Splitter
	embedder      Embedder
	documentsRoot string
	logger        *slog.Logger
}

// New creates a Pipeline rooted at documentsRoot.
func New(store DocumentStore, converter Converter, splitter Splitter, embedder Embedder, documentsRoot string, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		store:         store,
		converter:     converter,
		splitter:      splitter,
		embedder:      embedder,
		documentsRoot: filepath.Clean(documentsRoot),
		logger:        logger,
	}
}

// NormalizeFolder cleans folder and verifies it is the configured
// documents root. Ingestion from anywhere else is refused.
func (p *Pipeline) NormalizeFolder(folder string) (string, error) {
	cleaned := filepath.Clean(folder)
	if cleaned != p.documentsRoot {
		return "", fmt.Errorf("%w: %q (root is %q)", ErrFolderNotAllowed, cleaned, p.documentsRoot)
	}
	return cleaned, nil
}

// ListFiles returns the supported files directly inside folder, sorted
// by name. Subdirectories and unsupported extensions are skipped.
func (p *Pipeline) ListFiles(folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("failed to read folder %s: %w", folder, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !convert.IsSupported(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(folder, entry.Name()))
	}
	return files, nil
}

// FileInfo describes one ingestable file in the documents folder.
type FileInfo struct {
	Name       string
	Path       string
	Type       string
	Size       int64
	ModifiedAt time.Time
}

// FolderContents returns the supported files in folder with their
// metadata, sorted by name. The folder must be the documents root.
func (p *Pipeline) FolderContents(folder string) ([]FileInfo, error) {
	normalized, err := p.NormalizeFolder(folder)
	if err != nil {
		return nil, err
	}

	paths, err := p.ListFiles(normalized)
	if err != nil {
		return nil, err
	}

	files := make([]FileInfo, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}
		files = append(files, FileInfo{
			Name:       filepath.Base(path),
			Path:       path,
			Type:       convert.FileType(path),
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		})
	}
	return files, nil
}

// IngestFolder ingests every supported file in folder and streams
// progress events. The returned channel closes after the final
// complete event. Failed files emit an error event and are recorded as
// failed documents; the run continues with the next file.
func (p *Pipeline) IngestFolder(ctx context.Context, folder string) (<-chan Event, error) {
	normalized, err := p.NormalizeFolder(folder)
	if err != nil {
		return nil, err
	}

	files, err := p.ListFiles(normalized)
	if err != nil {
		return nil, err
	}

	events := make(chan Event, 1)
	go func() {
		defer close(events)

		total := len(files)
		processed := 0

		emit := func(e Event) bool {
			select {
			case events <- e:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for _, path := range files {
			if ctx.Err() != nil {
				return
			}

			// Progress announces the file about to be processed, with
			// processed counting the files handled before it. Every file
			// gets a progress event, including ones that go on to fail.
			name := filepath.Base(path)
			if !emit(Event{
				Type:        EventProgress,
				Total:       total,
				Processed:   processed,
				CurrentFile: name,
			}) {
				return
			}

			if err := p.ingestFile(ctx, normalized, path); err != nil {
				p.logger.Error("file ingestion failed", "file", name, "error", err)
				if !emit(Event{
					Type:      EventError,
					Total:     total,
					Processed: processed,
					File:      name,
					Error:     err.Error(),
				}) {
					return
				}
			}
			processed++
		}

		emit(Event{Type: EventComplete, Total: total, Processed: processed})
	}()

	return events, nil
}

// ingestFile runs the per-file pipeline. Once the document row exists,
// any failure marks it failed instead of leaving it in processing.
func (p *Pipeline) ingestFile(ctx context.Context, folder, path string) error {
	name := filepath.Base(path)

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", name, err)
	}

	hash, err := hashFile(path)
	if err != nil {
		return err
	}

	// Re-ingesting a file name replaces the previous document entirely.
	if _, err := p.store.Replace(ctx, name); err != nil {
		return err
	}

	doc, err := p.store.CreateDocument(ctx, knowledge.CreateDocumentParams{
		FileName:   name,
		FilePath:   path,
		FileType:   convert.FileType(name),
		FileSize:   info.Size(),
		FileHash:   hash,
		FolderPath: folder,
		Status:     knowledge.StatusProcessing,
	})
	if err != nil {
		return err
	}

	markdown, err := p.converter.ToMarkdown(path)
	if err != nil {
		return p.fail(ctx, doc.ID, fmt.Errorf("conversion failed: %w", err))
	}

	if err := p.store.SetContent(ctx, doc.ID, markdown); err != nil {
		return p.fail(ctx, doc.ID, err)
	}

	chunks := p.splitter.Split(markdown)
	if len(chunks) == 0 {
		return p.fail(ctx, doc.ID, fmt.Errorf("%s: %w", name, knowledge.ErrNoChunks))
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	embeddings := p.embedder.EmbedBatch(ctx, texts)

	// Zero vectors from failed embedding batches are stored as-is; the
	// search layer drops their non-finite similarities.
	stored := make([]knowledge.Chunk, len(chunks))
	for i, c := range chunks {
		stored[i] = knowledge.Chunk{
			DocumentID: doc.ID,
			Index:      c.Index,
			Content:    c.Text,
			TokenCount: c.TokenCount,
			Embedding:  embeddings[i],
		}
	}

	if err := p.store.AddChunks(ctx, doc.ID, stored); err != nil {
		return p.fail(ctx, doc.ID, err)
	}

	if err := p.store.MarkCompleted(ctx, doc.ID); err != nil {
		return err
	}

	p.logger.Info("ingested document", "file", name, "chunks", len(chunks))
	return nil
}

// fail marks the document failed and returns the original error.
func (p *Pipeline) fail(ctx context.Context, id uuid.UUID, cause error) error {
	if err := p.store.MarkFailed(ctx, id, cause.Error()); err != nil {
		p.logger.Warn("failed to record document failure", "document_id", id, "error", err)
	}
	return cause
}

// hashFile computes the SHA-256 of a file, reading in fixed-size
// blocks.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, hashBlockSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
