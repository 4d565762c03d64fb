package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/koopa0/docuchat/internal/chunk"
	"github.com/koopa0/docuchat/internal/knowledge"
)

// mockStore implements DocumentStore for testing.
type mockStore struct {
	replaced  []string
	created   []knowledge.CreateDocumentParams
	contents  map[uuid.UUID]string
	chunks    map[uuid.UUID][]knowledge.Chunk
	completed []uuid.UUID
	failed    map[uuid.UUID]string

	replaceErr error
	addErr     error
}

func newMockStore() *mockStore {
	return &mockStore{
		contents: make(map[uuid.UUID]string),
		chunks:   make(map[uuid.UUID][]knowledge.Chunk),
		failed:   make(map[uuid.UUID]string),
	}
}

func (m *mockStore) Replace(_ context.Context, fileName string) (bool, error) {
	if m.replaceErr != nil {
		return false, m.replaceErr
	}
	m.replaced = append(m.replaced, fileName)
	return false, nil
}

func (m *mockStore) CreateDocument(_ context.Context, arg knowledge.CreateDocumentParams) (knowledge.Document, error) {
	m.created = append(m.created, arg)
	return knowledge.Document{ID: uuid.New(), FileName: arg.FileName, Status: arg.Status}, nil
}

func (m *mockStore) SetContent(_ context.Context, id uuid.UUID, markdown string) error {
	m.contents[id] = markdown
	return nil
}

func (m *mockStore) AddChunks(_ context.Context, documentID uuid.UUID, chunks []knowledge.Chunk) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.chunks[documentID] = chunks
	return nil
}

func (m *mockStore) MarkCompleted(_ context.Context, id uuid.UUID) error {
	m.completed = append(m.completed, id)
	return nil
}

func (m *mockStore) MarkFailed(_ context.Context, id uuid.UUID, message string) error {
	m.failed[id] = message
	return nil
}

// mockConverter fails for file names in failFor, otherwise returns the
// file content prefixed with a heading.
type mockConverter struct {
	failFor map[string]error
	output  map[string]string
}

func (m *mockConverter) ToMarkdown(path string) (string, error) {
	name := filepath.Base(path)
	if err, ok := m.failFor[name]; ok {
		return "", err
	}
	if out, ok := m.output[name]; ok {
		return out, nil
	}
	return "# " + name + "\n\ncontent", nil
}

// mockSplitter splits on blank lines.
type mockSplitter struct {
	empty bool
}

func (m *mockSplitter) Split(text string) []chunk.Chunk {
	if m.empty {
		return nil
	}
	var chunks []chunk.Chunk
	for _, part := range strings.Split(text, "\n\n") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		chunks = append(chunks, chunk.Chunk{
			Index:      len(chunks),
			Text:       part,
			TokenCount: len(part),
		})
	}
	return chunks
}

// mockEmbedder returns one unit vector per text.
type mockEmbedder struct {
	calls int
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) [][]float32 {
	m.calls++
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = []float32{1, 0, 0}
	}
	return vecs
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("content of "+name), 0o600); err != nil {
			t.Fatal(err)
		}
	}
}

func newTestPipeline(root string, store *mockStore, conv *mockConverter, split *mockSplitter) *Pipeline {
	if conv == nil {
		conv = &mockConverter{}
	}
	if split == nil {
		split = &mockSplitter{}
	}
	return New(store, conv, split, &mockEmbedder{}, root, testLogger())
}

func collectEvents(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var collected []Event
	for e := range events {
		collected = append(collected, e)
	}
	return collected
}

func TestNormalizeFolderRejectsOtherPaths(t *testing.T) {
	p := newTestPipeline("/data/docs", newMockStore(), nil, nil)

	if _, err := p.NormalizeFolder("/data/other"); !errors.Is(err, ErrFolderNotAllowed) {
		t.Errorf("error = %v, want ErrFolderNotAllowed", err)
	}

	got, err := p.NormalizeFolder("/data/docs/../docs/")
	if err != nil {
		t.Fatalf("NormalizeFolder failed: %v", err)
	}
	if got != "/data/docs" {
		t.Errorf("normalized = %q, want /data/docs", got)
	}
}

func TestListFilesSkipsUnsupported(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "b.md", "a.txt", "skip.exe")
	if err := os.Mkdir(filepath.Join(dir, "sub.md"), 0o750); err != nil {
		t.Fatal(err)
	}

	p := newTestPipeline(dir, newMockStore(), nil, nil)
	files, err := p.ListFiles(dir)
	if err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}

	if len(files) != 2 {
		t.Fatalf("got %d files, want 2: %v", len(files), files)
	}
	if filepath.Base(files[0]) != "a.txt" || filepath.Base(files[1]) != "b.md" {
		t.Errorf("files not sorted by name: %v", files)
	}
}

func TestFolderContents(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "notes.md", "report.txt")

	p := newTestPipeline(dir, newMockStore(), nil, nil)
	files, err := p.FolderContents(dir)
	if err != nil {
		t.Fatalf("FolderContents failed: %v", err)
	}

	if len(files) != 2 {
		t.Fatalf("got %d files, want 2: %+v", len(files), files)
	}
	first := files[0]
	if first.Name != "notes.md" || first.Type != "md" {
		t.Errorf("unexpected first file: %+v", first)
	}
	if first.Size == 0 || first.ModifiedAt.IsZero() {
		t.Errorf("file metadata not populated: %+v", first)
	}

	if _, err := p.FolderContents("/somewhere/else"); !errors.Is(err, ErrFolderNotAllowed) {
		t.Errorf("error = %v, want ErrFolderNotAllowed", err)
	}
}

func TestIngestFolderEmptyEmitsComplete(t *testing.T) {
	dir := t.TempDir()
	p := newTestPipeline(dir, newMockStore(), nil, nil)

	events, err := p.IngestFolder(context.Background(), dir)
	if err != nil {
		t.Fatalf("IngestFolder failed: %v", err)
	}

	collected := collectEvents(t, events)
	if len(collected) != 1 {
		t.Fatalf("got %d events, want 1: %+v", len(collected), collected)
	}
	if collected[0].Type != EventComplete || collected[0].Total != 0 || collected[0].Processed != 0 {
		t.Errorf("unexpected complete event: %+v", collected[0])
	}
}

func TestIngestFolderHappyPath(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.md", "b.md")
	store := newMockStore()
	p := newTestPipeline(dir, store, nil, nil)

	events, err := p.IngestFolder(context.Background(), dir)
	if err != nil {
		t.Fatalf("IngestFolder failed: %v", err)
	}

	collected := collectEvents(t, events)
	if len(collected) != 3 {
		t.Fatalf("got %d events, want 3: %+v", len(collected), collected)
	}

	// Progress precedes each file; processed counts files already handled.
	first, second, last := collected[0], collected[1], collected[2]
	if first.Type != EventProgress || first.Processed != 0 || first.CurrentFile != "a.md" {
		t.Errorf("unexpected first event: %+v", first)
	}
	if second.Type != EventProgress || second.Processed != 1 || second.CurrentFile != "b.md" {
		t.Errorf("unexpected second event: %+v", second)
	}
	if last.Type != EventComplete || last.Total != 2 || last.Processed != 2 {
		t.Errorf("unexpected complete event: %+v", last)
	}

	if len(store.completed) != 2 {
		t.Errorf("completed %d documents, want 2", len(store.completed))
	}
	if len(store.replaced) != 2 {
		t.Errorf("replaced called %d times, want 2", len(store.replaced))
	}
	for _, arg := range store.created {
		if arg.Status != knowledge.StatusProcessing {
			t.Errorf("document created with status %q", arg.Status)
		}
		if arg.FileHash == "" || arg.FileSize == 0 {
			t.Errorf("document missing hash or size: %+v", arg)
		}
	}
}

func TestIngestFolderIsolatesFailedFile(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "bad.md", "good.md")
	store := newMockStore()
	conv := &mockConverter{
		failFor: map[string]error{"bad.md": errors.New("corrupt file")},
	}
	p := newTestPipeline(dir, store, conv, nil)

	events, err := p.IngestFolder(context.Background(), dir)
	if err != nil {
		t.Fatalf("IngestFolder failed: %v", err)
	}

	collected := collectEvents(t, events)
	if len(collected) != 4 {
		t.Fatalf("got %d events, want 4: %+v", len(collected), collected)
	}

	// The failing file still announces itself before its error.
	first := collected[0]
	if first.Type != EventProgress || first.CurrentFile != "bad.md" || first.Processed != 0 {
		t.Errorf("unexpected first event: %+v", first)
	}

	errEvent := collected[1]
	if errEvent.Type != EventError || errEvent.File != "bad.md" {
		t.Errorf("unexpected error event: %+v", errEvent)
	}
	if !strings.Contains(errEvent.Error, "corrupt file") {
		t.Errorf("error event missing cause: %+v", errEvent)
	}

	progress := collected[2]
	if progress.Type != EventProgress || progress.CurrentFile != "good.md" || progress.Processed != 1 {
		t.Errorf("unexpected progress event: %+v", progress)
	}

	// Processed counts the failed file too: the sweep handled both.
	last := collected[3]
	if last.Type != EventComplete || last.Total != 2 || last.Processed != 2 {
		t.Errorf("unexpected complete event: %+v", last)
	}

	// The bad document is recorded as failed, not left in processing.
	if len(store.failed) != 1 {
		t.Fatalf("failed %d documents, want 1", len(store.failed))
	}
	for _, msg := range store.failed {
		if !strings.Contains(msg, "corrupt file") {
			t.Errorf("failure message = %q", msg)
		}
	}
	if len(store.completed) != 1 {
		t.Errorf("completed %d documents, want 1", len(store.completed))
	}
}

func TestIngestFolderZeroChunksFailsDocument(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "empty.md")
	store := newMockStore()
	p := newTestPipeline(dir, store, nil, &mockSplitter{empty: true})

	events, err := p.IngestFolder(context.Background(), dir)
	if err != nil {
		t.Fatalf("IngestFolder failed: %v", err)
	}

	collected := collectEvents(t, events)
	if len(collected) != 3 {
		t.Fatalf("got %d events, want 3: %+v", len(collected), collected)
	}
	if collected[0].Type != EventProgress || collected[0].CurrentFile != "empty.md" {
		t.Fatalf("first event = %+v, want progress", collected[0])
	}
	if collected[1].Type != EventError {
		t.Fatalf("second event = %+v, want error", collected[1])
	}
	if len(store.failed) != 1 {
		t.Errorf("failed %d documents, want 1", len(store.failed))
	}
	if len(store.chunks) != 0 {
		t.Errorf("chunks stored for failed document")
	}
}

func TestIngestFolderStoresEmbeddedChunks(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "doc.md")
	store := newMockStore()
	conv := &mockConverter{
		output: map[string]string{"doc.md": "first part\n\nsecond part\n\nthird part"},
	}
	p := newTestPipeline(dir, store, conv, nil)

	events, err := p.IngestFolder(context.Background(), dir)
	if err != nil {
		t.Fatalf("IngestFolder failed: %v", err)
	}
	collectEvents(t, events)

	if len(store.chunks) != 1 {
		t.Fatalf("chunks stored for %d documents, want 1", len(store.chunks))
	}
	for _, chunks := range store.chunks {
		if len(chunks) != 3 {
			t.Fatalf("got %d chunks, want 3", len(chunks))
		}
		for i, c := range chunks {
			if c.Index != i {
				t.Errorf("chunk %d has index %d", i, c.Index)
			}
			if c.Embedding == nil {
				t.Errorf("chunk %d has no embedding", i)
			}
		}
	}
}

func TestIngestFolderRejectsWrongFolder(t *testing.T) {
	p := newTestPipeline("/data/docs", newMockStore(), nil, nil)

	if _, err := p.IngestFolder(context.Background(), "/tmp/elsewhere"); !errors.Is(err, ErrFolderNotAllowed) {
		t.Errorf("error = %v, want ErrFolderNotAllowed", err)
	}
}

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.txt")
	content := []byte("hello docuchat")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := hashFile(path)
	if err != nil {
		t.Fatalf("hashFile failed: %v", err)
	}

	sum := sha256.Sum256(content)
	if want := hex.EncodeToString(sum[:]); got != want {
		t.Errorf("hash = %s, want %s", got, want)
	}
}
