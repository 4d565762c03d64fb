package convert

import (
	"archive/zip"
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// writeZip writes a ZIP file with the given entries to dir and returns
// its path.
func writeZip(t *testing.T, dir, name string, entries map[string]string) string {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for entryName, content := range entries {
		f, err := w.Create(entryName)
		if err != nil {
			t.Fatalf("failed to create zip entry %s: %v", entryName, err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("failed to write zip entry %s: %v", entryName, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

func TestFileType(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"report.PDF", "pdf"},
		{"notes.md", "md"},
		{"/data/docs/slides.pptx", "pptx"},
		{"noext", ""},
	}

	for _, tt := range tests {
		if got := FileType(tt.path); got != tt.want {
			t.Errorf("FileType(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestIsSupported(t *testing.T) {
	for _, path := range []string{"a.pdf", "b.docx", "c.pptx", "d.xlsx", "e.txt", "f.MD"} {
		if !IsSupported(path) {
			t.Errorf("IsSupported(%q) = false, want true", path)
		}
	}
	for _, path := range []string{"a.exe", "b.png", "c", "d.doc"} {
		if IsSupported(path) {
			t.Errorf("IsSupported(%q) = true, want false", path)
		}
	}
}

func TestToMarkdownPassthrough(t *testing.T) {
	dir := t.TempDir()
	content := "# Title\n\nSome **markdown** text.\n"
	path := filepath.Join(dir, "doc.md")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	conv := New(testLogger())
	got, err := conv.ToMarkdown(path)
	if err != nil {
		t.Fatalf("ToMarkdown failed: %v", err)
	}
	if got != content {
		t.Errorf("markdown content changed: %q", got)
	}
}

func TestToMarkdownUnsupportedType(t *testing.T) {
	conv := New(testLogger())
	_, err := conv.ToMarkdown("image.png")
	if !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("error = %v, want ErrUnsupportedType", err)
	}
}

func TestDocxToMarkdown(t *testing.T) {
	documentXML := `<?xml version="1.0"?>
<document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <body>
    <p>
      <pPr><pStyle val="Heading1"/></pPr>
      <r><t>Introduction</t></r>
    </p>
    <p>
      <r><t>First part </t></r>
      <r><t>of a sentence.</t></r>
    </p>
    <p></p>
    <p>
      <r><t>Second paragraph.</t></r>
    </p>
  </body>
</document>`

	path := writeZip(t, t.TempDir(), "doc.docx", map[string]string{
		"word/document.xml": documentXML,
	})

	conv := New(testLogger())
	got, err := conv.ToMarkdown(path)
	if err != nil {
		t.Fatalf("ToMarkdown failed: %v", err)
	}

	want := "# Introduction\n\nFirst part of a sentence.\n\nSecond paragraph."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDocxMissingDocumentXML(t *testing.T) {
	path := writeZip(t, t.TempDir(), "broken.docx", map[string]string{
		"other.xml": "<x/>",
	})

	conv := New(testLogger())
	if _, err := conv.ToMarkdown(path); err == nil {
		t.Error("expected error for docx without word/document.xml")
	}
}

func TestPptxToMarkdown(t *testing.T) {
	slideXML := func(lines ...string) string {
		var runs strings.Builder
		for _, line := range lines {
			runs.WriteString("<p><r><t>" + line + "</t></r></p>")
		}
		return `<?xml version="1.0"?><sld><cSld><spTree><sp><txBody>` +
			runs.String() + `</txBody></sp></spTree></cSld></sld>`
	}

	path := writeZip(t, t.TempDir(), "deck.pptx", map[string]string{
		"ppt/slides/slide1.xml":  slideXML("Title slide", "Subtitle"),
		"ppt/slides/slide2.xml":  slideXML("Agenda"),
		"ppt/slides/slide10.xml": slideXML("Last slide"),
	})

	conv := New(testLogger())
	got, err := conv.ToMarkdown(path)
	if err != nil {
		t.Fatalf("ToMarkdown failed: %v", err)
	}

	want := "## Slide 1\n\nTitle slide\nSubtitle\n\n## Slide 2\n\nAgenda\n\n## Slide 3\n\nLast slide"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestXlsxToMarkdown(t *testing.T) {
	sharedStrings := `<?xml version="1.0"?>
<sst><si><t>Name</t></si><si><t>Score</t></si><si><t>Alice</t></si></sst>`
	sheetXML := `<?xml version="1.0"?>
<worksheet><sheetData>
  <row><c t="s"><v>0</v></c><c t="s"><v>1</v></c></row>
  <row><c t="s"><v>2</v></c><c><v>42</v></c></row>
</sheetData></worksheet>`

	path := writeZip(t, t.TempDir(), "table.xlsx", map[string]string{
		"xl/sharedStrings.xml":     sharedStrings,
		"xl/worksheets/sheet1.xml": sheetXML,
	})

	conv := New(testLogger())
	got, err := conv.ToMarkdown(path)
	if err != nil {
		t.Fatalf("ToMarkdown failed: %v", err)
	}

	want := "## Sheet 1\n\n| Name | Score |\n| Alice | 42 |"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestXlsxSkipsEmptyRows(t *testing.T) {
	sheetXML := `<?xml version="1.0"?>
<worksheet><sheetData>
  <row><c><v></v></c><c><v></v></c></row>
  <row><c><v>1</v></c><c><v>2</v></c></row>
  <row><c/><c/></row>
</sheetData></worksheet>`

	path := writeZip(t, t.TempDir(), "sparse.xlsx", map[string]string{
		"xl/worksheets/sheet1.xml": sheetXML,
	})

	conv := New(testLogger())
	got, err := conv.ToMarkdown(path)
	if err != nil {
		t.Fatalf("ToMarkdown failed: %v", err)
	}

	want := "## Sheet 1\n\n| 1 | 2 |"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
