// Package convert turns source documents into Markdown text for
// chunking. Markdown and plain text pass through unchanged; Office
// formats are unpacked from their ZIP containers; PDF text is extracted
// page by page.
package convert

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedType is returned for file extensions the converter
// does not handle.
var ErrUnsupportedType = errors.New("unsupported file type")

// supportedExtensions maps lowercase extensions (without dot) the
// converter accepts.
var supportedExtensions = map[string]struct{}{
	"pdf":  {},
	"docx": {},
	"pptx": {},
	"xlsx": {},
	"txt":  {},
	"md":   {},
}

// Converter extracts Markdown text from supported document formats.
type Converter struct {
	logger *slog.Logger
}

// New creates a Converter.
func New(logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{logger: logger}
}

// IsSupported reports whether the file's extension is convertible.
func IsSupported(path string) bool {
	_, ok := supportedExtensions[FileType(path)]
	return ok
}

// FileType returns the lowercase extension without the leading dot.
func FileType(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// ToMarkdown converts the file at path to Markdown text.
func (c *Converter) ToMarkdown(path string) (string, error) {
	fileType := FileType(path)

	switch fileType {
	case "md", "txt":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", path, err)
		}
		return string(data), nil
	case "docx":
		return c.docxToMarkdown(path)
	case "pptx":
		return c.pptxToMarkdown(path)
	case "xlsx":
		return c.xlsxToMarkdown(path)
	case "pdf":
		return c.pdfToMarkdown(path)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, fileType)
	}
}
