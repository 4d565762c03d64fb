package convert

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// pdfToMarkdown extracts the plain text of a PDF.
func (c *Converter) pdfToMarkdown(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf %s: %w", path, err)
	}
	defer f.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract pdf text from %s: %w", path, err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("failed to read pdf text from %s: %w", path, err)
	}

	return buf.String(), nil
}
