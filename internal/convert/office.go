package convert

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// readZipEntry returns the raw bytes of one file inside a ZIP archive,
// or nil when the entry does not exist.
func readZipEntry(reader *zip.ReadCloser, name string) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", name, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, nil
}

// docx structures mirror the subset of word/document.xml we read.
type docxDocument struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
	} `xml:"body"`
}

type docxParagraph struct {
	Properties struct {
		Style struct {
			Val string `xml:"val,attr"`
		} `xml:"pStyle"`
	} `xml:"pPr"`
	Runs []docxRun `xml:"r"`
}

type docxRun struct {
	Text []docxText `xml:"t"`
}

type docxText struct {
	Content string `xml:",chardata"`
}

// docxToMarkdown extracts paragraph text from word/document.xml.
// Heading styles become Markdown headings; other paragraphs are
// separated by blank lines.
func (c *Converter) docxToMarkdown(path string) (string, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("failed to open docx %s: %w", path, err)
	}
	defer reader.Close()

	data, err := readZipEntry(reader, "word/document.xml")
	if err != nil {
		return "", err
	}
	if data == nil {
		return "", fmt.Errorf("docx %s has no word/document.xml", path)
	}

	var doc docxDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("failed to parse docx %s: %w", path, err)
	}

	var paragraphs []string
	for _, para := range doc.Body.Paragraphs {
		var text strings.Builder
		for _, run := range para.Runs {
			for _, t := range run.Text {
				text.WriteString(t.Content)
			}
		}
		line := strings.TrimSpace(text.String())
		if line == "" {
			continue
		}
		if level := headingLevel(para.Properties.Style.Val); level > 0 {
			line = strings.Repeat("#", level) + " " + line
		}
		paragraphs = append(paragraphs, line)
	}

	return strings.Join(paragraphs, "\n\n"), nil
}

// headingLevel maps Word paragraph styles like "Heading1" to a
// Markdown heading level, 0 for body text.
func headingLevel(style string) int {
	after, ok := strings.CutPrefix(style, "Heading")
	if !ok {
		return 0
	}
	level, err := strconv.Atoi(after)
	if err != nil || level < 1 || level > 6 {
		return 0
	}
	return level
}

// pptx structures mirror the subset of slide XML we read. Text lives in
// a:t elements nested under shapes.
type pptxSlide struct {
	Texts []string `xml:"cSld>spTree>sp>txBody>p>r>t"`
}

// pptxToMarkdown extracts text from each slide in deck order, one
// section per slide.
func (c *Converter) pptxToMarkdown(path string) (string, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pptx %s: %w", path, err)
	}
	defer reader.Close()

	var slideNames []string
	for _, file := range reader.File {
		if strings.HasPrefix(file.Name, "ppt/slides/slide") && strings.HasSuffix(file.Name, ".xml") {
			slideNames = append(slideNames, file.Name)
		}
	}
	sort.Slice(slideNames, func(i, j int) bool {
		return slideNumber(slideNames[i]) < slideNumber(slideNames[j])
	})

	var sections []string
	for i, name := range slideNames {
		data, err := readZipEntry(reader, name)
		if err != nil {
			return "", err
		}

		var slide pptxSlide
		if err := xml.Unmarshal(data, &slide); err != nil {
			c.logger.Warn("skipping unparseable slide", "file", name, "error", err)
			continue
		}

		var lines []string
		for _, text := range slide.Texts {
			if t := strings.TrimSpace(text); t != "" {
				lines = append(lines, t)
			}
		}
		if len(lines) == 0 {
			continue
		}
		sections = append(sections,
			fmt.Sprintf("## Slide %d\n\n%s", i+1, strings.Join(lines, "\n")))
	}

	return strings.Join(sections, "\n\n"), nil
}

// slideNumber parses the N out of ppt/slides/slideN.xml for ordering.
func slideNumber(name string) int {
	digits := strings.TrimSuffix(strings.TrimPrefix(name, "ppt/slides/slide"), ".xml")
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}

// xlsx structures mirror the subset of spreadsheet XML we read.
type xlsxSharedStrings struct {
	Items []struct {
		Text string `xml:"t"`
		Runs []struct {
			Text string `xml:"t"`
		} `xml:"r"`
	} `xml:"si"`
}

type xlsxWorksheet struct {
	Rows []struct {
		Cells []xlsxCell `xml:"c"`
	} `xml:"sheetData>row"`
}

type xlsxCell struct {
	Type   string `xml:"t,attr"`
	Value  string `xml:"v"`
	Inline string `xml:"is>t"`
}

// xlsxToMarkdown renders each worksheet as pipe-separated rows, one
// section per sheet.
func (c *Converter) xlsxToMarkdown(path string) (string, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("failed to open xlsx %s: %w", path, err)
	}
	defer reader.Close()

	shared, err := readSharedStrings(reader)
	if err != nil {
		return "", err
	}

	var sheetNames []string
	for _, file := range reader.File {
		if strings.HasPrefix(file.Name, "xl/worksheets/sheet") && strings.HasSuffix(file.Name, ".xml") {
			sheetNames = append(sheetNames, file.Name)
		}
	}
	sort.Strings(sheetNames)

	var sections []string
	for i, name := range sheetNames {
		data, err := readZipEntry(reader, name)
		if err != nil {
			return "", err
		}

		var sheet xlsxWorksheet
		if err := xml.Unmarshal(data, &sheet); err != nil {
			c.logger.Warn("skipping unparseable worksheet", "file", name, "error", err)
			continue
		}

		var rows []string
		for _, row := range sheet.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				cells = append(cells, cellValue(cell, shared))
			}
			joined := strings.Join(cells, " | ")
			if strings.Trim(joined, "| ") == "" {
				continue
			}
			rows = append(rows, "| "+joined+" |")
		}
		if len(rows) == 0 {
			continue
		}
		sections = append(sections,
			fmt.Sprintf("## Sheet %d\n\n%s", i+1, strings.Join(rows, "\n")))
	}

	return strings.Join(sections, "\n\n"), nil
}

func readSharedStrings(reader *zip.ReadCloser) ([]string, error) {
	data, err := readZipEntry(reader, "xl/sharedStrings.xml")
	if err != nil || data == nil {
		return nil, err
	}

	var shared xlsxSharedStrings
	if err := xml.Unmarshal(data, &shared); err != nil {
		return nil, fmt.Errorf("failed to parse shared strings: %w", err)
	}

	strs := make([]string, len(shared.Items))
	for i, item := range shared.Items {
		if item.Text != "" {
			strs[i] = item.Text
			continue
		}
		var b strings.Builder
		for _, run := range item.Runs {
			b.WriteString(run.Text)
		}
		strs[i] = b.String()
	}
	return strs, nil
}

// cellValue resolves a cell, looking shared strings up by index.
func cellValue(cell xlsxCell, shared []string) string {
	switch cell.Type {
	case "s":
		idx, err := strconv.Atoi(cell.Value)
		if err != nil || idx < 0 || idx >= len(shared) {
			return ""
		}
		return shared[idx]
	case "inlineStr":
		return cell.Inline
	default:
		return cell.Value
	}
}
