// Package chunk splits Markdown text into token-bounded chunks for
// embedding. Splitting prefers structural boundaries (headings, then
// paragraphs, then sentences) and falls back to finer separators only
// when a piece is still too large.
package chunk

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Default token budgets per chunk.
const (
	DefaultChunkSize    = 5000
	DefaultChunkOverlap = 500
)

// encodingName is the tokenizer used for sizing chunks.
const encodingName = "cl100k_base"

// separators are tried in order, coarsest boundary first. The empty
// separator is the character-level last resort.
var separators = []string{"\n## ", "\n### ", "\n#### ", "\n\n", "\n", ". ", " ", ""}

// Chunk is one split of a document with its position and token count.
type Chunk struct {
	Index      int
	Text       string
	TokenCount int
}

// Splitter splits text into overlapping, token-bounded chunks.
//
// Splitter is safe for concurrent use by multiple goroutines.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	count        func(text string) int
}

// New creates a Splitter sized in cl100k_base tokens. Non-positive size
// or overlap fall back to the defaults; overlap is clamped below size.
func New(chunkSize, chunkOverlap int) (*Splitter, error) {
	encoder, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s encoding: %w", encodingName, err)
	}

	return newWithCounter(chunkSize, chunkOverlap, func(text string) int {
		return len(encoder.Encode(text, nil, nil))
	}), nil
}

func newWithCounter(chunkSize, chunkOverlap int, count func(text string) int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = DefaultChunkOverlap
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 10
	}

	return &Splitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		count:        count,
	}
}

// TokenCount returns the number of tokens in text.
func (s *Splitter) TokenCount(text string) int {
	return s.count(text)
}

// Split chunks text. Whitespace-only input yields no chunks. Chunk
// indexes are contiguous from 0.
func (s *Splitter) Split(text string) []Chunk {
	pieces := s.splitRecursive(text, separators)

	chunks := make([]Chunk, 0, len(pieces))
	for _, piece := range pieces {
		trimmed := strings.TrimSpace(piece)
		if trimmed == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			Index:      len(chunks),
			Text:       trimmed,
			TokenCount: s.TokenCount(trimmed),
		})
	}
	return chunks
}

// splitRecursive splits text on the coarsest separator present, merges
// small neighbors back up to the chunk budget, and recurses with finer
// separators on pieces that are still too large.
func (s *Splitter) splitRecursive(text string, seps []string) []string {
	if text == "" {
		return nil
	}

	separator := seps[len(seps)-1]
	var nextSeps []string
	for i, sep := range seps {
		if sep == "" || strings.Contains(text, sep) {
			separator = sep
			nextSeps = seps[i+1:]
			break
		}
	}

	splits := splitKeepingSeparator(text, separator)

	var result []string
	var pending []string
	for _, split := range splits {
		if s.TokenCount(split) < s.chunkSize {
			pending = append(pending, split)
			continue
		}

		if len(pending) > 0 {
			result = append(result, s.merge(pending)...)
			pending = nil
		}
		if len(nextSeps) == 0 {
			result = append(result, split)
		} else {
			result = append(result, s.splitRecursive(split, nextSeps)...)
		}
	}
	if len(pending) > 0 {
		result = append(result, s.merge(pending)...)
	}
	return result
}

// splitKeepingSeparator splits on separator, keeping the separator
// attached to the start of the following piece. The empty separator
// splits into single runes.
func splitKeepingSeparator(text, separator string) []string {
	if separator == "" {
		runes := []rune(text)
		splits := make([]string, len(runes))
		for i, r := range runes {
			splits[i] = string(r)
		}
		return splits
	}

	parts := strings.Split(text, separator)
	splits := make([]string, 0, len(parts))
	for i, part := range parts {
		if i > 0 {
			part = separator + part
		}
		if part != "" {
			splits = append(splits, part)
		}
	}
	return splits
}

// merge greedily packs consecutive splits into chunks up to the token
// budget, carrying the trailing chunkOverlap tokens of context into the
// next chunk.
func (s *Splitter) merge(splits []string) []string {
	var merged []string
	var window []string
	total := 0

	flush := func() {
		if len(window) == 0 {
			return
		}
		merged = append(merged, strings.Join(window, ""))
	}

	for _, split := range splits {
		count := s.TokenCount(split)

		if total+count > s.chunkSize && len(window) > 0 {
			flush()
			for total > s.chunkOverlap && len(window) > 0 {
				total -= s.TokenCount(window[0])
				window = window[1:]
			}
		}

		window = append(window, split)
		total += count
	}
	flush()

	return merged
}
