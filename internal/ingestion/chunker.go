// Package ingestion turns uploaded documents into indexed chunks.
package ingestion

import (
	"fmt"
	"strings"

	"github.com/docqa/backend/internal/errs"
	"github.com/docqa/backend/internal/session"
)

// pageSeparator joins page texts into one document string; its length
// counts toward chunk offsets so page attribution stays exact.
const pageSeparator = "\n"

// Chunker splits document text into overlapping fixed-size windows with
// page attribution. Chunking is deterministic: the same document and
// settings always produce the same chunk sequence.
type Chunker struct {
	size    int
	overlap int
}

func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, &errs.ConfigError{Field: "chunking.size", Reason: "must be a positive integer"}
	}
	if overlap < 0 {
		return nil, &errs.ConfigError{Field: "chunking.overlap", Reason: "must not be negative"}
	}
	if overlap >= size {
		return nil, &errs.ConfigError{Field: "chunking.overlap", Reason: "must be smaller than chunking.size"}
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Chunk windows the document's joined page text by c.size runes,
// advancing c.size-c.overlap runes per step; the final chunk may be
// shorter. Positions are local to the document; the processor assigns
// session-global ordinals. An empty document yields no chunks.
func (c *Chunker) Chunk(doc session.Document) []session.Chunk {
	text, pageStarts := joinPages(doc.Pages)
	if strings.TrimSpace(string(text)) == "" {
		return nil
	}

	step := c.size - c.overlap
	var chunks []session.Chunk

	for start := 0; start < len(text); start += step {
		end := start + c.size
		if end > len(text) {
			end = len(text)
		}

		chunks = append(chunks, session.Chunk{
			ID:           fmt.Sprintf("%s_chunk_%d", doc.ID, len(chunks)),
			DocumentID:   doc.ID,
			DocumentName: doc.Name,
			Page:         pageAt(pageStarts, start),
			Position:     len(chunks),
			Text:         string(text[start:end]),
		})

		if end == len(text) {
			break
		}
	}

	return chunks
}

// joinPages concatenates pages and records the rune offset where each
// page begins.
func joinPages(pages []string) ([]rune, []int) {
	var text []rune
	starts := make([]int, 0, len(pages))

	for i, page := range pages {
		if i > 0 {
			text = append(text, []rune(pageSeparator)...)
		}
		starts = append(starts, len(text))
		text = append(text, []rune(page)...)
	}

	return text, starts
}

// pageAt returns the 1-based page whose span contains the given rune
// offset.
func pageAt(pageStarts []int, offset int) int {
	page := 1
	for i, start := range pageStarts {
		if offset >= start {
			page = i + 1
		} else {
			break
		}
	}
	return page
}
