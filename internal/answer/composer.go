// Package answer builds grounded prompts from retrieved chunks and
// conversation history, invokes the completion capability, and resolves
// citation markers back to their source pages.
package answer

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/docqa/backend/internal/retrieval"
	"github.com/docqa/backend/internal/session"
	"github.com/docqa/backend/pkg/logger"
)

// Completer is the language-model capability consumed by the composer.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Citation maps an inline [n] marker back to its source document page.
type Citation struct {
	Marker   int    `json:"marker"`
	Document string `json:"document"`
	Page     int    `json:"page"`
}

// Result is a composed answer. Text is the model's reply body;
// References is the formatted source list kept separate from it.
type Result struct {
	Text       string
	References string
	Citations  []Citation
}

type Composer struct {
	completer     Completer
	template      Template
	historyWindow int
}

func NewComposer(completer Completer, historyWindow int) *Composer {
	return &Composer{
		completer:     completer,
		template:      DefaultTemplate(),
		historyWindow: historyWindow,
	}
}

// Answer renders the grounded prompt and calls the model. On failure
// nothing is returned but the error; the caller must not record a turn.
func (c *Composer) Answer(ctx context.Context, question string, retrieved []retrieval.RetrievedChunk, history []session.Turn) (*Result, error) {
	prompt := c.template.Render(
		FormatHistory(history, c.historyWindow),
		FormatChunks(retrieved),
		question,
	)

	text, err := c.completer.Complete(ctx, prompt.System, prompt.User)
	if err != nil {
		return nil, err
	}

	citations := ExtractCitations(text, retrieved)

	logger.Debug("Answer composed",
		zap.Int("chunks", len(retrieved)),
		zap.Int("citations", len(citations)),
	)

	return &Result{
		Text:       text,
		References: FormatReferences(citations),
		Citations:  citations,
	}, nil
}

var citationPattern = regexp.MustCompile(`\[(\d+)\]`)

// ExtractCitations finds [n] markers in the model's reply and maps them
// to the retrieved chunk they tag. Markers that are malformed or out of
// range for the retrieved set are dropped; each marker is reported once,
// in first-use order.
func ExtractCitations(text string, retrieved []retrieval.RetrievedChunk) []Citation {
	matches := citationPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[int]bool)
	var citations []Citation
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > len(retrieved) {
			continue
		}
		if seen[n] {
			continue
		}
		seen[n] = true

		chunk := retrieved[n-1].Chunk
		citations = append(citations, Citation{
			Marker:   n,
			Document: chunk.DocumentName,
			Page:     chunk.Page,
		})
	}

	return citations
}

// FormatReferences renders the source list appended after the answer
// body, one line per cited marker.
func FormatReferences(citations []Citation) string {
	if len(citations) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("References:\n")
	for _, c := range citations {
		sb.WriteString(fmt.Sprintf("[%d] %s, page %d\n", c.Marker, c.Document, c.Page))
	}
	return strings.TrimRight(sb.String(), "\n")
}
