package answer

import (
	"fmt"
	"strings"

	"github.com/docqa/backend/internal/retrieval"
	"github.com/docqa/backend/internal/session"
)

// Prompt is a rendered system+user prompt pair.
type Prompt struct {
	System string
	User   string
}

// Template is a prompt template with named slots. Slots are filled by
// pure functions so prompt assembly is testable without a model call.
type Template struct {
	System string
	User   string
}

const (
	slotHistory  = "{{history_window}}"
	slotChunks   = "{{tagged_chunks}}"
	slotQuestion = "{{question}}"
)

func DefaultTemplate() Template {
	return Template{
		System: `You are a helpful assistant answering questions based strictly on excerpts from the user's uploaded documents.

Rules:
- Answer based ONLY on the provided context excerpts
- Mark every claim with an inline citation like [1] or [2] matching the number of the supporting excerpt
- Be specific and detailed
- If the context does not contain the answer, reply exactly: "I cannot find this information in the provided documents."`,
		User: `Previous conversation:
` + slotHistory + `

Context excerpts from documents:
` + slotChunks + `

User question: ` + slotQuestion,
	}
}

// Render fills the template's named slots.
func (t Template) Render(historyWindow, taggedChunks, question string) Prompt {
	r := strings.NewReplacer(
		slotHistory, historyWindow,
		slotChunks, taggedChunks,
		slotQuestion, question,
	)
	return Prompt{
		System: t.System,
		User:   r.Replace(t.User),
	}
}

// FormatHistory renders the most recent window turns, oldest first.
// Older turns are dropped once the window is exceeded.
func FormatHistory(history []session.Turn, window int) string {
	if len(history) == 0 {
		return "No previous conversation."
	}
	if window > 0 && len(history) > window {
		history = history[len(history)-window:]
	}

	var sb strings.Builder
	for i, turn := range history {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("user: ")
		sb.WriteString(turn.Question)
		sb.WriteString("\nassistant: ")
		sb.WriteString(turn.Answer)
	}
	return sb.String()
}

// FormatChunks tags each retrieved chunk with its citation index and
// source page for the model to cite.
func FormatChunks(retrieved []retrieval.RetrievedChunk) string {
	parts := make([]string, len(retrieved))
	for i, rc := range retrieved {
		parts[i] = fmt.Sprintf("[%d] (Source: %s, Page %d):\n%s",
			i+1, rc.Chunk.DocumentName, rc.Chunk.Page, rc.Chunk.Text)
	}
	return strings.Join(parts, "\n\n")
}
