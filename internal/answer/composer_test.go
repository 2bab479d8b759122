package answer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docqa/backend/internal/retrieval"
	"github.com/docqa/backend/internal/session"
)

type fakeCompleter struct {
	reply      string
	err        error
	lastSystem string
	lastUser   string
}

func (f *fakeCompleter) Complete(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	f.lastSystem = systemPrompt
	f.lastUser = userPrompt
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func retrievedFixture() []retrieval.RetrievedChunk {
	return []retrieval.RetrievedChunk{
		{Chunk: session.Chunk{DocumentName: "physics.pdf", Page: 3, Position: 0, Text: "The sky is blue because of Rayleigh scattering."}},
		{Chunk: session.Chunk{DocumentName: "physics.pdf", Page: 7, Position: 1, Text: "Sunsets appear red for the same reason."}},
	}
}

func TestAnswer_ResolvesCitations(t *testing.T) {
	completer := &fakeCompleter{reply: "The sky is blue due to Rayleigh scattering [1]. Sunsets are red [2]."}
	composer := NewComposer(completer, 6)

	result, err := composer.Answer(context.Background(), "Why is the sky blue?", retrievedFixture(), nil)
	require.NoError(t, err)

	require.Len(t, result.Citations, 2)
	assert.Equal(t, Citation{Marker: 1, Document: "physics.pdf", Page: 3}, result.Citations[0])
	assert.Equal(t, Citation{Marker: 2, Document: "physics.pdf", Page: 7}, result.Citations[1])
	assert.Contains(t, result.References, "[1] physics.pdf, page 3")
	assert.Contains(t, result.References, "[2] physics.pdf, page 7")
}

func TestAnswer_PromptContainsChunksAndQuestion(t *testing.T) {
	completer := &fakeCompleter{reply: "An answer [1]."}
	composer := NewComposer(completer, 6)

	_, err := composer.Answer(context.Background(), "Why is the sky blue?", retrievedFixture(), nil)
	require.NoError(t, err)

	assert.Contains(t, completer.lastUser, "Rayleigh scattering")
	assert.Contains(t, completer.lastUser, "Why is the sky blue?")
	assert.Contains(t, completer.lastUser, "physics.pdf, Page 3")
	assert.Contains(t, completer.lastSystem, "[1]")
}

func TestAnswer_CompleterErrorPropagates(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("model unavailable")}
	composer := NewComposer(completer, 6)

	result, err := composer.Answer(context.Background(), "question", retrievedFixture(), nil)
	assert.Error(t, err)
	assert.Nil(t, result)
}

func TestExtractCitations_DropsOutOfRangeMarkers(t *testing.T) {
	retrieved := retrievedFixture()

	citations := ExtractCitations("Valid [1], out of range [5], zero [0], valid [2].", retrieved)
	require.Len(t, citations, 2)
	assert.Equal(t, 1, citations[0].Marker)
	assert.Equal(t, 2, citations[1].Marker)
}

func TestExtractCitations_DeduplicatesInFirstUseOrder(t *testing.T) {
	citations := ExtractCitations("First [2], then [1], again [2].", retrievedFixture())
	require.Len(t, citations, 2)
	assert.Equal(t, 2, citations[0].Marker)
	assert.Equal(t, 1, citations[1].Marker)
}

func TestExtractCitations_NoMarkers(t *testing.T) {
	assert.Empty(t, ExtractCitations("No citations here.", retrievedFixture()))
	assert.Empty(t, ExtractCitations("Malformed [abc] and [] markers.", retrievedFixture()))
}

func TestFormatReferences_Empty(t *testing.T) {
	assert.Equal(t, "", FormatReferences(nil))
}

func TestFormatHistory_EmptyAndWindowed(t *testing.T) {
	assert.Equal(t, "No previous conversation.", FormatHistory(nil, 6))

	history := []session.Turn{
		{Question: "q1", Answer: "a1", Timestamp: time.Now()},
		{Question: "q2", Answer: "a2", Timestamp: time.Now()},
		{Question: "q3", Answer: "a3", Timestamp: time.Now()},
	}

	rendered := FormatHistory(history, 2)
	assert.NotContains(t, rendered, "q1")
	assert.Contains(t, rendered, "user: q2")
	assert.Contains(t, rendered, "assistant: a3")
}

func TestTemplateRender_FillsAllSlots(t *testing.T) {
	prompt := DefaultTemplate().Render("HISTORY", "CHUNKS", "QUESTION")

	assert.Contains(t, prompt.User, "HISTORY")
	assert.Contains(t, prompt.User, "CHUNKS")
	assert.Contains(t, prompt.User, "QUESTION")
	assert.NotContains(t, prompt.User, "{{")
}

func TestFormatChunks_TagsWithSourceAndPage(t *testing.T) {
	formatted := FormatChunks(retrievedFixture())

	assert.Contains(t, formatted, "[1] (Source: physics.pdf, Page 3):")
	assert.Contains(t, formatted, "[2] (Source: physics.pdf, Page 7):")
	assert.Contains(t, formatted, "Rayleigh scattering")
}
