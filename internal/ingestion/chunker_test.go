package ingestion

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docqa/backend/internal/errs"
	"github.com/docqa/backend/internal/session"
)

func TestNewChunker_RejectsInvalidSettings(t *testing.T) {
	cases := []struct {
		name    string
		size    int
		overlap int
	}{
		{"zero size", 0, 0},
		{"negative size", -1, 0},
		{"negative overlap", 100, -1},
		{"overlap equals size", 100, 100},
		{"overlap exceeds size", 100, 150},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewChunker(tc.size, tc.overlap)
			require.Error(t, err)

			var cfgErr *errs.ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestChunk_EmptyDocumentYieldsNoChunks(t *testing.T) {
	chunker, err := NewChunker(100, 20)
	require.NoError(t, err)

	assert.Nil(t, chunker.Chunk(session.Document{ID: "d1", Name: "empty.pdf"}))
	assert.Nil(t, chunker.Chunk(session.Document{ID: "d2", Name: "blank.pdf", Pages: []string{"   ", "\n\t"}}))
}

func TestChunk_RespectsMaxSize(t *testing.T) {
	chunker, err := NewChunker(10, 3)
	require.NoError(t, err)

	doc := session.Document{
		ID:    "d1",
		Name:  "doc.pdf",
		Pages: []string{strings.Repeat("abcde", 11)},
	}

	chunks := chunker.Chunk(doc)
	require.NotEmpty(t, chunks)

	for _, chunk := range chunks {
		assert.LessOrEqual(t, len([]rune(chunk.Text)), 10)
	}
}

func TestChunk_ReconstructsOriginalText(t *testing.T) {
	chunker, err := NewChunker(50, 10)
	require.NoError(t, err)

	pages := []string{
		"The first page talks about the solar system and its planets.",
		"The second page covers moons, asteroids and comets in detail.",
	}
	doc := session.Document{ID: "d1", Name: "space.pdf", Pages: pages}

	chunks := chunker.Chunk(doc)
	require.NotEmpty(t, chunks)

	reconstructed := chunks[0].Text
	for _, chunk := range chunks[1:] {
		reconstructed += string([]rune(chunk.Text)[10:])
	}

	assert.Equal(t, strings.Join(pages, "\n"), reconstructed)
}

func TestChunk_AttributesPageByStartOffset(t *testing.T) {
	chunker, err := NewChunker(10, 0)
	require.NoError(t, err)

	// Page 1 spans offsets 0-9, the separator is offset 10, page 2
	// starts at offset 11.
	doc := session.Document{
		ID:    "d1",
		Name:  "doc.pdf",
		Pages: []string{"aaaaaaaaaa", "bbbbbbbbbb"},
	}

	chunks := chunker.Chunk(doc)
	require.Len(t, chunks, 3)

	assert.Equal(t, 1, chunks[0].Page)
	assert.Equal(t, 1, chunks[1].Page)
	assert.Equal(t, 2, chunks[2].Page)
}

func TestChunk_Deterministic(t *testing.T) {
	chunker, err := NewChunker(25, 5)
	require.NoError(t, err)

	doc := session.Document{
		ID:    "d1",
		Name:  "doc.pdf",
		Pages: []string{"Determinism means the same input always yields the same output."},
	}

	first := chunker.Chunk(doc)
	second := chunker.Chunk(doc)
	assert.Equal(t, first, second)
}

func TestChunk_PositionsAreSequential(t *testing.T) {
	chunker, err := NewChunker(15, 5)
	require.NoError(t, err)

	doc := session.Document{
		ID:    "d1",
		Name:  "doc.pdf",
		Pages: []string{strings.Repeat("word ", 30)},
	}

	chunks := chunker.Chunk(doc)
	require.NotEmpty(t, chunks)

	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Position)
		assert.Equal(t, "d1", chunk.DocumentID)
		assert.Equal(t, "doc.pdf", chunk.DocumentName)
	}
}
