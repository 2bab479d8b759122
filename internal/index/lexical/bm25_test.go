package lexical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_EmptyCorpus(t *testing.T) {
	ix := Build(nil)
	assert.Equal(t, 0, ix.Len())
	assert.Nil(t, ix.Search("anything", 5))
}

func TestSearch_RanksMatchingChunkFirst(t *testing.T) {
	ix := Build([]string{
		"The mitochondria is the powerhouse of the cell.",
		"Photosynthesis converts sunlight into chemical energy.",
		"The cell membrane controls what enters the cell.",
	})

	hits := ix.Search("photosynthesis sunlight", 3)
	require.NotEmpty(t, hits)
	assert.Equal(t, 1, hits[0].ChunkIndex)
}

func TestSearch_NoMatchesYieldsNoHits(t *testing.T) {
	ix := Build([]string{
		"Chapter one covers arithmetic.",
		"Chapter two covers geometry.",
	})

	assert.Empty(t, ix.Search("zoology", 5))
}

func TestSearch_Deterministic(t *testing.T) {
	texts := []string{
		"apples and oranges are fruit",
		"oranges grow in warm climates",
		"apples grow in cool climates",
		"fruit salad contains apples and oranges",
	}
	ix := Build(texts)

	first := ix.Search("apples oranges", 4)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ix.Search("apples oranges", 4))
	}
}

func TestSearch_TiesBreakByChunkPosition(t *testing.T) {
	// Identical chunks score identically; earlier position wins.
	ix := Build([]string{
		"identical text here",
		"identical text here",
		"identical text here",
	})

	hits := ix.Search("identical", 3)
	require.Len(t, hits, 3)
	assert.Equal(t, 0, hits[0].ChunkIndex)
	assert.Equal(t, 1, hits[1].ChunkIndex)
	assert.Equal(t, 2, hits[2].ChunkIndex)
	assert.Equal(t, hits[0].Score, hits[1].Score)
}

func TestSearch_TruncatesToK(t *testing.T) {
	ix := Build([]string{
		"common term alpha",
		"common term beta",
		"common term gamma",
		"common term delta",
	})

	hits := ix.Search("common", 2)
	assert.Len(t, hits, 2)
}

func TestSearch_CaseInsensitive(t *testing.T) {
	ix := Build([]string{"The Quick Brown Fox"})

	hits := ix.Search("quick fox", 1)
	require.Len(t, hits, 1)
	assert.Equal(t, 0, hits[0].ChunkIndex)
}

func TestTokenize_NormalizesPunctuation(t *testing.T) {
	tokens := tokenize("Hello, world! (Testing) punctuation...")

	assert.Contains(t, tokens, "hello")
	assert.Contains(t, tokens, "world")
	assert.Contains(t, tokens, "testing")
	assert.Contains(t, tokens, "punctuation")
}
