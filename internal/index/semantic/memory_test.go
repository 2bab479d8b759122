package semantic

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// keywordEmbedder embeds text as term counts over a fixed vocabulary,
// so cosine similarity reflects word overlap.
type keywordEmbedder struct {
	vocab []string
	err   error
}

func (e *keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	vec := make([]float32, len(e.vocab))
	lower := strings.ToLower(text)
	for i, word := range e.vocab {
		vec[i] = float32(strings.Count(lower, word))
	}
	return vec, nil
}

func (e *keywordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func testEmbedder() *keywordEmbedder {
	return &keywordEmbedder{vocab: []string{"sky", "blue", "grass", "green", "ocean"}}
}

func TestMemoryIndex_SearchOrdersByCosineSimilarity(t *testing.T) {
	ctx := context.Background()
	embedder := testEmbedder()

	ix := NewMemoryIndex()
	err := ix.Build(ctx, []string{
		"the grass is green",
		"the sky is blue",
		"the ocean is blue",
	}, embedder)
	require.NoError(t, err)

	hits, err := ix.Search(ctx, "what color is the sky", embedder, 3)
	require.NoError(t, err)
	require.NotEmpty(t, hits)

	assert.Equal(t, 1, hits[0].ChunkIndex)
	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
	}
}

func TestMemoryIndex_EmptyIndexYieldsNoHits(t *testing.T) {
	ctx := context.Background()
	embedder := testEmbedder()

	ix := NewMemoryIndex()
	require.NoError(t, ix.Build(ctx, nil, embedder))

	hits, err := ix.Search(ctx, "anything", embedder, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMemoryIndex_TruncatesToK(t *testing.T) {
	ctx := context.Background()
	embedder := testEmbedder()

	ix := NewMemoryIndex()
	require.NoError(t, ix.Build(ctx, []string{
		"blue sky", "blue ocean", "green grass", "blue blue blue",
	}, embedder))

	hits, err := ix.Search(ctx, "blue", embedder, 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestMemoryIndex_BuildErrorPropagates(t *testing.T) {
	ctx := context.Background()
	embedder := &keywordEmbedder{vocab: []string{"x"}, err: errors.New("embedding service down")}

	ix := NewMemoryIndex()
	err := ix.Build(ctx, []string{"some text"}, embedder)
	assert.Error(t, err)
}

func TestMemoryIndex_DropReleasesVectors(t *testing.T) {
	ctx := context.Background()
	embedder := testEmbedder()

	ix := NewMemoryIndex()
	require.NoError(t, ix.Build(ctx, []string{"blue sky"}, embedder))
	require.NoError(t, ix.Drop(ctx))

	hits, err := ix.Search(ctx, "blue", embedder, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1}, []float32{1, 2}))
}
