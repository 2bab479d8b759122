package ingestion

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docqa/backend/internal/index/semantic"
	"github.com/docqa/backend/internal/session"
)

type stubEmbedder struct {
	err error
}

func (e *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func (e *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
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

// slowEmbedder widens the window between reading the existing document
// set and installing the rebuilt corpus.
type slowEmbedder struct {
	stubEmbedder
	delay time.Duration
}

func (e *slowEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	time.Sleep(e.delay)
	return e.stubEmbedder.EmbedBatch(ctx, texts)
}

func memoryFactory(string) semantic.Index {
	return semantic.NewMemoryIndex()
}

func newTestProcessor(t *testing.T, embedder semantic.Embedder) *Processor {
	t.Helper()
	chunker, err := NewChunker(50, 10)
	require.NoError(t, err)
	return NewProcessor(chunker, embedder, memoryFactory, nil)
}

func TestIngest_BuildsCorpus(t *testing.T) {
	p := newTestProcessor(t, &stubEmbedder{})
	sess := session.New("s1")

	result, err := p.Ingest(context.Background(), sess, []Upload{
		{Name: "a.pdf", Pages: []string{"The quick brown fox jumps over the lazy dog."}},
	})
	require.NoError(t, err)

	assert.Positive(t, result.ChunksCreated)
	assert.Equal(t, []string{"a.pdf"}, result.Documents)
	assert.Empty(t, result.Failures)

	snap := sess.Snapshot()
	assert.Len(t, snap.Chunks, result.ChunksCreated)
	assert.NotNil(t, snap.Lexical)
	assert.NotNil(t, snap.Semantic)
}

func TestIngest_EmptyDocumentReportedNotFatal(t *testing.T) {
	p := newTestProcessor(t, &stubEmbedder{})
	sess := session.New("s1")

	result, err := p.Ingest(context.Background(), sess, []Upload{
		{Name: "empty.pdf", Pages: []string{"   "}},
		{Name: "good.pdf", Pages: []string{"Actual content worth indexing."}},
	})
	require.NoError(t, err)

	require.Len(t, result.Failures, 1)
	assert.Equal(t, "empty.pdf", result.Failures[0].Name)
	assert.Equal(t, []string{"good.pdf"}, result.Documents)
}

func TestIngest_AllEmptyLeavesSessionUntouched(t *testing.T) {
	p := newTestProcessor(t, &stubEmbedder{})
	sess := session.New("s1")

	result, err := p.Ingest(context.Background(), sess, []Upload{
		{Name: "empty.pdf", Pages: nil},
	})
	require.NoError(t, err)

	assert.Len(t, result.Failures, 1)
	assert.Empty(t, result.Documents)
	assert.Empty(t, sess.Snapshot().Chunks)
}

func TestIngest_SecondUploadReindexesEverything(t *testing.T) {
	p := newTestProcessor(t, &stubEmbedder{})
	sess := session.New("s1")

	_, err := p.Ingest(context.Background(), sess, []Upload{
		{Name: "a.pdf", Pages: []string{strings.Repeat("alpha ", 20)}},
	})
	require.NoError(t, err)
	firstCount := len(sess.Snapshot().Chunks)

	_, err = p.Ingest(context.Background(), sess, []Upload{
		{Name: "b.pdf", Pages: []string{strings.Repeat("beta ", 20)}},
	})
	require.NoError(t, err)

	snap := sess.Snapshot()
	assert.Greater(t, len(snap.Chunks), firstCount)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, sess.DocumentNames())

	// Positions are session-global ordinals over the rebuilt corpus.
	for i, chunk := range snap.Chunks {
		assert.Equal(t, i, chunk.Position)
	}
	assert.Equal(t, len(snap.Chunks), snap.Lexical.Len())
}

func TestIngest_ConcurrentUploadsBothRetained(t *testing.T) {
	p := newTestProcessor(t, &slowEmbedder{delay: 20 * time.Millisecond})
	sess := session.New("s1")

	var wg sync.WaitGroup
	for _, name := range []string{"a.pdf", "b.pdf"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			_, err := p.Ingest(context.Background(), sess, []Upload{
				{Name: name, Pages: []string{"content belonging to " + name}},
			})
			assert.NoError(t, err)
		}(name)
	}
	wg.Wait()

	names := sess.DocumentNames()
	require.Len(t, names, 2)
	assert.ElementsMatch(t, []string{"a.pdf", "b.pdf"}, names)
	assert.Equal(t, len(sess.Snapshot().Chunks), sess.Snapshot().Lexical.Len())
}

func TestIngest_EmbeddingFailureLeavesSessionUnchanged(t *testing.T) {
	p := newTestProcessor(t, &stubEmbedder{})
	sess := session.New("s1")

	_, err := p.Ingest(context.Background(), sess, []Upload{
		{Name: "a.pdf", Pages: []string{"Original corpus content."}},
	})
	require.NoError(t, err)
	before := sess.Snapshot()

	failing := newTestProcessor(t, &stubEmbedder{err: assert.AnError})
	_, err = failing.Ingest(context.Background(), sess, []Upload{
		{Name: "b.pdf", Pages: []string{"New content that will fail to embed."}},
	})
	require.Error(t, err)

	after := sess.Snapshot()
	assert.Equal(t, len(before.Chunks), len(after.Chunks))
	assert.Equal(t, []string{"a.pdf"}, sess.DocumentNames())
	assert.Same(t, before.Semantic, after.Semantic)
}
