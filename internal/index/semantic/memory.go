package semantic

import (
	"context"
	"math"
	"sort"
)

// MemoryIndex keeps chunk vectors in process memory and scores by cosine
// similarity. Vectors live exactly as long as the session that built them.
type MemoryIndex struct {
	vectors [][]float32
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{}
}

func (m *MemoryIndex) Build(ctx context.Context, texts []string, embedder Embedder) error {
	if len(texts) == 0 {
		m.vectors = nil
		return nil
	}

	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}

	m.vectors = vectors
	return nil
}

func (m *MemoryIndex) Search(ctx context.Context, query string, embedder Embedder, k int) ([]Hit, error) {
	if len(m.vectors) == 0 || k <= 0 {
		return nil, nil
	}

	queryVec, err := embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(m.vectors))
	for i, vec := range m.vectors {
		hits = append(hits, Hit{ChunkIndex: i, Score: cosineSimilarity(queryVec, vec)})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkIndex < hits[j].ChunkIndex
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (m *MemoryIndex) Drop(ctx context.Context) error {
	m.vectors = nil
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
