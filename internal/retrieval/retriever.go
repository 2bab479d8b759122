// Package retrieval fuses lexical and semantic rankings into a single
// relevant-chunk set per query.
package retrieval

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/docqa/backend/internal/index/lexical"
	"github.com/docqa/backend/internal/index/semantic"
	"github.com/docqa/backend/internal/metrics"
	"github.com/docqa/backend/internal/session"
	"github.com/docqa/backend/pkg/logger"
)

// RetrievedChunk is ephemeral per-query output; discarded once the
// answer is composed.
type RetrievedChunk struct {
	Chunk         session.Chunk
	SemanticScore float64
	LexicalScore  float64
	FusedScore    float64
}

type Retriever struct {
	embedder       semantic.Embedder
	topK           int
	candidateK     int
	semanticWeight float64
}

// New builds a retriever. candidateK is how many hits each index
// contributes before fusion; it is clamped to at least topK so fusion
// can re-rank beyond either single ranking's top slice.
func New(embedder semantic.Embedder, topK, candidateK int, semanticWeight float64) *Retriever {
	if candidateK < topK {
		candidateK = topK
	}
	return &Retriever{
		embedder:       embedder,
		topK:           topK,
		candidateK:     candidateK,
		semanticWeight: semanticWeight,
	}
}

type candidate struct {
	semantic float64
	lexical  float64
}

// Retrieve queries both indexes, fuses normalized scores as a weighted
// combination (union: a chunk missing from one ranking scores 0 there),
// and returns up to topK chunks by descending fused score with chunk
// position breaking ties. A session with zero chunks yields an empty
// result and no error.
func (r *Retriever) Retrieve(ctx context.Context, query string, snap session.Snapshot) ([]RetrievedChunk, error) {
	if len(snap.Chunks) == 0 {
		return nil, nil
	}

	lexHits := snap.Lexical.Search(query, r.candidateK)

	semHits, err := snap.Semantic.Search(ctx, query, r.embedder, r.candidateK)
	if err != nil {
		return nil, err
	}

	metrics.RetrievedChunks.WithLabelValues("lexical").Observe(float64(len(lexHits)))
	metrics.RetrievedChunks.WithLabelValues("semantic").Observe(float64(len(semHits)))

	candidates := make(map[int]*candidate)

	// Each list normalizes against its best positive score. A semantic
	// list where every cosine similarity is negative carries no positive
	// signal and contributes zero weight to fusion.
	maxSem := maxScore(semHits)
	for _, hit := range semHits {
		c := ensure(candidates, hit.ChunkIndex)
		if maxSem > 0 {
			c.semantic = hit.Score / maxSem
		}
	}

	maxLex := maxScoreLex(lexHits)
	for _, hit := range lexHits {
		c := ensure(candidates, hit.ChunkIndex)
		if maxLex > 0 {
			c.lexical = hit.Score / maxLex
		}
	}

	results := make([]RetrievedChunk, 0, len(candidates))
	for idx, c := range candidates {
		results = append(results, RetrievedChunk{
			Chunk:         snap.Chunks[idx],
			SemanticScore: c.semantic,
			LexicalScore:  c.lexical,
			FusedScore:    r.semanticWeight*c.semantic + (1-r.semanticWeight)*c.lexical,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].FusedScore != results[j].FusedScore {
			return results[i].FusedScore > results[j].FusedScore
		}
		return results[i].Chunk.Position < results[j].Chunk.Position
	})

	if len(results) > r.topK {
		results = results[:r.topK]
	}

	logger.Debug("Chunks retrieved",
		zap.Int("lexical_hits", len(lexHits)),
		zap.Int("semantic_hits", len(semHits)),
		zap.Int("fused", len(results)),
	)

	return results, nil
}

func ensure(candidates map[int]*candidate, idx int) *candidate {
	if c, ok := candidates[idx]; ok {
		return c
	}
	c := &candidate{}
	candidates[idx] = c
	return c
}

func maxScore(hits []semantic.Hit) float64 {
	var max float64
	for _, h := range hits {
		if h.Score > max {
			max = h.Score
		}
	}
	return max
}

func maxScoreLex(hits []lexical.Hit) float64 {
	var max float64
	for _, h := range hits {
		if h.Score > max {
			max = h.Score
		}
	}
	return max
}
