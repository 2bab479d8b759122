// Package semantic provides the embedding-similarity index over a
// session's chunks. Two implementations exist: an in-process index used
// by default, and a Milvus-backed index for deployments that keep
// vectors out of the API process.
package semantic

import "context"

// Embedder is the embedding capability consumed by the index.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type Hit struct {
	ChunkIndex int
	Score      float64
}

// Index embeds every chunk once at build time and embeds the query once
// per search. A failed build retains no partial state; Drop releases any
// resources held outside the process.
type Index interface {
	Build(ctx context.Context, texts []string, embedder Embedder) error
	Search(ctx context.Context, query string, embedder Embedder, k int) ([]Hit, error)
	Drop(ctx context.Context) error
}
