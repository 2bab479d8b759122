package semantic

import (
	"context"
	"fmt"
	"math"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/docqa/backend/pkg/logger"
)

// MilvusIndex stores one session's chunk vectors in a dedicated partition
// of a shared collection. Build replaces the partition wholesale; Drop
// removes it when the session ends. Vectors are L2-normalized on insert
// so inner-product search scores equal cosine similarity.
type MilvusIndex struct {
	client     client.Client
	collection string
	partition  string
	dim        int
	size       int
}

func NewMilvusIndex(c client.Client, collection, partition string, dim int) *MilvusIndex {
	return &MilvusIndex{
		client:     c,
		collection: collection,
		partition:  partition,
		dim:        dim,
	}
}

// EnsureCollection creates and loads the shared chunk collection if it
// does not exist yet.
func EnsureCollection(ctx context.Context, c client.Client, collection string, dim int) error {
	has, err := c.HasCollection(ctx, collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if has {
		return nil
	}

	schema := &entity.Schema{
		CollectionName: collection,
		Description:    "per-session document chunk embeddings",
		Fields: []*entity.Field{
			{
				Name:       "chunk_pk",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "96",
				},
			},
			{
				Name:     "position",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", dim),
				},
			},
		},
	}

	if err := c.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.IP, 128)
	if err != nil {
		return fmt.Errorf("failed to build index spec: %w", err)
	}
	if err := c.CreateIndex(ctx, collection, "embedding", idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	// Partitions are loaded individually as sessions build them, so the
	// collection itself stays released here.
	logger.Info("Milvus collection created", zap.String("collection", collection))
	return nil
}

func (m *MilvusIndex) Build(ctx context.Context, texts []string, embedder Embedder) error {
	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}

	has, err := m.client.HasPartition(ctx, m.collection, m.partition)
	if err != nil {
		return fmt.Errorf("failed to check partition: %w", err)
	}
	if has {
		if err := m.client.DropPartition(ctx, m.collection, m.partition); err != nil {
			return fmt.Errorf("failed to drop stale partition: %w", err)
		}
	}
	if err := m.client.CreatePartition(ctx, m.collection, m.partition); err != nil {
		return fmt.Errorf("failed to create partition: %w", err)
	}

	if len(texts) == 0 {
		m.size = 0
		return nil
	}

	pks := make([]string, len(texts))
	positions := make([]int64, len(texts))
	embeddings := make([][]float32, len(texts))
	for i, vec := range vectors {
		pks[i] = fmt.Sprintf("%s_%d", m.partition, i)
		positions[i] = int64(i)
		embeddings[i] = l2Normalize(vec)
	}

	_, err = m.client.Insert(
		ctx,
		m.collection,
		m.partition,
		entity.NewColumnVarChar("chunk_pk", pks),
		entity.NewColumnInt64("position", positions),
		entity.NewColumnFloatVector("embedding", m.dim, embeddings),
	)
	if err != nil {
		return fmt.Errorf("failed to insert vectors: %w", err)
	}

	if err := m.client.Flush(ctx, m.collection, false); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	if err := m.client.LoadPartitions(ctx, m.collection, []string{m.partition}, false); err != nil {
		return fmt.Errorf("failed to load partition: %w", err)
	}

	m.size = len(texts)
	logger.Info("Milvus partition built",
		zap.String("partition", m.partition),
		zap.Int("vectors", m.size),
	)
	return nil
}

func (m *MilvusIndex) Search(ctx context.Context, query string, embedder Embedder, k int) ([]Hit, error) {
	if m.size == 0 || k <= 0 {
		return nil, nil
	}

	queryVec, err := embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := m.client.Search(
		ctx,
		m.collection,
		[]string{m.partition},
		"",
		[]string{"position"},
		[]entity.Vector{entity.FloatVector(l2Normalize(queryVec))},
		"embedding",
		entity.IP,
		k,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	hits := make([]Hit, 0, k)
	for _, sr := range searchResult {
		posCol, ok := sr.Fields.GetColumn("position").(*entity.ColumnInt64)
		if !ok {
			return nil, fmt.Errorf("unexpected position column type")
		}
		for i := 0; i < sr.ResultCount; i++ {
			hits = append(hits, Hit{
				ChunkIndex: int(posCol.Data()[i]),
				Score:      float64(sr.Scores[i]),
			})
		}
	}

	return hits, nil
}

func (m *MilvusIndex) Drop(ctx context.Context) error {
	has, err := m.client.HasPartition(ctx, m.collection, m.partition)
	if err != nil {
		return fmt.Errorf("failed to check partition: %w", err)
	}
	if !has {
		return nil
	}
	if err := m.client.ReleasePartitions(ctx, m.collection, []string{m.partition}); err != nil {
		logger.Warn("Failed to release partition before drop", zap.Error(err))
	}
	if err := m.client.DropPartition(ctx, m.collection, m.partition); err != nil {
		return fmt.Errorf("failed to drop partition: %w", err)
	}
	m.size = 0
	return nil
}

func l2Normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)

	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}
