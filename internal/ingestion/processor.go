package ingestion

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docqa/backend/internal/index/lexical"
	"github.com/docqa/backend/internal/index/semantic"
	"github.com/docqa/backend/internal/metrics"
	"github.com/docqa/backend/internal/session"
	"github.com/docqa/backend/internal/storage/models"
	"github.com/docqa/backend/internal/storage/sqlite"
	"github.com/docqa/backend/pkg/logger"
)

// Upload is one extracted document ready for ingestion.
type Upload struct {
	Name  string
	Pages []string
}

// DocumentFailure reports a single document that could not be ingested;
// sibling documents in the same upload are unaffected.
type DocumentFailure struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

type Result struct {
	ChunksCreated int
	Documents     []string
	Failures      []DocumentFailure
}

// IndexFactory returns a fresh semantic index for a session. Each call
// must yield an index whose backing storage is independent of previous
// builds, so a failed rebuild never corrupts the installed one.
type IndexFactory func(sessionID string) semantic.Index

// Processor ingests uploads into a session: chunk, rebuild both indexes
// over the full chunk set, swap atomically.
type Processor struct {
	chunker  *Chunker
	embedder semantic.Embedder
	newIndex IndexFactory
	audit    *sqlite.Client
}

func NewProcessor(chunker *Chunker, embedder semantic.Embedder, newIndex IndexFactory, audit *sqlite.Client) *Processor {
	return &Processor{
		chunker:  chunker,
		embedder: embedder,
		newIndex: newIndex,
		audit:    audit,
	}
}

// Ingest adds uploads to the session. Documents with no extractable
// content are reported in Failures while the rest proceed. If the
// embedding capability fails, no partial index is retained and the
// session is left exactly as it was.
func (p *Processor) Ingest(ctx context.Context, sess *session.Session, uploads []Upload) (*Result, error) {
	// The whole read-rebuild-swap cycle holds the session's ingest lock;
	// a concurrent upload would otherwise read a stale document set and
	// its swap would discard this one's documents.
	sess.LockIngest()
	defer sess.UnlockIngest()

	result := &Result{}

	existing := sess.Documents()
	perDoc := make(map[string][]session.Chunk, len(existing)+len(uploads))
	for _, doc := range existing {
		perDoc[doc.ID] = p.chunker.Chunk(doc)
	}

	var accepted []session.Document
	for _, up := range uploads {
		doc := session.Document{
			ID:         uuid.New().String(),
			Name:       up.Name,
			Pages:      up.Pages,
			UploadedAt: time.Now(),
		}

		chunks := p.chunker.Chunk(doc)
		if len(chunks) == 0 {
			result.Failures = append(result.Failures, DocumentFailure{
				Name:   up.Name,
				Reason: "no content extracted",
			})
			metrics.IngestTotal.WithLabelValues("failed").Inc()
			logger.Warn("Document skipped: no content extracted",
				zap.String("session_id", sess.ID),
				zap.String("document", up.Name),
			)
			continue
		}

		perDoc[doc.ID] = chunks
		accepted = append(accepted, doc)
		result.ChunksCreated += len(chunks)
	}

	if len(accepted) == 0 {
		result.Documents = sess.DocumentNames()
		return result, nil
	}

	allDocs := append(existing, accepted...)

	var chunks []session.Chunk
	for _, doc := range allDocs {
		for _, chunk := range perDoc[doc.ID] {
			chunk.Position = len(chunks)
			chunks = append(chunks, chunk)
		}
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	lex := lexical.Build(texts)

	sem := p.newIndex(sess.ID)
	if err := sem.Build(ctx, texts, p.embedder); err != nil {
		if dropErr := sem.Drop(ctx); dropErr != nil {
			logger.Warn("Failed to release partial index", zap.Error(dropErr))
		}
		return nil, err
	}

	old := sess.ReplaceCorpus(allDocs, chunks, lex, sem)
	if old != nil {
		if err := old.Drop(ctx); err != nil {
			logger.Warn("Failed to release replaced index", zap.Error(err))
		}
	}

	for _, doc := range accepted {
		metrics.IngestTotal.WithLabelValues("ok").Inc()
		p.recordDocument(sess.ID, doc, len(perDoc[doc.ID]))
	}
	metrics.IngestChunks.Observe(float64(result.ChunksCreated))
	result.Documents = sess.DocumentNames()

	logger.Info("Upload ingested",
		zap.String("session_id", sess.ID),
		zap.Int("documents", len(accepted)),
		zap.Int("chunks_created", result.ChunksCreated),
		zap.Int("total_chunks", len(chunks)),
	)

	return result, nil
}

func (p *Processor) recordDocument(sessionID string, doc session.Document, chunkCount int) {
	if p.audit == nil {
		return
	}

	err := p.audit.InsertDocument(&models.DocumentRecord{
		ID:         doc.ID,
		SessionID:  sessionID,
		Name:       doc.Name,
		PageCount:  len(doc.Pages),
		ChunkCount: chunkCount,
		CreatedAt:  doc.UploadedAt,
	})
	if err != nil {
		logger.Warn("Failed to record document", zap.Error(err))
	}
}
