// Package engine exposes the core operations consumed by the server
// layer: session lifecycle, ingest, ask, history.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docqa/backend/internal/answer"
	"github.com/docqa/backend/internal/ingestion"
	"github.com/docqa/backend/internal/metrics"
	"github.com/docqa/backend/internal/retrieval"
	"github.com/docqa/backend/internal/session"
	"github.com/docqa/backend/internal/storage/models"
	"github.com/docqa/backend/internal/storage/sqlite"
	"github.com/docqa/backend/pkg/logger"
)

const (
	// msgNoDocuments answers a question asked before any upload. Not a
	// conversation turn: nothing was retrieved or generated.
	msgNoDocuments = "Please upload documents first."
	// msgNoRelevantChunks answers when the indexes hold chunks but none
	// are relevant to the question.
	msgNoRelevantChunks = "I couldn't find relevant information in the uploaded documents."
)

type Engine struct {
	store     session.Store
	processor *ingestion.Processor
	retriever *retrieval.Retriever
	composer  *answer.Composer
	audit     *sqlite.Client
}

// AskResult is a completed ask operation: the answer body, its resolved
// citations, and the session history including the new turn.
type AskResult struct {
	Answer     string
	References string
	Citations  []answer.Citation
	ChunksUsed int
	History    []session.Turn
}

func New(store session.Store, processor *ingestion.Processor, retriever *retrieval.Retriever, composer *answer.Composer, audit *sqlite.Client) *Engine {
	return &Engine{
		store:     store,
		processor: processor,
		retriever: retriever,
		composer:  composer,
		audit:     audit,
	}
}

func (e *Engine) CreateSession() *session.Session {
	sess := e.store.Create()

	if e.audit != nil {
		err := e.audit.InsertSession(&models.SessionRecord{ID: sess.ID, CreatedAt: sess.CreatedAt})
		if err != nil {
			logger.Warn("Failed to record session", zap.Error(err))
		}
	}

	return sess
}

func (e *Engine) GetSession(id string) (*session.Session, error) {
	sess, err := e.store.Get(id)
	if err != nil {
		return nil, err
	}
	sess.Touch()
	return sess, nil
}

// EndSession destroys the session atomically: documents, chunks, both
// indexes and history all go together.
func (e *Engine) EndSession(ctx context.Context, id string) error {
	sess, err := e.store.Delete(id)
	if err != nil {
		return err
	}

	if sem := sess.SemanticIndex(); sem != nil {
		if err := sem.Drop(ctx); err != nil {
			logger.Warn("Failed to release semantic index", zap.Error(err))
		}
	}

	if e.audit != nil {
		if err := e.audit.MarkSessionEnded(id); err != nil {
			logger.Warn("Failed to record session end", zap.Error(err))
		}
	}

	return nil
}

// Ingest processes uploads into the session's corpus. See
// ingestion.Processor for the per-document failure semantics.
func (e *Engine) Ingest(ctx context.Context, sess *session.Session, uploads []ingestion.Upload) (*ingestion.Result, error) {
	return e.processor.Ingest(ctx, sess, uploads)
}

// Ask answers a question from the session's documents. The turn is
// appended to history only when an answer was actually produced; a
// failed or timed-out model call leaves the session unchanged.
func (e *Engine) Ask(ctx context.Context, sess *session.Session, question string) (*AskResult, error) {
	start := time.Now()

	snap := sess.Snapshot()

	if len(snap.Chunks) == 0 {
		metrics.AskTotal.WithLabelValues("no_documents").Inc()
		return &AskResult{
			Answer:  msgNoDocuments,
			History: snap.History,
		}, nil
	}

	retrieved, err := e.retriever.Retrieve(ctx, question, snap)
	if err != nil {
		e.observeAsk(start, "retrieval_failed")
		return nil, err
	}

	var result *AskResult
	if len(retrieved) == 0 {
		result = &AskResult{Answer: msgNoRelevantChunks}
	} else {
		composed, err := e.composer.Answer(ctx, question, retrieved, snap.History)
		if err != nil {
			e.observeAsk(start, "completion_failed")
			return nil, err
		}
		result = &AskResult{
			Answer:     composed.Text,
			References: composed.References,
			Citations:  composed.Citations,
			ChunksUsed: len(retrieved),
		}
	}

	turn := session.Turn{
		Question:  question,
		Answer:    result.Answer,
		Timestamp: time.Now(),
	}
	sess.AppendTurn(turn)
	result.History = sess.History()

	e.recordAsk(sess.ID, turn, result.ChunksUsed, time.Since(start))
	e.observeAsk(start, "ok")

	logger.Info("Question answered",
		zap.String("session_id", sess.ID),
		zap.Int("chunks_used", result.ChunksUsed),
		zap.Int("citations", len(result.Citations)),
	)

	return result, nil
}

// ClearHistory removes all conversation turns; documents and indexes
// are untouched.
func (e *Engine) ClearHistory(sess *session.Session) {
	sess.ClearHistory()
	logger.Info("History cleared", zap.String("session_id", sess.ID))
}

// ListDocuments returns document names in upload order.
func (e *Engine) ListDocuments(sess *session.Session) []string {
	return sess.DocumentNames()
}

func (e *Engine) History(sess *session.Session) []session.Turn {
	return sess.History()
}

// AuditHistory reads persisted ask records for a session, most recent
// first. Unlike in-memory history it survives restarts and session end.
func (e *Engine) AuditHistory(sessionID string, limit int) ([]models.AskRecord, error) {
	if e.audit == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	return e.audit.GetAskHistory(sessionID, limit)
}

func (e *Engine) observeAsk(start time.Time, status string) {
	metrics.AskTotal.WithLabelValues(status).Inc()
	metrics.AskDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
}

func (e *Engine) recordAsk(sessionID string, turn session.Turn, chunksUsed int, latency time.Duration) {
	if e.audit == nil {
		return
	}

	err := e.audit.InsertAskRecord(&models.AskRecord{
		ID:         uuid.New().String(),
		SessionID:  sessionID,
		Question:   turn.Question,
		Answer:     turn.Answer,
		ChunksUsed: chunksUsed,
		LatencyMS:  int(latency.Milliseconds()),
		CreatedAt:  turn.Timestamp,
	})
	if err != nil {
		logger.Warn("Failed to record ask", zap.Error(err))
	}
}
