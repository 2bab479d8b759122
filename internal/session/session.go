// Package session holds per-session state: documents, chunks, both
// indexes and conversation history. All mutation is serialized through
// the session's lock; readers see either the fully-old or fully-new
// corpus, never a partially rebuilt one.
package session

import (
	"sync"
	"time"

	"github.com/docqa/backend/internal/index/lexical"
	"github.com/docqa/backend/internal/index/semantic"
)

// Document is raw page-separated text plus identity. Immutable after
// upload; discarded with the session.
type Document struct {
	ID         string
	Name       string
	Pages      []string
	UploadedAt time.Time
}

// Chunk is a fixed-size overlapping slice of a document's text. Page is
// the 1-based page where the chunk's starting offset falls; Position is
// the chunk's ordinal in the session's full chunk sequence.
type Chunk struct {
	ID           string
	DocumentID   string
	DocumentName string
	Page         int
	Position     int
	Text         string
}

// Turn is one completed question/answer exchange.
type Turn struct {
	Question  string
	Answer    string
	Timestamp time.Time
}

// Snapshot is a consistent read view of a session's corpus and history.
// Chunks and indexes are immutable once installed, so holding a snapshot
// is safe across a concurrent upload (which installs replacements).
type Snapshot struct {
	Chunks   []Chunk
	Lexical  *lexical.Index
	Semantic semantic.Index
	History  []Turn
}

type Session struct {
	ID        string
	CreatedAt time.Time

	// ingestMu serializes whole upload cycles (read documents, rebuild
	// indexes, swap). Separate from mu so asks keep reading snapshots
	// while an ingest is in flight.
	ingestMu sync.Mutex

	mu        sync.RWMutex
	lastUsed  time.Time
	documents []Document
	chunks    []Chunk
	lexical   *lexical.Index
	semantic  semantic.Index
	history   []Turn
}

func New(id string) *Session {
	now := time.Now()
	return &Session{
		ID:        id,
		CreatedAt: now,
		lastUsed:  now,
	}
}

// LockIngest claims the session's upload cycle. Concurrent uploads to
// the same session run one after another; each sees the documents the
// previous one installed.
func (s *Session) LockIngest() {
	s.ingestMu.Lock()
}

func (s *Session) UnlockIngest() {
	s.ingestMu.Unlock()
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := make([]Turn, len(s.history))
	copy(history, s.history)

	return Snapshot{
		Chunks:   s.chunks,
		Lexical:  s.lexical,
		Semantic: s.semantic,
		History:  history,
	}
}

func (s *Session) Documents() []Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]Document, len(s.documents))
	copy(docs, s.documents)
	return docs
}

// DocumentNames returns document names in upload order.
func (s *Session) DocumentNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.documents))
	for i, d := range s.documents {
		names[i] = d.Name
	}
	return names
}

// ReplaceCorpus atomically installs the rebuilt corpus and both indexes,
// returning the previous semantic index so the caller can release it.
func (s *Session) ReplaceCorpus(docs []Document, chunks []Chunk, lex *lexical.Index, sem semantic.Index) semantic.Index {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.semantic
	s.documents = docs
	s.chunks = chunks
	s.lexical = lex
	s.semantic = sem
	s.lastUsed = time.Now()
	return old
}

func (s *Session) AppendTurn(turn Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, turn)
	s.lastUsed = time.Now()
}

func (s *Session) History() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := make([]Turn, len(s.history))
	copy(history, s.history)
	return history
}

// ClearHistory drops all conversation turns without touching documents
// or indexes.
func (s *Session) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = nil
	s.lastUsed = time.Now()
}

func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastUsed = time.Now()
}

func (s *Session) LastUsed() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lastUsed
}

// SemanticIndex returns the currently installed semantic index, if any.
func (s *Session) SemanticIndex() semantic.Index {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.semantic
}
