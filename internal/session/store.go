package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docqa/backend/internal/errs"
	"github.com/docqa/backend/internal/metrics"
	"github.com/docqa/backend/pkg/logger"
)

// Store is the session lifecycle abstraction consumed by the engine and
// the server layer. Sessions are independent; the store only guards its
// own map.
type Store interface {
	Create() *Session
	Get(id string) (*Session, error)
	Delete(id string) (*Session, error)
}

type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
	}
}

func (m *MemoryStore) Create() *Session {
	sess := New(uuid.New().String())

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()

	metrics.ActiveSessions.Inc()
	logger.Info("Session created", zap.String("session_id", sess.ID))
	return sess
}

func (m *MemoryStore) Get(id string) (*Session, error) {
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		return nil, errs.ErrSessionNotFound
	}
	return sess, nil
}

// Delete removes the session and returns it so the caller can release
// resources the session still holds (remote vector partitions).
func (m *MemoryStore) Delete(id string) (*Session, error) {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return nil, errs.ErrSessionNotFound
	}

	metrics.ActiveSessions.Dec()
	logger.Info("Session deleted", zap.String("session_id", id))
	return sess, nil
}

// DeleteIdle removes sessions unused for longer than ttl and returns
// them. Only called when an idle TTL is explicitly configured.
func (m *MemoryStore) DeleteIdle(ttl time.Duration) []*Session {
	cutoff := time.Now().Add(-ttl)

	m.mu.Lock()
	var expired []*Session
	for id, sess := range m.sessions {
		if sess.LastUsed().Before(cutoff) {
			expired = append(expired, sess)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, sess := range expired {
		metrics.ActiveSessions.Dec()
		logger.Info("Idle session expired", zap.String("session_id", sess.ID))
	}
	return expired
}
