package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Abhi-vish/financial-insights-ai/internal/observability"
)

// MemoryStore keeps sessions with their datasets in process memory. Entries
// expire after sitting idle for the TTL.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]*Session
	ttl   time.Duration
	now   func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MemoryStore{
		items: make(map[string]*Session),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (m *MemoryStore) Create(_ context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" {
		return fmt.Errorf("session id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.items[sess.ID]; exists {
		return fmt.Errorf("session %q already exists", sess.ID)
	}
	now := m.now()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.LastAccess = now
	m.items[sess.ID] = sess
	observability.SetActiveSessions(len(m.items))
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.items[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	now := m.now()
	if now.Sub(sess.LastAccess) > m.ttl {
		delete(m.items, id)
		observability.SetActiveSessions(len(m.items))
		return nil, ErrSessionNotFound
	}
	sess.LastAccess = now
	return sess, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return ErrSessionNotFound
	}
	delete(m.items, id)
	observability.SetActiveSessions(len(m.items))
	return nil
}

func (m *MemoryStore) List(_ context.Context) ([]*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.items))
	for _, sess := range m.items {
		out = append(out, sess)
	}
	return out, nil
}

func (m *MemoryStore) Sweep(_ context.Context, now time.Time) ([]*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed []*Session
	for id, sess := range m.items {
		if now.Sub(sess.LastAccess) > m.ttl {
			removed = append(removed, sess)
			delete(m.items, id)
		}
	}
	if len(removed) > 0 {
		observability.SetActiveSessions(len(m.items))
	}
	return removed, nil
}

// SetNowFunc overrides the clock, for tests.
func (m *MemoryStore) SetNowFunc(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}
