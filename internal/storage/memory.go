package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/refurd/portfolio-health-system/internal/email"
	"github.com/refurd/portfolio-health-system/internal/priority"
	"github.com/refurd/portfolio-health-system/internal/thread"
)

// MemoryStore is an in-memory Store. Safe for concurrent use.
type MemoryStore struct {
	mu         sync.RWMutex
	messages   []*email.Message
	threads    map[string]*thread.Thread
	threadIDs  []string
	priorities []*priority.Priority
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{threads: make(map[string]*thread.Thread)}
}

func (s *MemoryStore) InsertMessage(_ context.Context, m *email.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	s.messages = append(s.messages, m)
	return m.ID, nil
}

func (s *MemoryStore) Messages(_ context.Context) ([]*email.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*email.Message, len(s.messages))
	copy(out, s.messages)
	return out, nil
}

func (s *MemoryStore) InsertThread(_ context.Context, t *thread.Thread) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	s.threads[t.ID] = t
	s.threadIDs = append(s.threadIDs, t.ID)
	return t.ID, nil
}

func (s *MemoryStore) Thread(_ context.Context, id string) (*thread.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.threads[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t, nil
}

// Threads returns threads in insertion order.
func (s *MemoryStore) Threads(_ context.Context) ([]*thread.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*thread.Thread, 0, len(s.threadIDs))
	for _, id := range s.threadIDs {
		out = append(out, s.threads[id])
	}
	return out, nil
}

func (s *MemoryStore) InsertPriority(_ context.Context, p *priority.Priority) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	s.priorities = append(s.priorities, p)
	return p.ID, nil
}

func (s *MemoryStore) Priorities(_ context.Context) ([]*priority.Priority, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*priority.Priority, len(s.priorities))
	copy(out, s.priorities)
	return out, nil
}

func (s *MemoryStore) ClearAnalysis(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.threads = make(map[string]*thread.Thread)
	s.threadIDs = nil
	s.priorities = nil
	return nil
}
