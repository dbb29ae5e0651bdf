package history

import (
	"context"
	"sync"
	"time"
)

// MemStore is an in-process [Store]. It backs deployments that run without
// PostgreSQL; history then does not survive a restart.
type MemStore struct {
	mu    sync.RWMutex
	convs map[string][]Message
}

var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{convs: make(map[string][]Message)}
}

// Load implements [Store].
func (s *MemStore) Load(_ context.Context, conversationID string, since time.Time) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Message
	for _, m := range s.convs[conversationID] {
		if m.Timestamp.Before(since) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// Append implements [Store].
func (s *MemStore) Append(_ context.Context, conversationID string, msgs ...Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs[conversationID] = append(s.convs[conversationID], msgs...)
	return nil
}

// Clear implements [Store].
func (s *MemStore) Clear(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.convs, conversationID)
	return nil
}
