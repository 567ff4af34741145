package history

import (
	"context"
	"sync"

	"github.com/trinity-symphony/coordination/types"
)

// MemoryStore is an in-memory history log. Suitable for single-process
// deployments and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	messages []*types.Message
}

// NewMemoryStore creates an empty in-memory log.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, msg *types.Message) error {
	if msg == nil {
		return types.ErrNilMessage
	}
	s.mu.Lock()
	s.messages = append(s.messages, msg.Clone())
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]*types.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.Clone()
	}
	return out, nil
}

func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages), nil
}

func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
