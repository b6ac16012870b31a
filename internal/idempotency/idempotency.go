// Package idempotency makes order placement safe to retry. When a request
// carries an Idempotency-Key header, the key is claimed before any stock is
// touched and the response is stored under it once the order commits, so a
// retried or duplicated request can never decrement stock twice for the
// same logical order.
package idempotency

import (
	"context"
	"sync"
)

// StoredResponse is the response replayed for a reused key.
type StoredResponse struct {
	StatusCode int
	Body       []byte
	OrderID    string
}

// Store persists responses by idempotency key.
type Store interface {
	// Reserve claims key for the current request. It returns false when
	// the key is already held or completed; Get then tells which.
	Reserve(ctx context.Context, key string) (bool, error)
	// Get returns the stored response for key, or nil while the key is
	// unseen or still held by an in-flight request.
	Get(ctx context.Context, key string) (*StoredResponse, error)
	// Save records the response for a key this request reserved.
	Save(ctx context.Context, key string, response StoredResponse) error
	// Release frees a reserved key whose request failed, so the client
	// can retry with the same key.
	Release(ctx context.Context, key string) error
}

// MemoryStore is an in-memory Store for tests and single-process setups.
type MemoryStore struct {
	mu      sync.Mutex
	pending map[string]struct{}
	items   map[string]StoredResponse
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pending: make(map[string]struct{}),
		items:   make(map[string]StoredResponse),
	}
}

// Reserve implements Store.
func (s *MemoryStore) Reserve(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.pending[key]; held {
		return false, nil
	}
	if _, done := s.items[key]; done {
		return false, nil
	}
	s.pending[key] = struct{}{}
	return true, nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) (*StoredResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[key]
	if !ok {
		return nil, nil
	}
	out := v
	return &out, nil
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, key string, response StoredResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, key)
	s.items[key] = response
	return nil
}

// Release implements Store.
func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, key)
	return nil
}
