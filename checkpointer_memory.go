package agent

import (
	"context"
	"sync"
)

// MemoryStore is an in-process CheckpointStore
type MemoryStore struct {
	mutex sync.RWMutex
	blobs map[string][]byte
}

var _ CheckpointStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: map[string][]byte{}}
}

func (s *MemoryStore) Put(ctx context.Context, key string, data []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.blobs[key] = append([]byte(nil), data...)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	data, ok := s.blobs[key]
	if !ok {
		return nil, ErrBlobNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.blobs, key)
	return nil
}

func (s *MemoryStore) Size(ctx context.Context, key string) (int64, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	data, ok := s.blobs[key]
	if !ok {
		return 0, ErrBlobNotFound
	}
	return int64(len(data)), nil
}

// Len returns the number of stored blobs, including the index.
func (s *MemoryStore) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.blobs)
}
