package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Upload failures surfaced to the submission flow.
var (
	ErrUploadTimeout = errors.New("image upload timed out")
	ErrUploadFailed  = errors.New("image upload failed")
	ErrNotFound      = errors.New("object not found")
)

// Storage stores report images in an object store.
type Storage interface {
	// Upload stores data under key and returns the public URL.
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)

	// Delete removes the object stored under key.
	Delete(ctx context.Context, key string) error
}

// MemoryStorage implements an in-memory object store for testing/development.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryStorage creates a new in-memory object store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: make(map[string][]byte)}
}

// Upload stores the object and returns a synthetic URL.
func (s *MemoryStorage) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", ErrUploadTimeout
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects[key] = data
	return fmt.Sprintf("memory://%s", key), nil
}

// Delete removes the object.
func (s *MemoryStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[key]; !ok {
		return ErrNotFound
	}
	delete(s.objects, key)
	return nil
}

// Get returns a stored object. Test helper.
func (s *MemoryStorage) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.objects[key]
	return data, ok
}

// Size returns the number of stored objects.
func (s *MemoryStorage) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
