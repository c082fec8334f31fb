package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vedran77/board/internal/blobstore"
	"github.com/vedran77/board/internal/domain"
)

type Store struct {
	mu      sync.RWMutex
	objects map[string]blobstore.Object
}

func New() *Store {
	return &Store{objects: make(map[string]blobstore.Object)}
}

func (s *Store) Put(ctx context.Context, path string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects[path] = blobstore.Object{
		Path:        path,
		ContentType: contentType,
		Data:        append([]byte(nil), data...),
		CreatedAt:   time.Now().UTC(),
	}
	return nil
}

func (s *Store) Get(ctx context.Context, path string) (*blobstore.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[path]
	if !ok {
		return nil, fmt.Errorf("%w: object %s", domain.ErrNotFound, path)
	}
	return &obj, nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[path]; !ok {
		return fmt.Errorf("%w: object %s", domain.ErrNotFound, path)
	}
	delete(s.objects, path)
	return nil
}

// Len reports the number of stored objects.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
