// Package memory is an in-process docstore.Store used by tests and by the
// memory backend.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/board/internal/docstore"
	"github.com/vedran77/board/internal/domain"
)

type Store struct {
	mu   sync.RWMutex
	docs map[string]docstore.Fields
	feed *docstore.Feed

	// Clock supplies server timestamps.
	Clock func() time.Time
}

func New(logger *slog.Logger) *Store {
	return &Store{
		docs:  make(map[string]docstore.Fields),
		feed:  docstore.NewFeed(logger),
		Clock: docstore.Now,
	}
}

// Feed exposes the change feed, mainly so tests can wait for watchers.
func (s *Store) Feed() *docstore.Feed {
	return s.feed
}

func (s *Store) Get(ctx context.Context, path string) (*docstore.Document, error) {
	if _, _, err := docstore.Split(path); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.docs[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
	}
	return snapshot(path, data), nil
}

func (s *Store) Add(ctx context.Context, collection string, data docstore.Fields) (string, error) {
	id := uuid.NewString()
	if err := s.Set(ctx, docstore.Join(collection, id), data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Set(ctx context.Context, path string, data docstore.Fields) error {
	collection, _, err := docstore.Split(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.docs[path] = docstore.ResolveTimestamps(data, s.Clock())
	s.mu.Unlock()

	s.feed.Publish(collection)
	return nil
}

func (s *Store) Update(ctx context.Context, path string, data docstore.Fields) error {
	collection, _, err := docstore.Split(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	current, ok := s.docs[path]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrNotFound, path)
	}
	merged := maps.Clone(current)
	maps.Copy(merged, docstore.ResolveTimestamps(data, s.Clock()))
	s.docs[path] = merged
	s.mu.Unlock()

	s.feed.Publish(collection)
	return nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	collection, _, err := docstore.Split(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	_, existed := s.docs[path]
	delete(s.docs, path)
	s.mu.Unlock()

	if existed {
		s.feed.Publish(collection)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, q docstore.Query) ([]*docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	all := make([]*docstore.Document, 0, len(s.docs))
	for path, data := range s.docs {
		all = append(all, snapshot(path, data))
	}
	s.mu.RUnlock()

	// Map iteration order is random; give unordered queries a stable order.
	sortByPath(all)
	return q.Apply(all), nil
}

func (s *Store) Listen(ctx context.Context, q docstore.Query) (*docstore.Listener, error) {
	return s.feed.Watch(ctx, q, s.Query)
}

func snapshot(path string, data docstore.Fields) *docstore.Document {
	_, id, _ := docstore.Split(path)
	return &docstore.Document{
		ID:   id,
		Path: path,
		Data: maps.Clone(data),
	}
}

func sortByPath(docs []*docstore.Document) {
	slices.SortFunc(docs, func(a, b *docstore.Document) int {
		return strings.Compare(a.Path, b.Path)
	})
}
