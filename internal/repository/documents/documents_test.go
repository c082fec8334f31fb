package documents

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vedran77/board/internal/docstore"
	"github.com/vedran77/board/internal/docstore/memory"
	"github.com/vedran77/board/internal/domain"
)

type spyImages struct {
	mu        sync.Mutex
	uploads   []string
	deleted   []string
	deleteErr error
}

func (s *spyImages) Upload(ctx context.Context, ownerID string, image *domain.ImageUpload) (*domain.StoredImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := fmt.Sprintf("posts/%s/img-%d", ownerID, len(s.uploads)+1)
	s.uploads = append(s.uploads, path)
	return &domain.StoredImage{URL: "https://cdn.test/" + path, Path: path}, nil
}

func (s *spyImages) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleted = append(s.deleted, path)
	return s.deleteErr
}

func (s *spyImages) deletedPaths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

// newTestStore returns a memory store whose server timestamps advance one
// second per write.
func newTestStore() *memory.Store {
	store := memory.New(nil)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	n := 0
	store.Clock = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
	return store
}

func strPtr(s string) *string { return &s }

func alice() *domain.Profile {
	return &domain.Profile{UID: "alice", Email: "alice@example.com", DisplayName: "Alice", PhotoURL: strPtr("https://cdn.test/alice.png")}
}

func bob() *domain.Profile {
	return &domain.Profile{UID: "bob", Email: "bob@example.com", DisplayName: "Bob"}
}

var errDeleteFailed = errors.New("object store unavailable")

// next waits for the next snapshot on updates that satisfies ok.
func next[T any](t *testing.T, updates <-chan T, ok func(T) bool) T {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case v, open := <-updates:
			require.True(t, open, "stream closed")
			if ok(v) {
				return v
			}
		case <-timeout:
			t.Fatal("timed out waiting for snapshot")
		}
	}
}

func anySnapshot[T any](T) bool { return true }

var _ docstore.Store = (*memory.Store)(nil)
