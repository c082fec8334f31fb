package documents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/board/internal/domain"
)

func TestProfileRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewProfileRepo(newTestStore())

	_, err := repo.Get(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, repo.Put(ctx, "alice", alice()))

	got, err := repo.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.UID)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.Equal(t, "Alice", got.DisplayName)
	require.NotNil(t, got.PhotoURL)
	assert.Equal(t, "https://cdn.test/alice.png", *got.PhotoURL)
	assert.NotNil(t, got.CreatedAt)

	require.NoError(t, repo.Delete(ctx, "alice"))
	_, err = repo.Get(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.NoError(t, repo.Delete(ctx, "alice"))
}

func TestProfileRepoNullPhoto(t *testing.T) {
	ctx := context.Background()
	repo := NewProfileRepo(newTestStore())

	require.NoError(t, repo.Put(ctx, "bob", bob()))

	got, err := repo.Get(ctx, "bob")
	require.NoError(t, err)
	assert.Nil(t, got.PhotoURL)
}
