package documents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/board/internal/docstore"
	"github.com/vedran77/board/internal/domain"
)

func TestCommentAddListDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewCommentRepo(newTestStore())

	first, err := repo.Add(ctx, "post-1", alice(), domain.CreateCommentInput{Content: "first"})
	require.NoError(t, err)
	second, err := repo.Add(ctx, "post-1", bob(), domain.CreateCommentInput{Content: "second"})
	require.NoError(t, err)
	_, err = repo.Add(ctx, "post-2", bob(), domain.CreateCommentInput{Content: "elsewhere"})
	require.NoError(t, err)

	comments, err := repo.List(ctx, "post-1")
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, second, comments[0].ID)
	assert.Equal(t, first, comments[1].ID)
	assert.Equal(t, "post-1", comments[0].PostID)
	assert.Equal(t, "Bob", comments[0].AuthorName)
	assert.Nil(t, comments[0].AuthorAvatar)
	assert.NotNil(t, comments[0].CreatedAt)

	got, err := repo.Get(ctx, "post-1", first)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.AuthorID)

	require.NoError(t, repo.Delete(ctx, "post-1", first))
	_, err = repo.Get(ctx, "post-1", first)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	comments, err = repo.List(ctx, "post-1")
	require.NoError(t, err)
	assert.Len(t, comments, 1)
}

func TestCommentSubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := newTestStore()
	repo := NewCommentRepo(store)

	stream, err := repo.Subscribe(ctx, "post-1")
	require.NoError(t, err)
	defer stream.Close()
	assert.Empty(t, next(t, stream.Updates(), anySnapshot[[]domain.Comment]))

	// A comment whose timestamp has not been resolved yet.
	require.NoError(t, store.Set(ctx, "posts/post-1/comments/pending", docstore.Fields{
		"content":   "optimistic",
		"authorId":  "alice",
		"createdAt": map[string]any{"pending": true},
	}))

	comments := next(t, stream.Updates(), func(c []domain.Comment) bool { return len(c) == 1 })
	assert.Equal(t, "pending", comments[0].ID)
	assert.Equal(t, "post-1", comments[0].PostID)
	assert.Nil(t, comments[0].CreatedAt)

	id, err := repo.Add(ctx, "post-1", bob(), domain.CreateCommentInput{Content: "hi"})
	require.NoError(t, err)

	comments = next(t, stream.Updates(), func(c []domain.Comment) bool { return len(c) == 2 })
	assert.Equal(t, id, comments[0].ID)
	assert.Equal(t, "pending", comments[1].ID)
}

func TestCommentsOutliveTheirPost(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	posts := NewPostRepo(store, &spyImages{}, nil)
	comments := NewCommentRepo(store)

	postID, err := posts.Create(ctx, alice(), domain.CreatePostInput{Title: "t", Content: "c"})
	require.NoError(t, err)
	_, err = comments.Add(ctx, postID, bob(), domain.CreateCommentInput{Content: "nice"})
	require.NoError(t, err)

	require.NoError(t, posts.Delete(ctx, postID))

	left, err := comments.List(ctx, postID)
	require.NoError(t, err)
	assert.Len(t, left, 1)
}
