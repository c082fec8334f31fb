package documents

import (
	"context"
	"fmt"

	"github.com/vedran77/board/internal/docstore"
	"github.com/vedran77/board/internal/domain"
)

// CommentRepo stores comments in the comments subcollection of each post.
// Comments outlive their post.
type CommentRepo struct {
	store docstore.Store
}

func NewCommentRepo(store docstore.Store) *CommentRepo {
	return &CommentRepo{store: store}
}

func commentsOf(postID string) string {
	return docstore.Join(postsCollection, postID, commentsCollection)
}

func (r *CommentRepo) Add(ctx context.Context, postID string, author *domain.Profile, input domain.CreateCommentInput) (string, error) {
	id, err := r.store.Add(ctx, commentsOf(postID), docstore.Fields{
		fieldContent:      input.Content,
		fieldAuthorID:     author.UID,
		fieldAuthorName:   author.DisplayName,
		fieldAuthorAvatar: author.PhotoURL,
		fieldCreatedAt:    docstore.ServerTimestamp,
		fieldUpdatedAt:    docstore.ServerTimestamp,
	})
	if err != nil {
		return "", fmt.Errorf("adding comment to post %s: %w", postID, err)
	}
	return id, nil
}

// Delete does not check the caller owns the comment.
func (r *CommentRepo) Delete(ctx context.Context, postID, commentID string) error {
	return r.store.Delete(ctx, docstore.Join(commentsOf(postID), commentID))
}

// Get returns an error matching domain.ErrNotFound for unknown comments.
func (r *CommentRepo) Get(ctx context.Context, postID, commentID string) (*domain.Comment, error) {
	doc, err := r.store.Get(ctx, docstore.Join(commentsOf(postID), commentID))
	if err != nil {
		return nil, err
	}
	c := decodeComment(doc)
	return &c, nil
}

// List returns the comments of a post, newest first.
func (r *CommentRepo) List(ctx context.Context, postID string) ([]domain.Comment, error) {
	docs, err := r.store.Query(ctx, commentsQuery(postID))
	if err != nil {
		return nil, err
	}
	return decodeComments(docs), nil
}

func (r *CommentRepo) Subscribe(ctx context.Context, postID string) (*docstore.Stream[[]domain.Comment], error) {
	l, err := r.store.Listen(ctx, commentsQuery(postID))
	if err != nil {
		return nil, err
	}
	return docstore.MapStream(l, decodeComments), nil
}

func commentsQuery(postID string) docstore.Query {
	return docstore.Collection(commentsOf(postID)).Order(fieldCreatedAt, true)
}

func decodeComments(docs []*docstore.Document) []domain.Comment {
	comments := make([]domain.Comment, 0, len(docs))
	for _, d := range docs {
		comments = append(comments, decodeComment(d))
	}
	return comments
}

// decodeComment maps a createdAt that is missing or not yet a timestamp to
// nil.
func decodeComment(doc *docstore.Document) domain.Comment {
	return domain.Comment{
		ID:           doc.ID,
		PostID:       doc.ParentID(),
		Content:      doc.String(fieldContent),
		AuthorID:     doc.String(fieldAuthorID),
		AuthorName:   doc.String(fieldAuthorName),
		AuthorAvatar: doc.StringPtr(fieldAuthorAvatar),
		CreatedAt:    doc.Time(fieldCreatedAt),
	}
}
