package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/board/internal/docstore"
	"github.com/vedran77/board/internal/domain"
)

// AccountRepository stores identity backend records.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	UpdateDisplayName(ctx context.Context, id uuid.UUID, displayName string, updatedAt time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type ProfileRepository interface {
	Get(ctx context.Context, uid string) (*domain.Profile, error)
	Put(ctx context.Context, uid string, profile *domain.Profile) error
	Delete(ctx context.Context, uid string) error
}

type PostRepository interface {
	Create(ctx context.Context, author *domain.Profile, input domain.CreatePostInput) (string, error)
	Update(ctx context.Context, id string, author *domain.Profile, input domain.UpdatePostInput) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Post, error)
	ListAll(ctx context.Context, limit int) ([]domain.Post, error)
	ListByAuthor(ctx context.Context, authorID string, limit int) ([]domain.Post, error)
	SubscribeAll(ctx context.Context, limit int) (*docstore.Stream[[]domain.Post], error)
	SubscribeByAuthor(ctx context.Context, authorID string, limit int) (*docstore.Stream[[]domain.Post], error)
}

type CommentRepository interface {
	Add(ctx context.Context, postID string, author *domain.Profile, input domain.CreateCommentInput) (string, error)
	Delete(ctx context.Context, postID, commentID string) error
	Get(ctx context.Context, postID, commentID string) (*domain.Comment, error)
	List(ctx context.Context, postID string) ([]domain.Comment, error)
	Subscribe(ctx context.Context, postID string) (*docstore.Stream[[]domain.Comment], error)
}

// ImageStore runs the image upload protocol for post attachments.
type ImageStore interface {
	Upload(ctx context.Context, ownerID string, image *domain.ImageUpload) (*domain.StoredImage, error)
	Delete(ctx context.Context, path string) error
}
