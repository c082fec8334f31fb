package documents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/vedran77/board/internal/docstore"
	"github.com/vedran77/board/internal/domain"
	"github.com/vedran77/board/internal/repository"
)

type PostRepo struct {
	store  docstore.Store
	images repository.ImageStore
	logger *slog.Logger
}

func NewPostRepo(store docstore.Store, images repository.ImageStore, logger *slog.Logger) *PostRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostRepo{store: store, images: images, logger: logger}
}

// Create uploads the image, if any, before writing the post. A failed write
// leaves the uploaded image behind.
func (r *PostRepo) Create(ctx context.Context, author *domain.Profile, input domain.CreatePostInput) (string, error) {
	var image *domain.StoredImage
	if hasImage(input.Image) {
		stored, err := r.images.Upload(ctx, author.UID, input.Image)
		if err != nil {
			return "", fmt.Errorf("uploading image: %w", err)
		}
		image = stored
	}

	data := docstore.Fields{
		fieldTitle:        input.Title,
		fieldContent:      input.Content,
		fieldImageURL:     nil,
		fieldImagePath:    nil,
		fieldAuthorID:     author.UID,
		fieldAuthorName:   author.DisplayName,
		fieldAuthorAvatar: author.PhotoURL,
		fieldCreatedAt:    docstore.ServerTimestamp,
		fieldUpdatedAt:    docstore.ServerTimestamp,
	}
	if image != nil {
		data[fieldImageURL] = image.URL
		data[fieldImagePath] = image.Path
	}

	id, err := r.store.Add(ctx, postsCollection, data)
	if err != nil {
		return "", fmt.Errorf("creating post: %w", err)
	}
	return id, nil
}

// Update writes the provided fields of a post. The author fields keep the
// values captured at creation. Removing the image deletes the stored object on
// a best-effort basis; replacing it does not delete the old one.
func (r *PostRepo) Update(ctx context.Context, id string, author *domain.Profile, input domain.UpdatePostInput) error {
	path := docstore.Join(postsCollection, id)

	doc, err := r.store.Get(ctx, path)
	if err != nil {
		return err
	}
	current := decodePost(doc)

	data := docstore.Fields{
		fieldUpdatedAt: docstore.ServerTimestamp,
	}
	if input.Title != nil {
		data[fieldTitle] = *input.Title
	}
	if input.Content != nil {
		data[fieldContent] = *input.Content
	}

	switch {
	case input.RemoveImage:
		if current.ImagePath != nil {
			r.deleteImage(ctx, *current.ImagePath)
		}
		data[fieldImageURL] = nil
		data[fieldImagePath] = nil
	case imageChanged(input.Image, current.ImageURL):
		owner := current.AuthorID
		if author != nil {
			owner = author.UID
		}
		stored, err := r.images.Upload(ctx, owner, input.Image)
		if err != nil {
			return fmt.Errorf("uploading image: %w", err)
		}
		data[fieldImageURL] = stored.URL
		data[fieldImagePath] = stored.Path
	}

	if err := r.store.Update(ctx, path, data); err != nil {
		return fmt.Errorf("updating post %s: %w", id, err)
	}
	return nil
}

// Delete removes the post and, best effort, its image.
func (r *PostRepo) Delete(ctx context.Context, id string) error {
	path := docstore.Join(postsCollection, id)

	doc, err := r.store.Get(ctx, path)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return err
	default:
		if imagePath := doc.StringPtr(fieldImagePath); imagePath != nil {
			r.deleteImage(ctx, *imagePath)
		}
	}

	if err := r.store.Delete(ctx, path); err != nil {
		return fmt.Errorf("deleting post %s: %w", id, err)
	}
	return nil
}

// GetByID returns nil, nil when the post does not exist.
func (r *PostRepo) GetByID(ctx context.Context, id string) (*domain.Post, error) {
	doc, err := r.store.Get(ctx, docstore.Join(postsCollection, id))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	post := decodePost(doc)
	return &post, nil
}

// ListAll returns the newest posts first.
func (r *PostRepo) ListAll(ctx context.Context, limit int) ([]domain.Post, error) {
	docs, err := r.store.Query(ctx, allPostsQuery(limit))
	if err != nil {
		return nil, err
	}
	return decodePosts(docs), nil
}

// ListByAuthor fetches every post of the author and orders them locally, so
// the result is only the newest posts when the backend returns the complete
// set.
func (r *PostRepo) ListByAuthor(ctx context.Context, authorID string, limit int) ([]domain.Post, error) {
	q := docstore.Collection(postsCollection).Where(fieldAuthorID, authorID)

	docs, err := r.store.Query(ctx, q)
	if err != nil {
		return nil, err
	}

	posts := decodePosts(docs)
	sortNewestFirst(posts)
	if n := limitOrDefault(limit); len(posts) > n {
		posts = posts[:n]
	}
	return posts, nil
}

// SubscribeAll streams the newest posts after every change of the posts
// collection.
func (r *PostRepo) SubscribeAll(ctx context.Context, limit int) (*docstore.Stream[[]domain.Post], error) {
	l, err := r.store.Listen(ctx, allPostsQuery(limit))
	if err != nil {
		return nil, err
	}
	return docstore.MapStream(l, decodePosts), nil
}

func (r *PostRepo) SubscribeByAuthor(ctx context.Context, authorID string, limit int) (*docstore.Stream[[]domain.Post], error) {
	q := docstore.Collection(postsCollection).
		Where(fieldAuthorID, authorID).
		Order(fieldCreatedAt, true).
		Take(limitOrDefault(limit))

	l, err := r.store.Listen(ctx, q)
	if err != nil {
		return nil, err
	}
	return docstore.MapStream(l, decodePosts), nil
}

func (r *PostRepo) deleteImage(ctx context.Context, path string) {
	if err := r.images.Delete(ctx, path); err != nil {
		r.logger.Warn("image cleanup failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
}

func allPostsQuery(limit int) docstore.Query {
	return docstore.Collection(postsCollection).
		Order(fieldCreatedAt, true).
		Take(limitOrDefault(limit))
}

func hasImage(image *domain.ImageUpload) bool {
	return image != nil && (len(image.Data) > 0 || image.URI != "")
}

// imageChanged reports whether image should be uploaded in place of the
// current one. Inline data always counts as new.
func imageChanged(image *domain.ImageUpload, currentURL *string) bool {
	if !hasImage(image) {
		return false
	}
	if len(image.Data) > 0 {
		return true
	}
	return currentURL == nil || image.URI != *currentURL
}

// sortNewestFirst orders by creation time descending; posts without a
// creation time go last.
func sortNewestFirst(posts []domain.Post) {
	slices.SortStableFunc(posts, func(a, b domain.Post) int {
		switch {
		case a.CreatedAt == nil && b.CreatedAt == nil:
			return 0
		case a.CreatedAt == nil:
			return 1
		case b.CreatedAt == nil:
			return -1
		}
		return b.CreatedAt.Compare(*a.CreatedAt)
	})
}

func decodePosts(docs []*docstore.Document) []domain.Post {
	posts := make([]domain.Post, 0, len(docs))
	for _, d := range docs {
		posts = append(posts, decodePost(d))
	}
	return posts
}

func decodePost(doc *docstore.Document) domain.Post {
	return domain.Post{
		ID:           doc.ID,
		Title:        doc.String(fieldTitle),
		Content:      doc.String(fieldContent),
		ImageURL:     doc.StringPtr(fieldImageURL),
		ImagePath:    doc.StringPtr(fieldImagePath),
		AuthorID:     doc.String(fieldAuthorID),
		AuthorName:   doc.String(fieldAuthorName),
		AuthorAvatar: doc.StringPtr(fieldAuthorAvatar),
		CreatedAt:    doc.Time(fieldCreatedAt),
		UpdatedAt:    doc.Time(fieldUpdatedAt),
	}
}
