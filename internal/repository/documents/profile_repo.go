package documents

import (
	"context"
	"fmt"

	"github.com/vedran77/board/internal/docstore"
	"github.com/vedran77/board/internal/domain"
)

type ProfileRepo struct {
	store docstore.Store
}

func NewProfileRepo(store docstore.Store) *ProfileRepo {
	return &ProfileRepo{store: store}
}

// Get returns an error matching domain.ErrNotFound when the user has no
// profile record.
func (r *ProfileRepo) Get(ctx context.Context, uid string) (*domain.Profile, error) {
	doc, err := r.store.Get(ctx, docstore.Join(usersCollection, uid))
	if err != nil {
		return nil, err
	}
	return &domain.Profile{
		UID:         doc.ID,
		Email:       doc.String(fieldEmail),
		DisplayName: doc.String(fieldDisplayName),
		PhotoURL:    doc.StringPtr(fieldPhotoURL),
		CreatedAt:   doc.Time(fieldCreatedAt),
	}, nil
}

// Put replaces the profile record; both timestamps are set by the store.
func (r *ProfileRepo) Put(ctx context.Context, uid string, profile *domain.Profile) error {
	err := r.store.Set(ctx, docstore.Join(usersCollection, uid), docstore.Fields{
		fieldEmail:       profile.Email,
		fieldDisplayName: profile.DisplayName,
		fieldPhotoURL:    profile.PhotoURL,
		fieldCreatedAt:   docstore.ServerTimestamp,
		fieldUpdatedAt:   docstore.ServerTimestamp,
	})
	if err != nil {
		return fmt.Errorf("writing profile %s: %w", uid, err)
	}
	return nil
}

func (r *ProfileRepo) Delete(ctx context.Context, uid string) error {
	return r.store.Delete(ctx, docstore.Join(usersCollection, uid))
}
