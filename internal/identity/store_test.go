package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	docmemory "github.com/vedran77/board/internal/docstore/memory"
	"github.com/vedran77/board/internal/domain"
	"github.com/vedran77/board/internal/repository/documents"
	"github.com/vedran77/board/internal/repository/memory"
	"github.com/vedran77/board/internal/service"
)

type changes struct {
	mu   sync.Mutex
	seen []*domain.Identity
}

func (c *changes) record(id *domain.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, id)
}

func (c *changes) all() []*domain.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*domain.Identity(nil), c.seen...)
}

func newTestStore(t *testing.T) (*Store, *service.AuthService, *documents.ProfileRepo) {
	t.Helper()
	auth := service.NewAuthService(memory.NewAccountRepo(), "secret", time.Hour, 5*time.Minute)
	profiles := documents.NewProfileRepo(docmemory.New(nil))
	return NewStore(auth, profiles, nil), auth, profiles
}

func TestSignUpPersistsProfile(t *testing.T) {
	ctx := context.Background()
	store, _, profiles := newTestStore(t)
	seen := &changes{}
	store.OnChange(seen.record)

	profile, err := store.SignUp(ctx, domain.SignUpInput{
		Email: "alice@example.com", Password: "wonderland", DisplayName: "Alice",
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice", profile.DisplayName)

	current := store.Current()
	require.NotNil(t, current)
	assert.Equal(t, "Alice", current.DisplayName)

	got, err := profiles.Get(ctx, current.UID)
	require.NoError(t, err)
	assert.Equal(t, current.UID, got.UID)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.Equal(t, "Alice", got.DisplayName)
	assert.NotNil(t, got.CreatedAt)

	require.Len(t, seen.all(), 1)
	assert.Equal(t, current.UID, seen.all()[0].UID)
	assert.Equal(t, "Alice", seen.all()[0].DisplayName)
}

func TestSignUpBlankDisplayName(t *testing.T) {
	ctx := context.Background()
	store, _, profiles := newTestStore(t)

	profile, err := store.SignUp(ctx, domain.SignUpInput{Email: "bob@example.com", Password: "builder", DisplayName: "   "})
	require.NoError(t, err)
	assert.Empty(t, profile.DisplayName)

	got, err := profiles.Get(ctx, profile.UID)
	require.NoError(t, err)
	assert.Empty(t, got.DisplayName)
}

func TestSignUpErrors(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore(t)

	_, err := store.SignUp(ctx, domain.SignUpInput{Email: "c@example.com", Password: "123"})
	assert.ErrorIs(t, err, domain.ErrWeakPassword)
	assert.Nil(t, store.Current())

	_, err = store.SignUp(ctx, domain.SignUpInput{Email: "c@example.com", Password: "123456"})
	require.NoError(t, err)

	_, err = store.SignUp(ctx, domain.SignUpInput{Email: "c@example.com", Password: "123456"})
	assert.ErrorIs(t, err, domain.ErrEmailAlreadyInUse)
}

type failingProfiles struct{ err error }

func (f failingProfiles) Put(ctx context.Context, uid string, p *domain.Profile) error { return f.err }
func (f failingProfiles) Delete(ctx context.Context, uid string) error             { return f.err }

func TestSignUpProfileWriteFailureKeepsIdentity(t *testing.T) {
	auth := service.NewAuthService(memory.NewAccountRepo(), "secret", time.Hour, 0)
	store := NewStore(auth, failingProfiles{err: &domain.NetworkError{Err: errors.New("offline")}}, nil)

	_, err := store.SignUp(context.Background(), domain.SignUpInput{Email: "d@example.com", Password: "123456"})
	assert.ErrorIs(t, err, domain.ErrNetwork)
	assert.NotNil(t, store.Current())
}

func TestSignInAndSignOut(t *testing.T) {
	ctx := context.Background()
	store, auth, _ := newTestStore(t)
	_, err := auth.CreateUser(ctx, "erin@example.com", "secret1")
	require.NoError(t, err)

	seen := &changes{}
	store.OnChange(seen.record)

	_, err = store.SignIn(ctx, "erin@example.com", "nope-nope")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.Empty(t, seen.all())

	id, err := store.SignIn(ctx, "erin@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, id, store.Current())
	assert.WithinDuration(t, time.Now(), store.AuthTime(), time.Second)

	store.SignOut()
	store.SignOut()
	assert.Nil(t, store.Current())

	got := seen.all()
	require.Len(t, got, 2)
	assert.NotNil(t, got[0])
	assert.Nil(t, got[1])
}

func TestOnChange(t *testing.T) {
	store, _, _ := newTestStore(t)
	seen := &changes{}

	unsubscribe := store.OnChange(seen.record)
	assert.Empty(t, seen.all())

	store.Restore(nil, time.Time{})
	require.Len(t, seen.all(), 1)
	assert.Nil(t, seen.all()[0])

	late := &changes{}
	store.OnChange(late.record)
	assert.Len(t, late.all(), 1)

	unsubscribe()
	store.Restore(&domain.Identity{UID: "u1"}, time.Now())
	assert.Len(t, seen.all(), 1)
	assert.Len(t, late.all(), 2)
}

func TestDeleteAccount(t *testing.T) {
	ctx := context.Background()
	store, auth, profiles := newTestStore(t)

	assert.ErrorIs(t, store.DeleteAccount(ctx), domain.ErrNotSignedIn)

	profile, err := store.SignUp(ctx, domain.SignUpInput{Email: "f@example.com", Password: "123456", DisplayName: "F"})
	require.NoError(t, err)

	require.NoError(t, store.DeleteAccount(ctx))
	assert.Nil(t, store.Current())

	_, err = profiles.Get(ctx, profile.UID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = auth.Lookup(ctx, profile.UID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteAccountRequiresRecentLogin(t *testing.T) {
	ctx := context.Background()
	store, auth, profiles := newTestStore(t)

	profile, err := store.SignUp(ctx, domain.SignUpInput{Email: "g@example.com", Password: "123456", DisplayName: "G"})
	require.NoError(t, err)
	id, err := auth.Lookup(ctx, profile.UID)
	require.NoError(t, err)

	// Resume a session that signed in an hour ago.
	store.Restore(id, time.Now().Add(-time.Hour))

	err = store.DeleteAccount(ctx)
	assert.ErrorIs(t, err, domain.ErrRequiresRecentLogin)
	assert.NotErrorIs(t, err, domain.ErrNetwork)

	// The profile is removed before the identity deletion is attempted.
	_, err = profiles.Get(ctx, profile.UID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NotNil(t, store.Current())
}

type offlineBackend struct{ Backend }

func (offlineBackend) DeleteUser(ctx context.Context, uid string, authTime time.Time) error {
	return &domain.NetworkError{Err: errors.New("connection reset")}
}

func TestDeleteAccountNetworkError(t *testing.T) {
	store := NewStore(offlineBackend{}, documents.NewProfileRepo(docmemory.New(nil)), nil)
	store.Restore(&domain.Identity{UID: "u1"}, time.Now())

	err := store.DeleteAccount(context.Background())
	assert.ErrorIs(t, err, domain.ErrNetwork)
	assert.NotErrorIs(t, err, domain.ErrRequiresRecentLogin)
}
