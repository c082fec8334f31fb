package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	docmemory "github.com/vedran77/board/internal/docstore/memory"
	"github.com/vedran77/board/internal/domain"
	"github.com/vedran77/board/internal/identity"
	"github.com/vedran77/board/internal/repository/documents"
	"github.com/vedran77/board/internal/repository/memory"
	"github.com/vedran77/board/internal/service"
)

type fixture struct {
	identities *identity.Store
	profiles   *documents.ProfileRepo
	auth       *service.AuthService
	session    *Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	auth := service.NewAuthService(memory.NewAccountRepo(), "secret", time.Hour, 5*time.Minute)
	profiles := documents.NewProfileRepo(docmemory.New(nil))
	identities := identity.NewStore(auth, profiles, nil)
	s := New(identities, profiles, nil)
	t.Cleanup(s.Close)
	return &fixture{identities: identities, profiles: profiles, auth: auth, session: s}
}

func TestInitialState(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, Initializing, f.session.Snapshot().State)

	f.identities.Restore(nil, time.Time{})

	snap := f.session.Snapshot()
	assert.Equal(t, Anonymous, snap.State)
	assert.Nil(t, snap.Identity)
	assert.Nil(t, snap.Profile)
}

func TestAuthenticatedWithStoredProfile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id := &domain.Identity{UID: "u1", Email: "u1@example.com"}
	require.NoError(t, f.profiles.Put(ctx, "u1", &domain.Profile{Email: "u1@example.com", DisplayName: "Stored"}))

	f.identities.Restore(id, time.Now())

	snap := f.session.Snapshot()
	assert.Equal(t, Authenticated, snap.State)
	require.NotNil(t, snap.Profile)
	assert.Equal(t, "Stored", snap.Profile.DisplayName)
}

func TestAuthenticatedFallsBackToIdentityFields(t *testing.T) {
	f := newFixture(t)
	photo := "https://cdn.test/u2.png"

	f.identities.Restore(&domain.Identity{UID: "u2", Email: "u2@example.com", PhotoURL: &photo}, time.Now())

	snap := f.session.Snapshot()
	assert.Equal(t, Authenticated, snap.State)
	require.NotNil(t, snap.Profile)
	assert.Equal(t, "u2", snap.Profile.UID)
	assert.Equal(t, "u2@example.com", snap.Profile.DisplayName)
	assert.Equal(t, &photo, snap.Profile.PhotoURL)
}

type brokenProfiles struct{}

func (brokenProfiles) Get(ctx context.Context, uid string) (*domain.Profile, error) {
	return nil, &domain.NetworkError{Err: errors.New("timeout")}
}

func TestProfileReadErrorUsesFallback(t *testing.T) {
	auth := service.NewAuthService(memory.NewAccountRepo(), "secret", time.Hour, 0)
	identities := identity.NewStore(auth, documents.NewProfileRepo(docmemory.New(nil)), nil)
	s := New(identities, brokenProfiles{}, nil)
	defer s.Close()

	identities.Restore(&domain.Identity{UID: "u3", Email: "u3@example.com", DisplayName: "Three"}, time.Now())

	snap := s.Snapshot()
	assert.Equal(t, Authenticated, snap.State)
	require.NotNil(t, snap.Profile)
	assert.Equal(t, "Three", snap.Profile.DisplayName)

	err := s.RefreshProfile(context.Background())
	assert.ErrorIs(t, err, domain.ErrNetwork)
}

func TestSignUpSetsWrittenProfile(t *testing.T) {
	f := newFixture(t)
	f.identities.Restore(nil, time.Time{})

	profile, err := f.session.SignUp(context.Background(), domain.SignUpInput{
		Email: "alice@example.com", Password: "wonderland", DisplayName: "Alice",
	})
	require.NoError(t, err)

	snap := f.session.Snapshot()
	assert.Equal(t, Authenticated, snap.State)
	assert.Equal(t, profile, snap.Profile)
	assert.Equal(t, "Alice", snap.Profile.DisplayName)
}

func TestSignUpIdentityCarriesDisplayName(t *testing.T) {
	f := newFixture(t)
	f.identities.Restore(nil, time.Time{})

	_, err := f.session.SignUp(context.Background(), domain.SignUpInput{
		Email: "alice@example.com", Password: "wonderland", DisplayName: "  Alice ",
	})
	require.NoError(t, err)

	snap := f.session.Snapshot()
	require.NotNil(t, snap.Identity)
	require.NotNil(t, snap.Profile)
	assert.Equal(t, "Alice", snap.Identity.DisplayName)
	assert.Equal(t, snap.Profile.UID, snap.Identity.UID)
	assert.Equal(t, snap.Profile.DisplayName, snap.Identity.DisplayName)
}

func TestSignInSignOut(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.auth.CreateUser(ctx, "h@example.com", "123456")
	require.NoError(t, err)

	require.NoError(t, f.session.SignIn(ctx, "h@example.com", "123456"))
	assert.Equal(t, Authenticated, f.session.Snapshot().State)

	f.session.SignOut()
	assert.Equal(t, Anonymous, f.session.Snapshot().State)
	assert.Nil(t, f.session.Snapshot().Profile)
}

func TestRefreshProfile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.session.RefreshProfile(ctx))
	assert.Nil(t, f.session.Snapshot().Profile)

	_, err := f.session.SignUp(ctx, domain.SignUpInput{Email: "i@example.com", Password: "123456", DisplayName: "Eye"})
	require.NoError(t, err)
	uid := f.session.Snapshot().Identity.UID

	require.NoError(t, f.profiles.Put(ctx, uid, &domain.Profile{Email: "i@example.com", DisplayName: "Renamed"}))
	require.NoError(t, f.session.RefreshProfile(ctx))
	assert.Equal(t, "Renamed", f.session.Snapshot().Profile.DisplayName)

	require.NoError(t, f.profiles.Delete(ctx, uid))
	require.NoError(t, f.session.RefreshProfile(ctx))
	assert.Equal(t, "Eye", f.session.Snapshot().Profile.DisplayName)
}

func TestDeleteAccountEndsSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.session.SignUp(ctx, domain.SignUpInput{Email: "j@example.com", Password: "123456"})
	require.NoError(t, err)

	require.NoError(t, f.session.DeleteAccount(ctx))
	require.NoError(t, f.session.RefreshProfile(ctx))

	snap := f.session.Snapshot()
	assert.Equal(t, Anonymous, snap.State)
	assert.Nil(t, snap.Profile)
}

func TestWatch(t *testing.T) {
	f := newFixture(t)

	updates, cancel := f.session.Watch()
	first := <-updates
	assert.Equal(t, Initializing, first.State)

	f.identities.Restore(&domain.Identity{UID: "u4", Email: "u4@example.com"}, time.Now())
	f.identities.SignOut()

	// Only the newest pending snapshot is kept.
	select {
	case snap := <-updates:
		assert.Equal(t, Anonymous, snap.State)
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}

	cancel()
	cancel()
	_, open := <-updates
	assert.False(t, open)
}

func TestStateText(t *testing.T) {
	text, err := Authenticated.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "authenticated", string(text))
	assert.Equal(t, "initializing", Initializing.String())
}
