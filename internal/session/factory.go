package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/vedran77/board/internal/domain"
	"github.com/vedran77/board/internal/identity"
)

// Backend is the identity backend seen by a Factory.
type Backend interface {
	identity.Backend
	Lookup(ctx context.Context, uid string) (*domain.Identity, error)
}

// ProfileStore is read by contexts and written by their identity stores.
type ProfileStore interface {
	identity.Profiles
	Profiles
}

// Factory opens one Context per request or connection. Callers Close the
// returned context when done.
type Factory struct {
	backend  Backend
	profiles ProfileStore
	logger   *slog.Logger
}

func NewFactory(backend Backend, profiles ProfileStore, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{backend: backend, profiles: profiles, logger: logger}
}

// Anonymous opens a context with no identity, ready for SignIn or SignUp.
func (f *Factory) Anonymous() *Context {
	store := identity.NewStore(f.backend, f.profiles, f.logger)
	c := New(store, f.profiles, f.logger)
	store.Restore(nil, time.Time{})
	return c
}

// Resume opens a context for an identity that authenticated at authTime.
// It fails with domain.ErrNotFound when the identity no longer exists.
func (f *Factory) Resume(ctx context.Context, uid string, authTime time.Time) (*Context, error) {
	id, err := f.backend.Lookup(ctx, uid)
	if err != nil {
		return nil, err
	}

	store := identity.NewStore(f.backend, f.profiles, f.logger)
	c := New(store, f.profiles, f.logger)
	store.Restore(id, authTime)
	return c, nil
}
