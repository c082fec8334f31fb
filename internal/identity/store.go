// Package identity tracks the signed-in identity of one session and wraps the
// identity backend's account operations.
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/vedran77/board/internal/domain"
)

// Backend authenticates credentials and manages identities.
type Backend interface {
	CreateUser(ctx context.Context, email, password string) (*domain.Identity, error)
	SignIn(ctx context.Context, email, password string) (*domain.Identity, error)
	UpdateDisplayName(ctx context.Context, uid, displayName string) (*domain.Identity, error)
	DeleteUser(ctx context.Context, uid string, authTime time.Time) error
}

// Profiles is the part of the profile repository the store writes to.
type Profiles interface {
	Put(ctx context.Context, uid string, profile *domain.Profile) error
	Delete(ctx context.Context, uid string) error
}

type Store struct {
	backend  Backend
	profiles Profiles
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	ready     bool
	current   *domain.Identity
	authTime  time.Time
	listeners map[int]func(*domain.Identity)
	nextID    int
}

func NewStore(backend Backend, profiles Profiles, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backend:   backend,
		profiles:  profiles,
		logger:    logger,
		now:       time.Now,
		listeners: make(map[int]func(*domain.Identity)),
	}
}

// Restore resumes a persisted session. A nil identity marks the session as
// anonymous. Either way the store becomes ready and listeners are notified.
func (s *Store) Restore(id *domain.Identity, authTime time.Time) {
	s.set(id, authTime)
}

func (s *Store) Current() *domain.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// AuthTime is when the current identity last presented credentials.
func (s *Store) AuthTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authTime
}

// OnChange registers fn for identity changes; fn receives nil after sign-out.
// If the store already resolved its initial state fn is called immediately
// with the current identity.
func (s *Store) OnChange(fn func(*domain.Identity)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	ready, current := s.ready, s.current
	s.mu.Unlock()

	if ready {
		fn(current)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) SignIn(ctx context.Context, email, password string) (*domain.Identity, error) {
	id, err := s.backend.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	s.set(id, s.now())
	return id, nil
}

// SignUp creates the identity, sets its display name and writes its profile.
// The steps are not atomic: when the profile write fails the identity stays
// signed in without a profile record.
func (s *Store) SignUp(ctx context.Context, input domain.SignUpInput) (*domain.Profile, error) {
	id, err := s.backend.CreateUser(ctx, input.Email, input.Password)
	if err != nil {
		return nil, err
	}
	authTime := s.now()

	// Listeners see the account once, already carrying its display name.
	if name := strings.TrimSpace(input.DisplayName); name != "" {
		updated, err := s.backend.UpdateDisplayName(ctx, id.UID, name)
		if err != nil {
			s.set(id, authTime)
			return nil, fmt.Errorf("setting display name: %w", err)
		}
		id = updated
	}
	s.set(id, authTime)

	profile := &domain.Profile{
		UID:         id.UID,
		Email:       id.Email,
		DisplayName: id.DisplayName,
		PhotoURL:    id.PhotoURL,
	}
	if err := s.profiles.Put(ctx, id.UID, profile); err != nil {
		return nil, fmt.Errorf("writing profile: %w", err)
	}

	s.logger.Info("account created", slog.String("uid", id.UID))
	return profile, nil
}

// SignOut clears the session. Signing out twice is a no-op.
func (s *Store) SignOut() {
	s.mu.Lock()
	signedIn := s.current != nil || !s.ready
	s.mu.Unlock()

	if signedIn {
		s.set(nil, time.Time{})
	}
}

// DeleteAccount removes the profile record and then the identity. When the
// identity deletion fails the profile is already gone.
func (s *Store) DeleteAccount(ctx context.Context) error {
	s.mu.Lock()
	current, authTime := s.current, s.authTime
	s.mu.Unlock()

	if current == nil {
		return domain.ErrNotSignedIn
	}

	if err := s.profiles.Delete(ctx, current.UID); err != nil {
		return fmt.Errorf("deleting profile: %w", err)
	}
	if err := s.backend.DeleteUser(ctx, current.UID, authTime); err != nil {
		return err
	}

	s.logger.Info("account deleted", slog.String("uid", current.UID))
	s.set(nil, time.Time{})
	return nil
}

func (s *Store) set(id *domain.Identity, authTime time.Time) {
	s.mu.Lock()
	s.ready = true
	s.current = id
	s.authTime = authTime
	listeners := make([]func(*domain.Identity), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(id)
	}
}
