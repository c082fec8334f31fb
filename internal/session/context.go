// Package session holds the observable state of one signed-in client: its
// identity, its profile and whether the initial identity is known yet.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/vedran77/board/internal/domain"
)

type State int

const (
	Initializing State = iota
	Authenticated
	Anonymous
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Anonymous:
		return "anonymous"
	default:
		return "initializing"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is a consistent view of the context. Profile is non-nil whenever
// State is Authenticated.
type Snapshot struct {
	State    State            `json:"state"`
	Identity *domain.Identity `json:"identity"`
	Profile  *domain.Profile  `json:"profile"`
}

// Identities is the identity store a context follows.
type Identities interface {
	OnChange(fn func(*domain.Identity)) (unsubscribe func())
	Current() *domain.Identity
	AuthTime() time.Time
	SignIn(ctx context.Context, email, password string) (*domain.Identity, error)
	SignUp(ctx context.Context, input domain.SignUpInput) (*domain.Profile, error)
	SignOut()
	DeleteAccount(ctx context.Context) error
}

type Profiles interface {
	Get(ctx context.Context, uid string) (*domain.Profile, error)
}

type Context struct {
	identities  Identities
	profiles    Profiles
	logger      *slog.Logger
	readTimeout time.Duration

	mu       sync.Mutex
	snap     Snapshot
	watchers map[int]chan Snapshot
	nextID   int
	stop     func()
}

func New(identities Identities, profiles Profiles, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Context{
		identities:  identities,
		profiles:    profiles,
		logger:      logger,
		readTimeout: 10 * time.Second,
		watchers:    make(map[int]chan Snapshot),
	}
	c.stop = identities.OnChange(c.identityChanged)
	return c
}

// Close stops following the identity store and ends every watch.
func (c *Context) Close() {
	c.stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.watchers {
		close(ch)
		delete(c.watchers, id)
	}
}

func (c *Context) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Watch delivers the current snapshot and every later one. A slow reader
// only sees the newest pending snapshot.
func (c *Context) Watch() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.watchers[id] = ch
	ch <- c.snap
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if _, ok := c.watchers[id]; ok {
				delete(c.watchers, id)
				close(ch)
			}
		})
	}
}

// RefreshProfile re-reads the profile of the current identity. With no
// identity the profile is cleared.
func (c *Context) RefreshProfile(ctx context.Context) error {
	id := c.identities.Current()
	if id == nil {
		c.publish(func(s *Snapshot) { s.Profile = nil })
		return nil
	}

	profile, err := c.profiles.Get(ctx, id.UID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if profile == nil {
		profile = domain.FallbackProfile(id)
	}
	c.publish(func(s *Snapshot) {
		if s.Identity != nil && s.Identity.UID == id.UID {
			s.Profile = profile
		}
	})
	return nil
}

// AuthTime is when the current identity last presented credentials.
func (c *Context) AuthTime() time.Time {
	return c.identities.AuthTime()
}

func (c *Context) SignIn(ctx context.Context, email, password string) error {
	_, err := c.identities.SignIn(ctx, email, password)
	return err
}

// SignUp registers the account and sets the written profile directly.
func (c *Context) SignUp(ctx context.Context, input domain.SignUpInput) (*domain.Profile, error) {
	profile, err := c.identities.SignUp(ctx, input)
	if err != nil {
		return nil, err
	}
	c.publish(func(s *Snapshot) {
		if s.Identity != nil && s.Identity.UID == profile.UID {
			s.Profile = profile
		}
	})
	return profile, nil
}

func (c *Context) SignOut() {
	c.identities.SignOut()
}

func (c *Context) DeleteAccount(ctx context.Context) error {
	return c.identities.DeleteAccount(ctx)
}

func (c *Context) identityChanged(id *domain.Identity) {
	if id == nil {
		c.publish(func(s *Snapshot) {
			*s = Snapshot{State: Anonymous}
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.readTimeout)
	defer cancel()

	profile, err := c.profiles.Get(ctx, id.UID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			c.logger.Warn("profile read failed, using identity fields",
				slog.String("uid", id.UID),
				slog.String("error", err.Error()))
		}
		profile = domain.FallbackProfile(id)
	}

	c.publish(func(s *Snapshot) {
		*s = Snapshot{State: Authenticated, Identity: id, Profile: profile}
	})
}

func (c *Context) publish(update func(*Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	update(&c.snap)
	for _, ch := range c.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- c.snap
	}
}
