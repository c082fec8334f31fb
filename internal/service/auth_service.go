package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/vedran77/board/internal/domain"
	"github.com/vedran77/board/internal/repository"
	"golang.org/x/crypto/argon2"
)

var ErrInvalidToken = errors.New("invalid or expired token")

const minPasswordLength = 6

// Claims are carried by access tokens. AuthTime is the unix time of the
// credential check that started the session; refreshed tokens keep it.
type Claims struct {
	Email    string `json:"email"`
	AuthTime int64  `json:"auth_time"`
	jwt.RegisteredClaims
}

// AuthService is the identity backend: it owns credentials and issues
// tokens.
type AuthService struct {
	accounts    repository.AccountRepository
	jwtSecret   []byte
	tokenTTL    time.Duration
	recentLogin time.Duration
	now         func() time.Time
}

func NewAuthService(accounts repository.AccountRepository, jwtSecret string, tokenTTL, recentLogin time.Duration) *AuthService {
	return &AuthService{
		accounts:    accounts,
		jwtSecret:   []byte(jwtSecret),
		tokenTTL:    tokenTTL,
		recentLogin: recentLogin,
		now:         time.Now,
	}
}

func (s *AuthService) CreateUser(ctx context.Context, email, password string) (*domain.Identity, error) {
	if len(password) < minPasswordLength {
		return nil, domain.ErrWeakPassword
	}

	existing, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrEmailAlreadyInUse
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	now := s.now().UTC()
	account := &domain.Account{
		ID:           uuid.New(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, domain.ErrEmailAlreadyInUse) {
			return nil, err
		}
		return nil, fmt.Errorf("creating account: %w", err)
	}

	return account.Identity(), nil
}

func (s *AuthService) SignIn(ctx context.Context, email, password string) (*domain.Identity, error) {
	account, err := s.accounts.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.ErrInvalidCredentials
	}

	if !verifyPassword(password, account.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	return account.Identity(), nil
}

func (s *AuthService) UpdateDisplayName(ctx context.Context, uid, displayName string) (*domain.Identity, error) {
	id, err := parseUID(uid)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.UpdateDisplayName(ctx, id, displayName, s.now().UTC()); err != nil {
		return nil, err
	}
	return s.Lookup(ctx, uid)
}

// DeleteUser removes the account. Sessions authenticated longer ago than the
// recent-login window must sign in again first.
func (s *AuthService) DeleteUser(ctx context.Context, uid string, authTime time.Time) error {
	id, err := parseUID(uid)
	if err != nil {
		return err
	}

	if s.recentLogin > 0 && s.now().Sub(authTime) > s.recentLogin {
		return domain.ErrRequiresRecentLogin
	}

	return s.accounts.Delete(ctx, id)
}

func (s *AuthService) Lookup(ctx context.Context, uid string) (*domain.Identity, error) {
	id, err := parseUID(uid)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("%w: account %s", domain.ErrNotFound, uid)
	}
	return account.Identity(), nil
}

func (s *AuthService) IssueToken(identity *domain.Identity, authTime time.Time) (string, error) {
	now := s.now()
	claims := Claims{
		Email:    identity.Email,
		AuthTime: authTime.Unix(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *AuthService) VerifyToken(tokenStr string) (*Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		return s.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

// AuthTimeOf returns the authentication time recorded in claims.
func AuthTimeOf(claims *Claims) time.Time {
	return time.Unix(claims.AuthTime, 0)
}

func parseUID(uid string) (uuid.UUID, error) {
	id, err := uuid.Parse(uid)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: account %s", domain.ErrNotFound, uid)
	}
	return id, nil
}

func hashPassword(password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)

	return fmt.Sprintf("%s:%s",
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

func verifyPassword(password, encoded string) bool {
	saltB64, hashB64, ok := strings.Cut(encoded, ":")
	if !ok {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(saltB64)
	if err != nil {
		return false
	}

	expectedHash, err := base64.RawStdEncoding.DecodeString(hashB64)
	if err != nil {
		return false
	}

	hash := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)
	return subtle.ConstantTimeCompare(hash, expectedHash) == 1
}
