package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/board/internal/database"
	"github.com/vedran77/board/internal/domain"
)

type AccountRepo struct {
	pool *pgxpool.Pool
}

func NewAccountRepo(pool *pgxpool.Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

const accountColumns = "id, email, display_name, photo_url, password_hash, created_at, updated_at"

func (r *AccountRepo) Create(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		account.ID, strings.ToLower(account.Email), account.DisplayName, account.PhotoURL,
		account.PasswordHash, account.CreatedAt, account.UpdatedAt,
	)
	if database.IsUniqueViolation(err) {
		return domain.ErrEmailAlreadyInUse
	}
	return database.Classify(err)
}

func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return r.scanAccount(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id = $1", id)
}

func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.scanAccount(ctx, "SELECT "+accountColumns+" FROM accounts WHERE email = $1", strings.ToLower(email))
}

func (r *AccountRepo) UpdateDisplayName(ctx context.Context, id uuid.UUID, displayName string, updatedAt time.Time) error {
	tag, err := r.pool.Exec(ctx,
		"UPDATE accounts SET display_name = $2, updated_at = $3 WHERE id = $1",
		id, displayName, updatedAt,
	)
	if err != nil {
		return database.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: account %s", domain.ErrNotFound, id)
	}
	return nil
}

func (r *AccountRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM accounts WHERE id = $1", id)
	return database.Classify(err)
}

func (r *AccountRepo) scanAccount(ctx context.Context, query string, arg any) (*domain.Account, error) {
	var a domain.Account
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&a.ID, &a.Email, &a.DisplayName, &a.PhotoURL,
		&a.PasswordHash, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, database.Classify(err)
	}
	return &a, nil
}
