package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/board/internal/blobstore"
	"github.com/vedran77/board/internal/database"
	"github.com/vedran77/board/internal/domain"
)

// Store keeps objects in the blobs table.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Put(ctx context.Context, path string, data []byte, contentType string) error {
	query := `
		INSERT INTO blobs (path, content_type, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (path) DO UPDATE
		SET content_type = EXCLUDED.content_type, data = EXCLUDED.data, created_at = now()`

	_, err := s.pool.Exec(ctx, query, path, contentType, data)
	return database.Classify(err)
}

func (s *Store) Get(ctx context.Context, path string) (*blobstore.Object, error) {
	obj := blobstore.Object{Path: path}
	err := s.pool.QueryRow(ctx,
		"SELECT content_type, data, created_at FROM blobs WHERE path = $1", path,
	).Scan(&obj.ContentType, &obj.Data, &obj.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: object %s", domain.ErrNotFound, path)
	}
	if err != nil {
		return nil, database.Classify(err)
	}
	return &obj, nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM blobs WHERE path = $1", path)
	if err != nil {
		return database.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: object %s", domain.ErrNotFound, path)
	}
	return nil
}
