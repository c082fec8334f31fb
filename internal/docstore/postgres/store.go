// Package postgres stores documents in a single JSONB table and propagates
// changes between server instances with LISTEN/NOTIFY.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/board/internal/database"
	"github.com/vedran77/board/internal/docstore"
	"github.com/vedran77/board/internal/domain"
)

// ChangeChannel carries the collection path of every committed write.
const ChangeChannel = "docstore_changes"

const reconnectDelay = time.Second

type Store struct {
	pool   *pgxpool.Pool
	feed   *docstore.Feed
	logger *slog.Logger
}

func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	return &Store{
		pool:   pool,
		feed:   docstore.NewFeed(logger),
		logger: logger,
	}
}

func (s *Store) Get(ctx context.Context, path string) (*docstore.Document, error) {
	collection, id, err := docstore.Split(path)
	if err != nil {
		return nil, err
	}

	var raw []byte
	err = s.pool.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
	}
	if err != nil {
		return nil, database.Classify(err)
	}

	data, err := docstore.DecodeFields(raw)
	if err != nil {
		return nil, err
	}
	return &docstore.Document{ID: id, Path: path, Data: data}, nil
}

func (s *Store) Add(ctx context.Context, collection string, data docstore.Fields) (string, error) {
	id := uuid.NewString()
	if err := s.Set(ctx, docstore.Join(collection, id), data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Set(ctx context.Context, path string, data docstore.Fields) error {
	collection, id, err := docstore.Split(path)
	if err != nil {
		return err
	}
	raw, err := docstore.EncodeFields(docstore.ResolveTimestamps(data, docstore.Now()))
	if err != nil {
		return err
	}

	return s.write(ctx, collection, func(tx pgx.Tx) (bool, error) {
		query := `
			INSERT INTO documents (collection, id, data)
			VALUES ($1, $2, $3::jsonb)
			ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`
		_, err := tx.Exec(ctx, query, collection, id, string(raw))
		return true, err
	})
}

func (s *Store) Update(ctx context.Context, path string, data docstore.Fields) error {
	collection, id, err := docstore.Split(path)
	if err != nil {
		return err
	}
	raw, err := docstore.EncodeFields(docstore.ResolveTimestamps(data, docstore.Now()))
	if err != nil {
		return err
	}

	return s.write(ctx, collection, func(tx pgx.Tx) (bool, error) {
		query := `UPDATE documents SET data = data || $3::jsonb, updated_at = now() WHERE collection = $1 AND id = $2`
		tag, err := tx.Exec(ctx, query, collection, id, string(raw))
		if err != nil {
			return false, err
		}
		if tag.RowsAffected() == 0 {
			return false, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
		}
		return true, nil
	})
}

func (s *Store) Delete(ctx context.Context, path string) error {
	collection, id, err := docstore.Split(path)
	if err != nil {
		return err
	}

	return s.write(ctx, collection, func(tx pgx.Tx) (bool, error) {
		tag, err := tx.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
		if err != nil {
			return false, err
		}
		return tag.RowsAffected() > 0, nil
	})
}

// write runs fn and, when it reports a change, queues the collection
// notification in the same transaction so listeners only see committed data.
func (s *Store) write(ctx context.Context, collection string, fn func(tx pgx.Tx) (bool, error)) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		changed, err := fn(tx)
		if err != nil || !changed {
			return err
		}
		_, err = tx.Exec(ctx, `SELECT pg_notify($1, $2)`, ChangeChannel, collection)
		return err
	})
	return database.Classify(err)
}

func (s *Store) Query(ctx context.Context, q docstore.Query) ([]*docstore.Document, error) {
	query, args, err := buildQuery(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, database.Classify(err)
	}
	defer rows.Close()

	var docs []*docstore.Document
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, database.Classify(err)
		}
		data, err := docstore.DecodeFields(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, &docstore.Document{
			ID:   id,
			Path: docstore.Join(q.Collection, id),
			Data: data,
		})
	}
	return docs, database.Classify(rows.Err())
}

// buildQuery translates q to SQL. Ordering compares timestamps and strings;
// other value kinds are not orderable here.
func buildQuery(q docstore.Query) (string, []any, error) {
	var b strings.Builder
	args := []any{q.Collection}
	b.WriteString(`SELECT id, data FROM documents WHERE collection = $1`)

	for _, f := range q.Filters {
		raw, err := docstore.EncodeValue(f.Value)
		if err != nil {
			return "", nil, fmt.Errorf("docstore: filter %q: %w", f.Field, err)
		}
		args = append(args, f.Field, string(raw))
		fmt.Fprintf(&b, ` AND data -> $%d::text = $%d::jsonb`, len(args)-1, len(args))
	}

	if q.OrderBy != "" {
		args = append(args, q.OrderBy)
		n := len(args)
		dir := "ASC"
		if q.Descending {
			dir = "DESC"
		}
		fmt.Fprintf(&b, ` ORDER BY COALESCE(data -> $%d::text ->> '$time', data ->> $%d::text) COLLATE "C" %s NULLS LAST, id`, n, n, dir)
	}

	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&b, ` LIMIT $%d`, len(args))
	}

	return b.String(), args, nil
}

func (s *Store) Listen(ctx context.Context, q docstore.Query) (*docstore.Listener, error) {
	return s.feed.Watch(ctx, q, s.Query)
}

// Run forwards change notifications to local listeners until ctx is done,
// reconnecting after connection failures.
func (s *Store) Run(ctx context.Context) error {
	for {
		err := s.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		s.logger.Warn("docstore: change listener interrupted", slog.String("error", err.Error()))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

func (s *Store) listen(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = conn.Exec(context.Background(), "UNLISTEN *")
		conn.Release()
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+ChangeChannel); err != nil {
		return err
	}
	// Writes may have happened while no connection was listening.
	s.feed.PublishAll()

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		s.feed.Publish(n.Payload)
	}
}
