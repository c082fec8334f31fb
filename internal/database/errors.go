package database

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vedran77/board/internal/domain"
)

const (
	codeInsufficientPrivilege = "42501"
	codeUniqueViolation       = "23505"
)

// Classify maps driver errors onto the domain error taxonomy. Errors that
// already carry a domain meaning and unknown errors pass through unchanged.
func Classify(err error) error {
	if err == nil || errors.Is(err, domain.ErrNotFound) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == codeInsufficientPrivilege {
			return fmt.Errorf("%w: %s", domain.ErrPermissionDenied, pgErr.Message)
		}
		return err
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var connErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connErr) || errors.As(err, &netErr) || pgconn.Timeout(err) {
		return &domain.NetworkError{Err: err}
	}
	return err
}

// IsUniqueViolation reports a duplicate key error.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}
