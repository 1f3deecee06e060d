package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/doctorsportal/portal/internal/platform/apperr"
)

const uniqueViolation = "23505"

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// Translate maps driver errors onto the application taxonomy: no rows becomes
// apperr.ErrNotFound and a unique violation becomes apperr.ErrConflict. The
// entity name prefixes the message.
func Translate(entity string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%s: %w", entity, apperr.ErrNotFound)
	case IsUniqueViolation(err):
		return fmt.Errorf("%s: %w", entity, apperr.ErrConflict)
	default:
		return fmt.Errorf("%s: %w", entity, err)
	}
}
