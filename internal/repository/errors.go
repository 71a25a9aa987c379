package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrEmailExists   = errors.New("email already registered")
	ErrURLNotFound   = errors.New("URL not found")
	ErrCodeExists    = errors.New("short code already exists")
	ErrDatabaseError = errors.New("database error")
)

// uniqueViolationCode is the postgres error code for a unique
// constraint violation.
const uniqueViolationCode = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}
