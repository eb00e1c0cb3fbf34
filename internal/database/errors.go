package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// ErrorKind classifies store failures.
type ErrorKind string

const (
	KindIO         ErrorKind = "io"
	KindConstraint ErrorKind = "constraint"
)

// StoreError wraps a failed store operation.
type StoreError struct {
	Op   string
	Kind ErrorKind
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Kind: kindOf(err), Err: err}
}

func kindOf(err error) ErrorKind {
	var sqliteErr sqlite3.Error
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey), errors.Is(err, gorm.ErrForeignKeyViolated):
		return KindConstraint
	case errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint:
		return KindConstraint
	case errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23"):
		// class 23: integrity constraint violation
		return KindConstraint
	}
	return KindIO
}
