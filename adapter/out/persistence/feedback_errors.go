package persistence

import (
	"database/sql"
	"errors"
	"fmt"

	"feedback_server/core/domain"

	"github.com/jackc/pgx/v5/pgconn"
)

// Common persistence errors
var (
	ErrDuplicate = errors.New("duplicate entry")
	ErrConflict  = errors.New("serialization conflict")
)

// translate maps driver errors onto the errors callers match on.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%s: %w: %s", op, ErrDuplicate, pgErr.ConstraintName)
		case "40001", "40P01":
			return fmt.Errorf("%s: %w: %s", op, ErrConflict, pgErr.Message)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// requireOneRow turns an update that touched nothing into ErrNotFound.
func requireOneRow(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return translate(op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return nil
}
