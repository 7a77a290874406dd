package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/hrimport/internal/core"
)

// Postgres SQLSTATE codes the store cares about.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// mapErr translates pgx failures into the core storage contract:
// no rows is ErrNotFound, a lost race on a unique key is ErrConflict,
// and anything that never reached a SQL verdict is ErrStorageUnavailable.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return core.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == codeUniqueViolation:
			return fmt.Errorf("%w: %s (%s)", core.ErrConflict, pgErr.Message, pgErr.ConstraintName)
		case pgErr.Code == codeSerializationFailure, pgErr.Code == codeDeadlockDetected:
			return fmt.Errorf("%w: %s", core.ErrConflict, pgErr.Message)
		case len(pgErr.Code) == 5 && pgErr.Code[:2] == "08":
			return fmt.Errorf("%w: %s", core.ErrStorageUnavailable, pgErr.Message)
		}
		return err
	}

	return fmt.Errorf("%w: %v", core.ErrStorageUnavailable, err)
}
