// package repositories provides persistence layer implementations for all model types.
package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/hlsx/internal/shared"
)

// scanner is satisfied by [sql.Row] and [sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

// notFound converts [sql.ErrNoRows] into the given sentinel, wrapping other errors with context.
func notFound(err error, sentinel error, what, key string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", sentinel, key)
	}
	return fmt.Errorf("failed to query %s: %w", what, err)
}

// Clock lets tests pin timestamps written by repositories.
type Clock func() time.Time

func defaultClock() time.Time { return time.Now().UTC() }

// Open opens the configured database, runs migrations and returns both repositories over it.
func Open(cfg shared.DatabaseConfig) (*sql.DB, *TokenRepository, *PositionRepository, error) {
	db, err := shared.OpenMigrated(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return db, NewTokenRepository(db), NewPositionRepository(db), nil
}
