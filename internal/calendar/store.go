// internal/calendar/store.go
package calendar

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/agendabot/internal/bridge"
	"github.com/user/agendabot/internal/types"
)

// ErrNotOwned is returned by DeleteByID when the schedule does not exist or
// belongs to a different user. Callers must not learn which of the two it was.
var ErrNotOwned = errors.New("calendar: schedule not found for user")

// Store is the Postgres-backed calendar gateway. Every operation is one
// transactional unit of work (begin, execute, commit-or-rollback) executed
// through the bridge so the request path never blocks on storage I/O.
type Store struct {
	pool   *pgxpool.Pool
	bridge *bridge.Pool
	retry  *RetryPolicy
}

// NewStore creates a Store over the given connection pool and bridge.
func NewStore(pool *pgxpool.Pool, br *bridge.Pool) *Store {
	return &Store{
		pool:   pool,
		bridge: br,
		retry:  DefaultRetryPolicy(),
	}
}

// EnsureSchema creates the users and schedules tables if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS users (
    id   BIGINT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS schedules (
    id          BIGSERIAL PRIMARY KEY,
    user_id     BIGINT NOT NULL REFERENCES users (id),
    title       TEXT NOT NULL,
    description TEXT,
    date        TEXT NOT NULL,
    time        TEXT
);
CREATE INDEX IF NOT EXISTS idx_schedules_user_date ON schedules (user_id, date);
`)
	return err
}

// withTx runs fn inside one transaction on a bridge worker. The transaction
// commits only if fn succeeds; the deferred rollback covers every other exit.
func (s *Store) withTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	_, err := s.bridge.Submit(ctx, func(ctx context.Context) (any, error) {
		return nil, s.retry.Execute(func() error {
			return s.runTx(ctx, fn)
		})
	})
	return err
}

func (s *Store) runTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const scheduleColumns = `id, user_id, title, COALESCE(description, ''), date, COALESCE(time, '')`

func scanSchedules(rows pgx.Rows) ([]types.Schedule, error) {
	defer rows.Close()
	var out []types.Schedule
	for rows.Next() {
		var sch types.Schedule
		if err := rows.Scan(&sch.ID, &sch.UserID, &sch.Title, &sch.Description, &sch.Date, &sch.Time); err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		out = append(out, sch)
	}
	return out, rows.Err()
}

// ListAll returns the user's schedules in insertion order.
func (s *Store) ListAll(ctx context.Context, user types.UserID) ([]types.Schedule, error) {
	var schedules []types.Schedule
	err := s.withTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE user_id = $1 ORDER BY id`, user)
		if err != nil {
			return fmt.Errorf("query schedules: %w", err)
		}
		schedules, err = scanSchedules(rows)
		return err
	})
	return schedules, err
}

// ListByDate returns the user's schedules matching the exact date.
func (s *Store) ListByDate(ctx context.Context, user types.UserID, date string) ([]types.Schedule, error) {
	var schedules []types.Schedule
	err := s.withTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE user_id = $1 AND date = $2 ORDER BY id`, user, date)
		if err != nil {
			return fmt.Errorf("query schedules: %w", err)
		}
		schedules, err = scanSchedules(rows)
		return err
	})
	return schedules, err
}

// Create inserts a schedule row. timeOfDay and description may be nil and
// are stored as NULL.
func (s *Store) Create(ctx context.Context, user types.UserID, date, title string, timeOfDay, description *string) error {
	return s.withTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO schedules (user_id, date, title, time, description) VALUES ($1, $2, $3, $4, $5)`,
			user, date, title, timeOfDay, description)
		if err != nil {
			return fmt.Errorf("insert schedule: %w", err)
		}
		return nil
	})
}

// DeleteByDate removes all of the user's schedules on the given date.
// Deleting zero rows is success.
func (s *Store) DeleteByDate(ctx context.Context, user types.UserID, date string) error {
	return s.withTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM schedules WHERE user_id = $1 AND date = $2`, user, date); err != nil {
			return fmt.Errorf("delete schedules: %w", err)
		}
		return nil
	})
}

// DeleteByUser removes all of the user's schedules.
func (s *Store) DeleteByUser(ctx context.Context, user types.UserID) error {
	return s.withTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM schedules WHERE user_id = $1`, user); err != nil {
			return fmt.Errorf("delete schedules: %w", err)
		}
		return nil
	})
}

// DeleteByID removes one schedule after confirming it belongs to the user.
// The ownership check and the delete run in the same transaction.
func (s *Store) DeleteByID(ctx context.Context, id int64, user types.UserID) error {
	return s.withTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var found int
		err := tx.QueryRow(ctx, `SELECT 1 FROM schedules WHERE id = $1 AND user_id = $2`, id, user).Scan(&found)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotOwned
		}
		if err != nil {
			return fmt.Errorf("check ownership: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM schedules WHERE id = $1 AND user_id = $2`, id, user); err != nil {
			return fmt.Errorf("delete schedule: %w", err)
		}
		return nil
	})
}

// UserExists reports whether a user row exists for the given id. Used by
// the identity verifier's storage-backed existence check.
func (s *Store) UserExists(ctx context.Context, id types.UserID) (bool, error) {
	return bridge.Run(ctx, s.bridge, func(ctx context.Context) (bool, error) {
		var found int
		err := s.pool.QueryRow(ctx, `SELECT 1 FROM users WHERE id = $1`, id).Scan(&found)
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("query user: %w", err)
		}
		return true, nil
	})
}

var _ types.CalendarStore = (*Store)(nil)
var _ types.UserLookup = (*Store)(nil)
