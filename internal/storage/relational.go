package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odin-social/timeline-server/internal/apperr"
	"github.com/odin-social/timeline-server/internal/metrics"
	"github.com/odin-social/timeline-server/internal/model"
)

// ErrUserNotFound is returned by GetUserByName when no row matches.
var ErrUserNotFound = errors.New("storage: no such user")

// RelationalStore is the users/friendships repository over Postgres,
// implementing the schema of spec.md §6: users(user_id, name) and
// friendships(user_id, friend_id) with two rows per edge.
type RelationalStore struct {
	pool    *pgxpool.Pool
	metrics *metrics.Metrics
}

// GetUserByName looks up a user by their unique display name.
func (s *RelationalStore) GetUserByName(ctx context.Context, name string) (model.UserID, error) {
	defer s.observe(time.Now())
	var raw [16]byte
	err := s.pool.QueryRow(ctx, `SELECT user_id FROM users WHERE name = $1`, name).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.UserID{}, ErrUserNotFound
	}
	if err != nil {
		return model.UserID{}, apperr.Wrap(apperr.KindRelational, fmt.Errorf("storage: get user by name: %w", err))
	}
	return model.UserID(raw), nil
}

// observe records how long a query took. Deferred with time.Now() at the
// call site so it covers the query's full wall-clock duration.
func (s *RelationalStore) observe(start time.Time) {
	s.metrics.ObserveRelationalQuery(time.Since(start))
}

// GetFriendsOfUser returns u's current friend set. Per spec.md §4.5 the
// source models this as a one-shot stream; a bounded slice is the
// idiomatic Go equivalent for a query the historical-timeline builder
// consumes once up front and then ranges over.
func (s *RelationalStore) GetFriendsOfUser(ctx context.Context, u model.UserID) ([]model.UserID, error) {
	defer s.observe(time.Now())
	rows, err := s.pool.Query(ctx, `SELECT friend_id FROM friendships WHERE user_id = $1`, u[:])
	if err != nil {
		return nil, apperr.Wrap(apperr.KindRelational, fmt.Errorf("storage: get friends of user: %w", err))
	}
	defer rows.Close()

	var friends []model.UserID
	for rows.Next() {
		var raw [16]byte
		if err := rows.Scan(&raw); err != nil {
			return nil, apperr.Wrap(apperr.KindRelational, fmt.Errorf("storage: scan friend row: %w", err))
		}
		friends = append(friends, model.UserID(raw))
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindRelational, fmt.Errorf("storage: iterate friends: %w", err))
	}
	return friends, nil
}

// AddFriendship inserts both directed rows (a,b) and (b,a) as one
// transaction, so either both exist or neither does (spec.md §3's
// Friendship invariant). A duplicate edge surfaces as Internal via the
// unique-constraint violation, per spec.md's self-friendship design note.
func (s *RelationalStore) AddFriendship(ctx context.Context, a, b model.UserID) error {
	defer s.observe(time.Now())
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperr.Wrap(apperr.KindRelational, fmt.Errorf("storage: begin add friendship: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const insert = `INSERT INTO friendships (user_id, friend_id) VALUES ($1, $2)`
	if _, err := tx.Exec(ctx, insert, a[:], b[:]); err != nil {
		if isUniqueViolation(err) {
			return apperr.Wrap(apperr.KindRelational, fmt.Errorf("storage: friendship already exists: %w", err))
		}
		return apperr.Wrap(apperr.KindRelational, fmt.Errorf("storage: insert friendship row: %w", err))
	}
	if _, err := tx.Exec(ctx, insert, b[:], a[:]); err != nil {
		if isUniqueViolation(err) {
			return apperr.Wrap(apperr.KindRelational, fmt.Errorf("storage: friendship already exists: %w", err))
		}
		return apperr.Wrap(apperr.KindRelational, fmt.Errorf("storage: insert reverse friendship row: %w", err))
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.Wrap(apperr.KindRelational, fmt.Errorf("storage: commit add friendship: %w", err))
	}
	return nil
}

// RemoveFriendship deletes both directed rows as one transaction.
func (s *RelationalStore) RemoveFriendship(ctx context.Context, a, b model.UserID) error {
	defer s.observe(time.Now())
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperr.Wrap(apperr.KindRelational, fmt.Errorf("storage: begin remove friendship: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const del = `DELETE FROM friendships WHERE user_id = $1 AND friend_id = $2`
	if _, err := tx.Exec(ctx, del, a[:], b[:]); err != nil {
		return apperr.Wrap(apperr.KindRelational, fmt.Errorf("storage: delete friendship row: %w", err))
	}
	if _, err := tx.Exec(ctx, del, b[:], a[:]); err != nil {
		return apperr.Wrap(apperr.KindRelational, fmt.Errorf("storage: delete reverse friendship row: %w", err))
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.Wrap(apperr.KindRelational, fmt.Errorf("storage: commit remove friendship: %w", err))
	}
	return nil
}

// isUniqueViolation reports whether err is Postgres' unique_violation
// (23505), the case a duplicate (a,b) edge surfaces as.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
