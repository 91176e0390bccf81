//go:build integration

// Integration tests for RelationalStore, gated behind the "integration"
// build tag the way pkg/database/client_test.go gates its testcontainers
// suite — they spin up a real Postgres container and are skipped by a
// plain `go test ./...`.
package storage

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/odin-social/timeline-server/internal/metrics"
	"github.com/odin-social/timeline-server/internal/model"
)

// testMetrics is constructed once for the whole test binary: promauto
// registers against the default Prometheus registry at construction
// time, so a second metrics.New() call in the same process panics with
// a duplicate-registration error.
var testMetrics = metrics.New()

const schemaSQL = `
CREATE TABLE users (user_id uuid PRIMARY KEY, name text UNIQUE NOT NULL);
CREATE TABLE friendships (user_id uuid NOT NULL, friend_id uuid NOT NULL, PRIMARY KEY (user_id, friend_id));
`

func newTestRelationalStore(t *testing.T) *RelationalStore {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("timeline_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(container)
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, schemaSQL)
	require.NoError(t, err)

	return &RelationalStore{pool: pool, metrics: testMetrics}
}

func insertTestUser(t *testing.T, s *RelationalStore, ctx context.Context, id model.UserID, name string) {
	t.Helper()
	_, err := s.pool.Exec(ctx, `INSERT INTO users (user_id, name) VALUES ($1, $2)`, id[:], name)
	require.NoError(t, err)
}

func TestGetUserByNameFindsInsertedUser(t *testing.T) {
	s := newTestRelationalStore(t)
	ctx := context.Background()

	id := model.NewUserID()
	insertTestUser(t, s, ctx, id, "alice")

	got, err := s.GetUserByName(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, id, got)
}

func TestGetUserByNameNotFound(t *testing.T) {
	s := newTestRelationalStore(t)
	_, err := s.GetUserByName(context.Background(), "nobody")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestAddAndRemoveFriendshipCreatesBothDirectedRows(t *testing.T) {
	s := newTestRelationalStore(t)
	ctx := context.Background()

	a, b := model.NewUserID(), model.NewUserID()
	insertTestUser(t, s, ctx, a, "a")
	insertTestUser(t, s, ctx, b, "b")

	require.NoError(t, s.AddFriendship(ctx, a, b))

	friendsOfA, err := s.GetFriendsOfUser(ctx, a)
	require.NoError(t, err)
	require.Equal(t, []model.UserID{b}, friendsOfA)

	friendsOfB, err := s.GetFriendsOfUser(ctx, b)
	require.NoError(t, err)
	require.Equal(t, []model.UserID{a}, friendsOfB)

	require.NoError(t, s.RemoveFriendship(ctx, a, b))

	friendsOfA, err = s.GetFriendsOfUser(ctx, a)
	require.NoError(t, err)
	require.Empty(t, friendsOfA)
}

func TestAddFriendshipDuplicateEdgeIsError(t *testing.T) {
	s := newTestRelationalStore(t)
	ctx := context.Background()

	a, b := model.NewUserID(), model.NewUserID()
	insertTestUser(t, s, ctx, a, "a2")
	insertTestUser(t, s, ctx, b, "b2")

	require.NoError(t, s.AddFriendship(ctx, a, b))
	require.Error(t, s.AddFriendship(ctx, a, b))
}
