// Package storage implements the connection holder (C7) and the two
// store-specific repositories built on top of it: relational.go (users,
// friendships — Postgres via pgx) and column.go (messages, read tags —
// Scylla/Cassandra via gocql). Per spec.md §4.7 the holder is a
// clone-cheap bundle of long-lived handles, initialized once per process
// and passed into request-scoped repository values; this module follows
// the dependency-injection alternative spec.md §9 explicitly permits
// over the source's process-wide-global style.
package storage

import (
	"context"
	"fmt"

	"github.com/gocql/gocql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/odin-social/timeline-server/internal/metrics"
	"github.com/odin-social/timeline-server/pkg/bus"
)

// RelationalConfig configures the Postgres connection, matching spec.md
// §6's postgresql config block.
type RelationalConfig struct {
	Host        string
	Port        uint16
	Username    string
	Password    string
	Database    string
	SSLStrategy string
}

// ColumnConfig configures the Scylla/Cassandra session, matching
// spec.md §6's scylladb config block.
type ColumnConfig struct {
	Hostnames []string
	Keyspace  string
}

// Config bundles every backend's connection parameters.
type Config struct {
	Relational RelationalConfig
	Column     ColumnConfig
	Bus        bus.Config
}

// Holder bundles clone-cheap handles to the three backends. All methods
// are safe for concurrent use: *pgxpool.Pool, *gocql.Session, and
// *bus.Client are each internally thread-safe, so a single Holder value
// is shared process-wide and per-request repository values borrow
// references from it without owning a lifetime of their own.
type Holder struct {
	pool    *pgxpool.Pool
	session *gocql.Session
	busConn *bus.Client
	metrics *metrics.Metrics
}

// Open dials all three backends in turn and returns an initialized
// Holder. No invariant beyond "initialized before first request" — once
// Open returns, Relational/Column/Bus are safe to call from any
// goroutine for the rest of the process's life. m is threaded into every
// repository Open constructs, so backend query latency and bus
// connection state are observable from the moment the process starts.
func Open(ctx context.Context, cfg Config, logger zerolog.Logger, m *metrics.Metrics) (*Holder, error) {
	pool, err := pgxpool.New(ctx, relationalDSN(cfg.Relational))
	if err != nil {
		return nil, fmt.Errorf("storage: connect relational: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: ping relational: %w", err)
	}

	clusterCfg := gocql.NewCluster(cfg.Column.Hostnames...)
	clusterCfg.Keyspace = cfg.Column.Keyspace
	clusterCfg.Consistency = gocql.Quorum
	session, err := clusterCfg.CreateSession()
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: connect column store: %w", err)
	}

	busConn, err := bus.Connect(cfg.Bus, logger, m)
	if err != nil {
		session.Close()
		pool.Close()
		return nil, fmt.Errorf("storage: connect bus: %w", err)
	}

	return &Holder{pool: pool, session: session, busConn: busConn, metrics: m}, nil
}

func relationalDSN(cfg RelationalConfig) string {
	sslmode := cfg.SSLStrategy
	if sslmode == "" {
		sslmode = "prefer"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database, sslmode,
	)
}

// Relational returns the repository over the relational store.
func (h *Holder) Relational() *RelationalStore {
	return &RelationalStore{pool: h.pool, metrics: h.metrics}
}

// Column returns the repository over the column store.
func (h *Holder) Column() *ColumnStore {
	return &ColumnStore{session: h.session, metrics: h.metrics}
}

// Bus returns the shared event-bus client handle.
func (h *Holder) Bus() *bus.Client {
	return h.busConn
}

// Close releases all three backend handles. Safe to call once during
// graceful shutdown.
func (h *Holder) Close() {
	h.busConn.Close()
	h.session.Close()
	h.pool.Close()
}
