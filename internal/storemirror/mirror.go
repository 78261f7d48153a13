// Package storemirror optionally replicates the broadcaster's event stream
// into Postgres, as a durable analytics-friendly sink alongside the primary
// embedded SQLite event store (internal/eventstore). It is inert unless a
// Postgres DSN is configured.
package storemirror

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"

	"github.com/openclaw/gateway/internal/apperr"
	"github.com/openclaw/gateway/internal/broadcast"
	"github.com/openclaw/gateway/internal/logging"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Mirror writes broadcaster envelopes into a Postgres table, independent of
// the gateway's own session-key addressing — it exists purely as an
// external replica for operators who want SQL access to the event stream.
type Mirror struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// Open runs pending migrations against dsn and returns a Mirror ready to
// consume events. Migrations are applied via a plain database/sql
// connection (lib/pq) since golang-migrate drives schema changes through
// database/sql; the pgx pool is reserved for the hot insert path.
func Open(ctx context.Context, dsn string) (*Mirror, error) {
	if err := runMigrations(dsn); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, apperr.Wrap(apperr.Storage, fmt.Errorf("open postgres mirror pool: %w", err))
	}
	return &Mirror{pool: pool, log: logging.For("store_mirror")}, nil
}

func runMigrations(dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return apperr.Wrap(apperr.Storage, fmt.Errorf("open migration connection: %w", err))
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return apperr.Wrap(apperr.Storage, fmt.Errorf("init postgres migration driver: %w", err))
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return apperr.Wrap(apperr.Storage, fmt.Errorf("open embedded migrations: %w", err))
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return apperr.Wrap(apperr.Storage, fmt.Errorf("init migrator: %w", err))
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return apperr.Wrap(apperr.Storage, fmt.Errorf("apply migrations: %w", err))
	}
	return nil
}

// Run consumes sub until ctx is cancelled, mirroring every envelope it
// receives. Lagged markers are logged and skipped — the mirror is a
// best-effort replica, not a source of truth.
func (m *Mirror) Run(ctx context.Context, sub *broadcast.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-sub.C:
			if !ok {
				return
			}
			if item.Lagged != nil {
				m.log.Warn("store mirror fell behind", "skipped", item.Lagged.Skipped)
				continue
			}
			if item.Envelope == nil {
				continue
			}
			if err := m.insert(ctx, *item.Envelope); err != nil {
				m.log.Error("mirror insert failed", "error", err)
			}
		}
	}
}

func (m *Mirror) insert(ctx context.Context, env broadcast.Envelope) error {
	payload, err := json.Marshal(env.Event.Data)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = m.pool.Exec(ctx,
		`INSERT INTO event_mirror(id, event_type, occurred_at, payload) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO NOTHING`,
		env.ID, string(env.Event.Type), env.Timestamp, payload)
	return err
}

// Close releases the pgx pool. Pending migration connections are already
// closed by the time Open returns.
func (m *Mirror) Close() {
	m.pool.Close()
}
