// Package postgres stores vendor rate documents in PostgreSQL and turns
// LISTEN/NOTIFY into whole-collection snapshots.
//
// Every Put upserts the row and issues pg_notify in the same transaction, so
// a watcher that wakes up always sees the committed write. Watchers hold a
// dedicated connection taken out of the pool; on connection loss they report
// the error, wait, and listen again on a fresh connection.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/vendorrates/internal/rates"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Channel is the NOTIFY channel used for change notifications.
const Channel = "vendor_rates_changed"

// DefaultReconnectDelay is used when no delay is configured.
const DefaultReconnectDelay = 2 * time.Second

const schemaSQL = `
CREATE TABLE IF NOT EXISTS vendor_rates (
	id         TEXT PRIMARY KEY,
	body       JSON NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const upsertSQL = `
INSERT INTO vendor_rates (id, body, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (id) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`

const snapshotSQL = `SELECT id, body FROM vendor_rates ORDER BY id`

// DBTX is the query surface shared by *pgxpool.Pool, *pgxpool.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
}

// Store is a rates.Store backed by a pgx pool.
type Store struct {
	pool           *pgxpool.Pool
	logger         *slog.Logger
	reconnectDelay time.Duration
}

// New wraps an open pool.
func New(pool *pgxpool.Pool, logger *slog.Logger, reconnectDelay time.Duration) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if reconnectDelay <= 0 {
		reconnectDelay = DefaultReconnectDelay
	}
	return &Store{pool: pool, logger: logger, reconnectDelay: reconnectDelay}
}

// Migrate creates the vendor_rates table if it does not exist. The body is
// JSON rather than JSONB so column order survives the round trip.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate vendor_rates: %w", err)
	}
	return nil
}

// Put implements rates.Store.
func (s *Store) Put(ctx context.Context, doc rates.Document) error {
	body, err := json.Marshal(doc.Record)
	if err != nil {
		return fmt.Errorf("encode %s: %w", doc.Name, err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin put %s: %w", doc.Name, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, upsertSQL, doc.Name, string(body)); err != nil {
		return fmt.Errorf("upsert %s: %w", doc.Name, err)
	}
	if _, err := tx.Exec(ctx, "SELECT pg_notify($1, $2)", Channel, doc.Name); err != nil {
		return fmt.Errorf("notify %s: %w", doc.Name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit put %s: %w", doc.Name, err)
	}
	return nil
}

// Watch implements rates.Store. The first LISTEN happens synchronously so
// configuration and permission problems surface to the caller.
func (s *Store) Watch(ctx context.Context) (<-chan rates.Event, error) {
	conn, err := s.listen(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan rates.Event)
	go s.watchLoop(ctx, conn, out)
	return out, nil
}

func (s *Store) listen(ctx context.Context) (*pgxpool.Conn, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listener: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{Channel}.Sanitize()); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen %s: %w", Channel, err)
	}
	return conn, nil
}

func (s *Store) watchLoop(ctx context.Context, conn *pgxpool.Conn, out chan<- rates.Event) {
	defer close(out)

	for {
		err := s.serve(ctx, conn, out)
		discard(conn)
		if ctx.Err() != nil {
			return
		}

		s.logger.Warn("vendor rates listener lost", "error", err)
		if !sendEvent(ctx, out, rates.Event{Err: err}) {
			return
		}

		for {
			if !sleep(ctx, s.reconnectDelay) {
				return
			}
			conn, err = s.listen(ctx)
			if err == nil {
				s.logger.Info("vendor rates listener restored")
				break
			}
			if ctx.Err() != nil {
				return
			}
			if !sendEvent(ctx, out, rates.Event{Err: err}) {
				return
			}
		}
	}
}

// serve emits the current snapshot and then one snapshot per notification.
// It returns nil only when ctx is done.
func (s *Store) serve(ctx context.Context, conn *pgxpool.Conn, out chan<- rates.Event) error {
	for {
		snapshot, err := loadSnapshot(ctx, conn)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if !sendEvent(ctx, out, rates.Event{Snapshot: snapshot}) {
			return nil
		}

		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("wait for notification: %w", err)
		}
		s.logger.Debug("vendor rates changed", "vendor", n.Payload)
	}
}

// discard closes a listener connection instead of returning it to the pool
// with LISTEN still active.
func discard(conn *pgxpool.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = conn.Hijack().Close(ctx)
}

func loadSnapshot(ctx context.Context, db DBTX) ([]rates.Document, error) {
	rows, err := db.Query(ctx, snapshotSQL)
	if err != nil {
		return nil, fmt.Errorf("load vendor rates: %w", err)
	}
	defer rows.Close()

	var snapshot []rates.Document
	for rows.Next() {
		var (
			id   string
			body []byte
		)
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("scan vendor rates: %w", err)
		}
		doc := rates.Document{Name: id}
		if err := json.Unmarshal(body, &doc.Record); err != nil {
			return nil, fmt.Errorf("decode %s: %w", id, err)
		}
		snapshot = append(snapshot, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load vendor rates: %w", err)
	}
	return snapshot, nil
}

// Ping implements rates.Store.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close implements rates.Store.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func sendEvent(ctx context.Context, out chan<- rates.Event, ev rates.Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
