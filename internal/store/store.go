// Package store persists events, ticket types, sales and tickets on top of
// dbx. It runs against the embedded SQLite database or against Postgres.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pocketbase/dbx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"ticket-sales/internal/status"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

const (
	// postgres SQLSTATE for serialization_failure and deadlock_detected.
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"

	// Every contender that loses a row lock retries once per lost race.
	maxTxAttempts = 10
	retryBaseWait = 5 * time.Millisecond
	retryMaxWait  = 250 * time.Millisecond
)

type Store struct {
	db      dbx.Builder
	conn    *dbx.DB
	dialect Dialect
	logger  *slog.Logger
}

// New wraps an already opened connection. For SQLite the connection must
// allow a single writer at a time, which is what serializes transactions.
func New(conn *dbx.DB, dialect Dialect) *Store {
	return &Store{
		db:      conn,
		conn:    conn,
		dialect: dialect,
		logger:  slog.Default(),
	}
}

// Open connects to the given driver. Supported drivers are "sqlite" and
// "postgres".
func Open(driver, dsn string) (*Store, error) {
	switch Dialect(driver) {
	case DialectSQLite:
		if dsn == "" {
			dsn = "file:sales.db"
		}
		if !strings.Contains(dsn, "_pragma") {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
		}
		conn, err := dbx.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("store.Open: dbx.Open sqlite: %w", err)
		}
		conn.DB().SetMaxOpenConns(1)
		return New(conn, DialectSQLite), nil

	case DialectPostgres:
		if dsn == "" {
			return nil, errors.New("store.Open: postgres requires a DSN")
		}
		conn, err := dbx.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("store.Open: dbx.Open postgres: %w", err)
		}
		conn.DB().SetMaxOpenConns(25)
		conn.DB().SetConnMaxIdleTime(5 * time.Minute)
		return New(conn, DialectPostgres), nil
	}

	return nil, fmt.Errorf("store.Open: unsupported driver %q", driver)
}

func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Conn returns the underlying connection, or nil inside a transaction.
func (s *Store) Conn() *dbx.DB {
	return s.conn
}

func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Ping verifies the store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	var one int
	return s.db.NewQuery("SELECT 1").WithContext(ctx).Row(&one)
}

// RunInTx runs fn inside a transaction. Postgres transactions run at
// REPEATABLE READ and are retried when the server aborts them with a
// serialization failure. Nested calls reuse the outer transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.conn == nil {
		return fn(s)
	}

	var opts *sql.TxOptions
	if s.dialect == DialectPostgres {
		opts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead}
	}

	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.conn.TransactionalContext(ctx, opts, func(tx *dbx.Tx) error {
			return fn(&Store{db: tx, dialect: s.dialect, logger: s.logger})
		})
		if err == nil || !isRetryable(err) {
			return err
		}
		s.logger.Warn("Retrying transaction", "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryWait(attempt)):
		}
	}
	return fmt.Errorf("RunInTx: %w after %d attempts: %v", status.ErrBusy, maxTxAttempts, err)
}

// retryWait is exponential backoff with full jitter, capped at retryMaxWait.
func retryWait(attempt int) time.Duration {
	ceiling := retryBaseWait << min(attempt, 6)
	if ceiling > retryMaxWait {
		ceiling = retryMaxWait
	}
	return time.Duration(rand.Int64N(int64(ceiling))) + time.Millisecond
}

func isRetryable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgSerializationFailure || pqErr.Code == pgDeadlockDetected
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code() & 0xff
		return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
	}
	return false
}

// IsUniqueViolation reports whether err is a unique constraint failure.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(liteErr.Error(), "UNIQUE")
		}
	}
	return false
}

// touchRows takes the write lock on the given rows, one id at a time in
// sorted order. Under REPEATABLE READ a concurrent committed update of the
// same row makes this statement fail with a serialization error, so the
// transaction is retried against fresh data.
func (s *Store) touchRows(ctx context.Context, table string, ids []string) (int64, error) {
	var total int64
	now := toMillis(time.Now())
	for _, id := range ids {
		res, err := s.db.Update(table, dbx.Params{"updated_at": now}, dbx.HashExp{"id": id}).
			WithContext(ctx).
			Execute()
		if err != nil {
			return total, fmt.Errorf("touchRows %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromNullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64)
	return &t
}

// inParams renders a parameterized IN list for raw queries.
func inParams(prefix string, values []string, params dbx.Params) string {
	names := make([]string, len(values))
	for i, v := range values {
		key := fmt.Sprintf("%s%d", prefix, i)
		params[key] = v
		names[i] = "{:" + key + "}"
	}
	return strings.Join(names, ", ")
}
