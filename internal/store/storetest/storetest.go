// Package storetest opens throwaway stores for tests: SQLite always, and
// Postgres from POSTGRES_URL or a testcontainers instance when Docker is
// reachable.
package storetest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pocketbase/dbx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"ticket-sales/internal/store"
	"ticket-sales/models"
)

// New returns a migrated store backed by a file in t.TempDir.
func New(t testing.TB) *store.Store {
	t.Helper()

	st, err := store.Open("sqlite", "file:"+filepath.Join(t.TempDir(), "sales.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// NewPostgres returns a migrated store living in its own schema, dropped
// when the test ends. The test is skipped in -short mode or when no Postgres
// server can be reached.
func NewPostgres(t testing.TB) *store.Store {
	t.Helper()

	if testing.Short() {
		t.Skip("postgres store skipped in -short mode")
	}
	base, err := postgresURL()
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}

	admin, err := dbx.Open("postgres", base)
	require.NoError(t, err)

	schema := "t_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	_, err = admin.NewQuery("CREATE SCHEMA " + schema).Execute()
	require.NoError(t, err)
	t.Cleanup(func() {
		admin.NewQuery("DROP SCHEMA " + schema + " CASCADE").Execute()
		admin.Close()
	})

	st, err := store.Open("postgres", withSearchPath(base, schema))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// Dialects runs fn as a subtest against every store backend.
func Dialects(t *testing.T, fn func(t *testing.T, st *store.Store)) {
	t.Run("sqlite", func(t *testing.T) {
		fn(t, New(t))
	})
	t.Run("postgres", func(t *testing.T) {
		fn(t, NewPostgres(t))
	})
}

var (
	pgOnce sync.Once
	pgURL  string
	pgErr  error
)

// postgresURL starts at most one container per test binary. Ryuk removes it
// when the binary exits.
func postgresURL() (string, error) {
	pgOnce.Do(func() {
		if pgURL = os.Getenv("POSTGRES_URL"); pgURL != "" {
			return
		}
		pgURL, pgErr = startPostgresContainer()
	})
	return pgURL, pgErr
}

func startPostgresContainer() (url string, err error) {
	// testcontainers panics when it cannot locate a Docker host.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("start postgres container: %v", r)
		}
	}()
	ctx := context.Background()

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("docker.io/postgres:15.2-alpine"),
		postgres.WithDatabase("sales"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return "", err
	}
	return container.ConnectionString(ctx, "sslmode=disable", "application_name=test")
}

func withSearchPath(dsn, schema string) string {
	if !strings.Contains(dsn, "://") {
		return dsn + " search_path=" + schema
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&search_path=" + schema
	}
	return dsn + "?search_path=" + schema
}

// Event inserts an active event named name.
func Event(t testing.TB, st *store.Store, name string) *models.Event {
	t.Helper()

	e := &models.Event{ID: uuid.NewString(), Name: name, Venue: "Arena", IsActive: true}
	require.NoError(t, st.InsertEvent(context.Background(), e))
	return e
}

// TicketType inserts an active general admission type.
func TicketType(t testing.TB, st *store.Store, eventID, name, price string, capacity int) *models.TicketType {
	t.Helper()

	tt := &models.TicketType{
		ID:          uuid.NewString(),
		EventID:     eventID,
		Name:        name,
		Price:       decimal.RequireFromString(price),
		MaxQuantity: capacity,
		IsActive:    true,
	}
	require.NoError(t, st.InsertTicketType(context.Background(), tt))
	return tt
}

// TableType inserts an active table type with the given seats per table.
func TableType(t testing.TB, st *store.Store, eventID, name, price string, tables, seats int) *models.TicketType {
	t.Helper()

	tt := &models.TicketType{
		ID:            uuid.NewString(),
		EventID:       eventID,
		Name:          name,
		Price:         decimal.RequireFromString(price),
		MaxQuantity:   tables,
		IsTable:       true,
		SeatsPerTable: seats,
		IsActive:      true,
	}
	require.NoError(t, st.InsertTicketType(context.Background(), tt))
	return tt
}
