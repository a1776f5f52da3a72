package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/pocketbase/dbx"
)

// TicketCounter is the name of the global ticket number sequence.
const TicketCounter = "ticket_number"

var schemaTables = []string{"tickets", "sale_items", "sales", "ticket_types", "events", "counters"}

func schemaStatements(dialect Dialect) []string {
	money := "TEXT"
	if dialect == DialectPostgres {
		money = "NUMERIC(12,2)"
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			venue      TEXT NOT NULL DEFAULT '',
			starts_at  BIGINT,
			is_active  BOOLEAN NOT NULL DEFAULT TRUE,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ticket_types (
			id              TEXT PRIMARY KEY,
			event_id        TEXT NOT NULL REFERENCES events(id),
			name            TEXT NOT NULL,
			price           ` + money + ` NOT NULL,
			max_quantity    INTEGER NOT NULL,
			sold_quantity   INTEGER NOT NULL DEFAULT 0,
			is_table        BOOLEAN NOT NULL DEFAULT FALSE,
			seats_per_table INTEGER NOT NULL DEFAULT 0,
			is_active       BOOLEAN NOT NULL DEFAULT TRUE,
			created_at      BIGINT NOT NULL,
			updated_at      BIGINT NOT NULL,
			CHECK (sold_quantity >= 0 AND sold_quantity <= max_quantity)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_ticket_types_event_name ON ticket_types (event_id, name)`,
		`CREATE TABLE IF NOT EXISTS sales (
			id                TEXT PRIMARY KEY,
			event_id          TEXT NOT NULL REFERENCES events(id),
			buyer_name        TEXT NOT NULL,
			buyer_email       TEXT NOT NULL,
			buyer_phone       TEXT NOT NULL DEFAULT '',
			subtotal          ` + money + ` NOT NULL,
			tax               ` + money + ` NOT NULL,
			total             ` + money + ` NOT NULL,
			total_amount      BIGINT NOT NULL,
			currency          TEXT NOT NULL,
			status            TEXT NOT NULL,
			payment_status    TEXT NOT NULL,
			expires_at        BIGINT,
			payment_provider  TEXT NOT NULL DEFAULT '',
			payment_reference TEXT NOT NULL DEFAULT '',
			payment_id        TEXT NOT NULL DEFAULT '',
			paid_at           BIGINT,
			created_at        BIGINT NOT NULL,
			updated_at        BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sales_pending ON sales (status, payment_status, expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_sales_reference ON sales (payment_reference)`,
		`CREATE TABLE IF NOT EXISTS sale_items (
			id              TEXT PRIMARY KEY,
			sale_id         TEXT NOT NULL REFERENCES sales(id),
			ticket_type_id  TEXT NOT NULL REFERENCES ticket_types(id),
			quantity        INTEGER NOT NULL CHECK (quantity > 0),
			unit_price      ` + money + ` NOT NULL,
			is_table        BOOLEAN NOT NULL DEFAULT FALSE,
			seats_per_table INTEGER NOT NULL DEFAULT 0,
			table_number    INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sale_items_sale ON sale_items (sale_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sale_items_ticket_type ON sale_items (ticket_type_id)`,
		`CREATE TABLE IF NOT EXISTS tickets (
			id             TEXT PRIMARY KEY,
			sale_id        TEXT NOT NULL REFERENCES sales(id),
			ticket_type_id TEXT NOT NULL REFERENCES ticket_types(id),
			ticket_number  TEXT NOT NULL,
			qr_code        TEXT NOT NULL DEFAULT '',
			table_number   TEXT NOT NULL DEFAULT '',
			seat_number    INTEGER NOT NULL DEFAULT 0,
			is_qr_visible  BOOLEAN NOT NULL DEFAULT TRUE,
			status         TEXT NOT NULL,
			created_at     BIGINT NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_tickets_number ON tickets (ticket_number)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_sale ON tickets (sale_id)`,
		`CREATE TABLE IF NOT EXISTS counters (
			name  TEXT PRIMARY KEY,
			value BIGINT NOT NULL
		)`,
		`INSERT INTO counters (name, value) VALUES ('` + TicketCounter + `', 0) ON CONFLICT (name) DO NOTHING`,
	}
	return stmts
}

// Migrate creates the sales schema on b. It is safe to run repeatedly.
func Migrate(ctx context.Context, b dbx.Builder, dialect Dialect) error {
	for _, stmt := range schemaStatements(dialect) {
		if _, err := b.NewQuery(stmt).WithContext(ctx).Execute(); err != nil {
			return fmt.Errorf("store.Migrate: %s: %w", firstLine(stmt), err)
		}
	}
	return nil
}

// DropSchema removes every table Migrate creates.
func DropSchema(ctx context.Context, b dbx.Builder) error {
	for _, table := range schemaTables {
		if _, err := b.NewQuery("DROP TABLE IF EXISTS " + table).WithContext(ctx).Execute(); err != nil {
			return fmt.Errorf("store.DropSchema: %s: %w", table, err)
		}
	}
	return nil
}

// Migrate creates the schema on the store's own connection.
func (s *Store) Migrate(ctx context.Context) error {
	return Migrate(ctx, s.db, s.dialect)
}

func firstLine(stmt string) string {
	if i := strings.IndexByte(stmt, '\n'); i > 0 {
		return strings.TrimSpace(stmt[:i])
	}
	return stmt
}
