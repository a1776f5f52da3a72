package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/shopspring/decimal"

	"ticket-sales/internal/status"
	"ticket-sales/models"
)

type eventRow struct {
	ID       string        `db:"id"`
	Name     string        `db:"name"`
	Venue    string        `db:"venue"`
	StartsAt sql.NullInt64 `db:"starts_at"`
	IsActive bool          `db:"is_active"`
}

func (r eventRow) toModel() models.Event {
	e := models.Event{ID: r.ID, Name: r.Name, Venue: r.Venue, IsActive: r.IsActive}
	if t := fromNullMillis(r.StartsAt); t != nil {
		e.StartsAt = *t
	}
	return e
}

type ticketTypeRow struct {
	ID            string          `db:"id"`
	EventID       string          `db:"event_id"`
	Name          string          `db:"name"`
	Price         decimal.Decimal `db:"price"`
	MaxQuantity   int             `db:"max_quantity"`
	SoldQuantity  int             `db:"sold_quantity"`
	IsTable       bool            `db:"is_table"`
	SeatsPerTable int             `db:"seats_per_table"`
	IsActive      bool            `db:"is_active"`
}

func (r ticketTypeRow) toModel() models.TicketType {
	return models.TicketType{
		ID:            r.ID,
		EventID:       r.EventID,
		Name:          r.Name,
		Price:         r.Price,
		MaxQuantity:   r.MaxQuantity,
		SoldQuantity:  r.SoldQuantity,
		IsTable:       r.IsTable,
		SeatsPerTable: r.SeatsPerTable,
		IsActive:      r.IsActive,
	}
}

const ticketTypeColumns = "id, event_id, name, price, max_quantity, sold_quantity, is_table, seats_per_table, is_active"

func (s *Store) InsertEvent(ctx context.Context, e *models.Event) error {
	now := toMillis(time.Now())
	var startsAt sql.NullInt64
	if !e.StartsAt.IsZero() {
		startsAt = nullMillis(&e.StartsAt)
	}
	_, err := s.db.Insert("events", dbx.Params{
		"id":         e.ID,
		"name":       e.Name,
		"venue":      e.Venue,
		"starts_at":  startsAt,
		"is_active":  e.IsActive,
		"created_at": now,
		"updated_at": now,
	}).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("InsertEvent: %w", err)
	}
	return nil
}

func (s *Store) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var row eventRow
	err := s.db.NewQuery("SELECT id, name, venue, starts_at, is_active FROM events WHERE id = {:id}").
		Bind(dbx.Params{"id": id}).
		WithContext(ctx).
		One(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, status.NotFound("event", id)
	}
	if err != nil {
		return nil, fmt.Errorf("GetEvent: %w", err)
	}
	e := row.toModel()
	return &e, nil
}

func (s *Store) InsertTicketType(ctx context.Context, t *models.TicketType) error {
	now := toMillis(time.Now())
	_, err := s.db.Insert("ticket_types", dbx.Params{
		"id":              t.ID,
		"event_id":        t.EventID,
		"name":            t.Name,
		"price":           t.Price,
		"max_quantity":    t.MaxQuantity,
		"sold_quantity":   t.SoldQuantity,
		"is_table":        t.IsTable,
		"seats_per_table": t.SeatsPerTable,
		"is_active":       t.IsActive,
		"created_at":      now,
		"updated_at":      now,
	}).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("InsertTicketType: %w", err)
	}
	return nil
}

func (s *Store) GetTicketType(ctx context.Context, id string) (*models.TicketType, error) {
	var row ticketTypeRow
	err := s.db.NewQuery("SELECT " + ticketTypeColumns + " FROM ticket_types WHERE id = {:id}").
		Bind(dbx.Params{"id": id}).
		WithContext(ctx).
		One(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, status.NotFound("ticket type", id)
	}
	if err != nil {
		return nil, fmt.Errorf("GetTicketType: %w", err)
	}
	t := row.toModel()
	return &t, nil
}

func (s *Store) ListTicketTypes(ctx context.Context, eventID string) ([]models.TicketType, error) {
	var rows []ticketTypeRow
	err := s.db.NewQuery("SELECT " + ticketTypeColumns + " FROM ticket_types WHERE event_id = {:event} ORDER BY name").
		Bind(dbx.Params{"event": eventID}).
		WithContext(ctx).
		All(&rows)
	if err != nil {
		return nil, fmt.Errorf("ListTicketTypes: %w", err)
	}
	types := make([]models.TicketType, len(rows))
	for i, r := range rows {
		types[i] = r.toModel()
	}
	return types, nil
}

// LockTicketTypes write-locks the given ticket types for the rest of the
// transaction and returns their current state keyed by id. Ids that do not
// exist are absent from the result.
func (s *Store) LockTicketTypes(ctx context.Context, ids []string) (map[string]models.TicketType, error) {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	sorted = dedupeSorted(sorted)

	if _, err := s.touchRows(ctx, "ticket_types", sorted); err != nil {
		return nil, fmt.Errorf("LockTicketTypes: %w", err)
	}
	if len(sorted) == 0 {
		return map[string]models.TicketType{}, nil
	}

	params := dbx.Params{}
	in := inParams("tt", sorted, params)

	var rows []ticketTypeRow
	err := s.db.NewQuery("SELECT " + ticketTypeColumns + " FROM ticket_types WHERE id IN (" + in + ")").
		Bind(params).
		WithContext(ctx).
		All(&rows)
	if err != nil {
		return nil, fmt.Errorf("LockTicketTypes: %w", err)
	}

	out := make(map[string]models.TicketType, len(rows))
	for _, r := range rows {
		out[r.ID] = r.toModel()
	}
	return out, nil
}

// ReservedPending sums the quantities held by live pending sales.
func (s *Store) ReservedPending(ctx context.Context, ticketTypeID string, now time.Time) (int, error) {
	var reserved int
	err := s.db.NewQuery(`
		SELECT COALESCE(SUM(si.quantity), 0)
		FROM sale_items si
		JOIN sales s ON s.id = si.sale_id
		WHERE si.ticket_type_id = {:tt}
		  AND s.status = {:pending}
		  AND (s.expires_at IS NULL OR s.expires_at > {:now})`).
		Bind(dbx.Params{
			"tt":      ticketTypeID,
			"pending": string(models.SalePending),
			"now":     toMillis(now),
		}).
		WithContext(ctx).
		Row(&reserved)
	if err != nil {
		return 0, fmt.Errorf("ReservedPending: %w", err)
	}
	return reserved, nil
}

// IncrementSold permanently commits qty units of a ticket type. It refuses
// to push soldQuantity past maxQuantity.
func (s *Store) IncrementSold(ctx context.Context, ticketTypeID string, qty int) error {
	res, err := s.db.NewQuery(`
		UPDATE ticket_types
		SET sold_quantity = sold_quantity + {:qty}, updated_at = {:now}
		WHERE id = {:id} AND sold_quantity + {:qty} <= max_quantity`).
		Bind(dbx.Params{"id": ticketTypeID, "qty": qty, "now": toMillis(time.Now())}).
		WithContext(ctx).
		Execute()
	if err != nil {
		return fmt.Errorf("IncrementSold: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		tt, err := s.GetTicketType(ctx, ticketTypeID)
		if err != nil {
			return fmt.Errorf("IncrementSold: %w", err)
		}
		return &status.CapacityExceededError{
			Item:      tt.Name,
			Requested: qty,
			Available: tt.MaxQuantity - tt.SoldQuantity,
		}
	}
	return nil
}

func dedupeSorted(ids []string) []string {
	out := ids[:0]
	for i, id := range ids {
		if i == 0 || id != ids[i-1] {
			out = append(out, id)
		}
	}
	return out
}
