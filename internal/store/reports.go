package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pocketbase/dbx"

	"ticket-sales/models"
)

const defaultSaleListLimit = 100

// SaleFilter narrows ListSales. Zero fields match everything.
type SaleFilter struct {
	EventID       string
	PaymentStatus models.PaymentStatus
	// Search matches buyer name, buyer email or sale id, case-insensitively.
	Search string
	Limit  int
}

// ListSales returns sales newest first, with their items.
func (s *Store) ListSales(ctx context.Context, f SaleFilter) ([]*models.Sale, error) {
	var (
		where  []string
		params = dbx.Params{}
	)
	if f.EventID != "" {
		where = append(where, "event_id = {:event}")
		params["event"] = f.EventID
	}
	if f.PaymentStatus != "" {
		where = append(where, "payment_status = {:payment_status}")
		params["payment_status"] = string(f.PaymentStatus)
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		where = append(where, "(LOWER(buyer_name) LIKE {:q} OR LOWER(buyer_email) LIKE {:q} OR LOWER(id) LIKE {:q})")
		params["q"] = "%" + strings.ToLower(q) + "%"
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultSaleListLimit
	}

	query := "SELECT " + saleColumns + " FROM sales"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT %d", limit)

	var rows []saleRow
	if err := s.db.NewQuery(query).Bind(params).WithContext(ctx).All(&rows); err != nil {
		return nil, fmt.Errorf("ListSales: %w", err)
	}

	sales := make([]*models.Sale, len(rows))
	for i, r := range rows {
		sale := r.toModel()
		items, err := s.listSaleItems(ctx, sale.ID)
		if err != nil {
			return nil, err
		}
		sale.Items = items
		sales[i] = sale
	}
	return sales, nil
}

// TicketTally counts a sale's tickets and how many of them show their QR.
type TicketTally struct {
	Tickets   int
	VisibleQR int
}

// TallyTickets returns a tally for each given sale that has tickets.
func (s *Store) TallyTickets(ctx context.Context, saleIDs []string) (map[string]TicketTally, error) {
	tallies := make(map[string]TicketTally, len(saleIDs))
	if len(saleIDs) == 0 {
		return tallies, nil
	}

	params := dbx.Params{"visible": true}
	var rows []struct {
		SaleID    string `db:"sale_id"`
		Tickets   int    `db:"tickets"`
		VisibleQR int    `db:"visible_qr"`
	}
	err := s.db.NewQuery(`
		SELECT sale_id, COUNT(*) AS tickets,
			SUM(CASE WHEN is_qr_visible = {:visible} THEN 1 ELSE 0 END) AS visible_qr
		FROM tickets
		WHERE sale_id IN (` + inParams("s", saleIDs, params) + `)
		GROUP BY sale_id`).
		Bind(params).
		WithContext(ctx).
		All(&rows)
	if err != nil {
		return nil, fmt.Errorf("TallyTickets: %w", err)
	}
	for _, r := range rows {
		tallies[r.SaleID] = TicketTally{Tickets: r.Tickets, VisibleQR: r.VisibleQR}
	}
	return tallies, nil
}

// EventSummary aggregates inventory and paid sales of one active event.
type EventSummary struct {
	Event    models.Event
	Capacity int
	Sold     int
	Orders   int
	// RevenueMinor is the sum of paid sale totals in minor units.
	RevenueMinor int64
}

// SummarizeEvents returns a summary per active event, soonest first.
func (s *Store) SummarizeEvents(ctx context.Context) ([]EventSummary, error) {
	var stock []struct {
		ID       string        `db:"id"`
		Name     string        `db:"name"`
		Venue    string        `db:"venue"`
		StartsAt sql.NullInt64 `db:"starts_at"`
		IsActive bool          `db:"is_active"`
		Capacity int           `db:"capacity"`
		Sold     int           `db:"sold"`
	}
	err := s.db.NewQuery(`
		SELECT e.id, e.name, e.venue, e.starts_at, e.is_active,
			COALESCE(SUM(tt.max_quantity), 0) AS capacity,
			COALESCE(SUM(tt.sold_quantity), 0) AS sold
		FROM events e
		LEFT JOIN ticket_types tt ON tt.event_id = e.id
		WHERE e.is_active = {:active}
		GROUP BY e.id, e.name, e.venue, e.starts_at, e.is_active
		ORDER BY COALESCE(e.starts_at, 0), e.name`).
		Bind(dbx.Params{"active": true}).
		WithContext(ctx).
		All(&stock)
	if err != nil {
		return nil, fmt.Errorf("SummarizeEvents: stock: %w", err)
	}

	var paid []struct {
		EventID string `db:"event_id"`
		Orders  int    `db:"orders"`
		Revenue int64  `db:"revenue"`
	}
	err = s.db.NewQuery(`
		SELECT event_id, COUNT(*) AS orders, COALESCE(SUM(total_amount), 0) AS revenue
		FROM sales
		WHERE payment_status = {:paid}
		GROUP BY event_id`).
		Bind(dbx.Params{"paid": string(models.PaymentPaid)}).
		WithContext(ctx).
		All(&paid)
	if err != nil {
		return nil, fmt.Errorf("SummarizeEvents: sales: %w", err)
	}
	byEvent := make(map[string]int, len(paid))
	for i, p := range paid {
		byEvent[p.EventID] = i
	}

	summaries := make([]EventSummary, len(stock))
	for i, r := range stock {
		summaries[i] = EventSummary{
			Event:    eventRow{ID: r.ID, Name: r.Name, Venue: r.Venue, StartsAt: r.StartsAt, IsActive: r.IsActive}.toModel(),
			Capacity: r.Capacity,
			Sold:     r.Sold,
		}
		if j, ok := byEvent[r.ID]; ok {
			summaries[i].Orders = paid[j].Orders
			summaries[i].RevenueMinor = paid[j].Revenue
		}
	}
	return summaries, nil
}
