package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pocketbase/dbx"

	"ticket-sales/internal/status"
	"ticket-sales/models"
)

type ticketRow struct {
	ID           string `db:"id"`
	SaleID       string `db:"sale_id"`
	TicketTypeID string `db:"ticket_type_id"`
	TicketNumber string `db:"ticket_number"`
	QRCode       string `db:"qr_code"`
	TableNumber  string `db:"table_number"`
	SeatNumber   int    `db:"seat_number"`
	IsQRVisible  bool   `db:"is_qr_visible"`
	Status       string `db:"status"`
	CreatedAt    int64  `db:"created_at"`
}

func (r ticketRow) toModel() models.Ticket {
	return models.Ticket{
		ID:           r.ID,
		SaleID:       r.SaleID,
		TicketTypeID: r.TicketTypeID,
		TicketNumber: r.TicketNumber,
		QRCode:       r.QRCode,
		TableNumber:  r.TableNumber,
		SeatNumber:   r.SeatNumber,
		IsQRVisible:  r.IsQRVisible,
		Status:       models.TicketStatus(r.Status),
		CreatedAt:    fromMillis(r.CreatedAt),
	}
}

const ticketColumns = "id, sale_id, ticket_type_id, ticket_number, qr_code, table_number, seat_number, is_qr_visible, status, created_at"

// AllocateTicketNumbers reserves n consecutive ordinals from the global
// ticket sequence and returns the first one.
func (s *Store) AllocateTicketNumbers(ctx context.Context, n int) (int64, error) {
	if n <= 0 {
		return 0, status.Invalid("ticket block size must be positive, got %d", n)
	}

	var last int64
	err := s.db.NewQuery("UPDATE counters SET value = value + {:n} WHERE name = {:name} RETURNING value").
		Bind(dbx.Params{"n": n, "name": TicketCounter}).
		WithContext(ctx).
		Row(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("AllocateTicketNumbers: counter %q is not seeded", TicketCounter)
	}
	if err != nil {
		return 0, fmt.Errorf("AllocateTicketNumbers: %w", err)
	}
	return last - int64(n) + 1, nil
}

func (s *Store) InsertTicket(ctx context.Context, t *models.Ticket) error {
	_, err := s.db.Insert("tickets", dbx.Params{
		"id":             t.ID,
		"sale_id":        t.SaleID,
		"ticket_type_id": t.TicketTypeID,
		"ticket_number":  t.TicketNumber,
		"qr_code":        t.QRCode,
		"table_number":   t.TableNumber,
		"seat_number":    t.SeatNumber,
		"is_qr_visible":  t.IsQRVisible,
		"status":         string(t.Status),
		"created_at":     toMillis(t.CreatedAt),
	}).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("InsertTicket: %w", err)
	}
	return nil
}

func (s *Store) SetTicketQR(ctx context.Context, id, qr string) error {
	res, err := s.db.Update("tickets", dbx.Params{"qr_code": qr}, dbx.HashExp{"id": id}).
		WithContext(ctx).
		Execute()
	if err != nil {
		return fmt.Errorf("SetTicketQR: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return status.NotFound("ticket", id)
	}
	return nil
}

func (s *Store) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	var row ticketRow
	err := s.db.NewQuery("SELECT " + ticketColumns + " FROM tickets WHERE id = {:id}").
		Bind(dbx.Params{"id": id}).
		WithContext(ctx).
		One(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, status.NotFound("ticket", id)
	}
	if err != nil {
		return nil, fmt.Errorf("GetTicket: %w", err)
	}
	t := row.toModel()
	return &t, nil
}

func (s *Store) ListTicketsBySale(ctx context.Context, saleID string) ([]models.Ticket, error) {
	var rows []ticketRow
	err := s.db.NewQuery("SELECT " + ticketColumns + " FROM tickets WHERE sale_id = {:sale} ORDER BY ticket_number").
		Bind(dbx.Params{"sale": saleID}).
		WithContext(ctx).
		All(&rows)
	if err != nil {
		return nil, fmt.Errorf("ListTicketsBySale: %w", err)
	}
	tickets := make([]models.Ticket, len(rows))
	for i, r := range rows {
		tickets[i] = r.toModel()
	}
	return tickets, nil
}

// SetTicketVisibility toggles QR exposure for the listed tickets.
func (s *Store) SetTicketVisibility(ctx context.Context, ids []string, visible bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	res, err := s.db.Update("tickets", dbx.Params{"is_qr_visible": visible}, dbx.In("id", args...)).
		WithContext(ctx).
		Execute()
	if err != nil {
		return 0, fmt.Errorf("SetTicketVisibility: %w", err)
	}
	return res.RowsAffected()
}

// SetSaleTicketVisibility toggles QR exposure for every ticket of a sale.
func (s *Store) SetSaleTicketVisibility(ctx context.Context, saleID string, visible bool) (int64, error) {
	res, err := s.db.Update("tickets", dbx.Params{"is_qr_visible": visible}, dbx.HashExp{"sale_id": saleID}).
		WithContext(ctx).
		Execute()
	if err != nil {
		return 0, fmt.Errorf("SetSaleTicketVisibility: %w", err)
	}
	return res.RowsAffected()
}
