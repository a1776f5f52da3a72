package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultSeatsPerTable is used when a table ticket type does not set its own.
const DefaultSeatsPerTable = 4

type TicketStatus string

const (
	TicketValid     TicketStatus = "VALID"
	TicketUsed      TicketStatus = "USED"
	TicketCancelled TicketStatus = "CANCELLED"
)

type TicketType struct {
	ID            string          `json:"id"`
	EventID       string          `json:"event_id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	MaxQuantity   int             `json:"max_quantity"`
	SoldQuantity  int             `json:"sold_quantity"`
	IsTable       bool            `json:"is_table"`
	SeatsPerTable int             `json:"seats_per_table,omitempty"`
	IsActive      bool            `json:"is_active"`
}

// Seats returns how many admission tickets one unit of this type issues.
func (t TicketType) Seats() int {
	if !t.IsTable {
		return 1
	}
	if t.SeatsPerTable > 0 {
		return t.SeatsPerTable
	}
	return DefaultSeatsPerTable
}

type Ticket struct {
	ID           string       `json:"id"`
	SaleID       string       `json:"sale_id"`
	TicketTypeID string       `json:"ticket_type_id"`
	TicketNumber string       `json:"ticket_number"`
	QRCode       string       `json:"qr_code,omitempty"`
	TableNumber  string       `json:"table_number,omitempty"`
	SeatNumber   int          `json:"seat_number,omitempty"`
	IsQRVisible  bool         `json:"is_qr_visible"`
	Status       TicketStatus `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
}
