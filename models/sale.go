package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type SaleStatus string

const (
	SalePending   SaleStatus = "PENDING"
	SaleCompleted SaleStatus = "COMPLETED"
	SaleCancelled SaleStatus = "CANCELLED"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentCanceled PaymentStatus = "CANCELED"
	PaymentExpired  PaymentStatus = "EXPIRED"
)

type Buyer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type Sale struct {
	ID               string          `json:"id"`
	EventID          string          `json:"event_id"`
	Buyer            Buyer           `json:"buyer"`
	Items            []SaleItem      `json:"items"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	Tax              decimal.Decimal `json:"tax"`
	Total            decimal.Decimal `json:"total"`
	TotalAmount      int64           `json:"total_amount"`
	Currency         string          `json:"currency"`
	Status           SaleStatus      `json:"status"`
	PaymentStatus    PaymentStatus   `json:"payment_status"`
	ExpiresAt        *time.Time      `json:"expires_at,omitempty"`
	PaymentProvider  string          `json:"payment_provider,omitempty"`
	PaymentReference string          `json:"payment_reference,omitempty"`
	PaymentID        string          `json:"payment_id,omitempty"`
	PaidAt           *time.Time      `json:"paid_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// IsExpired reports whether an unpaid sale has outlived its hold window.
func (s *Sale) IsExpired(now time.Time) bool {
	if s.PaymentStatus == PaymentExpired {
		return true
	}
	if s.Status != SalePending || s.ExpiresAt == nil {
		return false
	}
	return !s.ExpiresAt.After(now)
}

// HoldsInventory reports whether the sale still counts against availability.
func (s *Sale) HoldsInventory(now time.Time) bool {
	if s.Status != SalePending {
		return false
	}
	return s.ExpiresAt == nil || s.ExpiresAt.After(now)
}

// IsFulfilled reports whether tickets were already issued for the sale.
func (s *Sale) IsFulfilled() bool {
	return s.PaymentStatus == PaymentPaid || s.Status == SaleCompleted
}

type SaleItem struct {
	ID             string          `json:"id"`
	SaleID         string          `json:"sale_id"`
	TicketTypeID   string          `json:"ticket_type_id"`
	TicketTypeName string          `json:"ticket_type_name"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	IsTable        bool            `json:"is_table"`
	SeatsPerTable  int             `json:"seats_per_table,omitempty"`
	TableNumber    int             `json:"table_number,omitempty"`
}

// TicketCount is the number of tickets fulfillment mints for the item.
// A table consumes one unit of capacity but issues one ticket per seat.
func (i SaleItem) TicketCount() int {
	if !i.IsTable {
		return i.Quantity
	}
	seats := i.SeatsPerTable
	if seats <= 0 {
		seats = DefaultSeatsPerTable
	}
	return i.Quantity * seats
}

// SaleView is the buyer-facing projection of a sale.
type SaleView struct {
	Sale
	EventName string   `json:"event_name"`
	Tickets   []Ticket `json:"tickets"`
	IsExpired bool     `json:"is_expired"`
}
