package services

import (
	"context"
	"fmt"
	"time"

	"ticket-sales/internal/store"
	"ticket-sales/models"
)

// Availability is the ledger's view of one ticket type.
type Availability struct {
	TicketTypeID string `json:"ticket_type_id"`
	Name         string `json:"name"`
	Capacity     int    `json:"capacity"`
	Sold         int    `json:"sold"`
	Reserved     int    `json:"reserved"`
	Available    int    `json:"available"`
	IsTable      bool   `json:"is_table"`
}

// Ledger answers how many units of a ticket type can still be held.
// Pending holds are summed on every read rather than kept in a counter,
// so a hold that has lapsed stops counting even before the reaper runs.
type Ledger struct {
	store *store.Store
	now   func() time.Time
}

func NewLedger(st *store.Store) *Ledger {
	return &Ledger{store: st, now: time.Now}
}

// Available returns capacity minus sold minus live pending holds.
func (l *Ledger) Available(ctx context.Context, ticketTypeID string) (int, error) {
	a, err := l.Get(ctx, ticketTypeID)
	if err != nil {
		return 0, err
	}
	return a.Available, nil
}

func (l *Ledger) Get(ctx context.Context, ticketTypeID string) (*Availability, error) {
	tt, err := l.store.GetTicketType(ctx, ticketTypeID)
	if err != nil {
		return nil, err
	}
	return availabilityOf(ctx, l.store, *tt, l.now())
}

// ForEvent lists availability for every ticket type of an event.
func (l *Ledger) ForEvent(ctx context.Context, eventID string) ([]Availability, error) {
	if _, err := l.store.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	types, err := l.store.ListTicketTypes(ctx, eventID)
	if err != nil {
		return nil, err
	}

	now := l.now()
	out := make([]Availability, 0, len(types))
	for _, tt := range types {
		a, err := availabilityOf(ctx, l.store, tt, now)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, nil
}

// availabilityOf computes availability against st, which may be a
// transaction that already holds the ticket type row lock.
func availabilityOf(ctx context.Context, st *store.Store, tt models.TicketType, now time.Time) (*Availability, error) {
	reserved, err := st.ReservedPending(ctx, tt.ID, now)
	if err != nil {
		return nil, fmt.Errorf("availabilityOf: %w", err)
	}

	available := tt.MaxQuantity - tt.SoldQuantity - reserved
	if available < 0 {
		available = 0
	}
	return &Availability{
		TicketTypeID: tt.ID,
		Name:         tt.Name,
		Capacity:     tt.MaxQuantity,
		Sold:         tt.SoldQuantity,
		Reserved:     reserved,
		Available:    available,
		IsTable:      tt.IsTable,
	}, nil
}
