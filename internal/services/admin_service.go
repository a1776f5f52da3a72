package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"ticket-sales/internal/status"
	"ticket-sales/internal/store"
	"ticket-sales/models"
)

const recentOrdersLimit = 10

type NewTicketType struct {
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	MaxQuantity   int             `json:"max_quantity"`
	IsTable       bool            `json:"is_table"`
	SeatsPerTable int             `json:"seats_per_table,omitempty"`
}

type CreateEventRequest struct {
	Name        string          `json:"name"`
	Venue       string          `json:"venue"`
	StartsAt    time.Time       `json:"starts_at"`
	TicketTypes []NewTicketType `json:"ticket_types"`
}

type CreatedEvent struct {
	Event       models.Event        `json:"event"`
	TicketTypes []models.TicketType `json:"ticket_types"`
}

type OrderFilter struct {
	EventID       string               `json:"event_id,omitempty"`
	PaymentStatus models.PaymentStatus `json:"status,omitempty"`
	Search        string               `json:"search,omitempty"`
	Limit         int                  `json:"limit,omitempty"`
}

// Order is a sale as the back office lists it.
type Order struct {
	*models.Sale
	TicketCount    int `json:"ticket_count"`
	VisibleQRCount int `json:"visible_qr_count"`
}

type EventMetrics struct {
	EventID     string          `json:"event_id"`
	Name        string          `json:"name"`
	Venue       string          `json:"venue"`
	StartsAt    time.Time       `json:"starts_at"`
	Capacity    int             `json:"capacity"`
	Sold        int             `json:"sold"`
	Available   int             `json:"available"`
	PercentSold float64         `json:"percent_sold"`
	Revenue     decimal.Decimal `json:"revenue"`
	Orders      int             `json:"orders"`
}

type DashboardOverview struct {
	Revenue     decimal.Decimal `json:"revenue"`
	TicketsSold int             `json:"tickets_sold"`
	Orders      int             `json:"orders"`
	Events      int             `json:"events"`
}

type Dashboard struct {
	Overview     DashboardOverview `json:"overview"`
	Events       []EventMetrics    `json:"events"`
	RecentOrders []Order           `json:"recent_orders"`
}

// AdminService backs the operator console: catalog setup and sales reporting.
type AdminService struct {
	store  *store.Store
	logger *slog.Logger
}

func NewAdminService(st *store.Store) *AdminService {
	return &AdminService{store: st, logger: slog.Default()}
}

// CreateEvent inserts an active event together with its ticket types.
func (s *AdminService) CreateEvent(ctx context.Context, req CreateEventRequest) (*CreatedEvent, error) {
	if err := validateCreateEvent(&req); err != nil {
		return nil, err
	}

	created := &CreatedEvent{
		Event: models.Event{
			ID:       uuid.NewString(),
			Name:     req.Name,
			Venue:    req.Venue,
			StartsAt: req.StartsAt,
			IsActive: true,
		},
		TicketTypes: make([]models.TicketType, 0, len(req.TicketTypes)),
	}
	err := s.store.RunInTx(ctx, func(tx *store.Store) error {
		if err := tx.InsertEvent(ctx, &created.Event); err != nil {
			return err
		}
		for _, nt := range req.TicketTypes {
			tt := models.TicketType{
				ID:            uuid.NewString(),
				EventID:       created.Event.ID,
				Name:          nt.Name,
				Price:         nt.Price,
				MaxQuantity:   nt.MaxQuantity,
				IsTable:       nt.IsTable,
				SeatsPerTable: nt.SeatsPerTable,
				IsActive:      true,
			}
			if err := tx.InsertTicketType(ctx, &tt); err != nil {
				if store.IsUniqueViolation(err) {
					return status.Invalid("ticket type %q is listed twice", nt.Name)
				}
				return err
			}
			created.TicketTypes = append(created.TicketTypes, tt)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Event created", "event_id", created.Event.ID, "name", created.Event.Name, "ticket_types", len(created.TicketTypes))
	return created, nil
}

func validateCreateEvent(req *CreateEventRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	req.Venue = strings.TrimSpace(req.Venue)
	switch {
	case req.Name == "":
		return status.Invalid("event name is required")
	case req.Venue == "":
		return status.Invalid("venue is required")
	case req.StartsAt.IsZero():
		return status.Invalid("starts_at is required")
	}

	for i := range req.TicketTypes {
		nt := &req.TicketTypes[i]
		nt.Name = strings.TrimSpace(nt.Name)
		switch {
		case nt.Name == "":
			return status.Invalid("ticket type %d has no name", i+1)
		case nt.Price.IsNegative():
			return status.Invalid("ticket type %q has a negative price", nt.Name)
		case nt.MaxQuantity <= 0:
			return status.Invalid("ticket type %q needs a positive max_quantity", nt.Name)
		case nt.SeatsPerTable < 0:
			return status.Invalid("ticket type %q has negative seats_per_table", nt.Name)
		}
		if nt.IsTable && nt.SeatsPerTable == 0 {
			nt.SeatsPerTable = models.DefaultSeatsPerTable
		}
		if !nt.IsTable {
			nt.SeatsPerTable = 0
		}
	}
	return nil
}

// ListOrders returns sales matching the filter, newest first.
func (s *AdminService) ListOrders(ctx context.Context, f OrderFilter) ([]Order, error) {
	return s.orders(ctx, store.SaleFilter{
		EventID:       f.EventID,
		PaymentStatus: f.PaymentStatus,
		Search:        f.Search,
		Limit:         f.Limit,
	})
}

// Dashboard summarizes capacity, sales and revenue of every active event.
func (s *AdminService) Dashboard(ctx context.Context) (*Dashboard, error) {
	summaries, err := s.store.SummarizeEvents(ctx)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{
		Events: lo.Map(summaries, func(sum store.EventSummary, _ int) EventMetrics {
			return eventMetrics(sum)
		}),
	}
	d.Overview.Events = len(d.Events)
	d.Overview.Revenue = decimal.Zero
	for _, m := range d.Events {
		d.Overview.Revenue = d.Overview.Revenue.Add(m.Revenue)
		d.Overview.TicketsSold += m.Sold
		d.Overview.Orders += m.Orders
	}

	d.RecentOrders, err = s.orders(ctx, store.SaleFilter{PaymentStatus: models.PaymentPaid, Limit: recentOrdersLimit})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func eventMetrics(sum store.EventSummary) EventMetrics {
	m := EventMetrics{
		EventID:   sum.Event.ID,
		Name:      sum.Event.Name,
		Venue:     sum.Event.Venue,
		StartsAt:  sum.Event.StartsAt,
		Capacity:  sum.Capacity,
		Sold:      sum.Sold,
		Available: sum.Capacity - sum.Sold,
		Revenue:   models.FromMinorUnits(sum.RevenueMinor),
		Orders:    sum.Orders,
	}
	if sum.Capacity > 0 {
		m.PercentSold = decimal.NewFromInt(int64(sum.Sold * 100)).
			Div(decimal.NewFromInt(int64(sum.Capacity))).
			Round(1).
			InexactFloat64()
	}
	return m
}

func (s *AdminService) orders(ctx context.Context, f store.SaleFilter) ([]Order, error) {
	sales, err := s.store.ListSales(ctx, f)
	if err != nil {
		return nil, err
	}
	tallies, err := s.store.TallyTickets(ctx, lo.Map(sales, func(sale *models.Sale, _ int) string { return sale.ID }))
	if err != nil {
		return nil, err
	}
	return lo.Map(sales, func(sale *models.Sale, _ int) Order {
		tally := tallies[sale.ID]
		return Order{Sale: sale, TicketCount: tally.Tickets, VisibleQRCount: tally.VisibleQR}
	}), nil
}
