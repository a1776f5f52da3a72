package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"ticket-sales/internal/status"
	"ticket-sales/internal/store"
	"ticket-sales/models"
	"ticket-sales/monitoring"
)

type ReservationConfig struct {
	HoldWindow time.Duration
	TaxRate    decimal.Decimal
	Currency   string
}

// ReserveItem is one requested line. A ticket type is resolved by id or,
// failing that, by its name (the storefront calls it a section).
type ReserveItem struct {
	TicketTypeID string `json:"ticket_type_id"`
	Section      string `json:"section,omitempty"`
	Quantity     int    `json:"quantity"`
	TableNumber  int    `json:"table_number,omitempty"`
}

type ReserveRequest struct {
	EventID string        `json:"event_id"`
	Items   []ReserveItem `json:"items"`
	Buyer   models.Buyer  `json:"buyer"`
}

type ReservationService struct {
	store    *store.Store
	cfg      ReservationConfig
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewReservationService(st *store.Store, cfg ReservationConfig, notifier Notifier) *ReservationService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &ReservationService{
		store:    st,
		cfg:      cfg,
		notifier: notifier,
		logger:   slog.Default(),
		now:      time.Now,
	}
}

// Reserve turns a cart into a PENDING sale that holds inventory until the
// hold window ends. Either every line is held or none is.
func (s *ReservationService) Reserve(ctx context.Context, req ReserveRequest) (*models.Sale, error) {
	if err := validateReserveRequest(&req); err != nil {
		monitoring.TrackReservation("invalid")
		return nil, err
	}

	event, err := s.store.GetEvent(ctx, req.EventID)
	if err != nil {
		return nil, err
	}
	if !event.IsActive {
		monitoring.TrackReservation("invalid")
		return nil, status.Invalid("event %q is not on sale", event.Name)
	}

	types, err := s.store.ListTicketTypes(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("Reserve: %w", err)
	}

	items, err := resolveItems(req.Items, types)
	if err != nil {
		monitoring.TrackReservation("invalid")
		return nil, err
	}

	var sale *models.Sale
	err = s.store.RunInTx(ctx, func(tx *store.Store) error {
		now := s.now()

		ids := lo.Uniq(lo.Map(items, func(item models.SaleItem, _ int) string { return item.TicketTypeID }))
		locked, err := tx.LockTicketTypes(ctx, ids)
		if err != nil {
			return err
		}

		requested := map[string]int{}
		for _, item := range items {
			requested[item.TicketTypeID] += item.Quantity
		}

		for _, item := range items {
			tt, ok := locked[item.TicketTypeID]
			if !ok || !tt.IsActive {
				return status.Invalid("ticket type %q is not available", item.TicketTypeName)
			}

			a, err := availabilityOf(ctx, tx, tt, now)
			if err != nil {
				return err
			}
			if requested[tt.ID] > a.Available {
				return &status.CapacityExceededError{
					Item:      tt.Name,
					Requested: requested[tt.ID],
					Available: a.Available,
				}
			}

			if item.IsTable && item.TableNumber > 0 {
				held, err := tx.TableHeld(ctx, tt.ID, item.TableNumber, now)
				if err != nil {
					return err
				}
				if held {
					return &status.CapacityExceededError{
						Item:      fmt.Sprintf("%s (Mesa %d)", tt.Name, item.TableNumber),
						Requested: 1,
						Available: 0,
					}
				}
			}
		}

		sale = s.newSale(event.ID, req.Buyer, items, now)
		return tx.InsertSale(ctx, sale)
	})
	if err != nil {
		monitoring.TrackReservation(reservationResult(err))
		return nil, err
	}

	monitoring.TrackReservation("created")
	s.logger.Info("Reservation created",
		"sale_id", sale.ID,
		"event_id", sale.EventID,
		"total", sale.Total.StringFixed(2),
		"expires_at", sale.ExpiresAt,
	)
	s.notifier.NotifySale(ctx, SaleEventFrom(sale, 0))

	return sale, nil
}

func (s *ReservationService) newSale(eventID string, buyer models.Buyer, items []models.SaleItem, now time.Time) *models.Sale {
	subtotal := decimal.Zero
	for i := range items {
		items[i].ID = uuid.NewString()
		subtotal = subtotal.Add(items[i].UnitPrice.Mul(decimal.NewFromInt(int64(items[i].Quantity))))
	}
	tax := subtotal.Mul(s.cfg.TaxRate).Round(2)
	total := subtotal.Add(tax)
	expiresAt := now.Add(s.cfg.HoldWindow)

	return &models.Sale{
		ID:            uuid.NewString(),
		EventID:       eventID,
		Buyer:         buyer,
		Items:         items,
		Subtotal:      subtotal,
		Tax:           tax,
		Total:         total,
		TotalAmount:   models.ToMinorUnits(total),
		Currency:      s.cfg.Currency,
		Status:        models.SalePending,
		PaymentStatus: models.PaymentPending,
		ExpiresAt:     &expiresAt,
		CreatedAt:     now,
	}
}

func validateReserveRequest(req *ReserveRequest) error {
	req.EventID = strings.TrimSpace(req.EventID)
	req.Buyer.Name = strings.TrimSpace(req.Buyer.Name)
	req.Buyer.Email = strings.TrimSpace(req.Buyer.Email)
	req.Buyer.Phone = strings.TrimSpace(req.Buyer.Phone)

	switch {
	case req.EventID == "":
		return status.Invalid("event id is required")
	case req.Buyer.Name == "":
		return status.Invalid("buyer name is required")
	case req.Buyer.Email == "":
		return status.Invalid("buyer email is required")
	case len(req.Items) == 0:
		return status.Invalid("at least one item is required")
	}
	if _, err := mail.ParseAddress(req.Buyer.Email); err != nil {
		return status.Invalid("buyer email %q is not valid", req.Buyer.Email)
	}
	return nil
}

func resolveItems(lines []ReserveItem, types []models.TicketType) ([]models.SaleItem, error) {
	byID := lo.KeyBy(types, func(tt models.TicketType) string { return tt.ID })
	byName := lo.KeyBy(types, func(tt models.TicketType) string { return strings.ToLower(tt.Name) })

	items := make([]models.SaleItem, 0, len(lines))
	tables := map[string]bool{}
	for i, line := range lines {
		tt, ok := byID[line.TicketTypeID]
		if !ok && line.Section != "" {
			tt, ok = byName[strings.ToLower(strings.TrimSpace(line.Section))]
		}
		if !ok {
			return nil, status.Invalid("item %d: ticket type %q not found for this event", i+1, lo.Ternary(line.TicketTypeID != "", line.TicketTypeID, line.Section))
		}
		if !tt.IsActive {
			return nil, status.Invalid("item %d: ticket type %q is not on sale", i+1, tt.Name)
		}

		item := models.SaleItem{
			TicketTypeID:   tt.ID,
			TicketTypeName: tt.Name,
			Quantity:       line.Quantity,
			UnitPrice:      tt.Price,
		}
		if tt.IsTable {
			if line.TableNumber < 0 || line.TableNumber > tt.MaxQuantity {
				return nil, status.Invalid("item %d: table %d does not exist for %q", i+1, line.TableNumber, tt.Name)
			}
			item.Quantity = 1
			item.IsTable = true
			item.SeatsPerTable = tt.Seats()
			item.TableNumber = line.TableNumber
			if line.TableNumber > 0 {
				key := fmt.Sprintf("%s/%d", tt.ID, line.TableNumber)
				if tables[key] {
					return nil, status.Invalid("item %d: table %d of %q requested twice", i+1, line.TableNumber, tt.Name)
				}
				tables[key] = true
			}
		} else if line.Quantity < 1 {
			return nil, status.Invalid("item %d: quantity must be at least 1", i+1)
		}
		items = append(items, item)
	}
	return items, nil
}

func reservationResult(err error) string {
	switch {
	case errors.Is(err, status.ErrCapacityExceeded):
		return "capacity_exceeded"
	case status.IsDeterministic(err):
		return "invalid"
	}
	return "error"
}
