package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"ticket-sales/internal/status"
	"ticket-sales/internal/store"
	"ticket-sales/models"
	"ticket-sales/monitoring"
)

type Outcome string

const (
	OutcomeFulfilled        Outcome = "fulfilled"
	OutcomeAlreadyProcessed Outcome = "already_processed"
	OutcomeFailed           Outcome = "failed"
	OutcomeCancelled        Outcome = "cancelled"
	OutcomeIgnored          Outcome = "ignored"
)

type FulfillmentResult struct {
	SaleID  string          `json:"sale_id,omitempty"`
	Outcome Outcome         `json:"outcome"`
	Tickets []models.Ticket `json:"tickets,omitempty"`
}

// FulfillmentService applies payment results to sales. It is called both
// right after an inline charge and from gateway webhooks, in any order and
// any number of times; only the first paid result for a sale has effects.
type FulfillmentService struct {
	store    *store.Store
	issuer   *TicketIssuer
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewFulfillmentService(st *store.Store, issuer *TicketIssuer, notifier Notifier) *FulfillmentService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &FulfillmentService{
		store:    st,
		issuer:   issuer,
		notifier: notifier,
		logger:   slog.Default(),
		now:      time.Now,
	}
}

func (s *FulfillmentService) ProcessPaymentResult(ctx context.Context, res models.PaymentResult) (*FulfillmentResult, error) {
	switch res.Status {
	case models.SignalPaid, models.SignalFailed, models.SignalCancelled:
	default:
		s.logger.Warn("Ignoring payment result with unmapped status", "reference", res.Reference, "status", res.Status)
		monitoring.TrackFulfillment(string(OutcomeIgnored))
		return &FulfillmentResult{Outcome: OutcomeIgnored}, nil
	}

	found, err := s.store.FindSaleByReference(ctx, res.Reference)
	if err != nil {
		return nil, err
	}

	var (
		result *FulfillmentResult
		sale   *models.Sale
	)
	err = s.store.RunInTx(ctx, func(tx *store.Store) error {
		locked, err := tx.LockSale(ctx, found.ID)
		if err != nil {
			return err
		}
		sale = locked

		switch res.Status {
		case models.SignalPaid:
			result, err = s.applyPaid(ctx, tx, locked, res)
		case models.SignalFailed:
			result, err = s.applyFailed(ctx, tx, locked)
		case models.SignalCancelled:
			result, err = s.applyCancelled(ctx, tx, locked)
		}
		return err
	})
	if err != nil {
		if res.Status == models.SignalPaid && needsRefund(err) {
			s.logger.Error("Paid sale could not be fulfilled, refund required",
				"sale_id", found.ID, "reference", res.Reference, "payment_id", res.GatewayPaymentID, "error", err)
			monitoring.TrackFulfillment("refund_required")
		} else {
			monitoring.TrackFulfillment("error")
		}
		return nil, err
	}

	monitoring.TrackFulfillment(string(result.Outcome))
	if result.Outcome == OutcomeAlreadyProcessed || result.Outcome == OutcomeIgnored {
		s.logger.Info("Payment result already applied", "sale_id", sale.ID, "status", res.Status, "outcome", result.Outcome)
		return result, nil
	}

	monitoring.TrackTicketsIssued(len(result.Tickets))
	s.logger.Info("Payment result applied",
		"sale_id", sale.ID,
		"status", res.Status,
		"outcome", result.Outcome,
		"tickets", len(result.Tickets),
	)
	s.notifier.NotifySale(ctx, SaleEventFrom(sale, len(result.Tickets)))
	return result, nil
}

// applyPaid runs the whole paid transition on a locked sale: mark it paid,
// mint the tickets, then commit the inventory.
func (s *FulfillmentService) applyPaid(ctx context.Context, tx *store.Store, sale *models.Sale, res models.PaymentResult) (*FulfillmentResult, error) {
	if sale.IsFulfilled() {
		return &FulfillmentResult{SaleID: sale.ID, Outcome: OutcomeAlreadyProcessed}, nil
	}

	now := s.now()
	holding := sale.HoldsInventory(now)

	ids := make([]string, 0, len(sale.Items))
	perType := map[string]int{}
	for _, item := range sale.Items {
		if _, seen := perType[item.TicketTypeID]; !seen {
			ids = append(ids, item.TicketTypeID)
		}
		perType[item.TicketTypeID] += item.Quantity
	}
	sort.Strings(ids)

	types, err := tx.LockTicketTypes(ctx, ids)
	if err != nil {
		return nil, err
	}

	// A sale whose hold already lapsed no longer reserves anything, so the
	// units it paid for must still be free.
	if !holding {
		for _, id := range ids {
			a, err := availabilityOf(ctx, tx, types[id], now)
			if err != nil {
				return nil, err
			}
			if a.Available < perType[id] {
				return nil, fmt.Errorf("%w: sale %s paid after its hold lapsed and %s has %d left",
					status.ErrExpiredReservation, sale.ID, a.Name, a.Available)
			}
		}
	}

	event, err := tx.GetEvent(ctx, sale.EventID)
	if err != nil {
		return nil, err
	}

	completed, paid := models.SaleCompleted, models.PaymentPaid
	update := store.SaleUpdate{
		Status:        &completed,
		PaymentStatus: &paid,
		PaidAt:        &now,
	}
	if res.GatewayPaymentID != "" {
		update.PaymentID = &res.GatewayPaymentID
	}
	if sale.PaymentReference == "" && res.Reference != sale.ID {
		update.PaymentReference = &res.Reference
	}
	if res.Provider != "" && sale.PaymentProvider == "" {
		update.PaymentProvider = &res.Provider
	}
	if err := tx.UpdateSale(ctx, sale.ID, update); err != nil {
		return nil, err
	}

	tickets, err := s.issuer.Issue(ctx, tx, event, sale, types)
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		if err := tx.IncrementSold(ctx, id, perType[id]); err != nil {
			return nil, err
		}
	}

	sale.Status, sale.PaymentStatus, sale.PaidAt = completed, paid, &now
	return &FulfillmentResult{SaleID: sale.ID, Outcome: OutcomeFulfilled, Tickets: tickets}, nil
}

func (s *FulfillmentService) applyFailed(ctx context.Context, tx *store.Store, sale *models.Sale) (*FulfillmentResult, error) {
	if sale.Status != models.SalePending || sale.PaymentStatus != models.PaymentPending {
		return &FulfillmentResult{SaleID: sale.ID, Outcome: terminalOutcome(sale)}, nil
	}

	failed := models.PaymentFailed
	if err := tx.UpdateSale(ctx, sale.ID, store.SaleUpdate{PaymentStatus: &failed}); err != nil {
		return nil, err
	}
	sale.PaymentStatus = failed
	return &FulfillmentResult{SaleID: sale.ID, Outcome: OutcomeFailed}, nil
}

func (s *FulfillmentService) applyCancelled(ctx context.Context, tx *store.Store, sale *models.Sale) (*FulfillmentResult, error) {
	if sale.Status != models.SalePending || sale.IsFulfilled() {
		return &FulfillmentResult{SaleID: sale.ID, Outcome: terminalOutcome(sale)}, nil
	}

	cancelled, canceled := models.SaleCancelled, models.PaymentCanceled
	if err := tx.UpdateSale(ctx, sale.ID, store.SaleUpdate{Status: &cancelled, PaymentStatus: &canceled}); err != nil {
		return nil, err
	}
	sale.Status, sale.PaymentStatus = cancelled, canceled
	return &FulfillmentResult{SaleID: sale.ID, Outcome: OutcomeCancelled}, nil
}

// needsRefund reports whether a captured payment was rejected for good: the
// hold lapsed and stock ran out, or the sold counter refused the units.
func needsRefund(err error) bool {
	return errors.Is(err, status.ErrExpiredReservation) || errors.Is(err, status.ErrCapacityExceeded)
}

func terminalOutcome(sale *models.Sale) Outcome {
	if sale.IsFulfilled() {
		return OutcomeAlreadyProcessed
	}
	return OutcomeIgnored
}
