package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"

	"ticket-sales/internal/services/gateway"
	"ticket-sales/internal/status"
	"ticket-sales/internal/store"
	"ticket-sales/models"
)

type PaymentConfig struct {
	// AppBaseURL is where the gateway sends buyers and webhooks back to.
	AppBaseURL string
}

// ChargeResult reports what happened to a card charge. A charge the gateway
// did not answer in time is reported as pending and left to the webhook.
type ChargeResult struct {
	SaleID   string               `json:"sale_id"`
	ChargeID string               `json:"charge_id,omitempty"`
	Status   models.PaymentSignal `json:"status"`
	Outcome  Outcome              `json:"outcome,omitempty"`
	Tickets  []models.Ticket      `json:"tickets,omitempty"`
}

type CheckoutLinkResult struct {
	SaleID     string     `json:"sale_id"`
	CheckoutID string     `json:"checkout_id"`
	PaymentURL string     `json:"payment_url"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

type PaymentService struct {
	store       *store.Store
	gateway     gateway.Gateway
	fulfillment *FulfillmentService
	cfg         PaymentConfig
	logger      *slog.Logger
	now         func() time.Time
}

func NewPaymentService(st *store.Store, gw gateway.Gateway, fulfillment *FulfillmentService, cfg PaymentConfig) *PaymentService {
	cfg.AppBaseURL = strings.TrimRight(cfg.AppBaseURL, "/")
	return &PaymentService{
		store:       st,
		gateway:     gw,
		fulfillment: fulfillment,
		cfg:         cfg,
		logger:      slog.Default(),
		now:         time.Now,
	}
}

func (s *PaymentService) Provider() gateway.Provider {
	return s.gateway.Provider()
}

// CreateCharge charges cardToken for the sale total. A paid or declined
// answer is applied right away through the same path webhooks use.
func (s *PaymentService) CreateCharge(ctx context.Context, saleID, cardToken string) (*ChargeResult, error) {
	if strings.TrimSpace(cardToken) == "" {
		return nil, status.Invalid("card token is required")
	}

	sale, event, err := s.payableSale(ctx, saleID)
	if err != nil {
		return nil, err
	}

	charge, err := s.gateway.CreateCharge(ctx, &gateway.ChargeRequest{
		AmountMinor: sale.TotalAmount,
		Currency:    sale.Currency,
		CardToken:   cardToken,
		Description: describeSale(event, sale),
		Reference:   sale.ID,
	})
	switch {
	case status.IsTimeout(err):
		s.logger.Warn("Charge timed out, leaving sale pending", "sale_id", sale.ID, "error", err)
		return &ChargeResult{SaleID: sale.ID, Status: models.SignalPending}, nil
	case err != nil:
		s.logger.Error("Charge failed", "sale_id", sale.ID, "error", err)
		return nil, err
	}

	if err := s.recordReference(ctx, sale.ID, charge.ID); err != nil {
		return nil, err
	}

	result := &ChargeResult{SaleID: sale.ID, ChargeID: charge.ID, Status: charge.Status}
	if charge.Status != models.SignalPaid && charge.Status != models.SignalFailed {
		return result, nil
	}

	applied, err := s.fulfillment.ProcessPaymentResult(ctx, models.PaymentResult{
		Reference:        sale.ID,
		Status:           charge.Status,
		GatewayPaymentID: charge.ID,
		Provider:         string(s.gateway.Provider()),
	})
	if err != nil {
		return nil, err
	}
	result.Outcome = applied.Outcome
	result.Tickets = applied.Tickets
	return result, nil
}

// CreateCheckoutLink creates a hosted payment page that expires together
// with the hold.
func (s *PaymentService) CreateCheckoutLink(ctx context.Context, saleID string) (*CheckoutLinkResult, error) {
	sale, event, err := s.payableSale(ctx, saleID)
	if err != nil {
		return nil, err
	}

	req := &gateway.CheckoutRequest{
		AmountMinor: sale.TotalAmount,
		Currency:    sale.Currency,
		Description: describeSale(event, sale),
		Reference:   sale.ID,
		SuccessURL:  fmt.Sprintf("%s/checkout/success?saleId=%s", s.cfg.AppBaseURL, sale.ID),
		CancelURL:   fmt.Sprintf("%s/checkout/cancel?saleId=%s", s.cfg.AppBaseURL, sale.ID),
		WebhookURL:  s.cfg.AppBaseURL + "/api/v1/webhooks/" + string(s.gateway.Provider()),
	}
	if sale.ExpiresAt != nil {
		req.ExpiresAt = *sale.ExpiresAt
	}

	link, err := s.gateway.CreateCheckoutLink(ctx, req)
	if err != nil {
		s.logger.Error("Checkout link failed", "sale_id", sale.ID, "error", err)
		return nil, err
	}

	if err := s.recordReference(ctx, sale.ID, link.ID); err != nil {
		return nil, err
	}

	return &CheckoutLinkResult{
		SaleID:     sale.ID,
		CheckoutID: link.ID,
		PaymentURL: link.PaymentURL,
		ExpiresAt:  sale.ExpiresAt,
	}, nil
}

// Reconcile asks the gateway for the state of the sale's recorded payment
// and applies it, for sales whose webhook never arrived.
func (s *PaymentService) Reconcile(ctx context.Context, saleID string) (*FulfillmentResult, error) {
	sale, err := s.store.GetSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if sale.IsFulfilled() {
		return &FulfillmentResult{SaleID: sale.ID, Outcome: OutcomeAlreadyProcessed}, nil
	}
	if sale.PaymentReference == "" {
		return nil, status.Invalid("sale %s has no gateway payment to reconcile", sale.ID)
	}

	state, err := s.gateway.GetPaymentStatus(ctx, sale.PaymentReference)
	if err != nil {
		return nil, err
	}

	return s.fulfillment.ProcessPaymentResult(ctx, models.PaymentResult{
		Reference:        sale.PaymentReference,
		Status:           state.Status,
		GatewayPaymentID: state.ID,
		Provider:         string(s.gateway.Provider()),
	})
}

// GetSaleStatus is the buyer's view of a sale. QR codes of tickets that are
// not yet visible are withheld.
func (s *PaymentService) GetSaleStatus(ctx context.Context, saleID string) (*models.SaleView, error) {
	sale, err := s.store.GetSale(ctx, saleID)
	if err != nil {
		return nil, err
	}

	view := &models.SaleView{Sale: *sale, IsExpired: sale.IsExpired(s.now())}

	event, err := s.store.GetEvent(ctx, sale.EventID)
	if err != nil {
		return nil, err
	}
	view.EventName = event.Name

	tickets, err := s.store.ListTicketsBySale(ctx, sale.ID)
	if err != nil {
		return nil, err
	}
	view.Tickets = lo.Map(tickets, func(t models.Ticket, _ int) models.Ticket {
		if !t.IsQRVisible {
			t.QRCode = ""
		}
		return t
	})
	return view, nil
}

// payableSale loads a sale that may still be charged.
func (s *PaymentService) payableSale(ctx context.Context, saleID string) (*models.Sale, *models.Event, error) {
	if saleID == "" {
		return nil, nil, status.Invalid("sale id is required")
	}

	sale, err := s.store.GetSale(ctx, saleID)
	if err != nil {
		return nil, nil, err
	}
	if sale.IsFulfilled() {
		return nil, nil, fmt.Errorf("%w: sale %s", status.ErrAlreadyProcessed, sale.ID)
	}
	if sale.Status != models.SalePending || sale.IsExpired(s.now()) {
		return nil, nil, fmt.Errorf("%w: sale %s is %s/%s", status.ErrExpiredReservation, sale.ID, sale.Status, sale.PaymentStatus)
	}

	event, err := s.store.GetEvent(ctx, sale.EventID)
	if err != nil {
		return nil, nil, err
	}
	return sale, event, nil
}

// recordReference stores the gateway's id for the payment so webhooks that
// only carry that id can find the sale. Sales that moved on meanwhile keep
// whatever they have.
func (s *PaymentService) recordReference(ctx context.Context, saleID, ref string) error {
	if ref == "" {
		return nil
	}
	provider := string(s.gateway.Provider())

	return s.store.RunInTx(ctx, func(tx *store.Store) error {
		sale, err := tx.LockSale(ctx, saleID)
		if err != nil {
			return err
		}
		if sale.Status != models.SalePending || sale.IsFulfilled() {
			return nil
		}
		return tx.UpdateSale(ctx, saleID, store.SaleUpdate{
			PaymentProvider:  &provider,
			PaymentReference: &ref,
		})
	})
}

// describeSale renders e.g. "Gala - 2x General, 1x VIP (Mesa 3)".
func describeSale(event *models.Event, sale *models.Sale) string {
	parts := lo.Map(sale.Items, func(item models.SaleItem, _ int) string {
		p := fmt.Sprintf("%dx %s", item.Quantity, item.TicketTypeName)
		if item.IsTable && item.TableNumber > 0 {
			p += fmt.Sprintf(" (Mesa %d)", item.TableNumber)
		}
		return p
	})
	return fmt.Sprintf("%s - %s", event.Name, strings.Join(parts, ", "))
}
