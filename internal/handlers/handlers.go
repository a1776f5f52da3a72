package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pocketbase/pocketbase/apis"

	"ticket-sales/internal/services"
	"ticket-sales/internal/services/gateway"
	"ticket-sales/internal/status"
	"ticket-sales/models"
)

type Reserver interface {
	Reserve(ctx context.Context, req services.ReserveRequest) (*models.Sale, error)
}

type AvailabilityReader interface {
	Get(ctx context.Context, ticketTypeID string) (*services.Availability, error)
	ForEvent(ctx context.Context, eventID string) ([]services.Availability, error)
}

type Payments interface {
	Provider() gateway.Provider
	CreateCharge(ctx context.Context, saleID, cardToken string) (*services.ChargeResult, error)
	CreateCheckoutLink(ctx context.Context, saleID string) (*services.CheckoutLinkResult, error)
	GetSaleStatus(ctx context.Context, saleID string) (*models.SaleView, error)
	Reconcile(ctx context.Context, saleID string) (*services.FulfillmentResult, error)
}

type ResultProcessor interface {
	ProcessPaymentResult(ctx context.Context, res models.PaymentResult) (*services.FulfillmentResult, error)
}

type Sweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
	CountExpired(ctx context.Context) (int64, error)
}

type Tickets interface {
	SetVisibility(ctx context.Context, ticketIDs []string, visible bool) (int64, error)
	SetSaleVisibility(ctx context.Context, saleID string, visible bool) (int64, error)
	QRImage(ctx context.Context, ticketID string, size int) ([]byte, error)
	Verify(ctx context.Context, payload string) (*models.Ticket, error)
}

type Backoffice interface {
	CreateEvent(ctx context.Context, req services.CreateEventRequest) (*services.CreatedEvent, error)
	ListOrders(ctx context.Context, f services.OrderFilter) ([]services.Order, error)
	Dashboard(ctx context.Context) (*services.Dashboard, error)
}

// apiError maps a service error to the HTTP error returned to the client.
// Anything unclassified is logged and hidden behind a 500.
func apiError(op string, err error) error {
	var capErr *status.CapacityExceededError
	switch {
	case errors.As(err, &capErr):
		return apis.NewApiError(http.StatusConflict, capErr.Error(), map[string]any{
			"item":      capErr.Item,
			"requested": capErr.Requested,
			"available": capErr.Available,
		})
	case errors.Is(err, status.ErrNotFound):
		return apis.NewNotFoundError(err.Error(), nil)
	case errors.Is(err, status.ErrInvalidRequest):
		return apis.NewBadRequestError(err.Error(), nil)
	case errors.Is(err, status.ErrAlreadyProcessed):
		return apis.NewApiError(http.StatusConflict, err.Error(), nil)
	case errors.Is(err, status.ErrExpiredReservation):
		return apis.NewApiError(http.StatusGone, err.Error(), nil)
	case errors.Is(err, status.ErrBusy):
		slog.Warn(op, "error", err)
		return apis.NewApiError(http.StatusServiceUnavailable, "busy, try again", nil)
	case errors.Is(err, status.ErrGateway), status.IsTimeout(err):
		slog.Error(op, "error", err)
		return apis.NewApiError(http.StatusBadGateway, "payment gateway unavailable", nil)
	}

	slog.Error(op, "error", err)
	return apis.NewInternalServerError("internal error", nil)
}
