package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticket-sales/internal/services"
)

type CheckoutHandler struct {
	reservations Reserver
	ledger       AvailabilityReader
}

func NewCheckoutHandler(reservations Reserver, ledger AvailabilityReader) *CheckoutHandler {
	return &CheckoutHandler{
		reservations: reservations,
		ledger:       ledger,
	}
}

// Checkout - Hold the cart's inventory and create a pending sale
func (h *CheckoutHandler) Checkout(e *core.RequestEvent) error {
	var req services.ReserveRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	sale, err := h.reservations.Reserve(e.Request.Context(), req)
	if err != nil {
		return apiError("h.reservations.Reserve()", err)
	}

	return e.JSON(http.StatusCreated, map[string]any{
		"sale_id":      sale.ID,
		"status":       sale.Status,
		"subtotal":     sale.Subtotal,
		"tax":          sale.Tax,
		"total":        sale.Total,
		"total_amount": sale.TotalAmount,
		"currency":     sale.Currency,
		"expires_at":   sale.ExpiresAt,
		"items":        sale.Items,
	})
}

// EventAvailability - Remaining units per ticket type of an event
func (h *CheckoutHandler) EventAvailability(e *core.RequestEvent) error {
	list, err := h.ledger.ForEvent(e.Request.Context(), e.Request.PathValue("eventId"))
	if err != nil {
		return apiError("h.ledger.ForEvent()", err)
	}
	return e.JSON(http.StatusOK, map[string]any{"ticket_types": list})
}
