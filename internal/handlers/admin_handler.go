package handlers

import (
	"net/http"
	"strconv"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticket-sales/internal/services"
	"ticket-sales/models"
)

// AdminHandler serves the operator endpoints. Routes are mounted behind
// superuser auth.
type AdminHandler struct {
	reaper   Sweeper
	tickets  Tickets
	ledger   AvailabilityReader
	payments Payments
	office   Backoffice
}

func NewAdminHandler(reaper Sweeper, tickets Tickets, ledger AvailabilityReader, payments Payments, office Backoffice) *AdminHandler {
	return &AdminHandler{
		reaper:   reaper,
		tickets:  tickets,
		ledger:   ledger,
		payments: payments,
		office:   office,
	}
}

// CountExpired - How many pending sales the next sweep would expire
func (h *AdminHandler) CountExpired(e *core.RequestEvent) error {
	n, err := h.reaper.CountExpired(e.Request.Context())
	if err != nil {
		return apiError("h.reaper.CountExpired()", err)
	}
	return e.JSON(http.StatusOK, map[string]any{"expired": n})
}

// SweepExpired - Expire stale pending sales now
func (h *AdminHandler) SweepExpired(e *core.RequestEvent) error {
	n, err := h.reaper.SweepExpired(e.Request.Context())
	if err != nil {
		return apiError("h.reaper.SweepExpired()", err)
	}
	return e.JSON(http.StatusOK, map[string]any{"expired": n})
}

type ticketVisibilityRequest struct {
	TicketIDs []string `json:"ticketIds"`
	IsVisible *bool    `json:"isVisible"`
}

// SetTicketVisibility - Show or hide the QR of individual tickets
func (h *AdminHandler) SetTicketVisibility(e *core.RequestEvent) error {
	var req ticketVisibilityRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.IsVisible == nil {
		return apis.NewBadRequestError("isVisible is required", nil)
	}

	n, err := h.tickets.SetVisibility(e.Request.Context(), req.TicketIDs, *req.IsVisible)
	if err != nil {
		return apiError("h.tickets.SetVisibility()", err)
	}
	return e.JSON(http.StatusOK, map[string]any{"updated": n})
}

type saleVisibilityRequest struct {
	SaleID    string `json:"saleId"`
	IsVisible *bool  `json:"isVisible"`
}

// SetSaleVisibility - Show or hide the QR of every ticket of a sale
func (h *AdminHandler) SetSaleVisibility(e *core.RequestEvent) error {
	var req saleVisibilityRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.IsVisible == nil {
		return apis.NewBadRequestError("isVisible is required", nil)
	}

	n, err := h.tickets.SetSaleVisibility(e.Request.Context(), req.SaleID, *req.IsVisible)
	if err != nil {
		return apiError("h.tickets.SetSaleVisibility()", err)
	}
	return e.JSON(http.StatusOK, map[string]any{"updated": n})
}

// Availability - Ledger view of one ticket type
func (h *AdminHandler) Availability(e *core.RequestEvent) error {
	a, err := h.ledger.Get(e.Request.Context(), e.Request.PathValue("ticketTypeId"))
	if err != nil {
		return apiError("h.ledger.Get()", err)
	}
	return e.JSON(http.StatusOK, a)
}

// Reconcile - Pull the payment state from the gateway for one sale
func (h *AdminHandler) Reconcile(e *core.RequestEvent) error {
	res, err := h.payments.Reconcile(e.Request.Context(), e.Request.PathValue("saleId"))
	if err != nil {
		return apiError("h.payments.Reconcile()", err)
	}
	return e.JSON(http.StatusOK, res)
}

// CreateEvent - Create an event with its ticket types
func (h *AdminHandler) CreateEvent(e *core.RequestEvent) error {
	var req services.CreateEventRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	created, err := h.office.CreateEvent(e.Request.Context(), req)
	if err != nil {
		return apiError("h.office.CreateEvent()", err)
	}
	return e.JSON(http.StatusCreated, created)
}

// ListOrders - Sales filtered by event, payment status and buyer search
func (h *AdminHandler) ListOrders(e *core.RequestEvent) error {
	q := e.Request.URL.Query()
	f := services.OrderFilter{
		EventID:       q.Get("eventId"),
		PaymentStatus: models.PaymentStatus(q.Get("status")),
		Search:        q.Get("search"),
	}
	if f.EventID == "all" {
		f.EventID = ""
	}
	if f.PaymentStatus == "all" {
		f.PaymentStatus = ""
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return apis.NewBadRequestError("limit must be a non-negative integer", nil)
		}
		f.Limit = limit
	}

	orders, err := h.office.ListOrders(e.Request.Context(), f)
	if err != nil {
		return apiError("h.office.ListOrders()", err)
	}
	return e.JSON(http.StatusOK, map[string]any{"orders": orders, "count": len(orders)})
}

// Dashboard - Capacity, sales and revenue per active event
func (h *AdminHandler) Dashboard(e *core.RequestEvent) error {
	d, err := h.office.Dashboard(e.Request.Context())
	if err != nil {
		return apiError("h.office.Dashboard()", err)
	}
	return e.JSON(http.StatusOK, d)
}

type verifyTicketRequest struct {
	Payload string `json:"payload"`
}

// VerifyTicket - Check a scanned QR payload at the door
func (h *AdminHandler) VerifyTicket(e *core.RequestEvent) error {
	var req verifyTicketRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.Payload == "" {
		return apis.NewBadRequestError("payload is required", nil)
	}

	t, err := h.tickets.Verify(e.Request.Context(), req.Payload)
	if err != nil {
		return apiError("h.tickets.Verify()", err)
	}
	return e.JSON(http.StatusOK, map[string]any{"valid": true, "ticket": t})
}
