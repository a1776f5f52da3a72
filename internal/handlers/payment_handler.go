package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticket-sales/internal/services/gateway"
	"ticket-sales/internal/status"
	"ticket-sales/models"
)

const maxWebhookBody = 1 << 20

type PaymentHandler struct {
	payments      Payments
	fulfillment   ResultProcessor
	webhookSecret string
}

func NewPaymentHandler(payments Payments, fulfillment ResultProcessor, webhookSecret string) *PaymentHandler {
	return &PaymentHandler{
		payments:      payments,
		fulfillment:   fulfillment,
		webhookSecret: webhookSecret,
	}
}

// GetSale - Buyer view of a sale and its tickets
func (h *PaymentHandler) GetSale(e *core.RequestEvent) error {
	view, err := h.payments.GetSaleStatus(e.Request.Context(), e.Request.PathValue("saleId"))
	if err != nil {
		return apiError("h.payments.GetSaleStatus()", err)
	}
	return e.JSON(http.StatusOK, view)
}

type chargeRequest struct {
	SaleID string `json:"saleId"`
	Token  string `json:"token"`
}

// Charge - Charge a tokenized card for a pending sale
func (h *PaymentHandler) Charge(e *core.RequestEvent) error {
	var req chargeRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	res, err := h.payments.CreateCharge(e.Request.Context(), req.SaleID, req.Token)
	if err != nil {
		return apiError("h.payments.CreateCharge()", err)
	}

	code := http.StatusOK
	if res.Status == models.SignalPending {
		code = http.StatusAccepted
	}
	return e.JSON(code, res)
}

type linkRequest struct {
	SaleID string `json:"saleId"`
}

// CreateLink - Create a hosted checkout page for a pending sale
func (h *PaymentHandler) CreateLink(e *core.RequestEvent) error {
	var req linkRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	link, err := h.payments.CreateCheckoutLink(e.Request.Context(), req.SaleID)
	if err != nil {
		return apiError("h.payments.CreateCheckoutLink()", err)
	}
	return e.JSON(http.StatusOK, link)
}

// Webhook - Payment notifications pushed by the gateway
func (h *PaymentHandler) Webhook(e *core.RequestEvent) error {
	body, err := io.ReadAll(io.LimitReader(e.Request.Body, maxWebhookBody))
	if err != nil {
		return apis.NewBadRequestError("Invalid request body", nil)
	}

	sig := e.Request.Header.Get("x-clip-signature")
	if sig == "" {
		sig = e.Request.Header.Get("clip-signature")
	}

	code, reply := h.processWebhook(e.Request.Context(), body, sig)
	return e.JSON(code, reply)
}

// processWebhook answers 2xx for anything the gateway must not redeliver and
// 5xx only when a retry may succeed.
func (h *PaymentHandler) processWebhook(ctx context.Context, body []byte, sig string) (int, map[string]any) {
	if err := gateway.VerifySignature(body, sig, h.webhookSecret); err != nil {
		slog.Warn("Webhook signature rejected", "error", err)
		return http.StatusUnauthorized, map[string]any{"error": "Invalid signature"}
	}

	n, err := gateway.ParseWebhook(body)
	if err != nil {
		slog.Warn("Webhook payload ignored", "error", err, "body", string(body))
		return http.StatusOK, map[string]any{"received": true, "ignored": err.Error()}
	}

	res, err := h.fulfillment.ProcessPaymentResult(ctx, n.PaymentResult(h.payments.Provider()))
	switch {
	case err == nil:
		slog.Info("Webhook processed", "reference", n.Reference, "status", n.Status, "outcome", res.Outcome)
		return http.StatusOK, map[string]any{"received": true, "outcome": res.Outcome}
	case status.IsDeterministic(err) || errors.Is(err, status.ErrAlreadyProcessed):
		slog.Warn("Webhook acknowledged without effect", "reference", n.Reference, "status", n.Status, "error", err)
		return http.StatusOK, map[string]any{"received": true, "ignored": err.Error()}
	default:
		slog.Error("Webhook processing failed", "reference", n.Reference, "status", n.Status, "error", err)
		return http.StatusInternalServerError, map[string]any{"error": "temporary failure"}
	}
}

type simulateRequest struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// SimulatePayment - Simulate a gateway result (for testing)
func (h *PaymentHandler) SimulatePayment(e *core.RequestEvent) error {
	var req simulateRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.Reference == "" {
		return apis.NewBadRequestError("reference is required", nil)
	}

	res, err := h.fulfillment.ProcessPaymentResult(e.Request.Context(), models.PaymentResult{
		Reference: req.Reference,
		Status:    gateway.NormalizeStatus(req.Status),
		Provider:  string(h.payments.Provider()),
	})
	if err != nil {
		return apiError("h.fulfillment.ProcessPaymentResult()", err)
	}
	return e.JSON(http.StatusOK, res)
}
