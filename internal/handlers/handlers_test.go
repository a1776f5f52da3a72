package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/router"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-sales/internal/services"
	"ticket-sales/internal/services/gateway"
	"ticket-sales/internal/status"
	"ticket-sales/models"
)

func newRequestEvent(method, target, body string) (*core.RequestEvent, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	e := &core.RequestEvent{}
	e.Request = req
	e.Response = rec
	return e, rec
}

func requireAPIStatus(t *testing.T, err error, code int) *router.ApiError {
	t.Helper()

	var apiErr *router.ApiError
	require.True(t, errors.As(err, &apiErr), "want api error, got %v", err)
	assert.Equal(t, code, apiErr.Status)
	return apiErr
}

type fakeReserver struct {
	sale *models.Sale
	err  error
	got  services.ReserveRequest
}

func (f *fakeReserver) Reserve(ctx context.Context, req services.ReserveRequest) (*models.Sale, error) {
	f.got = req
	return f.sale, f.err
}

type fakeLedger struct {
	one  *services.Availability
	list []services.Availability
	err  error
}

func (f *fakeLedger) Get(ctx context.Context, id string) (*services.Availability, error) {
	return f.one, f.err
}

func (f *fakeLedger) ForEvent(ctx context.Context, eventID string) ([]services.Availability, error) {
	return f.list, f.err
}

type fakePayments struct {
	charge    *services.ChargeResult
	link      *services.CheckoutLinkResult
	view      *models.SaleView
	reconcile *services.FulfillmentResult
	err       error
	saleID    string
}

func (f *fakePayments) Provider() gateway.Provider { return gateway.ProviderClip }

func (f *fakePayments) CreateCharge(ctx context.Context, saleID, token string) (*services.ChargeResult, error) {
	f.saleID = saleID
	return f.charge, f.err
}

func (f *fakePayments) CreateCheckoutLink(ctx context.Context, saleID string) (*services.CheckoutLinkResult, error) {
	f.saleID = saleID
	return f.link, f.err
}

func (f *fakePayments) GetSaleStatus(ctx context.Context, saleID string) (*models.SaleView, error) {
	f.saleID = saleID
	return f.view, f.err
}

func (f *fakePayments) Reconcile(ctx context.Context, saleID string) (*services.FulfillmentResult, error) {
	f.saleID = saleID
	return f.reconcile, f.err
}

type fakeProcessor struct {
	res   *services.FulfillmentResult
	err   error
	calls []models.PaymentResult
}

func (f *fakeProcessor) ProcessPaymentResult(ctx context.Context, res models.PaymentResult) (*services.FulfillmentResult, error) {
	f.calls = append(f.calls, res)
	return f.res, f.err
}

func TestAPIError(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{status.NotFound("sale", "x"), http.StatusNotFound},
		{status.Invalid("bad"), http.StatusBadRequest},
		{&status.CapacityExceededError{Item: "VIP", Requested: 2, Available: 1}, http.StatusConflict},
		{fmt.Errorf("x: %w", status.ErrAlreadyProcessed), http.StatusConflict},
		{fmt.Errorf("x: %w", status.ErrExpiredReservation), http.StatusGone},
		{&status.GatewayError{Op: "charge", Err: errors.New("boom")}, http.StatusBadGateway},
		{status.ErrGatewayTimeout, http.StatusBadGateway},
		{fmt.Errorf("RunInTx: %w after 10 attempts", status.ErrBusy), http.StatusServiceUnavailable},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		requireAPIStatus(t, apiError("op", tt.err), tt.code)
	}

	apiErr := requireAPIStatus(t, apiError("op", &status.CapacityExceededError{Item: "VIP", Requested: 2, Available: 1}), http.StatusConflict)
	assert.Contains(t, apiErr.Message, "VIP")
}

func TestCheckout(t *testing.T) {
	sale := &models.Sale{ID: "sale-1", Status: models.SalePending, TotalAmount: 23200, Currency: "MXN"}
	reserver := &fakeReserver{sale: sale}
	h := NewCheckoutHandler(reserver, &fakeLedger{})

	e, rec := newRequestEvent(http.MethodPost, "/api/v1/checkout",
		`{"event_id":"ev-1","items":[{"section":"General","quantity":2}],"buyer":{"name":"Ana","email":"ana@example.com"}}`)
	require.NoError(t, h.Checkout(e))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "ev-1", reserver.got.EventID)
	require.Len(t, reserver.got.Items, 1)
	assert.Equal(t, 2, reserver.got.Items[0].Quantity)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "sale-1", body["sale_id"])
	assert.Equal(t, float64(23200), body["total_amount"])
}

func TestCheckout_Errors(t *testing.T) {
	h := NewCheckoutHandler(&fakeReserver{err: &status.CapacityExceededError{Item: "General", Requested: 1}}, &fakeLedger{})

	e, _ := newRequestEvent(http.MethodPost, "/api/v1/checkout", `{"event_id":"ev-1"}`)
	requireAPIStatus(t, h.Checkout(e), http.StatusConflict)

	e, _ = newRequestEvent(http.MethodPost, "/api/v1/checkout", `{not json`)
	requireAPIStatus(t, h.Checkout(e), http.StatusBadRequest)
}

func TestEventAvailability(t *testing.T) {
	h := NewCheckoutHandler(&fakeReserver{}, &fakeLedger{list: []services.Availability{{Name: "General", Available: 3}}})

	e, rec := newRequestEvent(http.MethodGet, "/api/v1/events/ev-1/availability", "")
	e.Request.SetPathValue("eventId", "ev-1")
	require.NoError(t, h.EventAvailability(e))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"available":3`)
}

func TestCharge(t *testing.T) {
	payments := &fakePayments{charge: &services.ChargeResult{SaleID: "sale-1", Status: models.SignalPending}}
	h := NewPaymentHandler(payments, &fakeProcessor{}, "")

	e, rec := newRequestEvent(http.MethodPost, "/api/v1/payments/charge", `{"saleId":"sale-1","token":"tok"}`)
	require.NoError(t, h.Charge(e))
	assert.Equal(t, http.StatusAccepted, rec.Code, "pending charge")
	assert.Equal(t, "sale-1", payments.saleID)

	payments.charge = &services.ChargeResult{SaleID: "sale-1", Status: models.SignalPaid, Outcome: services.OutcomeFulfilled}
	e, rec = newRequestEvent(http.MethodPost, "/api/v1/payments/charge", `{"saleId":"sale-1","token":"tok"}`)
	require.NoError(t, h.Charge(e))
	assert.Equal(t, http.StatusOK, rec.Code)

	payments.err = fmt.Errorf("x: %w", status.ErrExpiredReservation)
	e, _ = newRequestEvent(http.MethodPost, "/api/v1/payments/charge", `{"saleId":"sale-1","token":"tok"}`)
	requireAPIStatus(t, h.Charge(e), http.StatusGone)
}

func TestCreateLinkAndGetSale(t *testing.T) {
	payments := &fakePayments{
		link: &services.CheckoutLinkResult{SaleID: "sale-1", CheckoutID: "chk", PaymentURL: "https://pay.test/chk"},
		view: &models.SaleView{Sale: models.Sale{ID: "sale-1"}, EventName: "Gala"},
	}
	h := NewPaymentHandler(payments, &fakeProcessor{}, "")

	e, rec := newRequestEvent(http.MethodPost, "/api/v1/payments/link", `{"saleId":"sale-1"}`)
	require.NoError(t, h.CreateLink(e))
	assert.Contains(t, rec.Body.String(), "https://pay.test/chk")

	e, rec = newRequestEvent(http.MethodGet, "/api/v1/sales/sale-1", "")
	e.Request.SetPathValue("saleId", "sale-1")
	require.NoError(t, h.GetSale(e))
	assert.Equal(t, "sale-1", payments.saleID)
	assert.Contains(t, rec.Body.String(), `"event_name":"Gala"`)
}

func TestProcessWebhook(t *testing.T) {
	const secret = "whsec"
	paid := `{"event":"payment.paid","data":{"id":"pay_1","reference":"sale-1"}}`

	tests := []struct {
		name     string
		body     string
		sig      string
		procErr  error
		wantCode int
		wantCall bool
	}{
		{"processed", paid, gateway.Sign([]byte(paid), secret), nil, http.StatusOK, true},
		{"bad signature", paid, gateway.Sign([]byte(paid), "other"), nil, http.StatusUnauthorized, false},
		{"missing signature", paid, "", nil, http.StatusUnauthorized, false},
		{"unrecognized", `{"hello":"world"}`, gateway.Sign([]byte(`{"hello":"world"}`), secret), nil, http.StatusOK, false},
		{"unknown sale", paid, gateway.Sign([]byte(paid), secret), status.NotFound("sale", "sale-1"), http.StatusOK, true},
		{"expired and sold out", paid, gateway.Sign([]byte(paid), secret), status.ErrExpiredReservation, http.StatusOK, true},
		{"store failure", paid, gateway.Sign([]byte(paid), secret), errors.New("database is locked"), http.StatusInternalServerError, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &fakeProcessor{res: &services.FulfillmentResult{Outcome: services.OutcomeFulfilled}, err: tt.procErr}
			h := NewPaymentHandler(&fakePayments{}, proc, secret)

			code, _ := h.processWebhook(context.Background(), []byte(tt.body), tt.sig)
			assert.Equal(t, tt.wantCode, code)
			if !tt.wantCall {
				assert.Empty(t, proc.calls)
				return
			}
			require.Len(t, proc.calls, 1)
			assert.Equal(t, models.PaymentResult{
				Reference:        "sale-1",
				Status:           models.SignalPaid,
				GatewayPaymentID: "pay_1",
				Provider:         "clip",
			}, proc.calls[0])
		})
	}
}

func TestWebhook_ReadsSignatureHeaders(t *testing.T) {
	body := `{"status":"declined","reference":"sale-9"}`
	proc := &fakeProcessor{res: &services.FulfillmentResult{Outcome: services.OutcomeFailed}}
	h := NewPaymentHandler(&fakePayments{}, proc, "whsec")

	for _, header := range []string{"x-clip-signature", "clip-signature"} {
		e, rec := newRequestEvent(http.MethodPost, "/api/v1/webhooks/clip", body)
		e.Request.Header.Set(header, gateway.Sign([]byte(body), "whsec"))
		require.NoError(t, h.Webhook(e))
		assert.Equal(t, http.StatusOK, rec.Code, header)
	}
	require.Len(t, proc.calls, 2)
	assert.Equal(t, models.SignalFailed, proc.calls[0].Status)
}

func TestWebhook_NoSecretConfigured(t *testing.T) {
	proc := &fakeProcessor{res: &services.FulfillmentResult{Outcome: services.OutcomeFulfilled}}
	h := NewPaymentHandler(&fakePayments{}, proc, "")

	e, rec := newRequestEvent(http.MethodPost, "/api/v1/webhooks/clip", `{"status":"paid","reference":"sale-1"}`)
	require.NoError(t, h.Webhook(e))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, proc.calls, 1)
}

func TestSimulatePayment(t *testing.T) {
	proc := &fakeProcessor{res: &services.FulfillmentResult{Outcome: services.OutcomeFulfilled}}
	h := NewPaymentHandler(&fakePayments{}, proc, "")

	e, rec := newRequestEvent(http.MethodPost, "/api/v1/test/simulate-payment", `{"reference":"sale-1","status":"approved"}`)
	require.NoError(t, h.SimulatePayment(e))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, proc.calls, 1)
	assert.Equal(t, models.SignalPaid, proc.calls[0].Status)

	e, _ = newRequestEvent(http.MethodPost, "/api/v1/test/simulate-payment", `{"status":"paid"}`)
	requireAPIStatus(t, h.SimulatePayment(e), http.StatusBadRequest)
}

type fakeSweeper struct {
	swept, count int64
	err          error
}

func (f *fakeSweeper) SweepExpired(ctx context.Context) (int64, error) { return f.swept, f.err }
func (f *fakeSweeper) CountExpired(ctx context.Context) (int64, error) { return f.count, f.err }

type fakeTickets struct {
	ids     []string
	saleID  string
	visible bool
	payload string
	png     []byte
	err     error
}

func (f *fakeTickets) SetVisibility(ctx context.Context, ids []string, visible bool) (int64, error) {
	f.ids, f.visible = ids, visible
	return int64(len(ids)), f.err
}

func (f *fakeTickets) SetSaleVisibility(ctx context.Context, saleID string, visible bool) (int64, error) {
	f.saleID, f.visible = saleID, visible
	return 4, f.err
}

func (f *fakeTickets) QRImage(ctx context.Context, id string, size int) ([]byte, error) {
	return f.png, f.err
}

func (f *fakeTickets) Verify(ctx context.Context, payload string) (*models.Ticket, error) {
	f.payload = payload
	if f.err != nil {
		return nil, f.err
	}
	return &models.Ticket{ID: "t-1", TicketNumber: "GAL-GEN-000001", Status: models.TicketValid}, nil
}

func TestAdminSweep(t *testing.T) {
	h := NewAdminHandler(&fakeSweeper{swept: 3, count: 5}, &fakeTickets{}, &fakeLedger{}, &fakePayments{}, &fakeBackoffice{})

	e, rec := newRequestEvent(http.MethodGet, "/api/v1/admin/sales/sweep-expired", "")
	require.NoError(t, h.CountExpired(e))
	assert.JSONEq(t, `{"expired":5}`, rec.Body.String())

	e, rec = newRequestEvent(http.MethodPost, "/api/v1/admin/sales/sweep-expired", "")
	require.NoError(t, h.SweepExpired(e))
	assert.JSONEq(t, `{"expired":3}`, rec.Body.String())
}

func TestAdminVisibility(t *testing.T) {
	tickets := &fakeTickets{}
	h := NewAdminHandler(&fakeSweeper{}, tickets, &fakeLedger{}, &fakePayments{}, &fakeBackoffice{})

	e, rec := newRequestEvent(http.MethodPost, "/api/v1/admin/tickets/visibility", `{"ticketIds":["a","b"],"isVisible":false}`)
	require.NoError(t, h.SetTicketVisibility(e))
	assert.JSONEq(t, `{"updated":2}`, rec.Body.String())
	assert.Equal(t, []string{"a", "b"}, tickets.ids)
	assert.False(t, tickets.visible)

	e, rec = newRequestEvent(http.MethodPatch, "/api/v1/admin/tickets/visibility", `{"saleId":"sale-1","isVisible":true}`)
	require.NoError(t, h.SetSaleVisibility(e))
	assert.JSONEq(t, `{"updated":4}`, rec.Body.String())
	assert.Equal(t, "sale-1", tickets.saleID)
	assert.True(t, tickets.visible)

	e, _ = newRequestEvent(http.MethodPatch, "/api/v1/admin/tickets/visibility", `{"saleId":"sale-1"}`)
	requireAPIStatus(t, h.SetSaleVisibility(e), http.StatusBadRequest)

	tickets.err = status.NotFound("sale", "nope")
	e, _ = newRequestEvent(http.MethodPatch, "/api/v1/admin/tickets/visibility", `{"saleId":"nope","isVisible":true}`)
	requireAPIStatus(t, h.SetSaleVisibility(e), http.StatusNotFound)
}

func TestAdminAvailabilityAndReconcile(t *testing.T) {
	ledger := &fakeLedger{one: &services.Availability{TicketTypeID: "tt-1", Capacity: 10, Sold: 2, Reserved: 3, Available: 5}}
	payments := &fakePayments{reconcile: &services.FulfillmentResult{SaleID: "sale-1", Outcome: services.OutcomeFulfilled}}
	h := NewAdminHandler(&fakeSweeper{}, &fakeTickets{}, ledger, payments, &fakeBackoffice{})

	e, rec := newRequestEvent(http.MethodGet, "/api/v1/admin/ticket-types/tt-1/availability", "")
	e.Request.SetPathValue("ticketTypeId", "tt-1")
	require.NoError(t, h.Availability(e))
	assert.Contains(t, rec.Body.String(), `"available":5`)

	e, rec = newRequestEvent(http.MethodPost, "/api/v1/admin/sales/sale-1/reconcile", "")
	e.Request.SetPathValue("saleId", "sale-1")
	require.NoError(t, h.Reconcile(e))
	assert.Equal(t, "sale-1", payments.saleID)
	assert.Contains(t, rec.Body.String(), `"outcome":"fulfilled"`)
}

func TestTicketQRCode(t *testing.T) {
	tickets := &fakeTickets{png: []byte("\x89PNG fake")}
	h := NewTicketHandler(tickets)

	e, rec := newRequestEvent(http.MethodGet, "/api/v1/tickets/t-1/qr.png?size=200", "")
	e.Request.SetPathValue("ticketId", "t-1")
	require.NoError(t, h.QRCode(e))
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "\x89PNG fake", rec.Body.String())

	tickets.err = status.NotFound("ticket", "t-1")
	e, _ = newRequestEvent(http.MethodGet, "/api/v1/tickets/t-1/qr.png", "")
	requireAPIStatus(t, h.QRCode(e), http.StatusNotFound)
}

type fakeBackoffice struct {
	created *services.CreateEventRequest
	filter  services.OrderFilter
	orders  []services.Order
	err     error
}

func (f *fakeBackoffice) CreateEvent(ctx context.Context, req services.CreateEventRequest) (*services.CreatedEvent, error) {
	f.created = &req
	if f.err != nil {
		return nil, f.err
	}
	return &services.CreatedEvent{Event: models.Event{ID: "ev-9", Name: req.Name, Venue: req.Venue, StartsAt: req.StartsAt, IsActive: true}}, nil
}

func (f *fakeBackoffice) ListOrders(ctx context.Context, filter services.OrderFilter) ([]services.Order, error) {
	f.filter = filter
	return f.orders, f.err
}

func (f *fakeBackoffice) Dashboard(ctx context.Context) (*services.Dashboard, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &services.Dashboard{
		Overview: services.DashboardOverview{Revenue: decimal.RequireFromString("232.00"), TicketsSold: 2, Orders: 1, Events: 1},
		Events:   []services.EventMetrics{{EventID: "ev-1", Name: "Gala Night", Capacity: 15, Sold: 2, Available: 13, PercentSold: 13.3}},
	}, nil
}

func TestAdminCreateEvent(t *testing.T) {
	office := &fakeBackoffice{}
	h := NewAdminHandler(&fakeSweeper{}, &fakeTickets{}, &fakeLedger{}, &fakePayments{}, office)

	e, rec := newRequestEvent(http.MethodPost, "/api/v1/admin/events",
		`{"name":"Gala","venue":"Arena","starts_at":"2026-12-31T21:00:00Z","ticket_types":[{"name":"General","price":"450.00","max_quantity":500}]}`)
	require.NoError(t, h.CreateEvent(e))

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, office.created)
	assert.Equal(t, "Gala", office.created.Name)
	require.Len(t, office.created.TicketTypes, 1)
	assert.Equal(t, "450", office.created.TicketTypes[0].Price.String())
	assert.Equal(t, 500, office.created.TicketTypes[0].MaxQuantity)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ev-9", body["event"].(map[string]any)["id"])

	office.err = status.Invalid("ticket type %q is listed twice", "General")
	e, _ = newRequestEvent(http.MethodPost, "/api/v1/admin/events", `{"name":"Gala"}`)
	requireAPIStatus(t, h.CreateEvent(e), http.StatusBadRequest)

	e, _ = newRequestEvent(http.MethodPost, "/api/v1/admin/events", `{"name":`)
	requireAPIStatus(t, h.CreateEvent(e), http.StatusBadRequest)
}

func TestAdminListOrders(t *testing.T) {
	office := &fakeBackoffice{orders: []services.Order{
		{Sale: &models.Sale{ID: "sale-1", PaymentStatus: models.PaymentPaid}, TicketCount: 2, VisibleQRCount: 1},
	}}
	h := NewAdminHandler(&fakeSweeper{}, &fakeTickets{}, &fakeLedger{}, &fakePayments{}, office)

	e, rec := newRequestEvent(http.MethodGet, "/api/v1/admin/orders?eventId=ev-1&status=PAID&search=ana&limit=5", "")
	require.NoError(t, h.ListOrders(e))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, services.OrderFilter{EventID: "ev-1", PaymentStatus: models.PaymentPaid, Search: "ana", Limit: 5}, office.filter)

	var body struct {
		Count  int              `json:"count"`
		Orders []map[string]any `json:"orders"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	require.Len(t, body.Orders, 1)
	assert.Equal(t, "sale-1", body.Orders[0]["id"])
	assert.Equal(t, float64(2), body.Orders[0]["ticket_count"])
	assert.Equal(t, float64(1), body.Orders[0]["visible_qr_count"])

	e, _ = newRequestEvent(http.MethodGet, "/api/v1/admin/orders?eventId=all&status=all", "")
	require.NoError(t, h.ListOrders(e))
	assert.Equal(t, services.OrderFilter{}, office.filter)

	e, _ = newRequestEvent(http.MethodGet, "/api/v1/admin/orders?limit=lots", "")
	requireAPIStatus(t, h.ListOrders(e), http.StatusBadRequest)
}

func TestAdminDashboard(t *testing.T) {
	office := &fakeBackoffice{}
	h := NewAdminHandler(&fakeSweeper{}, &fakeTickets{}, &fakeLedger{}, &fakePayments{}, office)

	e, rec := newRequestEvent(http.MethodGet, "/api/v1/admin/dashboard", "")
	require.NoError(t, h.Dashboard(e))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Overview map[string]any   `json:"overview"`
		Events   []map[string]any `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "232", body.Overview["revenue"])
	require.Len(t, body.Events, 1)
	assert.Equal(t, 13.3, body.Events[0]["percent_sold"])

	office.err = errors.New("db down")
	e, _ = newRequestEvent(http.MethodGet, "/api/v1/admin/dashboard", "")
	requireAPIStatus(t, h.Dashboard(e), http.StatusInternalServerError)
}

func TestAdminVerifyTicket(t *testing.T) {
	tickets := &fakeTickets{}
	h := NewAdminHandler(&fakeSweeper{}, tickets, &fakeLedger{}, &fakePayments{}, &fakeBackoffice{})

	e, rec := newRequestEvent(http.MethodPost, "/api/v1/admin/tickets/verify", `{"payload":"t-1.abc"}`)
	require.NoError(t, h.VerifyTicket(e))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "t-1.abc", tickets.payload)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["valid"])

	e, _ = newRequestEvent(http.MethodPost, "/api/v1/admin/tickets/verify", `{}`)
	requireAPIStatus(t, h.VerifyTicket(e), http.StatusBadRequest)

	tickets.err = status.Invalid("qr payload is not a valid ticket credential")
	e, _ = newRequestEvent(http.MethodPost, "/api/v1/admin/tickets/verify", `{"payload":"t-1.forged"}`)
	requireAPIStatus(t, h.VerifyTicket(e), http.StatusBadRequest)
}
