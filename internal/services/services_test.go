package services

import (
	"context"
	"testing"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"ticket-sales/internal/store"
	"ticket-sales/internal/store/storetest"
	"ticket-sales/models"
)

type fixture struct {
	st           *store.Store
	event        *models.Event
	ledger       *Ledger
	issuer       *TicketIssuer
	reservations *ReservationService
	fulfillment  *FulfillmentService
	reaper       *Reaper
	tickets      *TicketService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, storetest.New(t))
}

// eachDialect runs fn against a fresh fixture on every supported database.
func eachDialect(t *testing.T, fn func(t *testing.T, f *fixture)) {
	storetest.Dialects(t, func(t *testing.T, st *store.Store) {
		fn(t, newFixtureOn(t, st))
	})
}

func newFixtureOn(t *testing.T, st *store.Store) *fixture {
	t.Helper()

	issuer, err := NewTicketIssuer("test-secret")
	require.NoError(t, err)

	return &fixture{
		st:     st,
		event:  storetest.Event(t, st, "Gala Night"),
		ledger: NewLedger(st),
		issuer: issuer,
		reservations: NewReservationService(st, ReservationConfig{
			HoldWindow: 10 * time.Minute,
			TaxRate:    decimal.RequireFromString("0.16"),
			Currency:   "MXN",
		}, nil),
		fulfillment: NewFulfillmentService(st, issuer, nil),
		reaper:      NewReaper(st, nil),
		tickets:     NewTicketService(st, issuer),
	}
}

func (f *fixture) reserve(t *testing.T, items ...ReserveItem) *models.Sale {
	t.Helper()

	sale, err := f.reservations.Reserve(context.Background(), ReserveRequest{
		EventID: f.event.ID,
		Items:   items,
		Buyer:   models.Buyer{Name: "Ana Buyer", Email: "ana@example.com"},
	})
	require.NoError(t, err)
	return sale
}

func (f *fixture) pay(t *testing.T, reference string) *FulfillmentResult {
	t.Helper()

	res, err := f.fulfillment.ProcessPaymentResult(context.Background(), models.PaymentResult{
		Reference:        reference,
		Status:           models.SignalPaid,
		GatewayPaymentID: "pay_" + reference,
	})
	require.NoError(t, err)
	return res
}

// backdate moves a sale's hold window into the past.
func (f *fixture) backdate(t *testing.T, saleID string, ago time.Duration) {
	t.Helper()

	expires := time.Now().Add(-ago).UnixMilli()
	_, err := f.st.Conn().NewQuery("UPDATE sales SET expires_at = {:at} WHERE id = {:id}").
		Bind(dbx.Params{"at": expires, "id": saleID}).
		Execute()
	require.NoError(t, err)
}

func (f *fixture) sold(t *testing.T, ticketTypeID string) int {
	t.Helper()

	tt, err := f.st.GetTicketType(context.Background(), ticketTypeID)
	require.NoError(t, err)
	return tt.SoldQuantity
}

// ticketCounter reads the global ticket number counter.
func (f *fixture) ticketCounter(t *testing.T) int64 {
	t.Helper()

	var value int64
	err := f.st.Conn().NewQuery("SELECT value FROM counters WHERE name = {:name}").
		Bind(dbx.Params{"name": store.TicketCounter}).
		Row(&value)
	require.NoError(t, err)
	return value
}

func storeRef(ref string) store.SaleUpdate {
	provider := "clip"
	return store.SaleUpdate{PaymentProvider: &provider, PaymentReference: &ref}
}
