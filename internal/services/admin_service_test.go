package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-sales/internal/status"
	"ticket-sales/internal/store/storetest"
	"ticket-sales/models"
)

func countEvents(t *testing.T, f *fixture) int {
	t.Helper()

	var n int
	require.NoError(t, f.st.Conn().NewQuery("SELECT COUNT(*) FROM events").Row(&n))
	return n
}

func TestCreateEvent(t *testing.T) {
	eachDialect(t, func(t *testing.T, f *fixture) {
		admin := NewAdminService(f.st)
		ctx := context.Background()
		startsAt := time.Date(2026, 12, 31, 21, 0, 0, 0, time.UTC)

		created, err := admin.CreateEvent(ctx, CreateEventRequest{
			Name:     "  Año Nuevo ",
			Venue:    "Auditorio",
			StartsAt: startsAt,
			TicketTypes: []NewTicketType{
				{Name: "General", Price: decimal.RequireFromString("450.00"), MaxQuantity: 500},
				{Name: "Mesa VIP", Price: decimal.RequireFromString("6000.00"), MaxQuantity: 20, IsTable: true},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "Año Nuevo", created.Event.Name)
		assert.True(t, created.Event.IsActive)

		event, err := f.st.GetEvent(ctx, created.Event.ID)
		require.NoError(t, err)
		assert.True(t, startsAt.Equal(event.StartsAt))

		types, err := f.st.ListTicketTypes(ctx, created.Event.ID)
		require.NoError(t, err)
		require.Len(t, types, 2)
		assert.Equal(t, "General", types[0].Name)
		assert.Equal(t, 500, types[0].MaxQuantity)
		assert.Zero(t, types[0].SeatsPerTable)
		assert.Equal(t, "Mesa VIP", types[1].Name)
		assert.Equal(t, models.DefaultSeatsPerTable, types[1].SeatsPerTable)
		assert.Equal(t, "6000.00", types[1].Price.StringFixed(2))

		// the new event is immediately on sale
		sale, err := f.reservations.Reserve(ctx, ReserveRequest{
			EventID: created.Event.ID,
			Items:   []ReserveItem{{Section: "General", Quantity: 2}},
			Buyer:   models.Buyer{Name: "Ana Buyer", Email: "ana@example.com"},
		})
		require.NoError(t, err)
		assert.Equal(t, "900.00", sale.Subtotal.StringFixed(2))
	})
}

func TestCreateEvent_DuplicateTicketTypeRollsBack(t *testing.T) {
	eachDialect(t, func(t *testing.T, f *fixture) {
		admin := NewAdminService(f.st)
		before := countEvents(t, f)

		_, err := admin.CreateEvent(context.Background(), CreateEventRequest{
			Name:     "Doble",
			Venue:    "Arena",
			StartsAt: time.Now().Add(24 * time.Hour),
			TicketTypes: []NewTicketType{
				{Name: "General", Price: decimal.NewFromInt(100), MaxQuantity: 10},
				{Name: "General", Price: decimal.NewFromInt(120), MaxQuantity: 10},
			},
		})
		require.ErrorIs(t, err, status.ErrInvalidRequest)
		assert.Contains(t, err.Error(), `"General"`)
		assert.Equal(t, before, countEvents(t, f), "event insert is rolled back")
	})
}

func TestCreateEvent_Invalid(t *testing.T) {
	f := newFixture(t)
	admin := NewAdminService(f.st)
	tomorrow := time.Now().Add(24 * time.Hour)
	general := NewTicketType{Name: "General", Price: decimal.NewFromInt(100), MaxQuantity: 10}

	for name, req := range map[string]CreateEventRequest{
		"no name":        {Venue: "Arena", StartsAt: tomorrow},
		"no venue":       {Name: "Gala", StartsAt: tomorrow},
		"no date":        {Name: "Gala", Venue: "Arena"},
		"unnamed type":   {Name: "Gala", Venue: "Arena", StartsAt: tomorrow, TicketTypes: []NewTicketType{{MaxQuantity: 1}}},
		"negative price": {Name: "Gala", Venue: "Arena", StartsAt: tomorrow, TicketTypes: []NewTicketType{{Name: "A", Price: decimal.NewFromInt(-1), MaxQuantity: 1}}},
		"zero capacity":  {Name: "Gala", Venue: "Arena", StartsAt: tomorrow, TicketTypes: []NewTicketType{general, {Name: "B", MaxQuantity: 0}}},
		"negative seats": {Name: "Gala", Venue: "Arena", StartsAt: tomorrow, TicketTypes: []NewTicketType{{Name: "T", MaxQuantity: 1, IsTable: true, SeatsPerTable: -2}}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := admin.CreateEvent(context.Background(), req)
			assert.ErrorIs(t, err, status.ErrInvalidRequest)
		})
	}
	assert.Equal(t, 1, countEvents(t, f))
}

func TestListOrders(t *testing.T) {
	eachDialect(t, func(t *testing.T, f *fixture) {
		admin := NewAdminService(f.st)
		ctx := context.Background()
		general := storetest.TicketType(t, f.st, f.event.ID, "General", "100.00", 20)

		reserveFor := func(name, email string, qty int) *models.Sale {
			sale, err := f.reservations.Reserve(ctx, ReserveRequest{
				EventID: f.event.ID,
				Items:   []ReserveItem{{TicketTypeID: general.ID, Quantity: qty}},
				Buyer:   models.Buyer{Name: name, Email: email},
			})
			require.NoError(t, err)
			return sale
		}
		paid := reserveFor("Bruno Díaz", "BRUNO@example.com", 2)
		pending := reserveFor("Carla Ruiz", "carla@example.com", 1)
		res := f.pay(t, paid.ID)
		_, err := f.tickets.SetVisibility(ctx, []string{res.Tickets[0].ID}, false)
		require.NoError(t, err)

		all, err := admin.ListOrders(ctx, OrderFilter{})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{paid.ID, pending.ID}, lo.Map(all, func(o Order, _ int) string { return o.ID }))

		orders, err := admin.ListOrders(ctx, OrderFilter{PaymentStatus: models.PaymentPaid})
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, paid.ID, orders[0].ID)
		assert.Equal(t, 2, orders[0].TicketCount)
		assert.Equal(t, 1, orders[0].VisibleQRCount)
		require.Len(t, orders[0].Items, 1)

		orders, err = admin.ListOrders(ctx, OrderFilter{Search: "bruno@"})
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, paid.ID, orders[0].ID)

		orders, err = admin.ListOrders(ctx, OrderFilter{Search: "RUIZ"})
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, pending.ID, orders[0].ID)
		assert.Zero(t, orders[0].TicketCount)

		orders, err = admin.ListOrders(ctx, OrderFilter{Search: pending.ID[:8]})
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, pending.ID, orders[0].ID)

		orders, err = admin.ListOrders(ctx, OrderFilter{EventID: uuid.NewString()})
		require.NoError(t, err)
		assert.Empty(t, orders)

		orders, err = admin.ListOrders(ctx, OrderFilter{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, orders, 1)
	})
}

func TestDashboard(t *testing.T) {
	eachDialect(t, func(t *testing.T, f *fixture) {
		admin := NewAdminService(f.st)
		ctx := context.Background()
		general := storetest.TicketType(t, f.st, f.event.ID, "General", "100.00", 10)
		storetest.TicketType(t, f.st, f.event.ID, "VIP", "300.00", 5)
		storetest.Event(t, f.st, "Zeta Fest")
		require.NoError(t, f.st.InsertEvent(ctx, &models.Event{ID: uuid.NewString(), Name: "Cancelled Show", Venue: "Arena"}))

		sale := f.reserve(t, ReserveItem{TicketTypeID: general.ID, Quantity: 2})
		f.pay(t, sale.ID)
		f.reserve(t, ReserveItem{TicketTypeID: general.ID, Quantity: 1})

		d, err := admin.Dashboard(ctx)
		require.NoError(t, err)

		require.Len(t, d.Events, 2, "inactive events are left out")
		gala, zeta := d.Events[0], d.Events[1]
		assert.Equal(t, "Gala Night", gala.Name)
		assert.Equal(t, 15, gala.Capacity)
		assert.Equal(t, 2, gala.Sold)
		assert.Equal(t, 13, gala.Available)
		assert.Equal(t, 13.3, gala.PercentSold)
		assert.Equal(t, "232", gala.Revenue.String())
		assert.Equal(t, 1, gala.Orders)

		assert.Equal(t, "Zeta Fest", zeta.Name)
		assert.Zero(t, zeta.Capacity)
		assert.Zero(t, zeta.PercentSold)
		assert.True(t, zeta.Revenue.IsZero())

		assert.Equal(t, 2, d.Overview.Events)
		assert.Equal(t, 2, d.Overview.TicketsSold)
		assert.Equal(t, 1, d.Overview.Orders)
		assert.Equal(t, "232.00", d.Overview.Revenue.StringFixed(2))

		require.Len(t, d.RecentOrders, 1)
		assert.Equal(t, sale.ID, d.RecentOrders[0].ID)
		assert.Equal(t, 2, d.RecentOrders[0].TicketCount)
	})
}
