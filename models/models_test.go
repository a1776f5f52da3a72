package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaleItem_TicketCount(t *testing.T) {
	tests := []struct {
		name string
		item SaleItem
		want int
	}{
		{"general", SaleItem{Quantity: 3}, 3},
		{"table default seats", SaleItem{Quantity: 1, IsTable: true}, 4},
		{"table custom seats", SaleItem{Quantity: 1, IsTable: true, SeatsPerTable: 6}, 6},
		{"two tables", SaleItem{Quantity: 2, IsTable: true, SeatsPerTable: 8}, 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.item.TicketCount())
		})
	}
}

func TestTicketType_Seats(t *testing.T) {
	assert.Equal(t, 1, TicketType{}.Seats())
	assert.Equal(t, 4, TicketType{IsTable: true}.Seats())
	assert.Equal(t, 10, TicketType{IsTable: true, SeatsPerTable: 10}.Seats())
}

func TestSale_IsExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-11 * time.Minute)
	future := now.Add(5 * time.Minute)

	assert.True(t, (&Sale{Status: SalePending, PaymentStatus: PaymentPending, ExpiresAt: &past}).IsExpired(now))
	assert.False(t, (&Sale{Status: SalePending, PaymentStatus: PaymentPending, ExpiresAt: &future}).IsExpired(now))
	assert.False(t, (&Sale{Status: SalePending, PaymentStatus: PaymentPending}).IsExpired(now))
	assert.True(t, (&Sale{Status: SaleCancelled, PaymentStatus: PaymentExpired, ExpiresAt: &past}).IsExpired(now))

	// a paid sale never reads as expired even after its hold window
	assert.False(t, (&Sale{Status: SaleCompleted, PaymentStatus: PaymentPaid, ExpiresAt: &past}).IsExpired(now))
}

func TestSale_HoldsInventory(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.True(t, (&Sale{Status: SalePending, ExpiresAt: &future}).HoldsInventory(now))
	assert.True(t, (&Sale{Status: SalePending}).HoldsInventory(now))
	assert.False(t, (&Sale{Status: SalePending, ExpiresAt: &past}).HoldsInventory(now))
	assert.False(t, (&Sale{Status: SaleCompleted, ExpiresAt: &future}).HoldsInventory(now))
}

func TestSale_IsFulfilled(t *testing.T) {
	assert.True(t, (&Sale{Status: SaleCompleted}).IsFulfilled())
	assert.True(t, (&Sale{Status: SalePending, PaymentStatus: PaymentPaid}).IsFulfilled())
	assert.False(t, (&Sale{Status: SalePending, PaymentStatus: PaymentFailed}).IsFulfilled())
}

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(23200), ToMinorUnits(decimal.RequireFromString("232.00")))
	assert.Equal(t, int64(11601), ToMinorUnits(decimal.RequireFromString("116.005")))
	assert.Equal(t, int64(0), ToMinorUnits(decimal.Zero))
	assert.True(t, FromMinorUnits(23200).Equal(decimal.RequireFromString("232")))
}

func TestSaleView_JSON(t *testing.T) {
	expires := time.Now().Add(-time.Minute).UTC()
	view := SaleView{
		Sale: Sale{
			ID:            "sale-1",
			Status:        SalePending,
			PaymentStatus: PaymentPending,
			Total:         decimal.RequireFromString("232.00"),
			ExpiresAt:     &expires,
		},
		EventName: "Gala",
		IsExpired: true,
	}

	data, err := json.Marshal(view)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "sale-1", decoded["id"])
	assert.Equal(t, true, decoded["is_expired"])
	assert.Equal(t, "PENDING", decoded["payment_status"])
	assert.Equal(t, "232", decoded["total"])
}
