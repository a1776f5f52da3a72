package models

import (
	"github.com/shopspring/decimal"
)

// PaymentSignal is the normalized outcome a gateway reports for a payment.
type PaymentSignal string

const (
	SignalPaid      PaymentSignal = "paid"
	SignalFailed    PaymentSignal = "failed"
	SignalCancelled PaymentSignal = "cancelled"
	SignalPending   PaymentSignal = "pending"
	SignalUnknown   PaymentSignal = "unknown"
)

// PaymentResult is what the fulfillment processor acts on, regardless of
// whether it came from an inline charge response or a webhook.
type PaymentResult struct {
	Reference        string        `json:"reference"`
	Status           PaymentSignal `json:"status"`
	GatewayPaymentID string        `json:"gateway_payment_id,omitempty"`
	Provider         string        `json:"provider,omitempty"`
}

var hundred = decimal.NewFromInt(100)

// ToMinorUnits converts a major-unit amount to the integer minor units
// gateways charge in, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromMinorUnits is the inverse of ToMinorUnits.
func FromMinorUnits(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}
