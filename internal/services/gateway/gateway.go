package gateway

import (
	"context"
	"strings"
	"time"

	"github.com/samber/lo"

	"ticket-sales/models"
)

// Provider identifies a payment gateway implementation.
type Provider string

const (
	ProviderClip    Provider = "clip"
	ProviderSandbox Provider = "sandbox"
)

// ChargeRequest charges a tokenized card. Amounts are in minor units.
type ChargeRequest struct {
	AmountMinor int64  `json:"amount"`
	Currency    string `json:"currency"`
	CardToken   string `json:"token"`
	Description string `json:"description"`
	Reference   string `json:"reference"`
}

type Charge struct {
	ID        string               `json:"id"`
	Status    models.PaymentSignal `json:"status"`
	RawStatus string               `json:"raw_status"`
	Paid      bool                 `json:"paid"`
}

// CheckoutRequest asks the gateway for a hosted payment page.
type CheckoutRequest struct {
	AmountMinor int64     `json:"amount"`
	Currency    string    `json:"currency"`
	Description string    `json:"description"`
	Reference   string    `json:"reference"`
	SuccessURL  string    `json:"success_url"`
	CancelURL   string    `json:"cancel_url"`
	WebhookURL  string    `json:"webhook_url,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
}

type CheckoutLink struct {
	ID         string `json:"checkout_id"`
	PaymentURL string `json:"payment_url"`
}

type PaymentState struct {
	ID        string               `json:"id"`
	Status    models.PaymentSignal `json:"status"`
	RawStatus string               `json:"raw_status"`
	Paid      bool                 `json:"paid"`
}

// Gateway is the contract the payment service depends on. Implementations
// return *status.GatewayError for upstream failures and wrap
// status.ErrGatewayTimeout when the bounded wait runs out.
type Gateway interface {
	// Provider returns the gateway type
	Provider() Provider

	// CreateCharge charges a card token
	CreateCharge(ctx context.Context, req *ChargeRequest) (*Charge, error)

	// CreateCheckoutLink creates a hosted payment page for redirection
	CreateCheckoutLink(ctx context.Context, req *CheckoutRequest) (*CheckoutLink, error)

	// GetPaymentStatus checks the status of a checkout or charge
	GetPaymentStatus(ctx context.Context, id string) (*PaymentState, error)
}

type Config struct {
	Provider      Provider
	BaseURL       string
	AuthToken     string
	WebhookSecret string
	Timeout       time.Duration
}

var (
	paidStatuses      = []string{"paid", "approved", "completed", "payment.paid", "charge.paid", "checkout.paid"}
	failedStatuses    = []string{"failed", "declined", "rejected", "payment.failed", "charge.failed"}
	cancelledStatuses = []string{"cancelled", "canceled", "payment.cancelled", "payment.canceled", "checkout.cancelled"}
	pendingStatuses   = []string{"pending", "created", "processing", "in_process", "payment.pending"}
)

// NormalizeStatus maps a gateway status or event name to a payment signal.
// Anything not explicitly listed is unknown, including "expired": lapsed
// holds are expired by the reaper only.
func NormalizeStatus(raw string) models.PaymentSignal {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case s == "":
		return models.SignalUnknown
	case lo.Contains(paidStatuses, s):
		return models.SignalPaid
	case lo.Contains(failedStatuses, s):
		return models.SignalFailed
	case lo.Contains(cancelledStatuses, s):
		return models.SignalCancelled
	case lo.Contains(pendingStatuses, s):
		return models.SignalPending
	}
	return models.SignalUnknown
}
