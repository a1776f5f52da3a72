package clip

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.payclip.com"
	apiVersion     = "v2"
	acceptHeader   = "application/vnd.com.payclip.v2+json"
)

var _ Clip = (*clip)(nil)

type (
	Config struct {
		BaseURL   string        `json:"base_url"`
		AuthToken string        `json:"auth_token"`
		Timeout   time.Duration `json:"timeout"`
	}

	clip struct {
		baseURL string

		// authToken is sent as a bearer token on every request.
		authToken string

		// hc is the http client.
		hc *http.Client
	}
)

type Clip interface {
	CreateCharge(ctx context.Context, f *ChargeForm) (*ChargeReply, error)
	CreateCheckout(ctx context.Context, f *CheckoutForm) (*CheckoutReply, error)
	GetCheckout(ctx context.Context, id string) (*CheckoutStatus, error)
}

// New creates new instance of Clip client.
func New(cfg *Config) (Clip, error) {
	if cfg == nil || cfg.AuthToken == "" {
		return nil, errors.New("clip.New: auth token is required")
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &clip{
		baseURL:   baseURL,
		authToken: cfg.AuthToken,
		hc: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type ChargeForm struct {
	// Amount is in centavos.
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Token       string `json:"token"`
	Description string `json:"description"`
	Reference   string `json:"reference"`
}

type ChargeReply struct {
	ID       string
	Status   string
	Amount   int64
	Currency string
	Paid     bool
}

func (c *clip) CreateCharge(ctx context.Context, f *ChargeForm) (*ChargeReply, error) {
	var reply struct {
		ID       string `json:"id"`
		ChargeID string `json:"charge_id"`
		Status   string `json:"status"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Paid     bool   `json:"paid"`
	}
	if err := c.do(ctx, "createCharge", http.MethodPost, "/charges", f, &reply); err != nil {
		return nil, err
	}

	out := &ChargeReply{
		ID:       firstNonEmpty(reply.ID, reply.ChargeID),
		Status:   firstNonEmpty(reply.Status, "unknown"),
		Amount:   reply.Amount,
		Currency: firstNonEmpty(reply.Currency, f.Currency),
		Paid:     reply.Paid || isPaid(reply.Status),
	}
	if out.Amount == 0 {
		out.Amount = f.Amount
	}
	return out, nil
}

type CheckoutForm struct {
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	Reference   string `json:"reference"`
	SuccessURL  string `json:"success_url"`
	CancelURL   string `json:"cancel_url"`
	WebhookURL  string `json:"webhook_url,omitempty"`
	// ExpiresAt is RFC 3339, empty for no expiry.
	ExpiresAt string `json:"expires_at,omitempty"`
}

type CheckoutReply struct {
	CheckoutID         string
	PaymentURL         string
	PaymentRequestCode string
}

func (c *clip) CreateCheckout(ctx context.Context, f *CheckoutForm) (*CheckoutReply, error) {
	var reply struct {
		ID                 string `json:"id"`
		CheckoutID         string `json:"checkout_id"`
		PaymentRequestCode string `json:"payment_request_code"`
		Code               string `json:"code"`
		PaymentURL         string `json:"payment_url"`
		URL                string `json:"url"`
		CheckoutURL        string `json:"checkout_url"`
	}
	if err := c.do(ctx, "createCheckout", http.MethodPost, "/checkout", f, &reply); err != nil {
		return nil, err
	}

	return &CheckoutReply{
		CheckoutID:         firstNonEmpty(reply.ID, reply.CheckoutID, reply.PaymentRequestCode),
		PaymentURL:         firstNonEmpty(reply.PaymentURL, reply.URL, reply.CheckoutURL),
		PaymentRequestCode: firstNonEmpty(reply.PaymentRequestCode, reply.Code, reply.ID),
	}, nil
}

type CheckoutStatus struct {
	ID     string
	Status string
	Paid   bool
	Amount int64
	PaidAt *time.Time
}

func (c *clip) GetCheckout(ctx context.Context, id string) (*CheckoutStatus, error) {
	if id == "" {
		return nil, errors.New("getCheckout: empty checkout id")
	}

	var reply struct {
		Status        string     `json:"status"`
		PaymentStatus string     `json:"payment_status"`
		Paid          bool       `json:"paid"`
		Amount        int64      `json:"amount"`
		PaidAt        *time.Time `json:"paid_at"`
	}
	if err := c.do(ctx, "getCheckout", http.MethodGet, "/checkout/"+id, nil, &reply); err != nil {
		return nil, err
	}

	st := firstNonEmpty(reply.Status, reply.PaymentStatus, "unknown")
	return &CheckoutStatus{
		ID:     id,
		Status: st,
		Paid:   reply.Paid || isPaid(st),
		Amount: reply.Amount,
		PaidAt: reply.PaidAt,
	}, nil
}
