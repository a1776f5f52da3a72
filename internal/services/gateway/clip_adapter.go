package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"ticket-sales/internal/services/gateway/clip"
	"ticket-sales/internal/status"
	"ticket-sales/models"
	"ticket-sales/monitoring"
	"ticket-sales/utils"
)

// The breaker opens once at least breakerMinRequests calls in a window saw
// breakerFailureRatio or more upstream failures.
const (
	breakerMinRequests  = 10
	breakerFailureRatio = 0.5
)

// ClipAdapter wraps the Clip client to conform to Gateway
type ClipAdapter struct {
	client  clip.Clip
	breaker *utils.CircuitBreaker
	timeout time.Duration
}

// NewClipAdapter creates a new Clip adapter. Each call is bounded by timeout
// and guarded by a circuit breaker that only counts upstream failures.
func NewClipAdapter(client clip.Clip, timeout time.Duration) *ClipAdapter {
	return &ClipAdapter{
		client:  client,
		timeout: timeout,
		breaker: utils.NewCircuitBreaker("clip",
			utils.WithFailureFilter(countsAgainstBreaker),
			utils.WithThresholds(breakerMinRequests, breakerFailureRatio),
			utils.WithOpenTimeout(30*time.Second),
		),
	}
}

func (a *ClipAdapter) Provider() Provider {
	return ProviderClip
}

func (a *ClipAdapter) CreateCharge(ctx context.Context, req *ChargeRequest) (*Charge, error) {
	if req.CardToken == "" {
		return nil, status.Invalid("card token is required")
	}

	v, err := a.call(ctx, "charge", func(ctx context.Context) (any, error) {
		return a.client.CreateCharge(ctx, &clip.ChargeForm{
			Amount:      req.AmountMinor,
			Currency:    req.Currency,
			Token:       req.CardToken,
			Description: req.Description,
			Reference:   req.Reference,
		})
	})
	if err != nil {
		return nil, err
	}

	reply := v.(*clip.ChargeReply)
	signal := NormalizeStatus(reply.Status)
	if reply.Paid {
		signal = models.SignalPaid
	}
	return &Charge{
		ID:        reply.ID,
		Status:    signal,
		RawStatus: reply.Status,
		Paid:      signal == models.SignalPaid,
	}, nil
}

func (a *ClipAdapter) CreateCheckoutLink(ctx context.Context, req *CheckoutRequest) (*CheckoutLink, error) {
	form := &clip.CheckoutForm{
		Amount:      req.AmountMinor,
		Currency:    req.Currency,
		Description: req.Description,
		Reference:   req.Reference,
		SuccessURL:  req.SuccessURL,
		CancelURL:   req.CancelURL,
		WebhookURL:  req.WebhookURL,
	}
	if !req.ExpiresAt.IsZero() {
		form.ExpiresAt = req.ExpiresAt.UTC().Format(time.RFC3339)
	}

	v, err := a.call(ctx, "checkout", func(ctx context.Context) (any, error) {
		return a.client.CreateCheckout(ctx, form)
	})
	if err != nil {
		return nil, err
	}

	reply := v.(*clip.CheckoutReply)
	if reply.PaymentURL == "" {
		return nil, &status.GatewayError{Op: "checkout", Err: errors.New("reply has no payment url")}
	}
	return &CheckoutLink{ID: reply.CheckoutID, PaymentURL: reply.PaymentURL}, nil
}

func (a *ClipAdapter) GetPaymentStatus(ctx context.Context, id string) (*PaymentState, error) {
	v, err := a.call(ctx, "status", func(ctx context.Context) (any, error) {
		return a.client.GetCheckout(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	reply := v.(*clip.CheckoutStatus)
	signal := NormalizeStatus(reply.Status)
	if reply.Paid {
		signal = models.SignalPaid
	}
	return &PaymentState{
		ID:        reply.ID,
		Status:    signal,
		RawStatus: reply.Status,
		Paid:      signal == models.SignalPaid,
	}, nil
}

// call runs fn under the breaker with a bounded deadline and records the
// outcome.
func (a *ClipAdapter) call(ctx context.Context, op string, fn func(context.Context) (any, error)) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	v, err := a.breaker.Execute(ctx, func() (any, error) { return fn(ctx) })
	err = mapError(op, err)

	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, status.ErrGatewayTimeout):
		result = "timeout"
	default:
		result = "error"
	}
	monitoring.TrackGatewayRequest(op, result, time.Since(start))

	return v, err
}

func mapError(op string, err error) error {
	if err == nil {
		return nil
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("gateway %s: %w: %v", op, status.ErrGatewayTimeout, err)
	}

	var apiErr *clip.APIError
	if errors.As(err, &apiErr) {
		return &status.GatewayError{Op: op, StatusCode: apiErr.StatusCode, Err: err}
	}
	return &status.GatewayError{Op: op, Err: err}
}

// countsAgainstBreaker ignores client side rejections such as a declined card.
func countsAgainstBreaker(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *clip.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return !errors.Is(err, context.Canceled)
}
