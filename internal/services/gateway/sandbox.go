package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"ticket-sales/internal/status"
	"ticket-sales/models"
)

// Sandbox card tokens. Any other token is treated as pending so the
// webhook path can settle it.
const (
	SandboxTokenPaid     = "tok_paid"
	SandboxTokenDeclined = "tok_declined"
	SandboxTokenTimeout  = "tok_timeout"
	SandboxTokenError    = "tok_error"
)

// Sandbox is an in-memory gateway for development and tests.
type Sandbox struct {
	mu       sync.Mutex
	payments map[string]models.PaymentSignal
	baseURL  string
}

func NewSandbox() *Sandbox {
	return &Sandbox{
		payments: make(map[string]models.PaymentSignal),
		baseURL:  "https://sandbox.invalid/pay",
	}
}

func (s *Sandbox) Provider() Provider {
	return ProviderSandbox
}

func (s *Sandbox) CreateCharge(ctx context.Context, req *ChargeRequest) (*Charge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.CardToken == "" {
		return nil, status.Invalid("card token is required")
	}

	var signal models.PaymentSignal
	switch req.CardToken {
	case SandboxTokenPaid:
		signal = models.SignalPaid
	case SandboxTokenDeclined:
		signal = models.SignalFailed
	case SandboxTokenTimeout:
		return nil, fmt.Errorf("gateway charge: %w", status.ErrGatewayTimeout)
	case SandboxTokenError:
		return nil, &status.GatewayError{Op: "charge", StatusCode: 502, Err: fmt.Errorf("sandbox upstream failure")}
	default:
		signal = models.SignalPending
	}

	id := "ch_" + uuid.NewString()
	s.set(id, signal)
	return &Charge{ID: id, Status: signal, RawStatus: string(signal), Paid: signal == models.SignalPaid}, nil
}

func (s *Sandbox) CreateCheckoutLink(ctx context.Context, req *CheckoutRequest) (*CheckoutLink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := "chk_" + uuid.NewString()
	s.set(id, models.SignalPending)
	return &CheckoutLink{ID: id, PaymentURL: fmt.Sprintf("%s/%s?ref=%s", s.baseURL, id, req.Reference)}, nil
}

func (s *Sandbox) GetPaymentStatus(ctx context.Context, id string) (*PaymentState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	signal, ok := s.payments[id]
	s.mu.Unlock()
	if !ok {
		return nil, &status.GatewayError{Op: "status", StatusCode: 404, Err: fmt.Errorf("unknown payment %q", id)}
	}
	return &PaymentState{ID: id, Status: signal, RawStatus: string(signal), Paid: signal == models.SignalPaid}, nil
}

// Settle moves a sandbox payment to the given state, as a real customer
// completing or abandoning the hosted page would.
func (s *Sandbox) Settle(id string, signal models.PaymentSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payments[id]; !ok {
		return status.NotFound("payment", id)
	}
	s.payments[id] = signal
	return nil
}

func (s *Sandbox) set(id string, signal models.PaymentSignal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[strings.TrimSpace(id)] = signal
}
