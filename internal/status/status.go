package status

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("sale: not found")
	ErrInvalidRequest      = errors.New("sale: invalid request")
	ErrCapacityExceeded    = errors.New("inventory: capacity exceeded")
	ErrAlreadyProcessed    = errors.New("payment: already processed")
	ErrExpiredReservation  = errors.New("sale: reservation expired")
	ErrGateway             = errors.New("payment: gateway error")
	ErrGatewayTimeout      = errors.New("payment: gateway timeout")
	ErrBusy                = errors.New("store: too much contention")
	ErrBadSignature        = errors.New("webhook: signature mismatch")
	ErrUnrecognizedPayload = errors.New("webhook: unrecognized payload")
)

// Invalid wraps ErrInvalidRequest with a caller facing reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// NotFound wraps ErrNotFound naming the missing entity.
func NotFound(entity, id string) error {
	return fmt.Errorf("%w: %s %q", ErrNotFound, entity, id)
}

// CapacityExceededError names the line item that could not be held.
type CapacityExceededError struct {
	Item      string
	Requested int
	Available int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("inventory: capacity exceeded for %s: requested %d, available %d", e.Item, e.Requested, e.Available)
}

func (e *CapacityExceededError) Is(target error) bool {
	return target == ErrCapacityExceeded
}

// GatewayError is an upstream failure reported by the payment provider.
type GatewayError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("payment: gateway %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("payment: gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

func (e *GatewayError) Is(target error) bool {
	return target == ErrGateway
}

// IsDeterministic reports whether retrying the same input can never succeed.
// Webhook deliveries failing this way are acknowledged instead of retried.
func IsDeterministic(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrUnrecognizedPayload),
		errors.Is(err, ErrExpiredReservation),
		errors.Is(err, ErrCapacityExceeded):
		return true
	}
	return false
}

// IsTimeout reports whether err came from a bounded wait running out.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrGatewayTimeout) || errors.Is(err, context.DeadlineExceeded)
}
