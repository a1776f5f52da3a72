package gateway

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"ticket-sales/internal/status"
	"ticket-sales/models"
)

// PayloadKind tags which of the known webhook shapes a body had.
type PayloadKind string

const (
	// KindEnvelope is {"event": "payment.paid", "data": {...}}.
	KindEnvelope PayloadKind = "envelope"
	// KindCheckout is {"type": "...", "checkout_id": "...", ...}.
	KindCheckout PayloadKind = "checkout"
	// KindFlat is {"status": "...", "reference": "...", ...}.
	KindFlat PayloadKind = "flat"
)

// Notification is a webhook body normalized to what fulfillment needs.
type Notification struct {
	Kind      PayloadKind          `json:"kind"`
	Event     string               `json:"event,omitempty"`
	Reference string               `json:"reference"`
	Status    models.PaymentSignal `json:"status"`
	RawStatus string               `json:"raw_status,omitempty"`
	PaymentID string               `json:"payment_id,omitempty"`
}

func (n *Notification) PaymentResult(provider Provider) models.PaymentResult {
	return models.PaymentResult{
		Reference:        n.Reference,
		Status:           n.Status,
		GatewayPaymentID: n.PaymentID,
		Provider:         string(provider),
	}
}

type paymentFields struct {
	ID         string `json:"id"`
	PaymentID  string `json:"payment_id"`
	Status     string `json:"status"`
	Reference  string `json:"reference"`
	SaleID     string `json:"sale_id"`
	CheckoutID string `json:"checkout_id"`
}

func (f paymentFields) reference() string {
	return firstNonEmpty(f.Reference, f.SaleID, f.CheckoutID)
}

type rawPayload struct {
	paymentFields
	Event string          `json:"event"`
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
}

// ParseWebhook classifies body into one of the known shapes. Bodies that are
// not JSON objects, carry no reference, or carry no status at all are
// rejected with status.ErrUnrecognizedPayload.
func ParseWebhook(body []byte) (*Notification, error) {
	var raw rawPayload
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: malformed json: %v", status.ErrUnrecognizedPayload, err)
	}

	n := &Notification{Event: firstNonEmpty(raw.Event, raw.Type)}
	fields := raw.paymentFields

	data := bytes.TrimSpace(raw.Data)
	switch {
	case len(data) > 0 && data[0] == '{':
		n.Kind = KindEnvelope
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("%w: malformed data: %v", status.ErrUnrecognizedPayload, err)
		}
	case raw.CheckoutID != "" || strings.HasPrefix(strings.ToLower(raw.Type), "checkout"):
		n.Kind = KindCheckout
	default:
		n.Kind = KindFlat
	}

	n.Reference = fields.reference()
	if n.Reference == "" {
		return nil, fmt.Errorf("%w: %s payload without reference", status.ErrUnrecognizedPayload, n.Kind)
	}

	n.RawStatus = firstNonEmpty(fields.Status, n.Event)
	if n.RawStatus == "" {
		return nil, fmt.Errorf("%w: %s payload without status", status.ErrUnrecognizedPayload, n.Kind)
	}
	n.Status = NormalizeStatus(fields.Status)
	if n.Status == models.SignalUnknown || n.Status == models.SignalPending {
		if ev := NormalizeStatus(n.Event); ev != models.SignalUnknown {
			n.Status = ev
		}
	}
	n.PaymentID = firstNonEmpty(fields.ID, fields.PaymentID)

	return n, nil
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks signature against the HMAC of body. An empty secret
// disables verification; with a secret set a missing signature is rejected.
func VerifySignature(body []byte, signature, secret string) error {
	if secret == "" {
		return nil
	}

	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	if signature == "" {
		return fmt.Errorf("%w: missing signature", status.ErrBadSignature)
	}

	got, err := hex.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("%w: signature is not hex", status.ErrBadSignature)
	}
	want, _ := hex.DecodeString(Sign(body, secret))
	if !hmac.Equal(got, want) {
		return status.ErrBadSignature
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
