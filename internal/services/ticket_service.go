package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"
	qrcode "github.com/skip2/go-qrcode"

	"ticket-sales/internal/status"
	"ticket-sales/internal/store"
	"ticket-sales/models"
)

const (
	defaultQRSize = 256
	maxQRSize     = 1024
)

// TicketService covers what happens to tickets after issue: admins reveal
// QR codes when entry opens and buyers fetch the scannable image.
type TicketService struct {
	store  *store.Store
	issuer *TicketIssuer
}

func NewTicketService(st *store.Store, issuer *TicketIssuer) *TicketService {
	return &TicketService{store: st, issuer: issuer}
}

// SetVisibility toggles QR visibility of the given tickets and returns how
// many rows changed.
func (s *TicketService) SetVisibility(ctx context.Context, ticketIDs []string, visible bool) (int64, error) {
	ids := lo.Uniq(lo.Filter(ticketIDs, func(id string, _ int) bool { return strings.TrimSpace(id) != "" }))
	if len(ids) == 0 {
		return 0, status.Invalid("ticketIds must not be empty")
	}
	return s.store.SetTicketVisibility(ctx, ids, visible)
}

// SetSaleVisibility toggles QR visibility of every ticket of a sale.
func (s *TicketService) SetSaleVisibility(ctx context.Context, saleID string, visible bool) (int64, error) {
	if saleID == "" {
		return 0, status.Invalid("saleId is required")
	}
	if _, err := s.store.GetSale(ctx, saleID); err != nil {
		return 0, err
	}
	return s.store.SetSaleTicketVisibility(ctx, saleID, visible)
}

// QRImage renders the ticket credential as a PNG. Hidden, cancelled or
// tampered tickets have no image.
func (s *TicketService) QRImage(ctx context.Context, ticketID string, size int) ([]byte, error) {
	t, err := s.store.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !t.IsQRVisible {
		return nil, fmt.Errorf("%w: qr for ticket %q is not visible yet", status.ErrNotFound, t.ID)
	}
	if t.Status == models.TicketCancelled {
		return nil, fmt.Errorf("%w: ticket %q is cancelled", status.ErrNotFound, t.ID)
	}
	if !s.issuer.VerifyQR(*t) {
		return nil, fmt.Errorf("QRImage: ticket %s has an invalid qr code", t.ID)
	}

	switch {
	case size <= 0:
		size = defaultQRSize
	case size > maxQRSize:
		size = maxQRSize
	}
	png, err := qrcode.Encode(QRPayload(*t), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("QRImage: qrcode.Encode: %w", err)
	}
	return png, nil
}

// Verify resolves a scanned QR payload to its ticket. Forged payloads,
// unknown tickets and cancelled tickets are rejected.
func (s *TicketService) Verify(ctx context.Context, payload string) (*models.Ticket, error) {
	id, ok := s.issuer.VerifyPayload(strings.TrimSpace(payload))
	if !ok {
		return nil, status.Invalid("qr payload is not a valid ticket credential")
	}
	t, err := s.store.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if QRPayload(*t) != strings.TrimSpace(payload) {
		return nil, status.Invalid("qr payload does not match ticket %s", t.ID)
	}
	if t.Status == models.TicketCancelled {
		return nil, status.Invalid("ticket %s is cancelled", t.TicketNumber)
	}
	return t, nil
}

// QRPayload is the text encoded in a ticket's QR image.
func QRPayload(t models.Ticket) string {
	return t.ID + "." + t.QRCode
}

// VerifyPayload checks a scanned payload and returns the ticket id it names.
func (i *TicketIssuer) VerifyPayload(payload string) (string, bool) {
	id, qr, ok := strings.Cut(payload, ".")
	if !ok || id == "" {
		return "", false
	}
	return id, i.VerifyQR(models.Ticket{ID: id, QRCode: qr})
}
