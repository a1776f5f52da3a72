package services

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"ticket-sales/internal/store"
	"ticket-sales/models"
)

const qrPlaceholder = "PENDING"

// TicketIssuer mints tickets for a paid sale. Numbers come from the store's
// global sequence so they never collide across ticket types, and each QR
// credential is a keyed hash of the ticket's own id.
type TicketIssuer struct {
	key []byte
	now func() time.Time
}

func NewTicketIssuer(secret string) (*TicketIssuer, error) {
	if secret == "" {
		return nil, errors.New("NewTicketIssuer: empty QR secret")
	}
	key := []byte(secret)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum256(key)
		key = sum[:]
	}
	return &TicketIssuer{key: key, now: time.Now}, nil
}

// QRCode derives the credential for a ticket id.
func (i *TicketIssuer) QRCode(ticketID string) string {
	h, err := blake2b.New256(i.key)
	if err != nil {
		// key length is checked in NewTicketIssuer
		panic(err)
	}
	h.Write([]byte("ticket:" + ticketID))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyQR recomputes the credential from the ticket id.
func (i *TicketIssuer) VerifyQR(t models.Ticket) bool {
	want := i.QRCode(t.ID)
	return subtle.ConstantTimeCompare([]byte(want), []byte(t.QRCode)) == 1
}

// TicketPrefix returns the first three letters or digits of name upper
// cased, padded with X.
func TicketPrefix(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(name) {
		if b.Len() == 3 {
			break
		}
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	for b.Len() < 3 {
		b.WriteByte('X')
	}
	return b.String()
}

// FormatTicketNumber renders e.g. GAL-GEN-000042.
func FormatTicketNumber(eventName, typeName string, ordinal int64) string {
	return fmt.Sprintf("%s-%s-%06d", TicketPrefix(eventName), TicketPrefix(typeName), ordinal)
}

// Issue creates every ticket for sale inside tx. Each ticket row is written
// with a placeholder credential first and the real QR once its id exists.
func (i *TicketIssuer) Issue(ctx context.Context, tx *store.Store, event *models.Event, sale *models.Sale, types map[string]models.TicketType) ([]models.Ticket, error) {
	total := 0
	for _, item := range sale.Items {
		total += item.TicketCount()
	}
	if total == 0 {
		return nil, nil
	}

	next, err := tx.AllocateTicketNumbers(ctx, total)
	if err != nil {
		return nil, fmt.Errorf("Issue: %w", err)
	}

	now := i.now()
	tickets := make([]models.Ticket, 0, total)
	for _, item := range sale.Items {
		tt, ok := types[item.TicketTypeID]
		if !ok {
			return nil, fmt.Errorf("Issue: ticket type %s not loaded", item.TicketTypeID)
		}

		for _, seat := range seatsFor(item) {
			ticket := models.Ticket{
				ID:           uuid.NewString(),
				SaleID:       sale.ID,
				TicketTypeID: item.TicketTypeID,
				TicketNumber: FormatTicketNumber(event.Name, tt.Name, next),
				QRCode:       qrPlaceholder,
				TableNumber:  seat.table,
				SeatNumber:   seat.number,
				IsQRVisible:  true,
				Status:       models.TicketValid,
				CreatedAt:    now,
			}
			next++

			if err := tx.InsertTicket(ctx, &ticket); err != nil {
				return nil, fmt.Errorf("Issue: %w", err)
			}
			ticket.QRCode = i.QRCode(ticket.ID)
			if err := tx.SetTicketQR(ctx, ticket.ID, ticket.QRCode); err != nil {
				return nil, fmt.Errorf("Issue: %w", err)
			}
			tickets = append(tickets, ticket)
		}
	}
	return tickets, nil
}

type seatPosition struct {
	table  string
	number int
}

func seatsFor(item models.SaleItem) []seatPosition {
	if !item.IsTable {
		return make([]seatPosition, item.Quantity)
	}

	seats := item.TicketCount() / max(item.Quantity, 1)
	out := make([]seatPosition, 0, item.TicketCount())
	for t := 0; t < item.Quantity; t++ {
		label := ""
		if item.TableNumber > 0 {
			label = fmt.Sprintf("Mesa %d", item.TableNumber+t)
		}
		for s := 1; s <= seats; s++ {
			out = append(out, seatPosition{table: label, number: s})
		}
	}
	return out
}
