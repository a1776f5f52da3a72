package services

import (
	"context"
	"log/slog"
	"time"

	pubnub "github.com/pubnub/go"

	"ticket-sales/models"
)

// SaleEvent is what buyers' browsers receive when their sale changes state.
type SaleEvent struct {
	SaleID        string               `json:"sale_id"`
	Status        models.SaleStatus    `json:"status"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	Tickets       int                  `json:"tickets"`
	ExpiresAt     *time.Time           `json:"expires_at,omitempty"`
	At            time.Time            `json:"at"`
}

func SaleEventFrom(sale *models.Sale, tickets int) SaleEvent {
	return SaleEvent{
		SaleID:        sale.ID,
		Status:        sale.Status,
		PaymentStatus: sale.PaymentStatus,
		Tickets:       tickets,
		ExpiresAt:     sale.ExpiresAt,
		At:            time.Now(),
	}
}

// Notifier publishes sale state changes after they commit. Delivery is best
// effort and never affects the outcome of the operation that triggered it.
type Notifier interface {
	NotifySale(ctx context.Context, ev SaleEvent)
}

type NopNotifier struct{}

func (NopNotifier) NotifySale(context.Context, SaleEvent) {}

// SaleChannel is the PubNub channel a storefront subscribes to for one sale.
func SaleChannel(saleID string) string {
	return "sale-" + saleID
}

type PubNubNotifier struct {
	pn     *pubnub.PubNub
	logger *slog.Logger
}

func NewPubNubNotifier(pn *pubnub.PubNub) *PubNubNotifier {
	return &PubNubNotifier{pn: pn, logger: slog.Default()}
}

func (n *PubNubNotifier) NotifySale(ctx context.Context, ev SaleEvent) {
	go func() {
		_, _, err := n.pn.Publish().
			Channel(SaleChannel(ev.SaleID)).
			Message(ev).
			Execute()
		if err != nil {
			n.logger.Error("Failed to publish sale event", "sale_id", ev.SaleID, "error", err)
		}
	}()
}
