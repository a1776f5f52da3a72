package monitoring

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ticket_sales"

var (
	reservations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_total",
			Help:      "Reservation attempts by result",
		},
		[]string{"result"},
	)

	fulfillments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fulfillments_total",
			Help:      "Payment results applied to sales by outcome",
		},
		[]string{"outcome"},
	)

	ticketsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tickets_issued_total",
			Help:      "Tickets issued on fulfillment",
		},
	)

	expiredSales = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expired_sales_total",
			Help:      "Pending sales expired by the reaper",
		},
	)

	gatewayRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_requests_total",
			Help:      "Payment gateway calls by operation and result",
		},
		[]string{"op", "result"},
	)

	gatewayDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_duration_seconds",
			Help:      "Duration of payment gateway calls",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"op"},
	)

	pendingSales = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_sales",
			Help:      "Sales currently holding inventory",
		},
	)

	goroutineCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_goroutines",
			Help:      "Current number of active goroutines",
		},
	)
)

// Track reservation attempts
func TrackReservation(result string) {
	reservations.WithLabelValues(result).Inc()
}

func TrackFulfillment(outcome string) {
	fulfillments.WithLabelValues(outcome).Inc()
}

func TrackTicketsIssued(n int) {
	if n > 0 {
		ticketsIssued.Add(float64(n))
	}
}

func TrackExpiredSales(n int64) {
	if n > 0 {
		expiredSales.Add(float64(n))
	}
}

// Track payment gateway calls
func TrackGatewayRequest(op, result string, d time.Duration) {
	gatewayRequests.WithLabelValues(op, result).Inc()
	gatewayDuration.WithLabelValues(op).Observe(d.Seconds())
}

// PendingCounter reports how many sales hold inventory at now.
type PendingCounter interface {
	CountLivePending(ctx context.Context, now time.Time) (int64, error)
}

type Monitor struct {
	pending  PendingCounter
	interval time.Duration
	logger   *slog.Logger
}

func NewMonitor(pending PendingCounter, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{
		pending:  pending,
		interval: interval,
		logger:   slog.Default(),
	}
}

// Run collects gauges every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Collect(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Collect(ctx)
		}
	}
}

func (m *Monitor) Collect(ctx context.Context) {
	n, err := m.pending.CountLivePending(ctx, time.Now())
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Warn("monitor: count pending sales", "error", err)
		}
	} else {
		pendingSales.Set(float64(n))
	}

	goroutineCount.Set(float64(runtime.NumGoroutine()))
}
