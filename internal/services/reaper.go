package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"ticket-sales/internal/store"
	"ticket-sales/monitoring"
	"ticket-sales/utils"
)

const reaperLeaseKey = "reaper:lease"

// Reaper moves never-paid sales whose hold window has passed out of the
// pending pool, which releases their inventory.
type Reaper struct {
	store    *store.Store
	redis    redis.Cmdable
	leaseTTL time.Duration
	token    func() (string, error)
	logger   *slog.Logger
	now      func() time.Time
}

// NewReaper builds a reaper. With a non-nil redis client scheduled sweeps
// take a short lease so only one instance sweeps per tick.
func NewReaper(st *store.Store, redisClient redis.Cmdable) *Reaper {
	return &Reaper{
		store:    st,
		redis:    redisClient,
		leaseTTL: 30 * time.Second,
		token:    func() (string, error) { return utils.GenerateCode(8) },
		logger:   slog.Default(),
		now:      time.Now,
	}
}

// SweepExpired expires stale sales and returns how many it moved. Running it
// again is a no-op for sales it already handled, and it never touches a sale
// that is already paid.
func (r *Reaper) SweepExpired(ctx context.Context) (int64, error) {
	n, err := r.store.ExpireStale(ctx, r.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.logger.Info("Expired stale reservations", "count", n)
	}
	monitoring.TrackExpiredSales(n)
	return n, nil
}

// CountExpired reports how many sales the next sweep would expire.
func (r *Reaper) CountExpired(ctx context.Context) (int64, error) {
	return r.store.CountExpirable(ctx, r.now())
}

// RunScheduled is the cron entry point. It skips the tick when another
// instance holds the lease.
func (r *Reaper) RunScheduled(ctx context.Context) {
	ok, err := r.acquireLease(ctx)
	if err != nil {
		r.logger.Warn("Reaper lease unavailable, sweeping anyway", "error", err)
	} else if !ok {
		return
	}

	if _, err := r.SweepExpired(ctx); err != nil {
		r.logger.Error("Failed to sweep expired reservations", "error", err)
	}
}

func (r *Reaper) acquireLease(ctx context.Context) (bool, error) {
	if r.redis == nil {
		return true, nil
	}
	token, err := r.token()
	if err != nil {
		return false, err
	}
	return r.redis.SetNX(ctx, reaperLeaseKey, token, r.leaseTTL).Result()
}
