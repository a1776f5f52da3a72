package security

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

type RateLimiter struct {
	redis  redis.Cmdable
	limit  int64
	window time.Duration
	logger *slog.Logger
}

// NewRateLimiter allows limit requests per key per window. A nil client or a
// non-positive limit disables limiting.
func NewRateLimiter(redisClient redis.Cmdable, limit int, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		redis:  redisClient,
		limit:  int64(limit),
		window: window,
		logger: slog.Default(),
	}
}

// Allow counts one request for key in the current window. The counter and
// its expiry are set in one MULTI so a key can never outlive its window.
// Redis failures let the request through.
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if r.redis == nil || r.limit <= 0 {
		return true, nil
	}

	var incr *redis.IntCmd
	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, r.window)
		return nil
	})
	if err != nil {
		return true, fmt.Errorf("Allow: %w", err)
	}
	return incr.Val() <= r.limit, nil
}

// Limit is route middleware limiting each client IP on the named route.
func (r *RateLimiter) Limit(route string) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		code, msg := r.check(e.Request.Context(), route, e.RealIP(), e.Request.UserAgent())
		if code != 0 {
			return e.JSON(code, map[string]string{"error": msg})
		}
		return e.Next()
	}
}

// check returns a non-zero status when the request must be rejected.
func (r *RateLimiter) check(ctx context.Context, route, ip, userAgent string) (int, string) {
	if isSuspiciousUserAgent(userAgent) {
		return http.StatusForbidden, "Access denied"
	}

	ok, err := r.Allow(ctx, fmt.Sprintf("ratelimit:%s:%s", route, ip))
	if err != nil {
		r.logger.Warn("Rate limiter unavailable", "route", route, "ip", ip, "error", err)
	}
	if !ok {
		return http.StatusTooManyRequests, "Rate limit exceeded. Please try again later."
	}
	return 0, ""
}

func isSuspiciousUserAgent(ua string) bool {
	ua = strings.ToLower(ua)
	for _, pattern := range []string{"bot", "crawler", "spider", "scraper"} {
		if strings.Contains(ua, pattern) {
			return true
		}
	}
	return false
}
