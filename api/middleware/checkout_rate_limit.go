package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tobiumeh/vendora-backend/api/responses"
	"github.com/tobiumeh/vendora-backend/pkg/config"
	pkgerrors "github.com/tobiumeh/vendora-backend/pkg/errors"
	"github.com/tobiumeh/vendora-backend/pkg/logger"
)

// CheckoutRateLimit throttles checkout verification with redis counters keyed
// per authenticated user and per client IP. Payment verification hits the
// gateway, so it gets a tighter budget than the general request limiter.
func CheckoutRateLimit(cfg config.RateLimitConfig, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if cfg.CheckoutWindow <= 0 || store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if cfg.CheckoutUserLimit > 0 {
				if userID := UserIDFromContext(ctx); userID != "" {
					key := fmt.Sprintf("rl:user:checkout:%s", userID)
					allowed, count, err := allow(ctx, store, key, cfg.CheckoutWindow, int64(cfg.CheckoutUserLimit))
					if err != nil {
						responses.WriteError(ctx, nil, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
						return
					}
					if !allowed {
						blockCheckout(ctx, logg, w, "user", count, cfg.CheckoutUserLimit)
						return
					}
				}
			}

			if cfg.CheckoutIPLimit > 0 {
				if ip := clientIP(r); ip != "" {
					key := fmt.Sprintf("rl:ip:checkout:%s", ip)
					allowed, count, err := allow(ctx, store, key, cfg.CheckoutWindow, int64(cfg.CheckoutIPLimit))
					if err != nil {
						responses.WriteError(ctx, nil, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
						return
					}
					if !allowed {
						blockCheckout(ctx, logg, w, "ip", count, cfg.CheckoutIPLimit)
						return
					}
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func blockCheckout(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, scope string, count int64, limit int) {
	if logg != nil {
		logCtx := logg.WithFields(ctx, map[string]any{
			"scope":    scope,
			"attempts": count,
			"limit":    limit,
		})
		logg.Warn(logCtx, "checkout.rate_limit.blocked")
	}
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
}
