package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tobiumeh/vendora-backend/api/responses"
	pkgerrors "github.com/tobiumeh/vendora-backend/pkg/errors"
)

const (
	rateLimitPerSecond = 20
	rateLimitBurst     = 40
	limiterIdleTTL     = 10 * time.Minute
)

type actorLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiterPool struct {
	mu      sync.Mutex
	actors  map[string]*actorLimiter
	swept   time.Time
	perSec  rate.Limit
	burst   int
	idleTTL time.Duration
}

func newRateLimiterPool(perSec rate.Limit, burst int, idleTTL time.Duration) *rateLimiterPool {
	return &rateLimiterPool{
		actors:  make(map[string]*actorLimiter),
		swept:   time.Now(),
		perSec:  perSec,
		burst:   burst,
		idleTTL: idleTTL,
	}
}

func (p *rateLimiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if now.Sub(p.swept) > p.idleTTL {
		for k, entry := range p.actors {
			if now.Sub(entry.lastSeen) > p.idleTTL {
				delete(p.actors, k)
			}
		}
		p.swept = now
	}

	entry, ok := p.actors[key]
	if !ok {
		entry = &actorLimiter{limiter: rate.NewLimiter(p.perSec, p.burst)}
		p.actors[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

// RateLimit throttles authenticated traffic per user. It sits behind Auth so
// the user id is already in the request context; unauthenticated requests
// fall back to a shared bucket.
func RateLimit() func(http.Handler) http.Handler {
	pool := newRateLimiterPool(rateLimitPerSecond, rateLimitBurst, limiterIdleTTL)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := UserIDFromContext(r.Context())
			if key == "" {
				key = "anonymous"
			}

			if !pool.get(key).Allow() {
				responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many requests"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
