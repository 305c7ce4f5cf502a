package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestRateLimiterPoolIsolatesActors(t *testing.T) {
	pool := newRateLimiterPool(rate.Limit(1), 1, time.Minute)

	if !pool.get("user-a").Allow() {
		t.Fatalf("expected first request for user-a to pass")
	}
	if pool.get("user-a").Allow() {
		t.Fatalf("expected second burst request for user-a to be limited")
	}
	if !pool.get("user-b").Allow() {
		t.Fatalf("expected user-b to have an independent bucket")
	}
}

func TestRateLimitMiddlewareReturns429(t *testing.T) {
	mw := RateLimit()
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	var last int
	for i := 0; i < rateLimitBurst+5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
		req = req.WithContext(WithUserID(req.Context(), "user-1"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		last = rec.Code
	}

	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst exhausted got %d", last)
	}
}
