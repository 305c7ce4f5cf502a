package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	gatewaywebhook "github.com/tobiumeh/vendora-backend/internal/webhooks/gateway"
)

func TestGatewayWebhookSuccessAndIdempotent(t *testing.T) {
	payload := buildGatewayEvent(t, "payment.updated")
	header := signGatewayPayload(payload, "secret")
	service := &fakeGatewayWebhookService{}
	guard, err := gatewaywebhook.NewIdempotencyGuard(newInMemoryStore(), time.Minute, "gateway-webhook")
	if err != nil {
		t.Fatalf("guard setup: %v", err)
	}
	handler := GatewayWebhook(service, &fakeSigningClient{secret: "secret"}, guard, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", bytes.NewReader(payload))
	req.Header.Set("Gateway-Signature", header)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected service called once, got %d", service.calls)
	}

	req2 := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", bytes.NewReader(payload))
	req2.Header.Set("Gateway-Signature", header)
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200 on duplicate, got %d", rec2.Code)
	}
	if service.calls != 1 {
		t.Fatalf("duplicate should not increment calls, got %d", service.calls)
	}
}

func TestGatewayWebhookInvalidSignature(t *testing.T) {
	payload := buildGatewayEvent(t, "payment.updated")
	service := &fakeGatewayWebhookService{}
	guard, err := gatewaywebhook.NewIdempotencyGuard(newInMemoryStore(), time.Minute, "gateway-webhook")
	if err != nil {
		t.Fatalf("guard setup: %v", err)
	}
	handler := GatewayWebhook(service, &fakeSigningClient{secret: "secret"}, guard, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", bytes.NewReader(payload))
	req.Header.Set("Gateway-Signature", "invalid")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for invalid signature, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatalf("service should not be invoked on invalid signature")
	}
}

func TestGatewayWebhookMissingSignature(t *testing.T) {
	payload := buildGatewayEvent(t, "refund.updated")
	service := &fakeGatewayWebhookService{}
	guard, err := gatewaywebhook.NewIdempotencyGuard(newInMemoryStore(), time.Minute, "gateway-webhook")
	if err != nil {
		t.Fatalf("guard setup: %v", err)
	}
	handler := GatewayWebhook(service, &fakeSigningClient{secret: "secret"}, guard, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing signature, got %d", rec.Code)
	}
}

func TestGatewayWebhookFailureReleasesGuard(t *testing.T) {
	payload := buildGatewayEvent(t, "payment.updated")
	header := signGatewayPayload(payload, "secret")
	service := &fakeGatewayWebhookService{failFirst: true}
	guard, err := gatewaywebhook.NewIdempotencyGuard(newInMemoryStore(), time.Minute, "gateway-webhook")
	if err != nil {
		t.Fatalf("guard setup: %v", err)
	}
	handler := GatewayWebhook(service, &fakeSigningClient{secret: "secret"}, guard, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", bytes.NewReader(payload))
	req.Header.Set("Gateway-Signature", header)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code == http.StatusOK {
		t.Fatal("expected error status on first delivery")
	}

	req2 := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", bytes.NewReader(payload))
	req2.Header.Set("Gateway-Signature", header)
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected retry to succeed, got %d", rec2.Code)
	}
	if service.calls != 2 {
		t.Fatalf("expected two service calls, got %d", service.calls)
	}
}

func buildGatewayEvent(t *testing.T, eventType string) []byte {
	t.Helper()
	event := &gatewaywebhook.GatewayWebhookEvent{
		EventID: "evt_" + uuid.NewString(),
		Type:    eventType,
		Data: gatewaywebhook.GatewayWebhookData{
			Type: "payment",
			ID:   "pay_" + uuid.NewString(),
			Object: gatewaywebhook.GatewayWebhookObject{
				Payment: &gatewaywebhook.GatewayPayment{
					ID:     "pay_" + uuid.NewString(),
					Status: "COMPLETED",
				},
			},
		},
	}
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return payload
}

func signGatewayPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

type fakeGatewayWebhookService struct {
	calls     int
	failFirst bool
}

func (f *fakeGatewayWebhookService) HandleEvent(ctx context.Context, event *gatewaywebhook.GatewayWebhookEvent) error {
	f.calls++
	if f.failFirst && f.calls == 1 {
		return fmt.Errorf("downstream unavailable")
	}
	return nil
}

type fakeSigningClient struct {
	secret string
}

func (c *fakeSigningClient) SigningSecret() string {
	return c.secret
}

type inMemoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newInMemoryStore() *inMemoryStore {
	return &inMemoryStore{data: make(map[string]string)}
}

func (s *inMemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key], nil
}

func (s *inMemoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[key]; exists {
		return false, nil
	}
	s.data[key] = fmt.Sprintf("%v", value)
	return true, nil
}

func (s *inMemoryStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("vnd:idempotency:%s:%s", scope, id)
}

func (s *inMemoryStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}
