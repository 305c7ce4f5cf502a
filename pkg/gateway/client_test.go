package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	sq "github.com/square/square-go-sdk"
	sqcore "github.com/square/square-go-sdk/core"

	pkgerrors "github.com/tobiumeh/vendora-backend/pkg/errors"
)

func TestTransactionSucceeded(t *testing.T) {
	if (&Transaction{Status: "COMPLETED"}).Succeeded() != true {
		t.Fatalf("completed payment should report success")
	}
	for _, status := range []string{"PENDING", "FAILED", "CANCELED", ""} {
		if (&Transaction{Status: status}).Succeeded() {
			t.Fatalf("status %q should not report success", status)
		}
	}
	var nilTx *Transaction
	if nilTx.Succeeded() {
		t.Fatalf("nil transaction should not report success")
	}
}

func TestNewIdempotencyKey(t *testing.T) {
	c := &Client{}
	if got := c.NewIdempotencyKey("checkout"); !strings.HasPrefix(got, "checkout-") {
		t.Fatalf("generated idempotency key %q missing prefix", got)
	}
	if got := c.NewIdempotencyKey(" "); !strings.HasPrefix(got, "vnd-") {
		t.Fatalf("blank prefix should fall back to namespace, got %q", got)
	}
}

func TestRedact(t *testing.T) {
	c := &Client{}
	if out := c.redact("payment_token", "abc123"); out != "[REDACTED]" {
		t.Fatalf("expected redacted value, got %v", out)
	}
	if v := c.redact("status", "ok"); v != "ok" {
		t.Fatalf("unexpected redaction for safe key")
	}
}

func TestDomainCodeForStatus(t *testing.T) {
	tests := []struct {
		status int
		code   pkgerrors.Code
	}{
		{http.StatusUnauthorized, pkgerrors.CodeUnauthorized},
		{http.StatusForbidden, pkgerrors.CodeForbidden},
		{http.StatusNotFound, pkgerrors.CodeNotFound},
		{http.StatusConflict, pkgerrors.CodeConflict},
		{http.StatusTooManyRequests, pkgerrors.CodeRateLimit},
		{http.StatusBadRequest, pkgerrors.CodeValidation},
		{http.StatusUnprocessableEntity, pkgerrors.CodeStateConflict},
		{http.StatusInternalServerError, pkgerrors.CodeGateway},
	}
	for _, tt := range tests {
		if got := domainCodeForStatus(tt.status); got != tt.code {
			t.Fatalf("status %d expected %s got %s", tt.status, tt.code, got)
		}
	}
}

func TestMapGatewayError(t *testing.T) {
	c := &Client{}
	table := []struct {
		name     string
		status   int
		payload  string
		wantCode pkgerrors.Code
	}{
		{
			name:     "authentication error",
			status:   http.StatusUnauthorized,
			payload:  `{"errors":[{"category":"AUTHENTICATION_ERROR","code":"UNAUTHORIZED"}]}`,
			wantCode: pkgerrors.CodeUnauthorized,
		},
		{
			name:     "idempotency key reused",
			status:   http.StatusConflict,
			payload:  `{"errors":[{"category":"API_ERROR","code":"IDEMPOTENCY_KEY_REUSED"}]}`,
			wantCode: pkgerrors.CodeIdempotency,
		},
		{
			name:     "server error",
			status:   http.StatusBadGateway,
			payload:  `{"errors":[]}`,
			wantCode: pkgerrors.CodeGateway,
		},
	}
	for _, tt := range table {
		err := sqcore.NewAPIError(tt.status, errors.New(tt.payload))
		mapped := c.mapGatewayError(err, "operation")
		if mapped == nil {
			t.Fatalf("%s: expected error", tt.name)
		}
		typed := pkgerrors.As(mapped)
		if typed == nil {
			t.Fatalf("%s: result is not pkgerror", tt.name)
		}
		if typed.Code() != tt.wantCode {
			t.Fatalf("%s: expected code %s, got %s", tt.name, tt.wantCode, typed.Code())
		}
	}
}

func TestMapGatewayErrorTimeout(t *testing.T) {
	c := &Client{}
	mapped := c.mapGatewayError(context.DeadlineExceeded, "get payment")
	typed := pkgerrors.As(mapped)
	if typed == nil || typed.Code() != pkgerrors.CodeGateway {
		t.Fatalf("deadline should map to gateway error, got %v", mapped)
	}
}

func TestExtractGatewayErrors(t *testing.T) {
	c := &Client{}
	payload := `{"errors":[{"category":"API_ERROR","code":"BAD_REQUEST","detail":"oops"}]}`
	apiErr := sqcore.NewAPIError(http.StatusBadRequest, errors.New(payload))
	got := c.extractGatewayErrors(apiErr)
	if len(got) != 1 {
		t.Fatalf("expected 1 error, got %d", len(got))
	}
	if got[0].GetCode() != sq.ErrorCodeBadRequest {
		t.Fatalf("unexpected error code %s", got[0].GetCode())
	}
}
