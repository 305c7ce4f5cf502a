package gatewaywebhook

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"

	"github.com/tobiumeh/vendora-backend/internal/orders"
	"github.com/tobiumeh/vendora-backend/internal/payments"
	"github.com/tobiumeh/vendora-backend/internal/refunds"
	"github.com/tobiumeh/vendora-backend/pkg/db/models"
	"github.com/tobiumeh/vendora-backend/pkg/enums"
	pkgerrors "github.com/tobiumeh/vendora-backend/pkg/errors"
	"github.com/tobiumeh/vendora-backend/pkg/logger"
)

type stubPayments struct {
	settled []string
	err     error
}

func (s *stubPayments) VerifyAndCreateOrder(ctx context.Context, input payments.VerifyInput) (*payments.VerifyResult, error) {
	return nil, nil
}

func (s *stubPayments) SettlePayment(ctx context.Context, reference string) error {
	if s.err != nil {
		return s.err
	}
	s.settled = append(s.settled, reference)
	return nil
}

type refundUpdate struct {
	refundID uuid.UUID
	actor    orders.Actor
	status   enums.RefundState
	note     *string
}

type stubRefunds struct {
	updates []refundUpdate
	err     error
}

func (s *stubRefunds) IssueRefund(ctx context.Context, input refunds.IssueRefundInput) (*models.Refund, error) {
	return nil, nil
}

func (s *stubRefunds) UpdateRefundStatus(ctx context.Context, refundID uuid.UUID, actor orders.Actor, status enums.RefundState, failureNote *string) (*models.Refund, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.updates = append(s.updates, refundUpdate{refundID: refundID, actor: actor, status: status, note: failureNote})
	return &models.Refund{ID: refundID, Status: status}, nil
}

func (s *stubRefunds) ListForOrder(ctx context.Context, orderID uuid.UUID, actor orders.Actor) ([]models.Refund, error) {
	return nil, nil
}

func newWebhookService(t *testing.T, pay *stubPayments, ref *stubRefunds) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Payments: pay,
		Refunds:  ref,
		Logger:   logger.New(logger.Options{ServiceName: "webhook-test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("webhook service: %v", err)
	}
	return svc
}

func TestHandleEventSettlesCompletedPayment(t *testing.T) {
	pay := &stubPayments{}
	svc := newWebhookService(t, pay, &stubRefunds{})

	err := svc.HandleEvent(context.Background(), &GatewayWebhookEvent{
		EventID: "evt-1",
		Type:    "payment.updated",
		Data: GatewayWebhookData{Object: GatewayWebhookObject{
			Payment: &GatewayPayment{ID: "TXN-100", Status: "COMPLETED"},
		}},
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(pay.settled) != 1 || pay.settled[0] != "TXN-100" {
		t.Fatalf("payment not settled: %v", pay.settled)
	}
}

func TestHandleEventIgnoresPendingPayment(t *testing.T) {
	pay := &stubPayments{}
	svc := newWebhookService(t, pay, &stubRefunds{})

	err := svc.HandleEvent(context.Background(), &GatewayWebhookEvent{
		Type: "payment.updated",
		Data: GatewayWebhookData{Object: GatewayWebhookObject{
			Payment: &GatewayPayment{ID: "TXN-100", Status: "APPROVED"},
		}},
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(pay.settled) != 0 {
		t.Fatalf("pending payment should not settle")
	}
}

func TestHandleEventTreatsUnknownPaymentAsNoop(t *testing.T) {
	pay := &stubPayments{err: pkgerrors.New(pkgerrors.CodeNotFound, "no payment recorded for reference")}
	svc := newWebhookService(t, pay, &stubRefunds{})

	err := svc.HandleEvent(context.Background(), &GatewayWebhookEvent{
		Type: "payment.updated",
		Data: GatewayWebhookData{Object: GatewayWebhookObject{
			Payment: &GatewayPayment{ID: "TXN-404", Status: "COMPLETED"},
		}},
	})
	if err != nil {
		t.Fatalf("unknown payments are acked: %v", err)
	}
}

func TestHandleEventResolvesRefund(t *testing.T) {
	ref := &stubRefunds{}
	svc := newWebhookService(t, &stubPayments{}, ref)
	refundID := uuid.New()

	err := svc.HandleEvent(context.Background(), &GatewayWebhookEvent{
		Type: "refund.updated",
		Data: GatewayWebhookData{Object: GatewayWebhookObject{
			Refund: &GatewayRefund{ID: "gw-ref-1", Status: "COMPLETED", ReferenceID: refundID.String()},
		}},
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(ref.updates) != 1 {
		t.Fatalf("refund not updated")
	}
	update := ref.updates[0]
	if update.refundID != refundID || update.status != enums.RefundStateCompleted {
		t.Fatalf("unexpected update %+v", update)
	}
	if update.actor.Role != enums.ActorRoleSystem {
		t.Fatalf("webhook refund updates run as system, got %s", update.actor.Role)
	}
}

func TestHandleEventFailedRefundCarriesNote(t *testing.T) {
	ref := &stubRefunds{}
	svc := newWebhookService(t, &stubPayments{}, ref)
	refundID := uuid.New()

	err := svc.HandleEvent(context.Background(), &GatewayWebhookEvent{
		Type: "refund.updated",
		Data: GatewayWebhookData{Object: GatewayWebhookObject{
			Refund: &GatewayRefund{ID: "gw-ref-1", Status: "REJECTED", ReferenceID: refundID.String(), Reason: "card closed"},
		}},
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	update := ref.updates[0]
	if update.status != enums.RefundStateFailed {
		t.Fatalf("unexpected status %s", update.status)
	}
	if update.note == nil || *update.note != "card closed" {
		t.Fatalf("failure note not carried")
	}
}

func TestHandleEventIgnoresForeignRefund(t *testing.T) {
	ref := &stubRefunds{}
	svc := newWebhookService(t, &stubPayments{}, ref)

	err := svc.HandleEvent(context.Background(), &GatewayWebhookEvent{
		Type: "refund.updated",
		Data: GatewayWebhookData{Object: GatewayWebhookObject{
			Refund: &GatewayRefund{ID: "gw-ref-2", Status: "COMPLETED", ReferenceID: "not-a-uuid"},
		}},
	})
	if err != nil {
		t.Fatalf("foreign refunds are acked: %v", err)
	}
	if len(ref.updates) != 0 {
		t.Fatalf("foreign refund should not update anything")
	}
}

func TestHandleEventAcksResolvedRefundReplay(t *testing.T) {
	ref := &stubRefunds{err: pkgerrors.New(pkgerrors.CodeStateConflict, "refund is already completed")}
	svc := newWebhookService(t, &stubPayments{}, ref)

	err := svc.HandleEvent(context.Background(), &GatewayWebhookEvent{
		Type: "refund.updated",
		Data: GatewayWebhookData{Object: GatewayWebhookObject{
			Refund: &GatewayRefund{ID: "gw-ref-3", Status: "COMPLETED", ReferenceID: uuid.NewString()},
		}},
	})
	if err != nil {
		t.Fatalf("replays are acked: %v", err)
	}
}

func TestHandleEventUnknownTypeIsAcked(t *testing.T) {
	svc := newWebhookService(t, &stubPayments{}, &stubRefunds{})
	if err := svc.HandleEvent(context.Background(), &GatewayWebhookEvent{Type: "dispute.created"}); err != nil {
		t.Fatalf("unknown types are acked: %v", err)
	}
}
