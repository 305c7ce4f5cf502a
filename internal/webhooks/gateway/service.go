package gatewaywebhook

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/tobiumeh/vendora-backend/internal/orders"
	"github.com/tobiumeh/vendora-backend/internal/payments"
	"github.com/tobiumeh/vendora-backend/internal/refunds"
	"github.com/tobiumeh/vendora-backend/pkg/enums"
	pkgerrors "github.com/tobiumeh/vendora-backend/pkg/errors"
	"github.com/tobiumeh/vendora-backend/pkg/logger"
)

type ServiceParams struct {
	Payments payments.Service
	Refunds  refunds.Service
	Logger   *logger.Logger
}

// Service applies gateway webhook events to the payment ledger and refund
// records. Events it does not recognize are acknowledged and dropped.
type Service struct {
	payments payments.Service
	refunds  refunds.Service
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments service required")
	}
	if params.Refunds == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "refunds service required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		payments: params.Payments,
		refunds:  params.Refunds,
		logg:     params.Logger,
	}, nil
}

// GatewayWebhookEvent is the envelope the gateway posts to our webhook URL.
type GatewayWebhookEvent struct {
	EventID string             `json:"event_id"`
	Type    string             `json:"type"`
	Data    GatewayWebhookData `json:"data"`
}

type GatewayWebhookData struct {
	Type   string               `json:"type"`
	ID     string               `json:"id"`
	Object GatewayWebhookObject `json:"object"`
}

type GatewayWebhookObject struct {
	Payment *GatewayPayment `json:"payment,omitempty"`
	Refund  *GatewayRefund  `json:"refund,omitempty"`
}

// GatewayPayment is the slice of the gateway payment object we act on.
type GatewayPayment struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// GatewayRefund carries the gateway's view of a refund. ReferenceID holds our
// refund id, set when the refund was submitted to the gateway.
type GatewayRefund struct {
	ID          string `json:"id"`
	PaymentID   string `json:"payment_id"`
	Status      string `json:"status"`
	ReferenceID string `json:"reference_id"`
	Reason      string `json:"reason,omitempty"`
}

// HandleEvent routes a verified webhook event.
func (s *Service) HandleEvent(ctx context.Context, event *GatewayWebhookEvent) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "gateway event required")
	}

	switch strings.ToLower(event.Type) {
	case "payment.updated":
		return s.handlePayment(ctx, event.Data.Object.Payment)
	case "refund.created", "refund.updated":
		return s.handleRefund(ctx, event.Data.Object.Refund)
	default:
		s.logg.Info(s.logg.WithField(ctx, "event_type", event.Type), "gateway event not handled")
		return nil
	}
}

func (s *Service) handlePayment(ctx context.Context, payment *GatewayPayment) error {
	if payment == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment payload missing")
	}
	if payment.Status != "COMPLETED" {
		s.logg.Info(s.logg.WithField(ctx, "gateway_status", payment.Status), "payment not settled yet")
		return nil
	}
	err := s.payments.SettlePayment(ctx, payment.ID)
	if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
		// Charges verified outside checkout have no ledger entry here.
		s.logg.Info(s.logg.WithField(ctx, "payment_reference", payment.ID), "settlement for unknown payment ignored")
		return nil
	}
	return err
}

func (s *Service) handleRefund(ctx context.Context, refund *GatewayRefund) error {
	if refund == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "refund payload missing")
	}

	var status enums.RefundState
	switch refund.Status {
	case "COMPLETED":
		status = enums.RefundStateCompleted
	case "FAILED", "REJECTED":
		status = enums.RefundStateFailed
	default:
		s.logg.Info(s.logg.WithField(ctx, "gateway_status", refund.Status), "refund still in flight")
		return nil
	}

	refundID, err := uuid.Parse(refund.ReferenceID)
	if err != nil {
		// Refunds issued outside this system have no row to update.
		s.logg.Info(s.logg.WithField(ctx, "gateway_refund_id", refund.ID), "refund without reference id ignored")
		return nil
	}

	var failureNote *string
	if status == enums.RefundStateFailed {
		note := refund.Reason
		if note == "" {
			note = "gateway reported " + refund.Status
		}
		failureNote = &note
	}

	_, err = s.refunds.UpdateRefundStatus(ctx, refundID, orders.SystemActor(), status, failureNote)
	if typed := pkgerrors.As(err); typed != nil {
		switch typed.Code() {
		case pkgerrors.CodeNotFound:
			s.logg.Info(s.logg.WithField(ctx, "refund_id", refundID.String()), "settlement for unknown refund ignored")
			return nil
		case pkgerrors.CodeStateConflict:
			// Delivery retries after the refund already resolved.
			s.logg.Info(s.logg.WithField(ctx, "refund_id", refundID.String()), "refund already resolved")
			return nil
		}
	}
	return err
}
