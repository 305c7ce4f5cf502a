package refunds

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	auditledger "github.com/tobiumeh/vendora-backend/internal/ledger"
	"github.com/tobiumeh/vendora-backend/internal/orders"
	"github.com/tobiumeh/vendora-backend/internal/timeline"
	"github.com/tobiumeh/vendora-backend/pkg/db/models"
	"github.com/tobiumeh/vendora-backend/pkg/enums"
	pkgerrors "github.com/tobiumeh/vendora-backend/pkg/errors"
	"github.com/tobiumeh/vendora-backend/pkg/logger"
	"github.com/tobiumeh/vendora-backend/pkg/outbox"
	"github.com/tobiumeh/vendora-backend/pkg/outbox/payloads"
	"github.com/tobiumeh/vendora-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type auditRecorder interface {
	Record(ctx context.Context, tx *gorm.DB, input auditledger.RecordEventInput) (*models.LedgerEvent, error)
}

// IssueRefundInput carries a seller or admin refund request.
type IssueRefundInput struct {
	OrderID     uuid.UUID
	Actor       orders.Actor
	AmountCents int64
	Reason      string
	Method      enums.RefundMethod
}

// Service manages the refund ledger and the order-side refund mirror.
type Service interface {
	IssueRefund(ctx context.Context, input IssueRefundInput) (*models.Refund, error)
	UpdateRefundStatus(ctx context.Context, refundID uuid.UUID, actor orders.Actor, status enums.RefundState, failureNote *string) (*models.Refund, error)
	ListForOrder(ctx context.Context, orderID uuid.UUID, actor orders.Actor) ([]models.Refund, error)
}

type service struct {
	repo     Repository
	orders   orders.Repository
	tx       txRunner
	outbox   outboxPublisher
	timeline timeline.Service
	audit    auditRecorder
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the refund service.
func NewService(repo Repository, ordersRepo orders.Repository, tx txRunner, ob outboxPublisher, tl timeline.Service, audit auditRecorder, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("refunds repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ob == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if tl == nil {
		return nil, fmt.Errorf("timeline service required")
	}
	if audit == nil {
		return nil, fmt.Errorf("audit ledger required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		orders:   ordersRepo,
		tx:       tx,
		outbox:   ob,
		timeline: tl,
		audit:    audit,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// IssueRefund records a pending refund against an order. The ledger row, the
// order-side mirror and the outbox event commit in one transaction, so the sum
// of pending and completed refunds never exceeds the order total.
func (s *service) IssueRefund(ctx context.Context, input IssueRefundInput) (*models.Refund, error) {
	if err := validateIssueInput(input); err != nil {
		return nil, err
	}

	var created *models.Refund
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.orders.WithTx(tx)
		order, err := ordersRepo.FindOrder(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if err := guardRefundIssuer(order, input.Actor); err != nil {
			return err
		}
		if order.Status == enums.OrderStatusCanceled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "canceled orders are refunded through cancellation, not manually")
		}
		if input.Method == enums.RefundMethodOriginalPayment && order.PaymentReference == "" {
			return pkgerrors.New(pkgerrors.CodeMissingPaymentReference, "order has no payment reference to refund against")
		}

		consumed := order.RefundSummaries.CapConsumedCents()
		if consumed+input.AmountCents > order.TotalCents {
			return pkgerrors.New(pkgerrors.CodeValidation, "refund exceeds refundable balance").
				WithDetails(map[string]any{
					"order_total_cents":      order.TotalCents,
					"already_refunded_cents": consumed,
					"requested_cents":        input.AmountCents,
				})
		}

		now := s.now().UTC()
		refund := &models.Refund{
			ID:          uuid.New(),
			OrderID:     order.ID,
			AmountCents: input.AmountCents,
			Currency:    order.Currency,
			Reason:      input.Reason,
			Method:      input.Method,
			Status:      enums.RefundStatePending,
			ProcessedBy: input.Actor.Role,
		}
		if input.Actor.UserID != uuid.Nil {
			processorID := input.Actor.UserID
			refund.ProcessorID = &processorID
		}
		created, err = s.repo.WithTx(tx).CreateRefund(ctx, refund)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create refund")
		}

		summaries := append(order.RefundSummaries, types.RefundSummary{
			RefundID:    created.ID,
			AmountCents: created.AmountCents,
			Status:      created.Status,
			Method:      created.Method,
			Reason:      created.Reason,
			ProcessedBy: created.ProcessedBy,
			CreatedAt:   now,
		})
		if err := s.writeOrderMirror(ctx, ordersRepo, order, summaries, now); err != nil {
			return err
		}

		sender := enums.TimelineSenderSeller
		if input.Actor.Role == enums.ActorRoleAdmin {
			sender = enums.TimelineSenderSystem
		}
		message := fmt.Sprintf("Refund of %s requested: %s", formatAmount(created.AmountCents, order.Currency), created.Reason)
		if err := s.timeline.Record(ctx, tx, order.ID, sender, message); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRefundRequested,
			AggregateType: enums.AggregateRefund,
			AggregateID:   created.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.Actor.UserID, Role: string(input.Actor.Role)},
			Data: payloads.RefundRequestedEvent{
				RefundID:    created.ID,
				OrderID:     order.ID,
				BuyerID:     order.BuyerID,
				AmountCents: created.AmountCents,
				Method:      created.Method,
				Reason:      created.Reason,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateRefundStatus resolves a pending refund to completed or failed. A
// failed refund keeps its ledger row but releases its amount back to the
// order's refundable budget via the mirror.
func (s *service) UpdateRefundStatus(ctx context.Context, refundID uuid.UUID, actor orders.Actor, status enums.RefundState, failureNote *string) (*models.Refund, error) {
	if refundID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund id required")
	}
	if status != enums.RefundStateCompleted && status != enums.RefundStateFailed {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refunds resolve to completed or failed")
	}
	if actor.Role != enums.ActorRoleAdmin && actor.Role != enums.ActorRoleSystem {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins can resolve refunds")
	}

	var updated *models.Refund
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		refund, err := repo.FindRefund(ctx, refundID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "refund not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load refund")
		}
		if refund.Status != enums.RefundStatePending {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("refund is already %s", refund.Status))
		}

		ordersRepo := s.orders.WithTx(tx)
		order, err := ordersRepo.FindOrder(ctx, refund.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		now := s.now().UTC()
		updates := map[string]any{
			"status":     status,
			"updated_at": now,
		}
		if status == enums.RefundStateFailed && failureNote != nil {
			updates["failure_note"] = *failureNote
		}
		if err := repo.UpdateRefund(ctx, refund.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update refund")
		}

		summaries := make(types.RefundSummaries, len(order.RefundSummaries))
		copy(summaries, order.RefundSummaries)
		for i := range summaries {
			if summaries[i].RefundID == refund.ID {
				summaries[i].Status = status
			}
		}
		if err := s.writeOrderMirror(ctx, ordersRepo, order, summaries, now); err != nil {
			return err
		}

		var message string
		if status == enums.RefundStateCompleted {
			message = fmt.Sprintf("Refund of %s completed.", formatAmount(refund.AmountCents, refund.Currency))
		} else {
			message = fmt.Sprintf("Refund of %s failed.", formatAmount(refund.AmountCents, refund.Currency))
		}
		if err := s.timeline.Record(ctx, tx, order.ID, enums.TimelineSenderSystem, message); err != nil {
			return err
		}

		if status == enums.RefundStateCompleted {
			actorID := actor.UserID
			if _, err := s.audit.Record(ctx, tx, auditledger.RecordEventInput{
				OrderID:     order.ID,
				BuyerID:     order.BuyerID,
				SellerID:    order.SellerID,
				ActorUserID: &actorID,
				Type:        enums.LedgerEventTypeRefund,
				AmountCents: refund.AmountCents,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record refund in audit ledger")
			}
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRefundStateChanged,
			AggregateType: enums.AggregateRefund,
			AggregateID:   refund.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)},
			Data: payloads.RefundStateChangedEvent{
				RefundID: refund.ID,
				OrderID:  order.ID,
				Status:   status,
			},
		}); err != nil {
			return err
		}

		updated, err = repo.FindRefund(ctx, refund.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload refund")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) ListForOrder(ctx context.Context, orderID uuid.UUID, actor orders.Actor) ([]models.Refund, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.orders.FindOrder(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if err := guardRefundReader(order, actor); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list refunds")
	}
	return rows, nil
}

// writeOrderMirror persists the refund mirror and the derived order refund
// status. The version check keeps the mirror consistent when two refunds race.
func (s *service) writeOrderMirror(ctx context.Context, ordersRepo orders.Repository, order *models.Order, summaries types.RefundSummaries, now time.Time) error {
	rows, err := ordersRepo.UpdateOrderCAS(ctx, order.ID, order.Version, map[string]any{
		"refund_summaries": summaries,
		"refund_status":    refundStatusFor(summaries, order.TotalCents),
		"updated_at":       now,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order refund mirror")
	}
	if rows == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order was modified concurrently, retry with a fresh read")
	}
	return nil
}

func validateIssueInput(input IssueRefundInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.AmountCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}
	if input.Reason == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "refund reason required")
	}
	if !input.Method.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown refund method")
	}
	if input.Actor.Role != enums.ActorRoleSystem && input.Actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return nil
}

func guardRefundIssuer(order *models.Order, actor orders.Actor) error {
	switch actor.Role {
	case enums.ActorRoleAdmin, enums.ActorRoleSystem:
		return nil
	case enums.ActorRoleSeller:
		if order.SellerID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to seller")
		}
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeForbidden, "only the seller or an admin can issue refunds")
	}
}

func guardRefundReader(order *models.Order, actor orders.Actor) error {
	switch actor.Role {
	case enums.ActorRoleAdmin, enums.ActorRoleSystem:
		return nil
	case enums.ActorRoleSeller:
		if order.SellerID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to seller")
		}
		return nil
	case enums.ActorRoleBuyer:
		if order.BuyerID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to buyer")
		}
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeForbidden, "unknown actor role")
	}
}

// refundStatusFor derives the order-level refund status from the mirror.
func refundStatusFor(summaries types.RefundSummaries, totalCents int64) enums.RefundStatus {
	consumed := summaries.CapConsumedCents()
	switch {
	case consumed <= 0:
		return enums.RefundStatusNone
	case consumed >= totalCents:
		return enums.RefundStatusFull
	default:
		return enums.RefundStatusPartial
	}
}

func formatAmount(cents int64, currency enums.Currency) string {
	return fmt.Sprintf("%.2f %s", float64(cents)/100, currency)
}
