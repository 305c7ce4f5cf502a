package availability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tobiumeh/vendora-backend/internal/orders"
	"github.com/tobiumeh/vendora-backend/internal/refunds"
	"github.com/tobiumeh/vendora-backend/internal/timeline"
	"github.com/tobiumeh/vendora-backend/pkg/config"
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

// MarkInput carries a seller's report that an order cannot ship yet.
type MarkInput struct {
	OrderID  uuid.UUID
	Actor    orders.Actor
	Reason   string
	WaitDays *int
}

// RespondInput carries the buyer's decision on an availability hold.
type RespondInput struct {
	OrderID  uuid.UUID
	Actor    orders.Actor
	Response enums.BuyerWaitResponse
}

// Service runs the availability sub-flow: a seller places a hold on a
// processing order and the buyer either waits or cancels for a full refund.
// Holds whose wait window lapses without a buyer response are canceled by
// ExpireLapsedHold, driven by the worker's scheduled sweep.
type Service interface {
	MarkNotAvailable(ctx context.Context, input MarkInput) (*models.Order, error)
	RespondToAvailability(ctx context.Context, input RespondInput) (*models.Order, error)
	ExpireLapsedHold(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

type service struct {
	orders   orders.Repository
	refunds  refunds.Repository
	tx       txRunner
	outbox   outboxPublisher
	timeline timeline.Service
	cfg      config.AvailabilityConfig
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the availability service.
func NewService(ordersRepo orders.Repository, refundsRepo refunds.Repository, tx txRunner, ob outboxPublisher, tl timeline.Service, cfg config.AvailabilityConfig, logg *logger.Logger) (Service, error) {
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if refundsRepo == nil {
		return nil, fmt.Errorf("refunds repository required")
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
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.MaxWaitDays <= 0 {
		return nil, fmt.Errorf("availability max wait days must be positive")
	}
	return &service{
		orders:   ordersRepo,
		refunds:  refundsRepo,
		tx:       tx,
		outbox:   ob,
		timeline: tl,
		cfg:      cfg,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// MarkNotAvailable moves a processing order into the availability check with
// the seller's reason and optional wait estimate.
func (s *service) MarkNotAvailable(ctx context.Context, input MarkInput) (*models.Order, error) {
	if err := s.validateMarkInput(input); err != nil {
		return nil, err
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.orders.WithTx(tx)
		order, err := loadOrder(ctx, ordersRepo, input.OrderID)
		if err != nil {
			return err
		}
		if err := guardSeller(order, input.Actor); err != nil {
			return err
		}
		if order.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeTerminalState,
				fmt.Sprintf("order is %s and cannot change state", order.Status))
		}
		if order.Status != enums.OrderStatusProcessing {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "only processing orders can enter the availability check").
				WithDetails(map[string]any{"current_status": order.Status})
		}

		now := s.now().UTC()
		reason := strings.TrimSpace(input.Reason)
		updates := map[string]any{
			"status":              enums.OrderStatusAvailabilityCheck,
			"availability_reason": reason,
			"updated_at":          now,
		}
		var expiresAt *time.Time
		if input.WaitDays != nil {
			expiry := now.AddDate(0, 0, *input.WaitDays)
			expiresAt = &expiry
			updates["wait_time_days"] = *input.WaitDays
			updates["wait_time_expires_at"] = expiry
		}

		rows, err := ordersRepo.UpdateOrderCAS(ctx, order.ID, order.Version, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order was modified concurrently, retry with a fresh read")
		}

		message := fmt.Sprintf("Item not currently available: %s", reason)
		if input.WaitDays != nil {
			message = fmt.Sprintf("%s Estimated wait: %d days.", message, *input.WaitDays)
		}
		if err := s.timeline.Record(ctx, tx, order.ID, enums.TimelineSenderSeller, message); err != nil {
			return err
		}

		actor := &outbox.ActorRef{UserID: input.Actor.UserID, Role: string(input.Actor.Role)}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStateChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         actor,
			Data: payloads.OrderStateChangedEvent{
				OrderID:    order.ID,
				BuyerID:    order.BuyerID,
				SellerID:   order.SellerID,
				FromStatus: order.Status,
				ToStatus:   enums.OrderStatusAvailabilityCheck,
				Actor:      input.Actor.Role,
			},
		}); err != nil {
			return err
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAvailabilityHoldPlaced,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         actor,
			Data: payloads.AvailabilityHoldPlacedEvent{
				OrderID:      order.ID,
				BuyerID:      order.BuyerID,
				SellerID:     order.SellerID,
				Reason:       reason,
				WaitTimeDays: input.WaitDays,
				ExpiresAt:    expiresAt,
			},
		}); err != nil {
			return err
		}

		updated, err = ordersRepo.FindOrder(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RespondToAvailability records the buyer's decision. Accepting keeps the
// order in the availability check until the seller ships; cancelling closes
// the order and books a full refund of the remaining budget in the same
// transaction.
func (s *service) RespondToAvailability(ctx context.Context, input RespondInput) (*models.Order, error) {
	if err := validateRespondInput(input); err != nil {
		return nil, err
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.orders.WithTx(tx)
		order, err := loadOrder(ctx, ordersRepo, input.OrderID)
		if err != nil {
			return err
		}
		if err := guardBuyer(order, input.Actor); err != nil {
			return err
		}
		if order.Status != enums.OrderStatusAvailabilityCheck {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting an availability response").
				WithDetails(map[string]any{"current_status": order.Status})
		}

		now := s.now().UTC()
		if input.Response == enums.BuyerWaitResponseAccepted {
			if holdLapsed(order, now) {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "availability wait window has lapsed; the order will be canceled and refunded").
					WithDetails(map[string]any{"wait_time_expires_at": order.WaitTimeExpiresAt})
			}
			updated, err = s.acceptWait(ctx, tx, ordersRepo, order, input, now)
			return err
		}
		waitResponse := enums.BuyerWaitResponseCancelled
		updated, err = s.cancelHold(ctx, tx, ordersRepo, order, now, holdCancellation{
			reason:          "Buyer declined to wait for the item.",
			timelineSender:  enums.TimelineSenderBuyer,
			timelineMessage: "Buyer declined to wait. Order canceled and refund initiated.",
			waitResponse:    &waitResponse,
			actor:           input.Actor,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ExpireLapsedHold cancels an availability hold whose wait window passed with
// no buyer response, booking the full remaining refund exactly as a buyer
// cancellation would. Holds the buyer already answered, or that left the
// availability check some other way, are skipped without error.
func (s *service) ExpireLapsedHold(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.orders.WithTx(tx)
		order, err := loadOrder(ctx, ordersRepo, orderID)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		if order.Status != enums.OrderStatusAvailabilityCheck || order.BuyerWaitResponse != nil || !holdLapsed(order, now) {
			updated = order
			return nil
		}

		days := 0
		if order.WaitTimeDays != nil {
			days = *order.WaitTimeDays
		}
		updated, err = s.cancelHold(ctx, tx, ordersRepo, order, now, holdCancellation{
			reason:          fmt.Sprintf("Availability wait window of %d days lapsed without a response.", days),
			timelineSender:  enums.TimelineSenderSystem,
			timelineMessage: "The wait window ended without a response. Order canceled and refund initiated.",
			actor:           orders.Actor{Role: enums.ActorRoleSystem},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func holdLapsed(order *models.Order, now time.Time) bool {
	return order.WaitTimeExpiresAt != nil && !order.WaitTimeExpiresAt.After(now)
}

func (s *service) acceptWait(ctx context.Context, tx *gorm.DB, ordersRepo orders.Repository, order *models.Order, input RespondInput, now time.Time) (*models.Order, error) {
	rows, err := ordersRepo.UpdateOrderCAS(ctx, order.ID, order.Version, map[string]any{
		"buyer_wait_response": enums.BuyerWaitResponseAccepted,
		"updated_at":          now,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record wait response")
	}
	if rows == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order was modified concurrently, retry with a fresh read")
	}

	if err := s.timeline.Record(ctx, tx, order.ID, enums.TimelineSenderBuyer, "Buyer agreed to wait for the item."); err != nil {
		return nil, err
	}
	return ordersRepo.FindOrder(ctx, order.ID)
}

// holdCancellation carries the variant pieces of a hold cancellation: who
// triggered it, what the timeline says, and whether a buyer response gets
// recorded (expiry leaves it null).
type holdCancellation struct {
	reason          string
	timelineSender  enums.TimelineSender
	timelineMessage string
	waitResponse    *enums.BuyerWaitResponse
	actor           orders.Actor
}

func (s *service) cancelHold(ctx context.Context, tx *gorm.DB, ordersRepo orders.Repository, order *models.Order, now time.Time, cancel holdCancellation) (*models.Order, error) {
	if order.PaymentReference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeMissingPaymentReference, "order has no payment reference to refund against")
	}

	refundable := order.TotalCents - order.RefundSummaries.CapConsumedCents()

	var refund *models.Refund
	if refundable > 0 {
		var err error
		refund, err = s.refunds.WithTx(tx).CreateRefund(ctx, &models.Refund{
			ID:          uuid.New(),
			OrderID:     order.ID,
			AmountCents: refundable,
			Currency:    order.Currency,
			Reason:      cancel.reason,
			Method:      enums.RefundMethodOriginalPayment,
			Status:      enums.RefundStatePending,
			ProcessedBy: enums.ActorRoleSystem,
		})
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create refund")
		}
	}

	summaries := order.RefundSummaries
	if refund != nil {
		summaries = append(summaries, types.RefundSummary{
			RefundID:    refund.ID,
			AmountCents: refund.AmountCents,
			Status:      refund.Status,
			Method:      refund.Method,
			Reason:      refund.Reason,
			ProcessedBy: refund.ProcessedBy,
			CreatedAt:   now,
		})
	}

	updates := map[string]any{
		"status":              enums.OrderStatusCanceled,
		"canceled_at":         now,
		"cancellation_reason": cancel.reason,
		"refund_summaries":    summaries,
		"refund_status":       enums.RefundStatusFull,
		"updated_at":          now,
	}
	if cancel.waitResponse != nil {
		updates["buyer_wait_response"] = *cancel.waitResponse
	}

	rows, err := ordersRepo.UpdateOrderCAS(ctx, order.ID, order.Version, updates)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
	}
	if rows == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order was modified concurrently, retry with a fresh read")
	}

	if err := s.timeline.Record(ctx, tx, order.ID, cancel.timelineSender, cancel.timelineMessage); err != nil {
		return nil, err
	}

	actor := &outbox.ActorRef{UserID: cancel.actor.UserID, Role: string(cancel.actor.Role)}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStateChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Actor:         actor,
		Data: payloads.OrderStateChangedEvent{
			OrderID:    order.ID,
			BuyerID:    order.BuyerID,
			SellerID:   order.SellerID,
			FromStatus: enums.OrderStatusAvailabilityCheck,
			ToStatus:   enums.OrderStatusCanceled,
			Actor:      cancel.actor.Role,
		},
	}); err != nil {
		return nil, err
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCanceled,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Actor:         actor,
		Data: payloads.OrderCanceledEvent{
			OrderID:    order.ID,
			BuyerID:    order.BuyerID,
			SellerID:   order.SellerID,
			CanceledAt: now,
			Reason:     cancel.reason,
		},
	}); err != nil {
		return nil, err
	}
	if refund != nil {
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRefundRequested,
			AggregateType: enums.AggregateRefund,
			AggregateID:   refund.ID,
			Version:       1,
			Actor:         actor,
			Data: payloads.RefundRequestedEvent{
				RefundID:    refund.ID,
				OrderID:     order.ID,
				BuyerID:     order.BuyerID,
				AmountCents: refund.AmountCents,
				Method:      refund.Method,
				Reason:      refund.Reason,
			},
		}); err != nil {
			return nil, err
		}
	}

	return ordersRepo.FindOrder(ctx, order.ID)
}

func (s *service) validateMarkInput(input MarkInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if strings.TrimSpace(input.Reason) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "availability reason required")
	}
	if input.WaitDays != nil && (*input.WaitDays < 1 || *input.WaitDays > s.cfg.MaxWaitDays) {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("wait time must be between 1 and %d days", s.cfg.MaxWaitDays))
	}
	if input.Actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return nil
}

func validateRespondInput(input RespondInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Response.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "response must be accepted or cancelled")
	}
	if input.Actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return nil
}

func loadOrder(ctx context.Context, repo orders.Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindOrder(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func guardSeller(order *models.Order, actor orders.Actor) error {
	switch actor.Role {
	case enums.ActorRoleAdmin, enums.ActorRoleSystem:
		return nil
	case enums.ActorRoleSeller:
		if order.SellerID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to seller")
		}
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeForbidden, "only the seller or an admin can flag availability")
	}
}

func guardBuyer(order *models.Order, actor orders.Actor) error {
	switch actor.Role {
	case enums.ActorRoleAdmin, enums.ActorRoleSystem:
		return nil
	case enums.ActorRoleBuyer:
		if order.BuyerID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to buyer")
		}
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer or an admin can respond to an availability hold")
	}
}
