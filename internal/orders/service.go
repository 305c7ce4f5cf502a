package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tobiumeh/vendora-backend/internal/commission"
	"github.com/tobiumeh/vendora-backend/internal/timeline"
	"github.com/tobiumeh/vendora-backend/pkg/db/models"
	"github.com/tobiumeh/vendora-backend/pkg/enums"
	pkgerrors "github.com/tobiumeh/vendora-backend/pkg/errors"
	"github.com/tobiumeh/vendora-backend/pkg/logger"
	"github.com/tobiumeh/vendora-backend/pkg/outbox"
	"github.com/tobiumeh/vendora-backend/pkg/outbox/payloads"
	"github.com/tobiumeh/vendora-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type service struct {
	repo       Repository
	tx         txRunner
	outbox     outboxPublisher
	timeline   timeline.Service
	commission commission.Service
	logg       *logger.Logger
	now        func() time.Time
}

// NewService builds the order lifecycle service.
func NewService(repo Repository, tx txRunner, ob outboxPublisher, tl timeline.Service, comm commission.Service, logg *logger.Logger) (Service, error) {
	if repo == nil {
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
	if comm == nil {
		return nil, fmt.Errorf("commission service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:       repo,
		tx:         tx,
		outbox:     ob,
		timeline:   tl,
		commission: comm,
		logg:       logg,
		now:        time.Now,
	}, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if !guardOrderAccess(order, actor) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to actor")
	}
	return order, nil
}

func (s *service) ListForActor(ctx context.Context, actor Actor, params pagination.Params, filters OrderFilters) (*OrderList, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	var (
		list *OrderList
		err  error
	)
	switch actor.Role {
	case enums.ActorRoleBuyer:
		list, err = s.repo.ListBuyerOrders(ctx, actor.UserID, params, filters)
	case enums.ActorRoleSeller:
		list, err = s.repo.ListSellerOrders(ctx, actor.UserID, params, filters)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order lists are scoped to buyers and sellers")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}

// Transition applies one edge of the order state machine. The status write,
// timeline entry and outbox events commit in one transaction; the version
// check rejects concurrent transitions on the same order.
func (s *service) Transition(ctx context.Context, input TransitionInput) (*models.Order, error) {
	if err := validateTransitionInput(input); err != nil {
		return nil, err
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrder(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		if order.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeTerminalState,
				fmt.Sprintf("order is %s and cannot change state", order.Status)).
				WithDetails(map[string]any{
					"current_status":   order.Status,
					"requested_status": input.Target,
				})
		}
		if !canTransition(order.Status, input.Target) {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition,
				fmt.Sprintf("cannot move order from %s to %s", order.Status, input.Target)).
				WithDetails(map[string]any{
					"current_status":   order.Status,
					"requested_status": input.Target,
				})
		}
		if err := checkTransitionAuthz(order, input.Target, input.Actor); err != nil {
			return err
		}

		now := s.now().UTC()
		updates := s.buildTransitionUpdates(order, input, now)

		rows, err := repo.UpdateOrderCAS(ctx, order.ID, order.Version, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order was modified concurrently, retry with a fresh read")
		}

		if err := s.timeline.Record(ctx, tx, order.ID, timelineSenderFor(input.Actor.Role), transitionMessage(order.Status, input)); err != nil {
			return err
		}
		if err := s.emitTransitionEvents(ctx, tx, order, input, now); err != nil {
			return err
		}

		updated, err = repo.FindOrder(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Buyer confirmation is followed by an automatic system completion that
	// releases the seller payout. Its failure is logged, never surfaced; the
	// committed received state stands.
	if input.Target == enums.OrderStatusReceived {
		if completed, err := s.completeDelivered(ctx, updated); err != nil {
			s.logg.Error(s.logg.WithOrderID(ctx, updated.ID.String()), "automatic order completion failed", err)
		} else {
			updated = completed
		}
	}

	return updated, nil
}

func validateTransitionInput(input TransitionInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Target.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown target status")
	}
	if input.Target == enums.OrderStatusProcessing {
		return pkgerrors.New(pkgerrors.CodeValidation, "orders start in processing and cannot return to it")
	}
	if input.Target == enums.OrderStatusAvailabilityCheck {
		return pkgerrors.New(pkgerrors.CodeValidation, "availability check is entered via the availability endpoint")
	}
	if input.Actor.Role != enums.ActorRoleSystem && input.Actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.Actor.Role.IsValid() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "unknown actor role")
	}
	if input.Target == enums.OrderStatusDisputed && trimmedReason(input.Reason) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "dispute reason required")
	}
	return nil
}

func (s *service) buildTransitionUpdates(order *models.Order, input TransitionInput, now time.Time) map[string]any {
	updates := map[string]any{
		"status":     input.Target,
		"updated_at": now,
	}
	switch input.Target {
	case enums.OrderStatusSent:
		updates["sent_at"] = now
		if input.Fulfillment != nil {
			updates["fulfillment"] = input.Fulfillment
		}
	case enums.OrderStatusReceived:
		updates["received_at"] = now
	case enums.OrderStatusCompleted:
		updates["completed_at"] = now
	case enums.OrderStatusCanceled:
		updates["canceled_at"] = now
		if reason := trimmedReason(input.Reason); reason != "" {
			updates["cancellation_reason"] = reason
		}
	case enums.OrderStatusDisputed:
		updates["dispute_reason"] = trimmedReason(input.Reason)
	}
	return updates
}

func (s *service) emitTransitionEvents(ctx context.Context, tx *gorm.DB, order *models.Order, input TransitionInput, now time.Time) error {
	actor := actorRef(input.Actor)
	stateChanged := outbox.DomainEvent{
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
			ToStatus:   input.Target,
			Actor:      input.Actor.Role,
		},
	}
	if err := s.outbox.Emit(ctx, tx, stateChanged); err != nil {
		return err
	}

	switch input.Target {
	case enums.OrderStatusCanceled:
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
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
				Reason:     trimmedReason(input.Reason),
			},
		})
	case enums.OrderStatusDisputed:
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderDisputed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         actor,
			Data: payloads.OrderDisputedEvent{
				OrderID:  order.ID,
				BuyerID:  order.BuyerID,
				SellerID: order.SellerID,
				Reason:   trimmedReason(input.Reason),
			},
		})
	}
	return nil
}

// completeDelivered advances a received order to completed as the system
// actor and emits the payout signal with the commission split.
func (s *service) completeDelivered(ctx context.Context, order *models.Order) (*models.Order, error) {
	split, err := s.commission.Split(ctx, order.TotalCents)
	if err != nil {
		return nil, err
	}

	var updated *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindOrder(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if current.Status != enums.OrderStatusReceived {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is no longer awaiting completion")
		}

		now := s.now().UTC()
		rows, err := repo.UpdateOrderCAS(ctx, current.ID, current.Version, map[string]any{
			"status":       enums.OrderStatusCompleted,
			"completed_at": now,
			"updated_at":   now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete order")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order was modified concurrently")
		}

		if err := s.timeline.Record(ctx, tx, current.ID, enums.TimelineSenderSystem, "Order completed. Seller payout has been scheduled."); err != nil {
			return err
		}

		systemActor := SystemActor()
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStateChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   current.ID,
			Version:       1,
			Actor:         actorRef(systemActor),
			Data: payloads.OrderStateChangedEvent{
				OrderID:    current.ID,
				BuyerID:    current.BuyerID,
				SellerID:   current.SellerID,
				FromStatus: enums.OrderStatusReceived,
				ToStatus:   enums.OrderStatusCompleted,
				Actor:      enums.ActorRoleSystem,
			},
		}); err != nil {
			return err
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderDelivered,
			AggregateType: enums.AggregateOrder,
			AggregateID:   current.ID,
			Version:       1,
			Actor:         actorRef(systemActor),
			Data: payloads.OrderDeliveredEvent{
				OrderID:         current.ID,
				SellerID:        current.SellerID,
				TotalCents:      current.TotalCents,
				CommissionCents: split.CommissionCents,
				NetPayoutCents:  split.NetPayoutCents,
				CommissionRate:  split.Rate.String(),
				DeliveredAt:     now,
			},
		}); err != nil {
			return err
		}

		updated, err = repo.FindOrder(ctx, current.ID)
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

func timelineSenderFor(role enums.ActorRole) enums.TimelineSender {
	switch role {
	case enums.ActorRoleBuyer:
		return enums.TimelineSenderBuyer
	case enums.ActorRoleSeller:
		return enums.TimelineSenderSeller
	default:
		return enums.TimelineSenderSystem
	}
}

func transitionMessage(from enums.OrderStatus, input TransitionInput) string {
	switch input.Target {
	case enums.OrderStatusSent:
		if input.Fulfillment != nil && strings.TrimSpace(input.Fulfillment.TrackingNumber) != "" {
			return fmt.Sprintf("Order has been sent. Tracking number: %s.", strings.TrimSpace(input.Fulfillment.TrackingNumber))
		}
		return "Order has been sent."
	case enums.OrderStatusReceived:
		return "Buyer confirmed receipt of the order."
	case enums.OrderStatusCompleted:
		if from == enums.OrderStatusDisputed {
			return "Dispute resolved. Order marked completed."
		}
		return "Order completed."
	case enums.OrderStatusCanceled:
		if reason := trimmedReason(input.Reason); reason != "" {
			return fmt.Sprintf("Order canceled: %s", reason)
		}
		return "Order canceled."
	case enums.OrderStatusDisputed:
		return fmt.Sprintf("Order disputed: %s", trimmedReason(input.Reason))
	default:
		return fmt.Sprintf("Order moved to %s.", input.Target)
	}
}

func trimmedReason(reason *string) string {
	if reason == nil {
		return ""
	}
	return strings.TrimSpace(*reason)
}

func actorRef(actor Actor) *outbox.ActorRef {
	return &outbox.ActorRef{
		UserID: actor.UserID,
		Role:   string(actor.Role),
	}
}
