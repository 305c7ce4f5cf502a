package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	auditledger "github.com/tobiumeh/vendora-backend/internal/ledger"
	"github.com/tobiumeh/vendora-backend/internal/orders"
	"github.com/tobiumeh/vendora-backend/internal/timeline"
	"github.com/tobiumeh/vendora-backend/pkg/db"
	"github.com/tobiumeh/vendora-backend/pkg/db/models"
	"github.com/tobiumeh/vendora-backend/pkg/enums"
	pkgerrors "github.com/tobiumeh/vendora-backend/pkg/errors"
	"github.com/tobiumeh/vendora-backend/pkg/gateway"
	"github.com/tobiumeh/vendora-backend/pkg/logger"
	"github.com/tobiumeh/vendora-backend/pkg/outbox"
	"github.com/tobiumeh/vendora-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type gatewayVerifier interface {
	VerifyTransaction(ctx context.Context, reference string) (*gateway.Transaction, error)
}

type auditRecorder interface {
	Record(ctx context.Context, tx *gorm.DB, input auditledger.RecordEventInput) (*models.LedgerEvent, error)
}

// Service verifies gateway charges and creates orders from them.
type Service interface {
	VerifyAndCreateOrder(ctx context.Context, input VerifyInput) (*VerifyResult, error)
	SettlePayment(ctx context.Context, reference string) error
}

type service struct {
	ledger   LedgerRepository
	orders   orders.Repository
	gateway  gatewayVerifier
	tx       txRunner
	outbox   outboxPublisher
	timeline timeline.Service
	audit    auditRecorder
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the payment verification service.
func NewService(ledger LedgerRepository, ordersRepo orders.Repository, gw gatewayVerifier, tx txRunner, ob outboxPublisher, tl timeline.Service, audit auditRecorder, logg *logger.Logger) (Service, error) {
	if ledger == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if gw == nil {
		return nil, fmt.Errorf("gateway verifier required")
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
		ledger:   ledger,
		orders:   ordersRepo,
		gateway:  gw,
		tx:       tx,
		outbox:   ob,
		timeline: tl,
		audit:    audit,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// VerifyAndCreateOrder checks the charge at the gateway, then creates the
// ledger entry, order, items, first timeline entry and outbox event in one
// transaction. The unique payment reference makes retries and concurrent
// submissions of the same charge converge on a single order.
func (s *service) VerifyAndCreateOrder(ctx context.Context, input VerifyInput) (*VerifyResult, error) {
	if err := validateVerifyInput(&input); err != nil {
		return nil, err
	}
	if _, err := singleSeller(input.Items); err != nil {
		return nil, err
	}
	itemsTotal := cartTotal(input.Items)
	if itemsTotal != input.ClaimedTotalCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart items do not add up to the claimed total").
			WithDetails(map[string]any{
				"items_total_cents":   itemsTotal,
				"claimed_total_cents": input.ClaimedTotalCents,
			})
	}

	// Replay of an already-verified charge short-circuits before touching
	// the gateway again.
	if existing, err := s.existingOrder(ctx, input); existing != nil || err != nil {
		if err != nil {
			return nil, err
		}
		return &VerifyResult{Order: existing}, nil
	}

	charge, err := s.gateway.VerifyTransaction(ctx, input.PaymentReference)
	if err != nil {
		return nil, err
	}
	if !charge.Succeeded() {
		return nil, pkgerrors.New(pkgerrors.CodePaymentNotSuccessful,
			fmt.Sprintf("payment is %s at the gateway", charge.Status)).
			WithDetails(map[string]any{"gateway_status": charge.Status})
	}
	if charge.AmountCents != input.ClaimedTotalCents {
		return nil, pkgerrors.New(pkgerrors.CodeAmountMismatch, "charged amount does not match the claimed total").
			WithDetails(map[string]any{
				"charged_cents": charge.AmountCents,
				"claimed_cents": input.ClaimedTotalCents,
			})
	}
	if charge.Currency != "" && charge.Currency != string(input.Currency) {
		return nil, pkgerrors.New(pkgerrors.CodeAmountMismatch, "charge currency does not match the order currency").
			WithDetails(map[string]any{
				"charged_currency": charge.Currency,
				"order_currency":   input.Currency,
			})
	}

	result, err := s.createOrder(ctx, input, charge)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) createOrder(ctx context.Context, input VerifyInput, charge *gateway.Transaction) (*VerifyResult, error) {
	sellerID, _ := singleSeller(input.Items)

	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.orders.WithTx(tx)
		now := s.now().UTC()

		order := &models.Order{
			ID:               uuid.New(),
			BuyerID:          input.BuyerID,
			SellerID:         sellerID,
			Status:           enums.OrderStatusProcessing,
			Currency:         input.Currency,
			TotalCents:       input.ClaimedTotalCents,
			PaymentReference: input.PaymentReference,
			Delivery:         input.Delivery,
			RefundStatus:     enums.RefundStatusNone,
			Version:          1,
			CreatedAt:        now,
			UpdatedAt:        now,
		}

		if _, err := s.ledger.WithTx(tx).CreateEntry(ctx, &models.PaymentLedgerEntry{
			ID:               uuid.New(),
			PaymentReference: input.PaymentReference,
			OrderID:          order.ID,
			AmountCents:      charge.AmountCents,
			Currency:         input.Currency,
			GatewayStatus:    charge.Status,
			CreatedAt:        now,
		}); err != nil {
			if db.IsUniqueViolation(err, models.UniqPaymentLedgerReference) {
				return errLedgerRace
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment")
		}

		if _, err := ordersRepo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		items := make([]models.OrderItem, 0, len(input.Items))
		for _, item := range input.Items {
			items = append(items, models.OrderItem{
				ID:             uuid.New(),
				OrderID:        order.ID,
				ProductID:      item.ProductID,
				Name:           item.Name,
				UnitPriceCents: item.UnitPriceCents,
				Quantity:       item.Quantity,
				CreatedAt:      now,
			})
		}
		if err := ordersRepo.CreateOrderItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
		}

		if err := s.timeline.Record(ctx, tx, order.ID, enums.TimelineSenderSystem, "Order placed. Payment verified."); err != nil {
			return err
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.BuyerID, Role: string(enums.ActorRoleBuyer)},
			Data: payloads.OrderCreatedEvent{
				OrderID:          order.ID,
				BuyerID:          order.BuyerID,
				SellerID:         order.SellerID,
				PaymentReference: order.PaymentReference,
				TotalCents:       order.TotalCents,
				Currency:         order.Currency,
			},
		}); err != nil {
			return err
		}

		created = order
		return nil
	})
	if err == errLedgerRace {
		// A concurrent submission of the same charge won. Return its order.
		existing, lookupErr := s.existingOrder(ctx, input)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if existing == nil {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment recorded but its order was not found")
		}
		return &VerifyResult{Order: existing}, nil
	}
	if err != nil {
		return nil, err
	}

	reloaded, err := s.orders.FindOrder(ctx, created.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	return &VerifyResult{Order: reloaded, Created: true}, nil
}

// existingOrder returns the order already backing the reference, if any. A
// different buyer replaying someone else's reference is rejected.
func (s *service) existingOrder(ctx context.Context, input VerifyInput) (*models.Order, error) {
	order, err := s.orders.FindOrderByPaymentReference(ctx, input.PaymentReference)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up payment reference")
	}
	if order.BuyerID != input.BuyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payment reference belongs to another buyer")
	}
	return order, nil
}

// SettlePayment stamps the ledger entry as settled and emits the settlement
// event in the same transaction. Missing entries are a NOT_FOUND so webhook
// callers can tell unknown references from replays; replays are no-ops.
func (s *service) SettlePayment(ctx context.Context, reference string) error {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return pkgerrors.New(pkgerrors.CodeMissingPaymentReference, "payment reference is required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ledger := s.ledger.WithTx(tx)
		settledAt := s.now().UTC()
		rows, err := ledger.MarkSettled(ctx, reference, settledAt)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settle payment")
		}
		if rows == 0 {
			if _, err := ledger.FindByReference(ctx, reference); err != nil {
				if err == gorm.ErrRecordNotFound {
					return pkgerrors.New(pkgerrors.CodeNotFound, "no payment recorded for reference")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up payment")
			}
			// Already settled; webhook retries are no-ops.
			return nil
		}

		entry, err := ledger.FindByReference(ctx, reference)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload payment")
		}

		order, err := s.orders.WithTx(tx).FindOrder(ctx, entry.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order for settlement")
		}
		// Settlement comes from the gateway, not a user, so the audit row
		// carries no actor.
		if _, err := s.audit.Record(ctx, tx, auditledger.RecordEventInput{
			OrderID:     order.ID,
			BuyerID:     order.BuyerID,
			SellerID:    order.SellerID,
			Type:        enums.LedgerEventTypeCashCollected,
			AmountCents: entry.AmountCents,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record settlement in audit ledger")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentSettled,
			AggregateType: enums.AggregatePayment,
			AggregateID:   entry.ID,
			Version:       1,
			Data: payloads.PaymentSettledEvent{
				PaymentReference: reference,
				OrderID:          entry.OrderID,
				AmountCents:      entry.AmountCents,
				SettledAt:        settledAt,
			},
		})
	})
}

var errLedgerRace = pkgerrors.New(pkgerrors.CodeConflict, "payment reference already recorded")

func validateVerifyInput(input *VerifyInput) error {
	input.PaymentReference = strings.TrimSpace(input.PaymentReference)
	if input.PaymentReference == "" {
		return pkgerrors.New(pkgerrors.CodeMissingPaymentReference, "payment reference is required")
	}
	if input.BuyerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.ClaimedTotalCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "claimed total must be positive")
	}
	if input.Currency == "" {
		input.Currency = enums.CurrencyUSD
	}
	if !input.Currency.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unsupported currency")
	}
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	for _, item := range input.Items {
		if item.ProductID == uuid.Nil || item.SellerID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart item is missing product or seller")
		}
		if item.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart item quantity must be positive")
		}
		if item.UnitPriceCents < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart item price cannot be negative")
		}
	}
	return nil
}

// singleSeller derives the order's seller from the cart. Orders are scoped to
// one seller; mixed carts must be split upstream.
func singleSeller(items []CartItem) (uuid.UUID, error) {
	sellerID := items[0].SellerID
	for _, item := range items[1:] {
		if item.SellerID != sellerID {
			return uuid.Nil, pkgerrors.New(pkgerrors.CodeMultiSellerCart, "cart spans multiple sellers")
		}
	}
	return sellerID, nil
}

func cartTotal(items []CartItem) int64 {
	var total int64
	for _, item := range items {
		total += item.UnitPriceCents * int64(item.Quantity)
	}
	return total
}
