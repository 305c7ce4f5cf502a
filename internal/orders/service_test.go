package orders

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tobiumeh/vendora-backend/internal/commission"
	"github.com/tobiumeh/vendora-backend/internal/timeline"
	"github.com/tobiumeh/vendora-backend/pkg/config"
	"github.com/tobiumeh/vendora-backend/pkg/db/models"
	"github.com/tobiumeh/vendora-backend/pkg/enums"
	pkgerrors "github.com/tobiumeh/vendora-backend/pkg/errors"
	"github.com/tobiumeh/vendora-backend/pkg/logger"
	"github.com/tobiumeh/vendora-backend/pkg/outbox"
	"github.com/tobiumeh/vendora-backend/pkg/outbox/payloads"
	"github.com/tobiumeh/vendora-backend/pkg/pagination"
	"github.com/tobiumeh/vendora-backend/pkg/types"
)

type fakeTx struct{}

func (fakeTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubOutbox struct {
	events []outbox.DomainEvent
}

func (s *stubOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

func (s *stubOutbox) eventTypes() []enums.OutboxEventType {
	var out []enums.OutboxEventType
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

type stubOrdersRepo struct {
	orders  map[uuid.UUID]*models.Order
	casErr  error
	casFail bool
}

func newStubOrdersRepo(orders ...*models.Order) *stubOrdersRepo {
	repo := &stubOrdersRepo{orders: map[uuid.UUID]*models.Order{}}
	for _, order := range orders {
		repo.orders[order.ID] = order
	}
	return repo
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubOrdersRepo) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.Version == 0 {
		order.Version = 1
	}
	s.orders[order.ID] = order
	return order, nil
}

func (s *stubOrdersRepo) CreateOrderItems(ctx context.Context, items []models.OrderItem) error {
	return nil
}

func (s *stubOrdersRepo) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, ok := s.orders[orderID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *order
	return &clone, nil
}

func (s *stubOrdersRepo) FindOrderByPaymentReference(ctx context.Context, reference string) (*models.Order, error) {
	for _, order := range s.orders {
		if order.PaymentReference == reference {
			clone := *order
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrdersRepo) ListBuyerOrders(ctx context.Context, buyerID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error) {
	var out []models.Order
	for _, order := range s.orders {
		if order.BuyerID == buyerID {
			out = append(out, *order)
		}
	}
	return &OrderList{Orders: out}, nil
}

func (s *stubOrdersRepo) ListSellerOrders(ctx context.Context, sellerID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error) {
	var out []models.Order
	for _, order := range s.orders {
		if order.SellerID == sellerID {
			out = append(out, *order)
		}
	}
	return &OrderList{Orders: out}, nil
}

func (s *stubOrdersRepo) UpdateOrderCAS(ctx context.Context, orderID uuid.UUID, expectedVersion int, updates map[string]any) (int64, error) {
	if s.casErr != nil {
		return 0, s.casErr
	}
	if s.casFail {
		return 0, nil
	}
	order, ok := s.orders[orderID]
	if !ok || order.Version != expectedVersion {
		return 0, nil
	}
	applyOrderUpdates(order, updates)
	order.Version++
	return 1, nil
}

func (s *stubOrdersRepo) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	order, ok := s.orders[orderID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	applyOrderUpdates(order, updates)
	return nil
}

func (s *stubOrdersRepo) FindLapsedAvailabilityHolds(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	return nil, nil
}

func applyOrderUpdates(order *models.Order, updates map[string]any) {
	for key, value := range updates {
		switch key {
		case "status":
			order.Status = value.(enums.OrderStatus)
		case "sent_at":
			t := value.(time.Time)
			order.SentAt = &t
		case "received_at":
			t := value.(time.Time)
			order.ReceivedAt = &t
		case "completed_at":
			t := value.(time.Time)
			order.CompletedAt = &t
		case "canceled_at":
			t := value.(time.Time)
			order.CanceledAt = &t
		case "cancellation_reason":
			r := value.(string)
			order.CancellationReason = &r
		case "dispute_reason":
			r := value.(string)
			order.DisputeReason = &r
		case "fulfillment":
			order.Fulfillment = value.(*types.Fulfillment)
		case "updated_at":
			order.UpdatedAt = value.(time.Time)
		}
	}
}

type stubSettings struct{}

func (stubSettings) FindSetting(ctx context.Context, key string) (*models.PlatformSetting, error) {
	return &models.PlatformSetting{Key: key, Value: "0.10"}, nil
}

func newOrderService(t *testing.T, repo Repository, ob outboxPublisher) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "orders-test", Output: io.Discard})
	tl, err := timeline.NewService(&recordingTimelineRepo{})
	if err != nil {
		t.Fatalf("timeline service: %v", err)
	}
	comm, err := commission.NewService(stubSettings{}, config.CommissionConfig{CacheTTL: time.Minute, DefaultRate: "0.10"}, logg)
	if err != nil {
		t.Fatalf("commission service: %v", err)
	}
	svc, err := NewService(repo, fakeTx{}, ob, tl, comm, logg)
	if err != nil {
		t.Fatalf("orders service: %v", err)
	}
	return svc
}

type recordingTimelineRepo struct {
	entries []models.TimelineEntry
}

func (r *recordingTimelineRepo) WithTx(tx *gorm.DB) timeline.Repository { return r }

func (r *recordingTimelineRepo) Append(ctx context.Context, entry *models.TimelineEntry) error {
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *recordingTimelineRepo) ListByOrder(ctx context.Context, orderID uuid.UUID, limit int) ([]models.TimelineEntry, error) {
	return r.entries, nil
}

func testOrder(status enums.OrderStatus) *models.Order {
	return &models.Order{
		ID:               uuid.New(),
		BuyerID:          uuid.New(),
		SellerID:         uuid.New(),
		Status:           status,
		Currency:         enums.CurrencyUSD,
		TotalCents:       10_000,
		PaymentReference: "TXN-1",
		Version:          1,
	}
}

func TestTransitionSellerMarksSentPersistsFulfillment(t *testing.T) {
	order := testOrder(enums.OrderStatusProcessing)
	repo := newStubOrdersRepo(order)
	ob := &stubOutbox{}
	svc := newOrderService(t, repo, ob)

	fulfillment := &types.Fulfillment{Carrier: "DHL", TrackingNumber: "ABC123"}
	updated, err := svc.Transition(context.Background(), TransitionInput{
		OrderID:     order.ID,
		Target:      enums.OrderStatusSent,
		Actor:       Actor{UserID: order.SellerID, Role: enums.ActorRoleSeller},
		Fulfillment: fulfillment,
	})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if updated.Status != enums.OrderStatusSent {
		t.Fatalf("unexpected status %s", updated.Status)
	}
	if updated.SentAt == nil {
		t.Fatalf("sent_at not set")
	}
	if updated.Fulfillment == nil || updated.Fulfillment.TrackingNumber != "ABC123" {
		t.Fatalf("fulfillment not persisted")
	}
	if got := ob.eventTypes(); len(got) != 1 || got[0] != enums.EventOrderStateChanged {
		t.Fatalf("unexpected events %v", got)
	}
}

func TestTransitionRejectsIllegalEdge(t *testing.T) {
	order := testOrder(enums.OrderStatusProcessing)
	repo := newStubOrdersRepo(order)
	svc := newOrderService(t, repo, &stubOutbox{})

	_, err := svc.Transition(context.Background(), TransitionInput{
		OrderID: order.ID,
		Target:  enums.OrderStatusReceived,
		Actor:   Actor{UserID: order.BuyerID, Role: enums.ActorRoleBuyer},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInvalidTransition {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if repo.orders[order.ID].Status != enums.OrderStatusProcessing {
		t.Fatalf("order status must be unchanged")
	}
}

func TestTransitionTerminalStateRejected(t *testing.T) {
	for _, status := range []enums.OrderStatus{enums.OrderStatusCompleted, enums.OrderStatusCanceled} {
		order := testOrder(status)
		repo := newStubOrdersRepo(order)
		svc := newOrderService(t, repo, &stubOutbox{})

		_, err := svc.Transition(context.Background(), TransitionInput{
			OrderID: order.ID,
			Target:  enums.OrderStatusSent,
			Actor:   Actor{UserID: order.SellerID, Role: enums.ActorRoleSeller},
		})
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeTerminalState {
			t.Fatalf("expected terminal state error for %s, got %v", status, err)
		}
	}
}

func TestTransitionForbiddenLeavesOrderUnchanged(t *testing.T) {
	order := testOrder(enums.OrderStatusProcessing)
	repo := newStubOrdersRepo(order)
	svc := newOrderService(t, repo, &stubOutbox{})

	_, err := svc.Transition(context.Background(), TransitionInput{
		OrderID: order.ID,
		Target:  enums.OrderStatusSent,
		Actor:   Actor{UserID: order.BuyerID, Role: enums.ActorRoleBuyer},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if repo.orders[order.ID].Status != enums.OrderStatusProcessing {
		t.Fatalf("order status must be unchanged")
	}
}

func TestTransitionConcurrentWriteReturnsStateConflict(t *testing.T) {
	order := testOrder(enums.OrderStatusProcessing)
	repo := newStubOrdersRepo(order)
	repo.casFail = true
	svc := newOrderService(t, repo, &stubOutbox{})

	_, err := svc.Transition(context.Background(), TransitionInput{
		OrderID: order.ID,
		Target:  enums.OrderStatusSent,
		Actor:   Actor{UserID: order.SellerID, Role: enums.ActorRoleSeller},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestTransitionReceivedAutoCompletesWithPayoutSignal(t *testing.T) {
	order := testOrder(enums.OrderStatusSent)
	repo := newStubOrdersRepo(order)
	ob := &stubOutbox{}
	svc := newOrderService(t, repo, ob)

	updated, err := svc.Transition(context.Background(), TransitionInput{
		OrderID: order.ID,
		Target:  enums.OrderStatusReceived,
		Actor:   Actor{UserID: order.BuyerID, Role: enums.ActorRoleBuyer},
	})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if updated.Status != enums.OrderStatusCompleted {
		t.Fatalf("expected auto-completion, got %s", updated.Status)
	}
	if updated.ReceivedAt == nil || updated.CompletedAt == nil {
		t.Fatalf("timestamps not set")
	}

	emitted := ob.eventTypes()
	if len(emitted) != 3 {
		t.Fatalf("expected 3 events, got %v", emitted)
	}
	var delivered *outbox.DomainEvent
	for i := range ob.events {
		if ob.events[i].EventType == enums.EventOrderDelivered {
			delivered = &ob.events[i]
		}
	}
	if delivered == nil {
		t.Fatalf("missing delivered event, got %v", emitted)
	}
	payload, ok := delivered.Data.(payloads.OrderDeliveredEvent)
	if !ok {
		t.Fatalf("unexpected delivered payload type %T", delivered.Data)
	}
	if payload.CommissionCents != 1000 {
		t.Fatalf("unexpected commission %d", payload.CommissionCents)
	}
	if payload.NetPayoutCents != 9000 {
		t.Fatalf("unexpected payout %d", payload.NetPayoutCents)
	}
	if payload.CommissionCents+payload.NetPayoutCents != order.TotalCents {
		t.Fatalf("split does not sum to total")
	}
}

func TestTransitionDisputeRequiresReason(t *testing.T) {
	order := testOrder(enums.OrderStatusSent)
	repo := newStubOrdersRepo(order)
	svc := newOrderService(t, repo, &stubOutbox{})

	_, err := svc.Transition(context.Background(), TransitionInput{
		OrderID: order.ID,
		Target:  enums.OrderStatusDisputed,
		Actor:   Actor{UserID: order.BuyerID, Role: enums.ActorRoleBuyer},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTransitionCancelEmitsCanceledEvent(t *testing.T) {
	order := testOrder(enums.OrderStatusProcessing)
	repo := newStubOrdersRepo(order)
	ob := &stubOutbox{}
	svc := newOrderService(t, repo, ob)

	reason := "changed my mind"
	updated, err := svc.Transition(context.Background(), TransitionInput{
		OrderID: order.ID,
		Target:  enums.OrderStatusCanceled,
		Actor:   Actor{UserID: order.BuyerID, Role: enums.ActorRoleBuyer},
		Reason:  &reason,
	})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if updated.Status != enums.OrderStatusCanceled {
		t.Fatalf("unexpected status %s", updated.Status)
	}
	if updated.CancellationReason == nil || *updated.CancellationReason != reason {
		t.Fatalf("cancellation reason not persisted")
	}

	got := ob.eventTypes()
	if len(got) != 2 || got[0] != enums.EventOrderStateChanged || got[1] != enums.EventOrderCanceled {
		t.Fatalf("unexpected events %v", got)
	}
}

func TestTransitionUnknownOrderIsNotFound(t *testing.T) {
	svc := newOrderService(t, newStubOrdersRepo(), &stubOutbox{})

	_, err := svc.Transition(context.Background(), TransitionInput{
		OrderID: uuid.New(),
		Target:  enums.OrderStatusSent,
		Actor:   Actor{UserID: uuid.New(), Role: enums.ActorRoleSeller},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTransitionRejectsAvailabilityCheckTarget(t *testing.T) {
	order := testOrder(enums.OrderStatusProcessing)
	svc := newOrderService(t, newStubOrdersRepo(order), &stubOutbox{})

	_, err := svc.Transition(context.Background(), TransitionInput{
		OrderID: order.ID,
		Target:  enums.OrderStatusAvailabilityCheck,
		Actor:   Actor{UserID: order.SellerID, Role: enums.ActorRoleSeller},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetEnforcesPartyAccess(t *testing.T) {
	order := testOrder(enums.OrderStatusProcessing)
	svc := newOrderService(t, newStubOrdersRepo(order), &stubOutbox{})

	if _, err := svc.Get(context.Background(), order.ID, Actor{UserID: order.BuyerID, Role: enums.ActorRoleBuyer}); err != nil {
		t.Fatalf("buyer read: %v", err)
	}
	if _, err := svc.Get(context.Background(), order.ID, Actor{UserID: uuid.New(), Role: enums.ActorRoleAdmin}); err != nil {
		t.Fatalf("admin read: %v", err)
	}

	_, err := svc.Get(context.Background(), order.ID, Actor{UserID: uuid.New(), Role: enums.ActorRoleBuyer})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}
