package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tobiumeh/vendora-backend/pkg/db/models"
	"github.com/tobiumeh/vendora-backend/pkg/enums"
	"github.com/tobiumeh/vendora-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateOrderItems(ctx context.Context, items []models.OrderItem) error
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindOrderByPaymentReference(ctx context.Context, reference string) (*models.Order, error)
	ListBuyerOrders(ctx context.Context, buyerID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error)
	ListSellerOrders(ctx context.Context, sellerID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error)
	// UpdateOrderCAS applies updates only when the stored version still
	// matches expectedVersion, bumping version by one. Returns the number of
	// rows changed; zero means a concurrent transition won.
	UpdateOrderCAS(ctx context.Context, orderID uuid.UUID, expectedVersion int, updates map[string]any) (int64, error)
	UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	// FindLapsedAvailabilityHolds returns orders still in the availability
	// check whose wait window passed without a buyer response.
	FindLapsedAvailabilityHolds(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

// Service defines order lifecycle operations.
type Service interface {
	Transition(ctx context.Context, input TransitionInput) (*models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error)
	ListForActor(ctx context.Context, actor Actor, params pagination.Params, filters OrderFilters) (*OrderList, error)
}

// guardOrderAccess restricts reads to the order's parties; admins see all.
func guardOrderAccess(order *models.Order, actor Actor) bool {
	switch actor.Role {
	case enums.ActorRoleAdmin, enums.ActorRoleSystem:
		return true
	case enums.ActorRoleBuyer:
		return order.BuyerID == actor.UserID
	case enums.ActorRoleSeller:
		return order.SellerID == actor.UserID
	default:
		return false
	}
}
