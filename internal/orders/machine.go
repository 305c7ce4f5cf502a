package orders

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/tobiumeh/vendora-backend/pkg/db/models"
	"github.com/tobiumeh/vendora-backend/pkg/enums"
	pkgerrors "github.com/tobiumeh/vendora-backend/pkg/errors"
)

// transitionTable maps each status to the set of statuses reachable from it.
// Terminal statuses have no outgoing edges.
var transitionTable = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusProcessing: {
		enums.OrderStatusSent,
		enums.OrderStatusAvailabilityCheck,
		enums.OrderStatusCanceled,
	},
	enums.OrderStatusAvailabilityCheck: {
		enums.OrderStatusSent,
		enums.OrderStatusCanceled,
	},
	enums.OrderStatusSent: {
		enums.OrderStatusReceived,
		enums.OrderStatusCanceled,
		enums.OrderStatusDisputed,
	},
	enums.OrderStatusReceived: {
		enums.OrderStatusCompleted,
	},
	enums.OrderStatusDisputed: {
		enums.OrderStatusCompleted,
		enums.OrderStatusCanceled,
	},
	enums.OrderStatusCompleted: {},
	enums.OrderStatusCanceled:  {},
}

func canTransition(from, to enums.OrderStatus) bool {
	for _, next := range transitionTable[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Actor is the verified identity performing an order operation. Role comes
// from the session, never from the request payload.
type Actor struct {
	UserID uuid.UUID
	Role   enums.ActorRole
}

// SystemActor is used for engine-initiated transitions such as the automatic
// delivery completion.
func SystemActor() Actor {
	return Actor{Role: enums.ActorRoleSystem}
}

// checkTransitionAuthz enforces the per-transition role guard. Buyer and
// seller roles must additionally match the order parties; admin and system
// are not party-bound.
func checkTransitionAuthz(order *models.Order, to enums.OrderStatus, actor Actor) error {
	switch actor.Role {
	case enums.ActorRoleAdmin, enums.ActorRoleSystem:
	case enums.ActorRoleBuyer:
		if order.BuyerID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to buyer")
		}
	case enums.ActorRoleSeller:
		if order.SellerID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to seller")
		}
	default:
		return pkgerrors.New(pkgerrors.CodeForbidden, "unknown actor role")
	}

	allowed := rolesForTransition(order.Status, to)
	for _, role := range allowed {
		if role == actor.Role {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeForbidden,
		fmt.Sprintf("role %s may not move order from %s to %s", actor.Role, order.Status, to)).
		WithDetails(map[string]any{
			"current_status":   order.Status,
			"requested_status": to,
			"actor_role":       actor.Role,
		})
}

func rolesForTransition(from, to enums.OrderStatus) []enums.ActorRole {
	switch to {
	case enums.OrderStatusSent:
		return []enums.ActorRole{enums.ActorRoleSeller, enums.ActorRoleAdmin}
	case enums.OrderStatusAvailabilityCheck:
		return []enums.ActorRole{enums.ActorRoleSeller, enums.ActorRoleAdmin}
	case enums.OrderStatusReceived:
		return []enums.ActorRole{enums.ActorRoleBuyer, enums.ActorRoleAdmin}
	case enums.OrderStatusDisputed:
		return []enums.ActorRole{enums.ActorRoleBuyer, enums.ActorRoleAdmin}
	case enums.OrderStatusCompleted:
		if from == enums.OrderStatusDisputed {
			return []enums.ActorRole{enums.ActorRoleAdmin}
		}
		return []enums.ActorRole{enums.ActorRoleSystem, enums.ActorRoleAdmin}
	case enums.OrderStatusCanceled:
		if from == enums.OrderStatusProcessing {
			return []enums.ActorRole{enums.ActorRoleBuyer, enums.ActorRoleSeller, enums.ActorRoleAdmin}
		}
		return []enums.ActorRole{enums.ActorRoleAdmin, enums.ActorRoleSystem}
	default:
		return nil
	}
}
