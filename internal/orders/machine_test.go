package orders

import (
	"testing"

	"github.com/google/uuid"

	"github.com/tobiumeh/vendora-backend/pkg/db/models"
	"github.com/tobiumeh/vendora-backend/pkg/enums"
	pkgerrors "github.com/tobiumeh/vendora-backend/pkg/errors"
)

func TestTransitionTableEdges(t *testing.T) {
	allowed := map[enums.OrderStatus]map[enums.OrderStatus]bool{
		enums.OrderStatusProcessing: {
			enums.OrderStatusSent:              true,
			enums.OrderStatusAvailabilityCheck: true,
			enums.OrderStatusCanceled:          true,
		},
		enums.OrderStatusAvailabilityCheck: {
			enums.OrderStatusSent:     true,
			enums.OrderStatusCanceled: true,
		},
		enums.OrderStatusSent: {
			enums.OrderStatusReceived: true,
			enums.OrderStatusCanceled: true,
			enums.OrderStatusDisputed: true,
		},
		enums.OrderStatusReceived: {
			enums.OrderStatusCompleted: true,
		},
		enums.OrderStatusDisputed: {
			enums.OrderStatusCompleted: true,
			enums.OrderStatusCanceled:  true,
		},
		enums.OrderStatusCompleted: {},
		enums.OrderStatusCanceled:  {},
	}

	statuses := []enums.OrderStatus{
		enums.OrderStatusProcessing,
		enums.OrderStatusAvailabilityCheck,
		enums.OrderStatusSent,
		enums.OrderStatusReceived,
		enums.OrderStatusCompleted,
		enums.OrderStatusCanceled,
		enums.OrderStatusDisputed,
	}

	for _, from := range statuses {
		for _, to := range statuses {
			got := canTransition(from, to)
			want := allowed[from][to]
			if got != want {
				t.Errorf("canTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTerminalStatusesHaveNoEdges(t *testing.T) {
	for _, terminal := range []enums.OrderStatus{enums.OrderStatusCompleted, enums.OrderStatusCanceled} {
		if edges := transitionTable[terminal]; len(edges) != 0 {
			t.Errorf("terminal status %s has outgoing edges %v", terminal, edges)
		}
		if !terminal.IsTerminal() {
			t.Errorf("status %s should report terminal", terminal)
		}
	}
}

func TestCheckTransitionAuthzRoleGuards(t *testing.T) {
	buyerID := uuid.New()
	sellerID := uuid.New()
	adminID := uuid.New()

	order := func(status enums.OrderStatus) *models.Order {
		return &models.Order{ID: uuid.New(), BuyerID: buyerID, SellerID: sellerID, Status: status}
	}

	cases := []struct {
		name    string
		order   *models.Order
		target  enums.OrderStatus
		actor   Actor
		allowed bool
	}{
		{"seller marks sent", order(enums.OrderStatusProcessing), enums.OrderStatusSent, Actor{UserID: sellerID, Role: enums.ActorRoleSeller}, true},
		{"buyer cannot mark sent", order(enums.OrderStatusProcessing), enums.OrderStatusSent, Actor{UserID: buyerID, Role: enums.ActorRoleBuyer}, false},
		{"admin marks sent", order(enums.OrderStatusProcessing), enums.OrderStatusSent, Actor{UserID: adminID, Role: enums.ActorRoleAdmin}, true},
		{"buyer confirms receipt", order(enums.OrderStatusSent), enums.OrderStatusReceived, Actor{UserID: buyerID, Role: enums.ActorRoleBuyer}, true},
		{"seller cannot confirm receipt", order(enums.OrderStatusSent), enums.OrderStatusReceived, Actor{UserID: sellerID, Role: enums.ActorRoleSeller}, false},
		{"buyer cancels from processing", order(enums.OrderStatusProcessing), enums.OrderStatusCanceled, Actor{UserID: buyerID, Role: enums.ActorRoleBuyer}, true},
		{"seller cancels from processing", order(enums.OrderStatusProcessing), enums.OrderStatusCanceled, Actor{UserID: sellerID, Role: enums.ActorRoleSeller}, true},
		{"buyer cannot cancel sent order", order(enums.OrderStatusSent), enums.OrderStatusCanceled, Actor{UserID: buyerID, Role: enums.ActorRoleBuyer}, false},
		{"system cancels sent order", order(enums.OrderStatusSent), enums.OrderStatusCanceled, SystemActor(), true},
		{"buyer disputes sent order", order(enums.OrderStatusSent), enums.OrderStatusDisputed, Actor{UserID: buyerID, Role: enums.ActorRoleBuyer}, true},
		{"seller cannot dispute", order(enums.OrderStatusSent), enums.OrderStatusDisputed, Actor{UserID: sellerID, Role: enums.ActorRoleSeller}, false},
		{"system completes received order", order(enums.OrderStatusReceived), enums.OrderStatusCompleted, SystemActor(), true},
		{"buyer cannot complete", order(enums.OrderStatusReceived), enums.OrderStatusCompleted, Actor{UserID: buyerID, Role: enums.ActorRoleBuyer}, false},
		{"only admin resolves dispute to completed", order(enums.OrderStatusDisputed), enums.OrderStatusCompleted, SystemActor(), false},
		{"admin resolves dispute", order(enums.OrderStatusDisputed), enums.OrderStatusCompleted, Actor{UserID: adminID, Role: enums.ActorRoleAdmin}, true},
		{"wrong buyer is rejected", order(enums.OrderStatusSent), enums.OrderStatusReceived, Actor{UserID: uuid.New(), Role: enums.ActorRoleBuyer}, false},
		{"wrong seller is rejected", order(enums.OrderStatusProcessing), enums.OrderStatusSent, Actor{UserID: uuid.New(), Role: enums.ActorRoleSeller}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := checkTransitionAuthz(tc.order, tc.target, tc.actor)
			if tc.allowed && err != nil {
				t.Fatalf("expected allowed, got %v", err)
			}
			if !tc.allowed {
				if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
					t.Fatalf("expected forbidden, got %v", err)
				}
			}
		})
	}
}
