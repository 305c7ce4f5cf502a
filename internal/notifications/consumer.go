package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/tobiumeh/vendora-backend/pkg/db/models"
	"github.com/tobiumeh/vendora-backend/pkg/enums"
	"github.com/tobiumeh/vendora-backend/pkg/logger"
	"github.com/tobiumeh/vendora-backend/pkg/outbox"
	"github.com/tobiumeh/vendora-backend/pkg/outbox/idempotency"
	"github.com/tobiumeh/vendora-backend/pkg/outbox/payloads"
)

const orderNotificationConsumer = "order-notifications"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// Consumer watches order lifecycle events and turns them into in-app
// notifications for the affected buyer and seller.
type Consumer struct {
	repo         repository
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds an order notification consumer.
func NewConsumer(repo repository, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	fields := map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	}
	logCtx := c.logg.WithFields(ctx, fields)

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, orderNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	notifications, err := c.notificationsFor(eventType, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		_ = c.idempotency.Delete(ctx, orderNotificationConsumer, eventID)
		return processResult{nack: true}
	}
	if len(notifications) == 0 {
		c.logg.Info(logCtx, "event type not handled")
		return processResult{ack: true}
	}

	for _, notification := range notifications {
		if err := c.repo.Create(ctx, notification); err != nil {
			c.logg.Error(logCtx, "failed to store notification", err)
			_ = c.idempotency.Delete(ctx, orderNotificationConsumer, eventID)
			return processResult{nack: true}
		}
	}
	c.logg.Info(logCtx, "notifications created")
	return processResult{ack: true}
}

// notificationsFor maps a domain event to the notifications it should
// produce. Unknown event types map to none and are acked.
func (c *Consumer) notificationsFor(eventType enums.OutboxEventType, data json.RawMessage) ([]*models.Notification, error) {
	switch eventType {
	case enums.EventOrderCreated:
		var payload payloads.OrderCreatedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return []*models.Notification{notify(payload.SellerID, enums.NotificationTypeOrderAlert, payload.OrderID,
			"New order received",
			fmt.Sprintf("A buyer placed an order for %s.", formatCents(payload.TotalCents, payload.Currency)))}, nil

	case enums.EventOrderStateChanged:
		var payload payloads.OrderStateChangedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return c.stateChangeNotifications(payload), nil

	case enums.EventOrderCanceled:
		var payload payloads.OrderCanceledEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		message := "The order has been canceled."
		if payload.Reason != "" {
			message = fmt.Sprintf("The order has been canceled: %s", payload.Reason)
		}
		return []*models.Notification{
			notify(payload.BuyerID, enums.NotificationTypeOrderAlert, payload.OrderID, "Order canceled", message),
			notify(payload.SellerID, enums.NotificationTypeOrderAlert, payload.OrderID, "Order canceled", message),
		}, nil

	case enums.EventOrderDisputed:
		var payload payloads.OrderDisputedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return []*models.Notification{notify(payload.SellerID, enums.NotificationTypeOrderAlert, payload.OrderID,
			"Order disputed",
			fmt.Sprintf("The buyer disputed the order: %s", payload.Reason))}, nil

	case enums.EventAvailabilityHoldPlaced:
		var payload payloads.AvailabilityHoldPlacedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		message := fmt.Sprintf("The seller reported an availability issue: %s", payload.Reason)
		if payload.WaitTimeDays != nil {
			message = fmt.Sprintf("%s Estimated wait: %d days. Please choose to wait or cancel.", message, *payload.WaitTimeDays)
		}
		return []*models.Notification{notify(payload.BuyerID, enums.NotificationTypeAvailabilityAlert, payload.OrderID,
			"Action needed on your order", message)}, nil

	case enums.EventRefundRequested:
		var payload payloads.RefundRequestedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return []*models.Notification{notify(payload.BuyerID, enums.NotificationTypeRefundAlert, payload.OrderID,
			"Refund initiated",
			fmt.Sprintf("A refund of %s is being processed for your order.", formatCents(payload.AmountCents, enums.CurrencyUSD)))}, nil

	default:
		return nil, nil
	}
}

func (c *Consumer) stateChangeNotifications(payload payloads.OrderStateChangedEvent) []*models.Notification {
	switch payload.ToStatus {
	case enums.OrderStatusSent:
		return []*models.Notification{notify(payload.BuyerID, enums.NotificationTypeOrderAlert, payload.OrderID,
			"Order on its way",
			"The seller has sent your order.")}
	case enums.OrderStatusReceived:
		return []*models.Notification{notify(payload.SellerID, enums.NotificationTypeOrderAlert, payload.OrderID,
			"Delivery confirmed",
			"The buyer confirmed receipt of the order.")}
	case enums.OrderStatusCompleted:
		return []*models.Notification{notify(payload.SellerID, enums.NotificationTypeOrderAlert, payload.OrderID,
			"Order completed",
			"The order is complete and your payout has been scheduled.")}
	default:
		return nil
	}
}

func notify(userID uuid.UUID, kind enums.NotificationType, orderID uuid.UUID, title, message string) *models.Notification {
	id := orderID
	return &models.Notification{
		UserID:  userID,
		Type:    kind,
		Title:   title,
		Message: message,
		OrderID: &id,
	}
}

func formatCents(cents int64, currency enums.Currency) string {
	return fmt.Sprintf("%.2f %s", float64(cents)/100, currency)
}
