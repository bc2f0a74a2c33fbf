// Package events builds order events, stages them in the outbox inside the
// caller's transaction and relays committed records to the message bus.
package events

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/lephuong249/storefront-orders/internal/models"
	"github.com/lephuong249/storefront-orders/internal/repository"
)

const DefaultTopic = "order-events"

type Type string

const (
	OrderCreated       Type = "order.created"
	OrderStatusChanged Type = "order.status_changed"
	OrderCancelled     Type = "order.cancelled"
)

// Event is the JSON payload published for every committed order change.
type Event struct {
	EventID     string             `json:"event_id"`
	Type        Type               `json:"type"`
	OrderID     string             `json:"order_id"`
	OrderNumber string             `json:"order_number"`
	UserID      string             `json:"user_id"`
	ActorID     string             `json:"actor_id,omitempty"`
	OldStatus   models.OrderStatus `json:"old_status,omitempty"`
	NewStatus   models.OrderStatus `json:"new_status"`
	Total       decimal.Decimal    `json:"total"`
	Reason      string             `json:"reason,omitempty"`
	OccurredAt  time.Time          `json:"occurred_at"`
}

// NewEvent describes a change of order from old to order.Status.
func NewEvent(typ Type, order models.Order, old models.OrderStatus, actorID, reason string, at time.Time) Event {
	return Event{
		EventID:     ulid.MustNew(ulid.Timestamp(at), rand.Reader).String(),
		Type:        typ,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		ActorID:     actorID,
		OldStatus:   old,
		NewStatus:   order.Status,
		Total:       order.Total,
		Reason:      reason,
		OccurredAt:  at.UTC(),
	}
}

// Recorder stages events in the outbox of the current transaction.
type Recorder struct {
	Topic string
}

func NewRecorder(topic string) *Recorder {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Recorder{Topic: topic}
}

func (r *Recorder) Record(ctx context.Context, outbox repository.OutboxRepository, evt Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", evt.Type, err)
	}
	rec := models.OutboxRecord{
		EventID:   evt.EventID,
		Topic:     r.Topic,
		Key:       evt.OrderID,
		Payload:   data,
		CreatedAt: evt.OccurredAt,
	}
	if err := outbox.Insert(ctx, rec); err != nil {
		return fmt.Errorf("stage %s event: %w", evt.Type, err)
	}
	return nil
}
