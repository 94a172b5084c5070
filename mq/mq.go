// Package mq carries order events over Redis pub/sub.
package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"agromart/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const Channel = "order-events"

const (
	OrderCreated = "order.created"
	OrderStatus  = "order.status"
	OrderDeleted = "order.deleted"
)

type Event struct {
	Type    string             `json:"type"`
	OrderID string             `json:"orderId"`
	UserID  string             `json:"userId"`
	Status  models.OrderStatus `json:"status"`
	At      time.Time          `json:"at"`
}

// NewOrderEvent builds an event of typ describing o.
func NewOrderEvent(typ string, o *models.Order) Event {
	return Event{
		Type:    typ,
		OrderID: o.ID.Hex(),
		UserID:  o.UserID.Hex(),
		Status:  o.Status,
		At:      time.Now().UTC(),
	}
}

type Publisher struct {
	conn *redis.Client
}

func NewPublisher(conn *redis.Client) *Publisher {
	return &Publisher{conn: conn}
}

func (p *Publisher) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.conn.Publish(ctx, Channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

// Subscribe delivers events to handle until ctx is cancelled.
func Subscribe(ctx context.Context, conn *redis.Client, logger *zap.Logger, handle func(Event)) {
	sub := conn.Subscribe(ctx, Channel)
	defer sub.Close()

	logger.Info("listening for order events", zap.String("channel", Channel))
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			e, err := Decode([]byte(msg.Payload))
			if err != nil {
				logger.Warn("bad order event", zap.Error(err))
				continue
			}
			handle(e)
		}
	}
}

func Decode(payload []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(payload, &e); err != nil {
		return Event{}, err
	}
	if e.Type == "" || e.UserID == "" {
		return Event{}, fmt.Errorf("event missing type or user")
	}
	return e, nil
}
