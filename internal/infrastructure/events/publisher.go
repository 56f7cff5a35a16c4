package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultStream is the Redis stream settlement and notification consumers read from.
const DefaultStream = "allocation:events"

const (
	TypeOrderPlaced    = "order.placed"
	TypeOrderConfirmed = "order.confirmed"
	TypeOrderReleased  = "order.released"
	TypeOrderRefunded  = "order.refunded"
	TypeTagCompleted   = "tag.completed"
)

// Event is a settlement record emitted after an allocation transaction commits.
type Event struct {
	Type        string    `json:"type"`
	OrderNumber string    `json:"order_number,omitempty"`
	OfferingID  string    `json:"offering_id"`
	BuyerID     string    `json:"buyer_id,omitempty"`
	TagNumber   int64     `json:"tag_number"`
	Tokens      int64     `json:"tokens,omitempty"`
	Amount      string    `json:"amount,omitempty"`
	Currency    string    `json:"currency,omitempty"`
	At          time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop discards events; used when Redis is not configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// RedisPublisher appends events to a capped Redis stream.
type RedisPublisher struct {
	Client *redis.Client
	Stream string
	MaxLen int64
}

func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	stream := p.Stream
	if stream == "" {
		stream = DefaultStream
	}
	maxLen := p.MaxLen
	if maxLen <= 0 {
		maxLen = 100000
	}
	return p.Client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type":    ev.Type,
			"payload": string(payload),
		},
	}).Err()
}
