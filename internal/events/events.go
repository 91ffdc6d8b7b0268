// Package events announces successful ledger mutations to other systems.
package events

import (
	"context"
	"time"
)

// Type names the kind of mutation.
type Type string

const (
	RecordCreated   Type = "created"
	RecordDeleted   Type = "deleted"
	QuantityChanged Type = "quantity_changed"
)

// Event describes one committed mutation.
type Event struct {
	Type       Type      `json:"type"`
	Collection string    `json:"collection"`
	RecordID   string    `json:"recordId"`
	UserID     string    `json:"userId"`
	At         time.Time `json:"at"`
}

// RoutingKey is "<collection>.<type>", e.g. "expenses.created".
func (e Event) RoutingKey() string {
	return e.Collection + "." + string(e.Type)
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// JSONPublisher is satisfied by the AMQP client.
type JSONPublisher interface {
	PublishJSON(ctx context.Context, routingKey string, payload any) error
}

// AMQPPublisher routes events to an exchange by collection and type.
type AMQPPublisher struct {
	client JSONPublisher
}

func NewAMQPPublisher(client JSONPublisher) *AMQPPublisher {
	return &AMQPPublisher{client: client}
}

func (p *AMQPPublisher) Publish(ctx context.Context, event Event) error {
	return p.client.PublishJSON(ctx, event.RoutingKey(), event)
}
