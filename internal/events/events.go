package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Lifecycle event types. They double as AMQP routing keys.
const (
	RequestInitialized = "request.initialized"
	RequestConfirmed   = "request.confirmed"
	RequestUpdated     = "request.updated"
	RequestCancelled   = "request.cancelled"
	RequestDispatched  = "request.dispatched"
	RequestDelivered   = "request.delivered"
	PaymentCreated     = "payment.created"
)

const DefaultExchange = "kwikpik.events"

type Event struct {
	Type       string    `json:"type"`
	BusinessID string    `json:"businessId"`
	RequestID  string    `json:"requestId"`
	At         time.Time `json:"at"`
	Data       any       `json:"data,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// AMQP publishes events as persistent JSON messages to a topic exchange.
type AMQP struct {
	exchange string
	conn     *amqp.Connection

	mu sync.Mutex // guards ch; amqp channels are not safe for concurrent publishing
	ch *amqp.Channel
}

// DialAMQP connects to url and declares exchange as a durable topic exchange.
func DialAMQP(url, exchange string) (*AMQP, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(30 * time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial failed: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: declare exchange %q: %w", exchange, err)
	}

	return &AMQP{exchange: exchange, conn: conn, ch: ch}, nil
}

func (p *AMQP) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil || p.ch.IsClosed() {
		return errors.New("rabbitmq: publish channel is not open")
	}

	return p.ch.PublishWithContext(ctx, p.exchange, e.Type, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    uuid.NewString(),
		Timestamp:    e.At,
		Type:         e.Type,
		Body:         body,
	})
}

func (p *AMQP) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
		p.ch = nil
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
		p.conn = nil
	}
	return errors.Join(errs...)
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Types returns the types of the recorded events in publish order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
