// Package service holds the outbound adapters the engine publishes through.
// Publish errors are logged and returned so the caller can record them
// without interrupting the request that produced the event.
package service

import (
	"context"
	"encoding/json"
	"net"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/semaphore"

	"github.com/iliyamo/vehicle-auction-engine/internal/queue"
	"github.com/iliyamo/vehicle-auction-engine/internal/utils"
)

// Publisher sends auction events to RabbitMQ over one long-lived channel.
// The connection is dialled on first use and again after any failure.
// Every step, including waiting for a concurrent caller, is bounded by the
// caller's context.
type Publisher struct {
	URL   string
	Queue string // defaults to queue.QueueName

	sem  *semaphore.Weighted
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher returns a publisher for the durable auction event queue.
func NewPublisher(url string) *Publisher {
	return &Publisher{URL: url, Queue: queue.QueueName, sem: semaphore.NewWeighted(1)}
}

// Publish delivers ev as a persistent JSON message on the default exchange,
// routed to the event queue.
func (p *Publisher) Publish(ctx context.Context, ev queue.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)

	ch, err := p.channel(ctx)
	if err != nil {
		return err
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         ev.Type,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue(), false, false, msg); err != nil {
		utils.Warn("rabbitmq publish failed", map[string]any{"queue": p.queue(), "type": ev.Type, "error": err.Error()})
		p.reset()
		return err
	}
	return nil
}

// Close releases the connection.  A later Publish dials again.
func (p *Publisher) Close() error {
	if err := p.sem.Acquire(context.Background(), 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	p.reset()
	return nil
}

func (p *Publisher) queue() string {
	if p.Queue == "" {
		return queue.QueueName
	}
	return p.Queue
}

// channel returns the cached channel or opens a new one.  Callers hold sem.
func (p *Publisher) channel(ctx context.Context) (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() && p.conn != nil && !p.conn.IsClosed() {
		return p.ch, nil
	}
	p.reset()

	conn, err := amqp.DialConfig(p.URL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      dialContext(ctx),
	})
	if err != nil {
		utils.Warn("rabbitmq dial failed", map[string]any{"error": err.Error()})
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		utils.Warn("rabbitmq channel open failed", map[string]any{"error": err.Error()})
		_ = conn.Close()
		return nil, err
	}
	// idempotent; durable so messages survive broker restarts
	if _, err := ch.QueueDeclare(p.queue(), true, false, false, false, nil); err != nil {
		utils.Warn("rabbitmq queue declare failed", map[string]any{"queue": p.queue(), "error": err.Error()})
		_ = conn.Close()
		return nil, err
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

// dialContext connects under ctx and carries its deadline into the AMQP
// handshake.  The client clears the deadline once the connection is open.
func dialContext(ctx context.Context) func(network, addr string) (net.Conn, error) {
	return func(network, addr string) (net.Conn, error) {
		var d net.Dialer
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		if deadline, ok := ctx.Deadline(); ok {
			if err := conn.SetDeadline(deadline); err != nil {
				_ = conn.Close()
				return nil, err
			}
		}
		return conn, nil
	}
}
