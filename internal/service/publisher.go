// Package service provides the broker-facing side of the entry event stream.
// Publish errors are logged and returned so callers can ignore them without
// interrupting the main request flow.
package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/movie-tracker/internal/queue"
)

// Publisher publishes entry events to a durable queue over one long-lived
// broker connection.  A channel is opened per publish because amqp channels
// must not be shared between goroutines.
type Publisher struct {
	mu    sync.Mutex
	url   string
	queue string
	conn  *amqp.Connection
}

// NewPublisher dials the broker and declares the queue.  The caller owns
// the returned Publisher and must Close it on shutdown.
func NewPublisher(url, queueName string) (*Publisher, error) {
	p := &Publisher{url: url, queue: queueName}
	conn, err := p.connect()
	if err != nil {
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func (p *Publisher) connect() (*amqp.Connection, error) {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, errors.Wrap(err, "rabbitmq dial")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "rabbitmq channel")
	}
	defer func() { _ = ch.Close() }()
	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "rabbitmq queue declare")
	}
	return conn, nil
}

// channel returns a fresh channel, re-dialling once if the connection was lost.
func (p *Publisher) channel() (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil || p.conn.IsClosed() {
		conn, err := p.connect()
		if err != nil {
			return nil, err
		}
		p.conn = conn
	}
	ch, err := p.conn.Channel()
	return ch, errors.Wrap(err, "rabbitmq channel")
}

// Publish sends ev as a persistent JSON message.
func (p *Publisher) Publish(ctx context.Context, ev queue.EntryEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}
	ch, err := p.channel()
	if err != nil {
		log.WithError(err).Warn("rabbitmq: publish skipped")
		return err
	}
	defer func() { _ = ch.Close() }()

	err = ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         string(ev.Type),
		Body:         body,
	})
	if err != nil {
		log.WithError(err).WithField("event", ev.Type).Warn("rabbitmq: publish failed")
		return errors.Wrap(err, "publish")
	}
	return nil
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}

// NopPublisher discards events.  It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, queue.EntryEvent) error { return nil }
func (NopPublisher) Close() error                                   { return nil }
