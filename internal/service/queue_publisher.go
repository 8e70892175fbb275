package service

import (
	"context"
	"encoding/json"
	"net"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	q "github.com/iliyamo/pasal-api/internal/queue"
)

// EventPublisher delivers domain events.  Publishing is best effort: a
// failure is logged by the caller and never fails the request.
type EventPublisher interface {
	Publish(ctx context.Context, ev q.Event) error
}

// NoopPublisher drops every event.  It is used when EVENTS_ENABLED is off.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, q.Event) error { return nil }

// AMQPPublisher publishes events as persistent JSON messages on a durable
// RabbitMQ queue through the default exchange.
type AMQPPublisher struct {
	URL   string
	Queue string
}

// NewAMQPPublisher returns a publisher for url, defaulting the queue name.
func NewAMQPPublisher(url, queue string) *AMQPPublisher {
	if queue == "" {
		queue = q.DefaultQueue
	}
	return &AMQPPublisher{URL: url, Queue: queue}
}

// handshakeTimeout bounds the TCP dial and AMQP handshake when ctx carries
// no deadline of its own.
const handshakeTimeout = 30 * time.Second

// dialContext returns an amqp dialer bound to ctx.  The connection deadline
// covers the TLS and AMQP handshakes; the library clears it once the
// connection is open.
func dialContext(ctx context.Context) func(network, addr string) (net.Conn, error) {
	return func(network, addr string) (net.Conn, error) {
		var d net.Dialer
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		deadline, ok := ctx.Deadline()
		if !ok {
			deadline = time.Now().Add(handshakeTimeout)
		}
		if err := conn.SetDeadline(deadline); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return conn, nil
	}
}

// Publish dials, declares the queue (idempotent) and publishes ev.  Each
// call uses its own connection so no broker state is shared between
// requests.  ctx bounds the whole exchange, including the dial.
func (p *AMQPPublisher) Publish(ctx context.Context, ev q.Event) error {
	conn, err := amqp.DialConfig(p.URL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      dialContext(ctx),
	})
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		p.Queue, // name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // args
	); err != nil {
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return ch.PublishWithContext(ctx,
		"",      // default exchange
		p.Queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Type:         ev.Type,
			Body:         body,
		},
	)
}

// publishAsync publishes ev off the request path.  The request context's
// cancellation is dropped so a finished request does not abort delivery.
func publishAsync(ctx context.Context, pub EventPublisher, log *zap.Logger, ev q.Event) {
	if pub == nil {
		return
	}
	if _, ok := pub.(NoopPublisher); ok {
		return
	}
	go func() {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := pub.Publish(pctx, ev); err != nil {
			log.Warn("event publish failed", zap.String("event", ev.Type), zap.Error(err))
		}
	}()
}
