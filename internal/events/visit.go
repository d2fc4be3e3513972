// Package events publishes domain events to RabbitMQ for downstream consumers
// (reporting, loyalty). Publishing happens after the database commit and never
// undoes it.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"barbershop-queue/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

const VisitCompletedQueue = "visit.completed"

// dialTimeout bounds the connection handshake when ctx carries no deadline.
const dialTimeout = 5 * time.Second

// VisitCompleted is emitted once per successfully completed visit.
type VisitCompleted struct {
	HistoryID       string    `json:"history_id"`
	QueueID         string    `json:"queue_id"`
	CustomerID      string    `json:"customer_id"`
	BarberID        string    `json:"barber_id"`
	TotalCents      int64     `json:"total_cents"`
	FeeCents        int64     `json:"fee_cents"`
	NetCents        int64     `json:"net_cents"`
	CommissionCents int64     `json:"commission_cents"`
	PaymentMethod   string    `json:"payment_method"`
	CompletedAt     time.Time `json:"completed_at"`
}

func NewVisitCompleted(h *models.HistoryEntry) VisitCompleted {
	return VisitCompleted{
		HistoryID:       h.ID,
		QueueID:         h.QueueID,
		CustomerID:      h.CustomerID,
		BarberID:        h.BarberID,
		TotalCents:      h.TotalCents,
		FeeCents:        h.FeeCents,
		NetCents:        h.NetCents,
		CommissionCents: h.CommissionCents,
		PaymentMethod:   string(h.PaymentMethod),
		CompletedAt:     h.CreatedAt.UTC(),
	}
}

// channel is the part of *amqp.Channel the publisher needs.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher opens a short-lived connection per message.
type Publisher struct {
	url  string
	open func(ctx context.Context, url string) (channel, func() error, error)
}

func NewPublisher(url string) *Publisher {
	return &Publisher{url: url, open: dial}
}

// dial bounds the TCP connect and AMQP handshake by ctx's deadline, or dialTimeout.
func dial(ctx context.Context, url string) (channel, func() error, error) {
	timeout := dialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if timeout <= 0 {
		return nil, nil, context.DeadlineExceeded
	}

	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return ch, conn.Close, nil
}

func (p *Publisher) PublishVisitCompleted(ctx context.Context, h *models.HistoryEntry) error {
	const op = "events.PublishVisitCompleted"

	body, err := json.Marshal(NewVisitCompleted(h))
	if err != nil {
		return fmt.Errorf("%s: marshal: %w", op, err)
	}

	ch, closeConn, err := p.open(ctx, p.url)
	if err != nil {
		return fmt.Errorf("%s: dial: %w", op, err)
	}
	defer func() { _ = closeConn() }()
	defer func() { _ = ch.Close() }()

	// durable so messages survive broker restarts
	if _, err := ch.QueueDeclare(VisitCompletedQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("%s: declare: %w", op, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", VisitCompletedQueue, false, false, msg); err != nil {
		return fmt.Errorf("%s: publish: %w", op, err)
	}
	return nil
}
