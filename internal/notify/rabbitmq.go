package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	// ExchangeName is the topic exchange notifications are published to.
	ExchangeName   = "ride_notifications"
	reconnInterval = 5 * time.Second
	publishTimeout = 3 * time.Second
)

var errClosed = errors.New("amqp connection closed")

// RabbitNotifier publishes notifications to a topic exchange with routing
// key "<audience>.<kind>", for example "rider.ride_cancelled".
type RabbitNotifier struct {
	ctx    context.Context
	url    string
	logger *zap.Logger

	mu           sync.Mutex
	conn         *amqp.Connection
	ch           *amqp.Channel
	reconnecting bool
}

// NewRabbitNotifier connects to url and declares the exchange.
func NewRabbitNotifier(ctx context.Context, url string, logger *zap.Logger) (*RabbitNotifier, error) {
	r := &RabbitNotifier{ctx: ctx, url: url, logger: logger}
	if err := r.connect(); err != nil {
		return nil, fmt.Errorf("rabbit connect: %w", err)
	}
	return r, nil
}

// RoutingKey returns the routing key for n.
func RoutingKey(n Notification) string {
	return n.Audience + "." + string(n.Kind)
}

func (r *RabbitNotifier) Notify(ctx context.Context, n Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if !r.IsAlive() {
		go r.reconnect()
		return errClosed
	}
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	pubctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	r.mu.Lock()
	ch := r.ch
	r.mu.Unlock()
	return ch.PublishWithContext(pubctx, ExchangeName, RoutingKey(n), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    n.ID.String(),
		Timestamp:    n.CreatedAt,
		Type:         string(n.Kind),
		Body:         body,
	})
}

// IsAlive reports whether the connection and channel are open.
func (r *RabbitNotifier) IsAlive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil || r.conn.IsClosed() {
		return false
	}
	return r.ch != nil && !r.ch.IsClosed()
}

// Name and Check let the notifier act as a readiness probe.
func (r *RabbitNotifier) Name() string { return "rabbitmq" }

func (r *RabbitNotifier) Check(context.Context) error {
	if !r.IsAlive() {
		return errClosed
	}
	return nil
}

func (r *RabbitNotifier) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ch != nil && !r.ch.IsClosed() {
		if err := r.ch.Close(); err != nil {
			return fmt.Errorf("close rabbitmq channel: %w", err)
		}
	}
	if r.conn != nil && !r.conn.IsClosed() {
		if err := r.conn.Close(); err != nil {
			return fmt.Errorf("close rabbitmq connection: %w", err)
		}
	}
	return nil
}

func (r *RabbitNotifier) connect() error {
	conn, err := amqp.Dial(r.url)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}
	if err := ch.ExchangeDeclare(ExchangeName, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}

	r.mu.Lock()
	r.conn, r.ch = conn, ch
	r.mu.Unlock()
	return nil
}

func (r *RabbitNotifier) reconnect() {
	r.mu.Lock()
	if r.reconnecting {
		r.mu.Unlock()
		return
	}
	r.reconnecting = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.reconnecting = false
		r.mu.Unlock()
	}()

	t := time.NewTicker(reconnInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if err := r.connect(); err != nil {
				r.logger.Warn("rabbitmq reconnect failed", zap.Error(err))
				continue
			}
			r.logger.Info("rabbitmq reconnected")
			return
		case <-r.ctx.Done():
			return
		}
	}
}
