package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"quiz-gate-service/internal/domain"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Channel is the subset of *amqp091.Channel the publisher needs.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// Publisher forwards session starts and outcomes to a RabbitMQ topic exchange.
// A publisher built without a URL is disabled and drops events.
type Publisher struct {
	conn    *amqp091.Connection
	mu      sync.Mutex
	channel Channel
	enabled bool
	clock   func() time.Time
	log     *zap.Logger
}

// NewPublisher dials url and declares the exchange. An empty url yields a disabled publisher.
func NewPublisher(url string, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if url == "" {
		logger.Warn("rabbitmq url is empty, quiz event publishing is disabled")
		return &Publisher{clock: time.Now, log: logger}, nil
	}

	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(ExchangeName, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	p := NewChannelPublisher(ch, logger)
	p.conn = conn
	return p, nil
}

// NewChannelPublisher publishes over an already open channel.
func NewChannelPublisher(ch Channel, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{channel: ch, enabled: true, clock: time.Now, log: logger}
}

// OnOutcome implements app.OutcomeReporter. Failures are logged, never returned,
// so a broker outage cannot affect the session.
func (p *Publisher) OnOutcome(ctx context.Context, outcome domain.Outcome) {
	key := OutcomeRoutingKey(outcome.Kind)
	if err := p.publish(ctx, key, NewOutcomeEvent(outcome)); err != nil {
		p.log.Error("publish quiz outcome", zap.String("routing_key", key), zap.String("session_id", outcome.SessionID), zap.Error(err))
	}
}

// OnStart implements app.StartObserver.
func (p *Publisher) OnStart(ctx context.Context, snap domain.Snapshot) {
	if err := p.publish(ctx, RoutingKeySessionStarted, NewSessionStartedEvent(snap, p.clock())); err != nil {
		p.log.Error("publish session start", zap.String("session_id", snap.SessionID), zap.Error(err))
	}
}

func (p *Publisher) publish(ctx context.Context, routingKey string, event any) error {
	if !p.enabled {
		p.log.Debug("event publishing is disabled, skipping event", zap.String("routing_key", routingKey))
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(pubCtx, ExchangeName, routingKey, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    p.clock(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	p.log.Debug("published event", zap.String("routing_key", routingKey))
	return nil
}

func (p *Publisher) Close() error {
	if !p.enabled {
		return nil
	}
	if err := p.channel.Close(); err != nil {
		p.log.Warn("close rabbitmq channel", zap.Error(err))
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			return fmt.Errorf("close rabbitmq connection: %w", err)
		}
	}
	return nil
}
