package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"micro-savings-wallet/config"
	"micro-savings-wallet/internal/core/ports"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// connection is the subset of *amqp.Connection the publisher uses.
type connection interface {
	Channel() (channel, error)
	Close() error
}

type amqpConnection struct {
	conn *amqp.Connection
}

func (c amqpConnection) Channel() (channel, error) { return c.conn.Channel() }
func (c amqpConnection) Close() error              { return c.conn.Close() }

// Publisher implements ports.SettlementPublisher on a durable topic exchange.
type Publisher struct {
	mu         sync.Mutex
	conn       connection
	ch         channel
	exchange   string
	routingKey string
	log        zerolog.Logger
}

// NewPublisher dials the broker and declares the settlement exchange.
func NewPublisher(cfg config.RabbitMQConfig, log zerolog.Logger) (*Publisher, error) {
	amqpURL, err := sanitizeURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	conn, err := amqp.DialConfig(amqpURL, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, fmt.Errorf("dialing rabbitmq: %w", err)
	}
	return newPublisher(amqpConnection{conn: conn}, cfg.Exchange, cfg.RoutingKey, log)
}

func newPublisher(conn connection, exchange, routingKey string, log zerolog.Logger) (*Publisher, error) {
	p := &Publisher{
		conn:       conn,
		exchange:   exchange,
		routingKey: routingKey,
		log:        log.With().Str("component", "settlement_publisher").Logger(),
	}
	if err := p.openChannel(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	p.log.Info().
		Str("exchange", exchange).
		Str("routing_key", routingKey).
		Msg("RabbitMQ publisher ready")
	return p, nil
}

func (p *Publisher) openChannel() error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("opening rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return fmt.Errorf("declaring exchange %s: %w", p.exchange, err)
	}
	p.ch = ch
	return nil
}

// PublishWithdrawalRequested sends the event as a persistent JSON message.
// A failed publish reopens the channel and tries once more.
func (p *Publisher) PublishWithdrawalRequested(ctx context.Context, event ports.WithdrawalRequestedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding withdrawal event: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ExternalReference,
		Timestamp:    event.RequestedAt,
		Type:         p.routingKey,
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx, p.exchange, p.routingKey, false, false, msg)
	if err == nil {
		return nil
	}

	p.log.Warn().Err(err).
		Str("external_reference", event.ExternalReference).
		Msg("Publish failed, reopening channel")
	if reopenErr := p.openChannel(); reopenErr != nil {
		return fmt.Errorf("publishing withdrawal %s: %w", event.ExternalReference, errors.Join(err, reopenErr))
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, p.routingKey, false, false, msg); err != nil {
		return fmt.Errorf("publishing withdrawal %s: %w", event.ExternalReference, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	return errors.Join(errs...)
}

func sanitizeURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", fmt.Errorf("parsing rabbitmq url: %w", err)
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("rabbitmq url scheme must be amqp:// or amqps://")
	}
	return clean, nil
}

// NoopPublisher logs and drops events. Used when no broker is configured.
type NoopPublisher struct {
	log zerolog.Logger
}

func NewNoopPublisher(log zerolog.Logger) *NoopPublisher {
	return &NoopPublisher{log: log.With().Str("component", "settlement_publisher").Logger()}
}

func (p *NoopPublisher) PublishWithdrawalRequested(_ context.Context, event ports.WithdrawalRequestedEvent) error {
	p.log.Warn().
		Str("external_reference", event.ExternalReference).
		Str("withdrawal_id", event.WithdrawalID.String()).
		Msg("Settlement broker disabled, withdrawal event not published")
	return nil
}

func (p *NoopPublisher) Close() error { return nil }
