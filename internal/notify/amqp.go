package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spigell/rozgar/internal/utils"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

const (
	DefaultExchange = "rozgar.events"

	dialAttempts = 3
	dialBackoff  = time.Second
	maxBackoff   = 30 * time.Second
	dialTimeout  = 2 * time.Second
	heartbeat    = 10 * time.Second
)

// ErrPublisherDown is returned by Publish while the broker connection is being restored.
var ErrPublisherDown = errors.New("rabbitmq connection is down")

// AMQP publishes events as JSON to a durable topic exchange, routed by event type.
// Publish never dials: a lost connection is restored by a single background loop
// and events published meanwhile are dropped.
type AMQP struct {
	url      string
	exchange string
	logger   *zap.Logger
	dial     func(url string) (*amqp.Connection, error)

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	conn         *amqp.Connection
	reconnecting bool
}

// DialAMQP connects and declares the exchange, retrying the dial a few times.
func DialAMQP(ctx context.Context, url, exchange string, logger *zap.Logger) (*AMQP, error) {
	p := newAMQP(url, exchange, logger, dialBroker)
	conn, err := p.connect(ctx, dialAttempts)
	if err != nil {
		p.cancel()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func newAMQP(url, exchange string, logger *zap.Logger, dial func(string) (*amqp.Connection, error)) *AMQP {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &AMQP{
		url:      url,
		exchange: exchange,
		logger:   logger,
		dial:     dial,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func dialBroker(url string) (*amqp.Connection, error) {
	return amqp.DialConfig(url, amqp.Config{
		Heartbeat: heartbeat,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(dialTimeout),
	})
}

// connect dials until it succeeds or ctx is done. attempts == 0 means no limit.
func (p *AMQP) connect(ctx context.Context, attempts int) (*amqp.Connection, error) {
	var lastErr error
	for attempt := 1; attempts == 0 || attempt <= attempts; attempt++ {
		conn, err := p.dial(p.url)
		if err == nil {
			if err = declareExchange(conn, p.exchange); err == nil {
				return conn, nil
			}
			_ = conn.Close()
		}

		lastErr = err
		p.logger.Warn("amqp dial failed", zap.Int("attempt", attempt), zap.Error(err))
		if attempt == attempts {
			break
		}
		if err := utils.WaitFor(ctx, backoff(attempt)); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("connect to rabbitmq: %w", lastErr)
}

func backoff(attempt int) time.Duration {
	d := time.Duration(attempt) * dialBackoff
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// reconnect starts the background dial loop unless one is running. p.mu must be held.
func (p *AMQP) reconnect() {
	if p.reconnecting || p.ctx.Err() != nil {
		return
	}
	p.reconnecting = true
	p.logger.Info("reconnecting to rabbitmq")

	go func() {
		conn, err := p.connect(p.ctx, 0)

		p.mu.Lock()
		defer p.mu.Unlock()
		p.reconnecting = false
		if err != nil {
			return
		}
		if p.ctx.Err() != nil {
			_ = conn.Close()
			return
		}
		p.conn = conn
		p.logger.Info("reconnected to rabbitmq")
	}()
}

func declareExchange(conn *amqp.Connection, exchange string) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return nil
}

func (p *AMQP) Publish(_ context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil || p.conn.IsClosed() {
		p.reconnect()
		return fmt.Errorf("publish %s: %w", event.Type, ErrPublisherDown)
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	err = ch.Publish(
		p.exchange,
		event.Type,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

func (p *AMQP) Close() error {
	p.cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	if errors.Is(err, amqp.ErrClosed) {
		return nil
	}
	return err
}
