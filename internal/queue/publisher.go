package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/cinema-seat-booking/internal/booking"
	"github.com/iliyamo/cinema-seat-booking/internal/logger"
)

// Channel is the subset of *amqp.Channel the publisher uses.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Dialer opens a channel on a fresh connection.  The returned closer
// closes the connection.  Implementations must give up when ctx ends.
type Dialer func(ctx context.Context, url string) (Channel, func() error, error)

const (
	dialTimeout    = 5 * time.Second
	publishTimeout = 5 * time.Second
	defaultBacklog = 256
)

// ErrBacklogFull is returned by BookingCreated when Run has fallen
// behind and the event was dropped.
var ErrBacklogFull = errors.New("rabbitmq: publish backlog full")

// DialAMQP is the production Dialer.  The TCP dial and handshake are
// bounded by dialTimeout or the ctx deadline, whichever comes first.
func DialAMQP(ctx context.Context, url string) (Channel, func() error, error) {
	timeout := dialTimeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
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

// Publisher sends BookingCreatedEvent messages.  BookingCreated only
// queues the event; Run delivers the queue in the background, keeping
// one channel open and redialing once when a publish fails.
type Publisher struct {
	url    string
	dial   Dialer
	log    *logger.Logger
	events chan BookingCreatedEvent

	mu     sync.Mutex
	ch     Channel
	closer func() error
}

// NewPublisher does not connect; the first publish does.
func NewPublisher(url string, dial Dialer, log *logger.Logger) *Publisher {
	if dial == nil {
		dial = DialAMQP
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Publisher{url: url, dial: dial, log: log, events: make(chan BookingCreatedEvent, defaultBacklog)}
}

// BookingCreated implements booking.Notifier.  It never waits for the
// broker.
func (p *Publisher) BookingCreated(_ context.Context, ev booking.Event) error {
	select {
	case p.events <- NewBookingCreatedEvent(ev):
		return nil
	default:
		return fmt.Errorf("%w: booking %d", ErrBacklogFull, ev.Booking.ID)
	}
}

// Run publishes queued events until ctx ends.  Events that still sit in
// the backlog at that point are not delivered.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			if n := len(p.events); n > 0 {
				p.log.Warn("rabbitmq: publisher stopped with undelivered events", "count", n)
			}
			return
		case ev := <-p.events:
			pctx, cancel := context.WithTimeout(ctx, publishTimeout)
			if err := p.Publish(pctx, ev); err != nil {
				p.log.Error("rabbitmq: booking event dropped", "booking_id", ev.BookingID, "error", err.Error())
			}
			cancel()
		}
	}
}

// Publish marshals the event and sends it as a persistent message.
func (p *Publisher) Publish(ctx context.Context, ev BookingCreatedEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal event: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for attempt := 0; attempt < 2; attempt++ {
		if ctx.Err() != nil {
			break
		}
		if err = p.ensureChannel(ctx); err != nil {
			continue
		}
		err = p.ch.PublishWithContext(ctx, "", BookingQueue, false, false, msg)
		if err == nil {
			return nil
		}
		p.log.Warn("rabbitmq: publish failed, redialing", "error", err.Error())
		p.reset()
	}
	if err == nil {
		err = ctx.Err()
	}
	return fmt.Errorf("rabbitmq: publish booking %d: %w", ev.BookingID, err)
}

func (p *Publisher) ensureChannel(ctx context.Context) error {
	if p.ch != nil {
		return nil
	}
	ch, closer, err := p.dial(ctx, p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq: dial: %w", err)
	}
	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(BookingQueue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		if closer != nil {
			_ = closer()
		}
		return fmt.Errorf("rabbitmq: queue declare: %w", err)
	}
	p.ch, p.closer = ch, closer
	return nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.closer != nil {
		_ = p.closer()
	}
	p.ch, p.closer = nil, nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}
