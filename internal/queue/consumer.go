package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/cinema-seat-booking/internal/logger"
)

// StartBookingConsumer connects to RabbitMQ, declares the booking queue
// and writes one line per booking event to out.  It reconnects with
// exponential backoff until ctx is cancelled.
func StartBookingConsumer(ctx context.Context, url string, out io.Writer, log *logger.Logger) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.DialConfig(url, amqp.Config{
			Heartbeat: 10 * time.Second,
			Locale:    "en_US",
			Dial:      amqp.DefaultDial(dialTimeout),
		})
		if err != nil {
			log.Warn("booking-consumer: failed to dial broker", slog.String("error", err.Error()), slog.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = consumeLoop(ctx, conn, out, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("booking-consumer: consume loop ended, reconnecting", slog.String("error", err.Error()))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, out io.Writer, log *logger.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn("booking-consumer: set QoS failed", slog.String("error", err.Error()))
	}
	if _, err := ch.QueueDeclare(BookingQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, BookingQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := HandleMessage(d.Body, out); err != nil {
			log.Error("booking-consumer: handle message failed", slog.String("error", err.Error()))
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

// HandleMessage decodes a booking event and appends one line to out.
func HandleMessage(body []byte, out io.Writer) error {
	var ev BookingCreatedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.BookingID == 0 {
		return errors.New("event without booking_id")
	}
	line := fmt.Sprintf("[%s] Booking created | booking_id=%d | user_id=%d | showtime_id=%d | seats=[%s]\n",
		ev.CreatedAt, ev.BookingID, ev.UserID, ev.ShowtimeID, strings.Join(ev.Seats, ","))
	if _, err := io.WriteString(out, line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
