// Package queue defines message payloads exchanged over the message broker.
package queue

import (
	"github.com/iliyamo/cinema-seat-booking/internal/booking"
)

// BookingQueue is the durable queue booking events are routed to.
const BookingQueue = "booking.created"

// BookingCreatedEvent is published after a booking commits.  It carries
// enough for consumers to log or notify without reading the database.
type BookingCreatedEvent struct {
	BookingID  uint64   `json:"booking_id"`
	UserID     uint64   `json:"user_id"`
	ShowtimeID uint64   `json:"showtime_id"`
	Seats      []string `json:"seats"` // "(row,col)"
	SeatCount  int      `json:"seat_count"`
	CreatedAt  string   `json:"created_at"` // RFC3339, UTC
}

// NewBookingCreatedEvent builds the wire payload of a booking event.
func NewBookingCreatedEvent(ev booking.Event) BookingCreatedEvent {
	b := ev.Booking
	seats := make([]string, 0, len(b.Seats))
	for _, c := range b.Seats {
		seats = append(seats, c.String())
	}
	return BookingCreatedEvent{
		BookingID:  b.ID,
		UserID:     b.UserID,
		ShowtimeID: b.ShowtimeID,
		Seats:      seats,
		SeatCount:  len(seats),
		CreatedAt:  b.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}
