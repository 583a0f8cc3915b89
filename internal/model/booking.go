package model

import "time"

// Booking is one user's claim on a set of seats of a showtime.  It is
// written together with its seat rows in a single transaction and is
// never updated or deleted afterwards.
//
// Fields:
//  ID         – primary key identifier, assigned by the store.
//  UserID     – user who booked.
//  ShowtimeID – showtime the seats belong to.
//  CreatedAt  – server timestamp of the booking.
//  Seats      – claimed coordinates, ascending by (row, col).
type Booking struct {
	ID         uint64    // bookings.id
	UserID     uint64    // bookings.user_id
	ShowtimeID uint64    // bookings.showtime_id
	CreatedAt  time.Time // bookings.created_at
	Seats      []Coord   // booking_seats rows
}
