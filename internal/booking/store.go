package booking

import (
	"context"

	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// Store is the persistence boundary of the engine.  Implementations
// must make every InShowtimeTx call behave as if it held an exclusive
// lock on the showtime's seats from the first Tx read until commit or
// rollback, and must roll back whenever fn returns an error or panics.
type Store interface {
	// InShowtimeTx runs fn inside one transaction scoped to showtimeID.
	// A nil return from fn commits.  A commit failure is returned as an
	// error; a unique-key violation on a booking seat is returned as a
	// Conflict *Error.
	InShowtimeTx(ctx context.Context, showtimeID uint64, fn func(ctx context.Context, tx Tx) error) error
	Ledger
}

// Tx is the unit of work handed to InShowtimeTx callbacks.
type Tx interface {
	// SeatMap loads the showtime's current seat state.  It returns a
	// NotFound *Error when the showtime does not exist.
	SeatMap(ctx context.Context) (*SeatMap, error)
	// InsertBooking appends a ledger row and its seat rows and assigns b.ID.
	InsertBooking(ctx context.Context, b *model.Booking) error
	// MarkBooked flips the listed seats from free to booked.  A seat that
	// is not free yields a Conflict *Error.
	MarkBooked(ctx context.Context, coords []model.Coord) error
}

// Ledger is the read side over committed bookings.
type Ledger interface {
	// ListForUser returns the user's bookings newest first, seats
	// ascending by (row, col).
	ListForUser(ctx context.Context, userID uint64) ([]model.Booking, error)
	// GetForUser returns one booking of the user or a NotFound *Error.
	GetForUser(ctx context.Context, userID, bookingID uint64) (model.Booking, error)
	// LoadSeatMap reads the committed seat state of a showtime.
	LoadSeatMap(ctx context.Context, showtimeID uint64) (*SeatMap, error)
}

// UserResolver maps an authenticated caller to an active account.
type UserResolver interface {
	// ResolveUser returns the user or an UnknownUser *Error.
	ResolveUser(ctx context.Context, userID uint64) (model.User, error)
}

// Event is what the engine reports after a booking commits.
type Event struct {
	Booking model.Booking
}

// Notifier receives post-commit events.  Failures are logged by the
// engine and never undo a committed booking.
type Notifier interface {
	BookingCreated(ctx context.Context, ev Event) error
}
