// Package booking is the seat booking core: the seat map of a showtime,
// the availability check, and the engine that books seats atomically
// through a Store.
package booking

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/iliyamo/cinema-seat-booking/internal/logger"
	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// Result is what a successful Book returns.
type Result struct {
	BookingID   uint64 `json:"booking_id"`
	SeatsBooked int    `json:"seats_booked"`
}

// Engine is the only writer of seat state.  It is safe for concurrent
// use; isolation between concurrent bookings of the same showtime is
// provided by the Store.
type Engine struct {
	Store     Store
	Users     UserResolver
	Log       *logger.Logger
	Timeout   time.Duration    // upper bound for one Book call, 0 means the caller's deadline only
	Notifiers []Notifier       // run after commit, in order
	Now       func() time.Time // clock for booking timestamps

	// NotifyTimeout bounds all notifiers of one booking together.  The
	// caller's cancellation does not reach them; this deadline does.
	NotifyTimeout time.Duration
}

// NewEngine wires an engine with a 5 second booking timeout.
func NewEngine(store Store, users UserResolver, log *logger.Logger, notifiers ...Notifier) *Engine {
	if log == nil {
		log = logger.Discard()
	}
	return &Engine{
		Store:     store,
		Users:     users,
		Log:       log,
		Timeout:   5 * time.Second,
		Notifiers: notifiers,
		Now:       time.Now,

		NotifyTimeout: 2 * time.Second,
	}
}

// Book reserves seats of a showtime for a user.  Either every requested
// seat is booked under one new booking, or nothing changes and an
// *Error says why.
func (e *Engine) Book(ctx context.Context, userID, showtimeID uint64, seats []model.Coord) (Result, error) {
	coords, err := normalizeRequest(showtimeID, seats)
	if err != nil {
		return Result{}, err
	}
	if _, err := e.Users.ResolveUser(ctx, userID); err != nil {
		return Result{}, classify(ctx, err)
	}

	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	var created model.Booking
	err = e.Store.InShowtimeTx(ctx, showtimeID, func(ctx context.Context, tx Tx) error {
		sm, err := tx.SeatMap(ctx)
		if err != nil {
			return err
		}
		if err := CheckAllFree(sm, coords); err != nil {
			return err
		}
		b := model.Booking{
			UserID:     userID,
			ShowtimeID: showtimeID,
			CreatedAt:  e.now(),
			Seats:      coords,
		}
		if err := tx.InsertBooking(ctx, &b); err != nil {
			return err
		}
		if err := sm.MarkBooked(coords); err != nil {
			return err
		}
		if err := tx.MarkBooked(ctx, coords); err != nil {
			return err
		}
		created = b
		return nil
	})
	if err != nil {
		be := classify(ctx, err)
		e.Log.Warn("booking rejected",
			slog.Uint64("user_id", userID),
			slog.Uint64("showtime_id", showtimeID),
			slog.Int("seats", len(coords)),
			slog.String("reason", be.Kind.String()),
			slog.String("error", be.Error()),
		)
		return Result{}, be
	}

	e.Log.Info("booking created",
		slog.Uint64("booking_id", created.ID),
		slog.Uint64("user_id", userID),
		slog.Uint64("showtime_id", showtimeID),
		slog.Int("seats", len(coords)),
	)
	e.notify(ctx, Event{Booking: created})
	return Result{BookingID: created.ID, SeatsBooked: len(created.Seats)}, nil
}

// ListForUser returns the user's committed bookings, newest first.
func (e *Engine) ListForUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	out, err := e.Store.ListForUser(ctx, userID)
	if err != nil {
		return nil, classify(ctx, err)
	}
	return out, nil
}

// GetForUser returns one booking owned by the user.
func (e *Engine) GetForUser(ctx context.Context, userID, bookingID uint64) (model.Booking, error) {
	b, err := e.Store.GetForUser(ctx, userID, bookingID)
	if err != nil {
		return model.Booking{}, classify(ctx, err)
	}
	return b, nil
}

// SeatMatrix returns the committed seat state of a showtime as a
// Rows×Cols matrix of 0/1.
func (e *Engine) SeatMatrix(ctx context.Context, showtimeID uint64) ([][]int, error) {
	sm, err := e.Store.LoadSeatMap(ctx, showtimeID)
	if err != nil {
		return nil, classify(ctx, err)
	}
	return Project(sm), nil
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now().UTC()
	}
	return e.Now().UTC()
}

// notify runs after commit, detached from the caller's cancellation and
// bounded by NotifyTimeout.
func (e *Engine) notify(parent context.Context, ev Event) {
	if len(e.Notifiers) == 0 {
		return
	}
	ctx := context.WithoutCancel(parent)
	if e.NotifyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.NotifyTimeout)
		defer cancel()
	}
	for _, n := range e.Notifiers {
		if err := n.BookingCreated(ctx, ev); err != nil {
			e.Log.Warn("post-commit notifier failed",
				slog.Uint64("booking_id", ev.Booking.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// normalizeRequest validates the raw seat list and returns it
// deduplicated and sorted.
func normalizeRequest(showtimeID uint64, seats []model.Coord) ([]model.Coord, error) {
	if showtimeID == 0 {
		return nil, invalidRequest("showtime id is required")
	}
	if len(seats) == 0 {
		return nil, invalidRequest("at least one seat is required")
	}
	seen := make(map[model.Coord]struct{}, len(seats))
	out := make([]model.Coord, 0, len(seats))
	for _, c := range seats {
		if c.Row < 0 || c.Col < 0 {
			return nil, invalidRequest("malformed seat %s", c)
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	model.SortCoords(out)
	return out, nil
}

// classify turns any error into an *Error.  Booking errors pass
// through; deadlines and storage errors become PersistenceFailure.
func classify(ctx context.Context, err error) *Error {
	if be := AsError(err); be != nil {
		return be
	}
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		err = errors.Join(err, ctxErr)
	}
	return PersistenceFailure(err)
}
