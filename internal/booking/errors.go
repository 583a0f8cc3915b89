package booking

import (
	"errors"
	"fmt"

	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// Kind classifies a booking failure.  Callers branch on the kind, the
// message is for humans.
type Kind int

const (
	KindInvalidRequest Kind = iota + 1
	KindUnknownUser
	KindNotFound
	KindConflict
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindInvalidRequest:
		return "invalid_request"
	case KindUnknownUser:
		return "unknown_user"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindPersistence:
		return "persistence_failure"
	}
	return "unknown"
}

// Sentinels for errors.Is.  An *Error matches the sentinel of its kind.
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrUnknownUser    = errors.New("unknown user")
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrPersistence    = errors.New("persistence failure")
)

// Error is returned by every engine operation that fails.  Seat is set
// for NotFound and Conflict errors that concern one coordinate.
type Error struct {
	Kind Kind
	Seat *model.Coord
	Msg  string
	Err  error // underlying cause, may be nil
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Seat != nil {
		msg = fmt.Sprintf("%s: seat %s", msg, e.Seat)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrConflict) and friends match by kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrInvalidRequest:
		return e.Kind == KindInvalidRequest
	case ErrUnknownUser:
		return e.Kind == KindUnknownUser
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrConflict:
		return e.Kind == KindConflict
	case ErrPersistence:
		return e.Kind == KindPersistence
	}
	return false
}

func invalidRequest(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidRequest, Msg: fmt.Sprintf(format, args...)}
}

// SeatNotFound reports a coordinate outside the showtime grid.
func SeatNotFound(c model.Coord) *Error {
	return &Error{Kind: KindNotFound, Seat: &c, Msg: "seat not found"}
}

// ShowtimeNotFound reports a showtime the catalog does not know.
func ShowtimeNotFound(id uint64) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf("showtime %d not found", id)}
}

// SeatConflict reports a seat that another booking already holds.
func SeatConflict(c model.Coord) *Error {
	return &Error{Kind: KindConflict, Seat: &c, Msg: "seat already booked"}
}

// PersistenceFailure wraps a storage error.  Nothing was committed.
func PersistenceFailure(err error) *Error {
	return &Error{Kind: KindPersistence, Msg: "booking could not be persisted", Err: err}
}

// AsError extracts an *Error from err, or nil when err is not one.
func AsError(err error) *Error {
	var be *Error
	if errors.As(err, &be) {
		return be
	}
	return nil
}
