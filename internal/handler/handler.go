// Package handler contains the echo handlers of the HTTP API.  Handlers
// depend on the small interfaces below so that the MySQL repositories
// and the in-memory store can both back them.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-booking/internal/booking"
	"github.com/iliyamo/cinema-seat-booking/internal/middleware"
	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// UserStore is the account storage used by the auth handlers.
type UserStore interface {
	Create(ctx context.Context, username, password string, cost int) (uint64, error)
	GetByUsername(ctx context.Context, username string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// TokenStore persists refresh token hashes.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
}

// Catalog is the read side of movies and showtimes.
type Catalog interface {
	ListMovies(ctx context.Context) ([]model.Movie, error)
	GetMovie(ctx context.Context, id uint64) (model.Movie, error)
	ListShowtimesByMovie(ctx context.Context, movieID uint64) ([]model.Showtime, error)
}

// BookingService is what the booking handlers need from booking.Engine.
type BookingService interface {
	Book(ctx context.Context, userID, showtimeID uint64, seats []model.Coord) (booking.Result, error)
	ListForUser(ctx context.Context, userID uint64) ([]model.Booking, error)
	GetForUser(ctx context.Context, userID, bookingID uint64) (model.Booking, error)
	SeatMatrix(ctx context.Context, showtimeID uint64) ([][]int, error)
}

// dbTimeout bounds store calls made by non-booking handlers.
const dbTimeout = 5 * time.Second

// parseID reads a positive numeric path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// currentUserID returns the caller set by the JWT middleware.
func currentUserID(c echo.Context) (uint64, bool) {
	return middleware.CurrentUserID(c)
}

// errorBody is the JSON shape of every booking error response.
type errorBody struct {
	Error   string       `json:"error"`
	Message string       `json:"message"`
	Seat    *model.Coord `json:"seat,omitempty"`
}

// statusFor maps a booking error kind to its HTTP status.
func statusFor(k booking.Kind) int {
	switch k {
	case booking.KindInvalidRequest:
		return http.StatusBadRequest
	case booking.KindUnknownUser:
		return http.StatusUnauthorized
	case booking.KindNotFound:
		return http.StatusNotFound
	case booking.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusServiceUnavailable
	}
}

// writeError renders err.  Non-booking errors are treated as storage
// failures; their cause is not exposed to the client.
func writeError(c echo.Context, err error) error {
	be := booking.AsError(err)
	if be == nil {
		be = booking.PersistenceFailure(err)
	}
	msg := be.Msg
	if msg == "" {
		msg = be.Kind.String()
	}
	return c.JSON(statusFor(be.Kind), errorBody{Error: be.Kind.String(), Message: msg, Seat: be.Seat})
}

// badRequest renders a 400 invalid_request.
func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorBody{Error: booking.KindInvalidRequest.String(), Message: msg})
}

func isNotFound(err error, sentinels ...error) bool {
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return true
		}
	}
	return errors.Is(err, booking.ErrNotFound)
}
