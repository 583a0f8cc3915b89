package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-booking/internal/cache"
	"github.com/iliyamo/cinema-seat-booking/internal/logger"
	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// BookingHandler serves seat booking and booking history.
type BookingHandler struct {
	Bookings BookingService
	SeatMaps *cache.SeatMapCache // may be nil
	Log      *logger.Logger
}

func NewBookingHandler(svc BookingService, seatMaps *cache.SeatMapCache, log *logger.Logger) *BookingHandler {
	if log == nil {
		log = logger.Discard()
	}
	return &BookingHandler{Bookings: svc, SeatMaps: seatMaps, Log: log}
}

// ----- DTOs -----

type seatReq struct {
	Row *int `json:"row" validate:"required"`
	Col *int `json:"col" validate:"required"`
}

type bookReq struct {
	Seats []seatReq `json:"seats" validate:"required,min=1,dive"`
}

type bookingView struct {
	ID         uint64        `json:"id"`
	ShowtimeID uint64        `json:"showtime_id"`
	CreatedAt  time.Time     `json:"created_at"`
	Seats      []model.Coord `json:"seats"`
}

func toBookingView(b model.Booking) bookingView {
	seats := b.Seats
	if seats == nil {
		seats = []model.Coord{}
	}
	return bookingView{ID: b.ID, ShowtimeID: b.ShowtimeID, CreatedAt: b.CreatedAt.UTC(), Seats: seats}
}

// Book handles POST /v1/showtimes/:id/bookings.
func (h *BookingHandler) Book(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorBody{Error: "unknown_user", Message: "authentication required"})
	}
	showtimeID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid showtime id")
	}
	var req bookReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, validationMessage(err))
	}
	coords := make([]model.Coord, 0, len(req.Seats))
	for _, s := range req.Seats {
		coords = append(coords, model.Coord{Row: *s.Row, Col: *s.Col})
	}

	res, err := h.Bookings.Book(c.Request().Context(), userID, showtimeID, coords)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// ListMine handles GET /v1/my-bookings.
func (h *BookingHandler) ListMine(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorBody{Error: "unknown_user", Message: "authentication required"})
	}
	list, err := h.Bookings.ListForUser(c.Request().Context(), userID)
	if err != nil {
		h.Log.FromEcho(c).Error("list bookings failed", "user_id", userID, "error", err.Error())
		return writeError(c, err)
	}
	out := make([]bookingView, 0, len(list))
	for _, b := range list {
		out = append(out, toBookingView(b))
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": out})
}

// GetOne handles GET /v1/bookings/:id.  Bookings of other users are
// reported as not found.
func (h *BookingHandler) GetOne(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorBody{Error: "unknown_user", Message: "authentication required"})
	}
	bookingID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	b, err := h.Bookings.GetForUser(c.Request().Context(), userID, bookingID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toBookingView(b))
}

// ShowtimeSeats handles GET /v1/showtimes/:id/seats.  The matrix is
// served from Redis when cached and stored there after a miss.
func (h *BookingHandler) ShowtimeSeats(c echo.Context) error {
	showtimeID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid showtime id")
	}
	matrix, err := h.seatMatrix(c, showtimeID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"showtime_id": showtimeID, "seats": matrix})
}

func (h *BookingHandler) seatMatrix(c echo.Context, showtimeID uint64) ([][]int, error) {
	ctx := c.Request().Context()
	if m, ok := h.SeatMaps.Get(ctx, showtimeID); ok {
		c.Response().Header().Set("X-Cache", "HIT")
		return m, nil
	}
	m, err := h.Bookings.SeatMatrix(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	if err := h.SeatMaps.Set(ctx, showtimeID, m); err != nil {
		h.Log.FromEcho(c).Warn("seat map cache set failed", "showtime_id", showtimeID, "error", err.Error())
	}
	return m, nil
}
