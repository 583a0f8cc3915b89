package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-booking/internal/model"
	"github.com/iliyamo/cinema-seat-booking/internal/repository"
)

// CatalogHandler serves the public movie listing.
type CatalogHandler struct {
	Catalog  Catalog
	Bookings *BookingHandler // seat matrices of showtimes
}

func NewCatalogHandler(cat Catalog, bookings *BookingHandler) *CatalogHandler {
	return &CatalogHandler{Catalog: cat, Bookings: bookings}
}

type movieView struct {
	ID          uint64 `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Director    string `json:"director"`
	Year        int    `json:"year"`
	Poster      string `json:"poster"`
}

type showtimeView struct {
	ID    uint64  `json:"id"`
	Date  string  `json:"date"`
	Time  string  `json:"time"`
	Rows  int     `json:"rows"`
	Cols  int     `json:"cols"`
	Seats [][]int `json:"seats"`
}

type movieDetail struct {
	movieView
	Showtimes []showtimeView `json:"showtimes"`
}

func toMovieView(m model.Movie) movieView {
	return movieView{ID: m.ID, Title: m.Title, Description: m.Description, Director: m.Director, Year: m.Year, Poster: m.Poster}
}

// ListMovies handles GET /v1/movies.
func (h *CatalogHandler) ListMovies(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	movies, err := h.Catalog.ListMovies(ctx)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]movieView, 0, len(movies))
	for _, m := range movies {
		out = append(out, toMovieView(m))
	}
	return c.JSON(http.StatusOK, echo.Map{"movies": out})
}

// GetMovie handles GET /v1/movies/:id.  Each showtime carries its
// current seat matrix (0 free, 1 booked).
func (h *CatalogHandler) GetMovie(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid movie id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	m, err := h.Catalog.GetMovie(ctx, id)
	if err != nil {
		if isNotFound(err, repository.ErrMovieNotFound) {
			return c.JSON(http.StatusNotFound, errorBody{Error: "not_found", Message: "movie not found"})
		}
		return writeError(c, err)
	}
	sts, err := h.Catalog.ListShowtimesByMovie(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	out := movieDetail{movieView: toMovieView(m), Showtimes: make([]showtimeView, 0, len(sts))}
	for _, st := range sts {
		matrix, err := h.Bookings.seatMatrix(c, st.ID)
		if err != nil {
			return writeError(c, err)
		}
		out.Showtimes = append(out.Showtimes, showtimeView{
			ID: st.ID, Date: st.Date, Time: st.Time, Rows: st.Rows, Cols: st.Cols, Seats: matrix,
		})
	}
	return c.JSON(http.StatusOK, out)
}
