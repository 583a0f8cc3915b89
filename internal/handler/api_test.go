package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-booking/internal/booking"
	"github.com/iliyamo/cinema-seat-booking/internal/cache"
	"github.com/iliyamo/cinema-seat-booking/internal/config"
	"github.com/iliyamo/cinema-seat-booking/internal/database"
	"github.com/iliyamo/cinema-seat-booking/internal/handler"
	"github.com/iliyamo/cinema-seat-booking/internal/logger"
	"github.com/iliyamo/cinema-seat-booking/internal/repository"
	"github.com/iliyamo/cinema-seat-booking/internal/router"
	"github.com/iliyamo/cinema-seat-booking/internal/utils"
)

const secret = "api-test-secret"

type apiEnv struct {
	e        *echo.Echo
	store    *repository.MemoryStore
	movieID  uint64
	showtime uint64
}

func newAPI(t *testing.T, rdb *redis.Client) *apiEnv {
	t.Helper()
	ctx := context.Background()
	ms := repository.NewMemoryStore()
	_, err := database.Seed(ctx, ms, 5, 8)
	require.NoError(t, err)
	movies, err := ms.ListMovies(ctx)
	require.NoError(t, err)
	sts, err := ms.ListShowtimesByMovie(ctx, movies[0].ID)
	require.NoError(t, err)

	cfg := config.Config{JWTSecret: secret, AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: 4}
	seatMaps := cache.NewSeatMapCache(rdb, "test", time.Minute)
	var notifiers []booking.Notifier
	if seatMaps != nil {
		notifiers = append(notifiers, seatMaps)
	}
	eng := booking.NewEngine(ms, ms, logger.Discard(), notifiers...)
	bookings := handler.NewBookingHandler(eng, seatMaps, nil)

	e := router.New(router.Deps{
		Log:       logger.Discard(),
		JWTSecret: secret,
		Auth:      handler.NewAuthHandler(cfg, ms, ms, nil),
		Bookings:  bookings,
		Catalog:   handler.NewCatalogHandler(ms, bookings),
		Redis:     rdb,
		Cache:     config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}, TTL: time.Minute, Prefix: "resp"},
	})
	return &apiEnv{e: e, store: ms, movieID: movies[0].ID, showtime: sts[0].ID}
}

func (a *apiEnv) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

type tokens struct {
	User struct {
		ID       uint64 `json:"id"`
		Username string `json:"username"`
	} `json:"user"`
	Access struct {
		Token string `json:"token"`
	} `json:"access"`
	Refresh struct {
		Token string `json:"token"`
	} `json:"refresh"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (a *apiEnv) register(t *testing.T, username string) tokens {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/v1/auth/register", `{"username":"`+username+`","password":"secret1"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[tokens](t, rec)
}

func (a *apiEnv) bookPath() string {
	return "/v1/showtimes/" + strconv.FormatUint(a.showtime, 10) + "/bookings"
}

type errBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Seat    *struct {
		Row int `json:"row"`
		Col int `json:"col"`
	} `json:"seat"`
}

func TestHealth(t *testing.T) {
	a := newAPI(t, nil)
	rec := a.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestAuthFlow(t *testing.T) {
	a := newAPI(t, nil)
	tk := a.register(t, "Alice")
	assert.Equal(t, "alice", tk.User.Username)

	rec := a.do(t, http.MethodPost, "/v1/auth/register", `{"username":"alice","password":"secret1"}`, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, http.MethodPost, "/v1/auth/register", `{"username":"a!","password":"x"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPost, "/v1/auth/login", `{"username":"alice","password":"wrong1"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = a.do(t, http.MethodPost, "/v1/auth/login", `{"username":"ALICE","password":"secret1"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	login := decode[tokens](t, rec)

	rec = a.do(t, http.MethodGet, "/v1/me", "", login.Access.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":`+strconv.FormatUint(tk.User.ID, 10)+`,"username":"alice"}`, rec.Body.String())

	// refresh rotates: the old refresh token stops working
	rec = a.do(t, http.MethodPost, "/v1/auth/refresh", `{"refresh_token":"`+login.Refresh.Token+`"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rotated := decode[tokens](t, rec)
	rec = a.do(t, http.MethodPost, "/v1/auth/refresh", `{"refresh_token":"`+login.Refresh.Token+`"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodPost, "/v1/auth/logout", `{"refresh_token":"`+rotated.Refresh.Token+`"}`, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = a.do(t, http.MethodPost, "/v1/auth/refresh", `{"refresh_token":"`+rotated.Refresh.Token+`"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBookEndpoint(t *testing.T) {
	a := newAPI(t, nil)
	alice := a.register(t, "alice")
	bob := a.register(t, "bob")

	rec := a.do(t, http.MethodPost, a.bookPath(), `{"seats":[{"row":0,"col":0},{"row":0,"col":1}]}`, alice.Access.Token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[booking.Result](t, rec)
	assert.Equal(t, 2, res.SeatsBooked)

	rec = a.do(t, http.MethodPost, a.bookPath(), `{"seats":[{"row":0,"col":1},{"row":0,"col":2}]}`, bob.Access.Token)
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode[errBody](t, rec)
	assert.Equal(t, "conflict", body.Error)
	require.NotNil(t, body.Seat)
	assert.Equal(t, 0, body.Seat.Row)
	assert.Equal(t, 1, body.Seat.Col)
}

func TestBookEndpointErrors(t *testing.T) {
	a := newAPI(t, nil)
	alice := a.register(t, "alice")
	ghost, err := utils.NewAccessToken(secret, 99999, "ghost", 5)
	require.NoError(t, err)

	tests := []struct {
		name   string
		path   string
		body   string
		token  string
		status int
		code   string
	}{
		{"no token", a.bookPath(), `{"seats":[{"row":0,"col":0}]}`, "", http.StatusUnauthorized, "unknown_user"},
		{"unknown user", a.bookPath(), `{"seats":[{"row":0,"col":0}]}`, ghost.Token, http.StatusUnauthorized, "unknown_user"},
		{"empty seats", a.bookPath(), `{"seats":[]}`, alice.Access.Token, http.StatusBadRequest, "invalid_request"},
		{"missing seats", a.bookPath(), `{}`, alice.Access.Token, http.StatusBadRequest, "invalid_request"},
		{"missing row", a.bookPath(), `{"seats":[{"col":1}]}`, alice.Access.Token, http.StatusBadRequest, "invalid_request"},
		{"negative", a.bookPath(), `{"seats":[{"row":-1,"col":0}]}`, alice.Access.Token, http.StatusBadRequest, "invalid_request"},
		{"malformed json", a.bookPath(), `{"seats":"A1"}`, alice.Access.Token, http.StatusBadRequest, "invalid_request"},
		{"bad showtime id", "/v1/showtimes/abc/bookings", `{"seats":[{"row":0,"col":0}]}`, alice.Access.Token, http.StatusBadRequest, "invalid_request"},
		{"unknown showtime", "/v1/showtimes/424242/bookings", `{"seats":[{"row":0,"col":0}]}`, alice.Access.Token, http.StatusNotFound, "not_found"},
		{"out of grid", a.bookPath(), `{"seats":[{"row":9,"col":9}]}`, alice.Access.Token, http.StatusNotFound, "not_found"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := a.do(t, http.MethodPost, tc.path, tc.body, tc.token)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Equal(t, tc.code, decode[errBody](t, rec).Error)
		})
	}
	assert.Zero(t, a.store.BookingCount())

	rec := a.do(t, http.MethodPost, a.bookPath(), `{"seats":[{"row":9,"col":9}]}`, alice.Access.Token)
	body := decode[errBody](t, rec)
	require.NotNil(t, body.Seat)
	assert.Equal(t, 9, body.Seat.Row)
}

type bookingJSON struct {
	ID         uint64 `json:"id"`
	ShowtimeID uint64 `json:"showtime_id"`
	Seats      []struct {
		Row int `json:"row"`
		Col int `json:"col"`
	} `json:"seats"`
}

func TestMyBookings(t *testing.T) {
	a := newAPI(t, nil)
	alice := a.register(t, "alice")
	bob := a.register(t, "bob")

	rec := a.do(t, http.MethodGet, "/v1/my-bookings", "", alice.Access.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"bookings":[]}`, rec.Body.String())

	rec = a.do(t, http.MethodPost, a.bookPath(), `{"seats":[{"row":2,"col":5},{"row":2,"col":4}]}`, alice.Access.Token)
	require.Equal(t, http.StatusCreated, rec.Code)
	res := decode[booking.Result](t, rec)

	rec = a.do(t, http.MethodGet, "/v1/my-bookings", "", alice.Access.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Bookings []bookingJSON `json:"bookings"`
	}](t, rec)
	require.Len(t, list.Bookings, 1)
	b := list.Bookings[0]
	assert.Equal(t, res.BookingID, b.ID)
	assert.Equal(t, a.showtime, b.ShowtimeID)
	require.Len(t, b.Seats, 2)
	assert.Equal(t, 4, b.Seats[0].Col)
	assert.Equal(t, 5, b.Seats[1].Col)

	path := "/v1/bookings/" + strconv.FormatUint(res.BookingID, 10)
	rec = a.do(t, http.MethodGet, path, "", alice.Access.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, res.BookingID, decode[bookingJSON](t, rec).ID)

	rec = a.do(t, http.MethodGet, path, "", bob.Access.Token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = a.do(t, http.MethodGet, "/v1/bookings/x", "", bob.Access.Token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCatalogEndpoints(t *testing.T) {
	a := newAPI(t, nil)
	alice := a.register(t, "alice")

	rec := a.do(t, http.MethodGet, "/v1/movies", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	movies := decode[struct {
		Movies []struct {
			ID    uint64 `json:"id"`
			Title string `json:"title"`
		} `json:"movies"`
	}](t, rec)
	require.Len(t, movies.Movies, 3)

	rec = a.do(t, http.MethodPost, a.bookPath(), `{"seats":[{"row":1,"col":2}]}`, alice.Access.Token)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do(t, http.MethodGet, "/v1/movies/"+strconv.FormatUint(a.movieID, 10), "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[struct {
		ID        uint64 `json:"id"`
		Showtimes []struct {
			ID    uint64  `json:"id"`
			Rows  int     `json:"rows"`
			Cols  int     `json:"cols"`
			Seats [][]int `json:"seats"`
		} `json:"showtimes"`
	}](t, rec)
	assert.Equal(t, a.movieID, detail.ID)
	require.Len(t, detail.Showtimes, 3)
	st := detail.Showtimes[0]
	assert.Equal(t, a.showtime, st.ID)
	require.Len(t, st.Seats, 5)
	assert.Equal(t, 1, st.Seats[1][2])
	assert.Equal(t, 0, detail.Showtimes[1].Seats[1][2])

	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodGet, "/v1/movies/999999", "", "").Code)
	assert.Equal(t, http.StatusBadRequest, a.do(t, http.MethodGet, "/v1/movies/zero", "", "").Code)
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodGet, "/v1/showtimes/999999/seats", "", "").Code)
}

func TestSeatMapCacheInvalidatedAfterBooking(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	a := newAPI(t, rdb)
	alice := a.register(t, "alice")
	seatsPath := "/v1/showtimes/" + strconv.FormatUint(a.showtime, 10) + "/seats"

	type seatsResp struct {
		Seats [][]int `json:"seats"`
	}
	rec := a.do(t, http.MethodGet, seatsPath, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))
	rec = a.do(t, http.MethodGet, seatsPath, "", "")
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Equal(t, 0, decode[seatsResp](t, rec).Seats[3][3])

	rec = a.do(t, http.MethodPost, a.bookPath(), `{"seats":[{"row":3,"col":3}]}`, alice.Access.Token)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do(t, http.MethodGet, seatsPath, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"), "entry dropped by the booking")
	assert.Equal(t, 1, decode[seatsResp](t, rec).Seats[3][3])
}

func TestMoviesResponseCached(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	a := newAPI(t, rdb)

	first := a.do(t, http.MethodGet, "/v1/movies", "", "")
	require.Equal(t, http.StatusOK, first.Code)
	second := a.do(t, http.MethodGet, "/v1/movies", "", "")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
}
