// Package router registers the HTTP routes of the booking API.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cinema-seat-booking/internal/config"
	"github.com/iliyamo/cinema-seat-booking/internal/handler"
	"github.com/iliyamo/cinema-seat-booking/internal/logger"
	"github.com/iliyamo/cinema-seat-booking/internal/middleware"
)

// Deps is everything New needs to build the echo instance.
type Deps struct {
	Log       *logger.Logger
	JWTSecret string
	Auth      *handler.AuthHandler
	Bookings  *handler.BookingHandler
	Catalog   *handler.CatalogHandler
	Redis     *redis.Client // nil disables caching and rate limiting
	Cache     config.CacheConfig
	RateLimit config.RateLimitConfig
}

// New returns an echo instance with middleware and all routes.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewRequestValidator()

	e.Use(echomw.Recover())
	e.Use(middleware.RequestID(d.Log))
	e.Use(middleware.RequestLogger(d.Log))

	RegisterRoutes(e)
	RegisterAuth(e, d.Auth, d.JWTSecret)
	RegisterPublic(e, d.Catalog, d.Bookings, middleware.NewRedisCache(d.Cache, d.Redis))
	RegisterBooking(e, d.Bookings, d.JWTSecret, middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Log))
	return e
}

// RegisterRoutes registers routes that need no authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers account and session routes.  Register, login,
// refresh and logout live under /v1/auth; /v1/me requires a token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh) // rotates the refresh token
	g.POST("/logout", a.Logout)

	e.GET("/v1/me", a.Me, middleware.JWTAuth(jwtSecret))
}

// RegisterPublic registers the catalog browse routes.  Only the movie
// list goes through the response cache; seat state is cached separately
// and invalidated on every booking.
func RegisterPublic(e *echo.Echo, c *handler.CatalogHandler, b *handler.BookingHandler, responseCache echo.MiddlewareFunc) {
	e.GET("/v1/movies", c.ListMovies, responseCache)
	e.GET("/v1/movies/:id", c.GetMovie)
	e.GET("/v1/showtimes/:id/seats", b.ShowtimeSeats)
}

// RegisterBooking registers the authenticated booking routes.  The
// rate limiter runs after JWTAuth so buckets are keyed per user.
func RegisterBooking(e *echo.Echo, b *handler.BookingHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	g.POST("/showtimes/:id/bookings", b.Book, limiter)
	g.GET("/my-bookings", b.ListMine)
	g.GET("/bookings/:id", b.GetOne)
}
