package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/cinema-seat-booking/internal/logger"
)

// RequestID assigns an X-Request-ID (a UUID unless the client sent one)
// and stores a request-scoped logger under logger.ContextKey.
func RequestID(log *logger.Logger) echo.MiddlewareFunc {
	return echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			c.Set(logger.ContextKey, log.WithRequestID(id))
		},
	})
}

// RequestLogger writes one structured line per request.
func RequestLogger(log *logger.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			l := log
			if id, ok := CurrentUserID(c); ok {
				l = l.WithUserID(id)
			}
			l.LogHTTPRequest(c.Request().Context(), v.Method, v.URI, v.RequestID, v.Status, v.Latency, v.Error)
			return nil
		},
	})
}
