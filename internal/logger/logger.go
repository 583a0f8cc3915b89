package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// Logger wraps slog.Logger with request and booking helpers.
type Logger struct {
	*slog.Logger
}

// New creates a logger writing to stdout.  level is one of debug, info,
// warn, error (default info).  The dev environment gets the text
// handler, everything else JSON.
func New(level, env string) *Logger {
	return NewWithWriter(os.Stdout, level, env)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level, env string) *Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}
	var handler slog.Handler
	if strings.EqualFold(env, "dev") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return &Logger{Logger: slog.New(handler)}
}

// Discard returns a logger that drops everything.  Handy in tests.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// ParseLevel converts a level name to slog.Level.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRequestID adds request ID to logger context
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("request_id", requestID))}
}

// WithUserID adds user ID to logger context
func (l *Logger) WithUserID(userID uint64) *Logger {
	return &Logger{Logger: l.Logger.With(slog.Uint64("user_id", userID))}
}

// WithError adds error to logger context
func (l *Logger) WithError(err error) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("error", err.Error()))}
}

// LogHTTPRequest logs one finished request.
func (l *Logger) LogHTTPRequest(ctx context.Context, method, uri, requestID string, status int, latency time.Duration, err error) {
	attrs := []any{
		slog.String("method", method),
		slog.String("uri", uri),
		slog.String("request_id", requestID),
		slog.Int("status", status),
		slog.Duration("latency", latency),
	}
	if err != nil {
		l.Logger.ErrorContext(ctx, "HTTP Error", append(attrs, slog.String("error", err.Error()))...)
		return
	}
	l.Logger.InfoContext(ctx, "HTTP Request", attrs...)
}

// FromEcho returns the request-scoped logger stored by the request
// logging middleware, or l when there is none.
func (l *Logger) FromEcho(c echo.Context) *Logger {
	if v, ok := c.Get(ContextKey).(*Logger); ok && v != nil {
		return v
	}
	return l
}

// ContextKey is the echo.Context key holding the request logger.
const ContextKey = "logger"
