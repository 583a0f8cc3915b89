package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cinema-seat-booking/internal/booking"
	"github.com/iliyamo/cinema-seat-booking/internal/cache"
	"github.com/iliyamo/cinema-seat-booking/internal/config"
	"github.com/iliyamo/cinema-seat-booking/internal/database"
	"github.com/iliyamo/cinema-seat-booking/internal/handler"
	"github.com/iliyamo/cinema-seat-booking/internal/logger"
	"github.com/iliyamo/cinema-seat-booking/internal/queue"
	"github.com/iliyamo/cinema-seat-booking/internal/repository"
	"github.com/iliyamo/cinema-seat-booking/internal/router"
)

// userStore is what both the engine and the auth handlers need from
// the account storage.
type userStore interface {
	booking.UserResolver
	handler.UserStore
}

type catalogStore interface {
	handler.Catalog
	database.CatalogWriter
}

// stores groups the backends selected by STORE_DRIVER.
type stores struct {
	booking booking.Store
	users   userStore
	tokens  handler.TokenStore
	catalog catalogStore
	close   func() error
}

func openStores(ctx context.Context, cfg config.Config, lg *logger.Logger) (stores, error) {
	if cfg.StoreDriver == "memory" {
		ms := repository.NewMemoryStore()
		lg.Warn("using in-memory store; data is lost on restart")
		return stores{booking: ms, users: ms, tokens: ms, catalog: ms, close: func() error { return nil }}, nil
	}
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return stores{}, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return stores{}, err
	}
	return stores{
		booking: repository.NewBookingStore(db, cfg.DBTxRetries),
		users:   repository.NewUserRepo(db),
		tokens:  repository.NewTokenRepo(db),
		catalog: repository.NewCatalogRepo(db),
		close:   db.Close,
	}, nil
}

func main() {
	cfg := config.Load()
	lg := logger.New(cfg.LogLevel, cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, lg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer func() { _ = st.close() }()

	if cfg.SeedDemo {
		n, err := database.Seed(ctx, st.catalog, cfg.GridRows, cfg.GridCols)
		if err != nil {
			log.Fatalf("seed: %v", err)
		}
		if n > 0 {
			lg.Info("demo catalog seeded", "showtimes", n)
		}
	}

	// Redis is optional: without it there is no caching and no rate limiting.
	var rdb *redis.Client
	if c, err := config.NewRedisClient(ctx, config.LoadRedisConfig()); err == nil {
		rdb = c
		defer func() { _ = rdb.Close() }()
	} else if !errors.Is(err, config.ErrRedisDisabled) {
		lg.Warn("redis unavailable, continuing without cache", "error", err.Error())
	}
	cacheCfg := config.LoadCacheConfig()
	var seatMaps *cache.SeatMapCache
	if cacheCfg.Enabled {
		seatMaps = cache.NewSeatMapCache(rdb, cacheCfg.Prefix, cacheCfg.SeatMapTTL)
	}

	var notifiers []booking.Notifier
	if seatMaps != nil {
		notifiers = append(notifiers, seatMaps)
	}
	if cfg.RabbitURL != "" {
		pub := queue.NewPublisher(cfg.RabbitURL, nil, lg)
		defer func() { _ = pub.Close() }()
		go pub.Run(ctx)
		notifiers = append(notifiers, pub)
		go runConsumer(ctx, cfg, lg)
	}

	engine := booking.NewEngine(st.booking, st.users, lg, notifiers...)
	engine.Timeout = cfg.BookingTimeout

	bookings := handler.NewBookingHandler(engine, seatMaps, lg)
	e := router.New(router.Deps{
		Log:       lg,
		JWTSecret: cfg.JWTSecret,
		Auth:      handler.NewAuthHandler(cfg, st.users, st.tokens, lg),
		Bookings:  bookings,
		Catalog:   handler.NewCatalogHandler(st.catalog, bookings),
		Redis:     rdb,
		Cache:     cacheCfg,
		RateLimit: config.LoadRateLimitConfig(),
	})

	addr := ":" + cfg.Port
	go func() {
		lg.Info("listening", "addr", addr, "env", cfg.Env, "store", cfg.StoreDriver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("server stopped", "error", err.Error())
			stop()
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		lg.Error("graceful shutdown failed", "error", err.Error())
	}
}

// runConsumer appends booking events to the booking log until ctx ends.
func runConsumer(ctx context.Context, cfg config.Config, lg *logger.Logger) {
	if err := os.MkdirAll(filepath.Dir(cfg.BookingLogPath), 0o755); err != nil {
		lg.Error("booking-consumer: create log dir", "error", err.Error())
		return
	}
	f, err := os.OpenFile(cfg.BookingLogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		lg.Error("booking-consumer: open log file", "error", err.Error())
		return
	}
	defer f.Close()
	if err := queue.StartBookingConsumer(ctx, cfg.RabbitURL, f, lg); err != nil && !errors.Is(err, context.Canceled) {
		lg.Error("booking-consumer stopped", "error", err.Error())
	}
}
