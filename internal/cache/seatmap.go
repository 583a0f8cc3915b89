// Package cache keeps seat matrices in Redis so that browsing a
// showtime does not hit the database on every request.  The database
// stays the source of truth: entries are short-lived and are deleted as
// soon as a booking for the showtime commits.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cinema-seat-booking/internal/booking"
)

// SeatMapCache stores projected seat matrices keyed by showtime.
// A nil *SeatMapCache is valid and caches nothing.
type SeatMapCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewSeatMapCache returns nil when rdb is nil, which disables caching.
func NewSeatMapCache(rdb *redis.Client, prefix string, ttl time.Duration) *SeatMapCache {
	if rdb == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &SeatMapCache{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (c *SeatMapCache) key(showtimeID uint64) string {
	return c.prefix + ":seatmap:" + strconv.FormatUint(showtimeID, 10)
}

// Get returns the cached matrix.  Misses and Redis errors both report
// ok=false so the caller falls back to the store.
func (c *SeatMapCache) Get(ctx context.Context, showtimeID uint64) ([][]int, bool) {
	if c == nil {
		return nil, false
	}
	bs, err := c.rdb.Get(ctx, c.key(showtimeID)).Bytes()
	if err != nil {
		return nil, false
	}
	var m [][]int
	if err := json.Unmarshal(bs, &m); err != nil {
		return nil, false
	}
	return m, true
}

// Set stores a matrix.
func (c *SeatMapCache) Set(ctx context.Context, showtimeID uint64, matrix [][]int) error {
	if c == nil {
		return nil
	}
	bs, err := json.Marshal(matrix)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.key(showtimeID), bs, c.ttl).Err()
}

// Invalidate drops the cached matrix of a showtime.
func (c *SeatMapCache) Invalidate(ctx context.Context, showtimeID uint64) error {
	if c == nil {
		return nil
	}
	err := c.rdb.Del(ctx, c.key(showtimeID)).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

// BookingCreated implements booking.Notifier.
func (c *SeatMapCache) BookingCreated(ctx context.Context, ev booking.Event) error {
	return c.Invalidate(ctx, ev.Booking.ShowtimeID)
}
