package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/cinema-seat-booking/internal/booking"
	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// BookingStore is the MySQL implementation of booking.Store.  Booking
// transactions of one showtime are serialized by a row lock on the
// showtime (SELECT ... FOR UPDATE); the UNIQUE key on booking_seats
// (showtime_id, row_idx, col_idx) rejects any double claim that slips
// past it.
type BookingStore struct {
	db *sql.DB
	// Retries bounds how many times a transaction is re-run after a
	// deadlock or lock wait timeout.
	Retries int
	// RetryBackoff is the first pause between attempts; it doubles.
	RetryBackoff time.Duration
}

// NewBookingStore returns a BookingStore bound to the given database.
func NewBookingStore(db *sql.DB, retries int) *BookingStore {
	return &BookingStore{db: db, Retries: retries, RetryBackoff: 20 * time.Millisecond}
}

// DB exposes the underlying sql.DB.
func (s *BookingStore) DB() *sql.DB { return s.db }

// InShowtimeTx implements booking.Store.
func (s *BookingStore) InShowtimeTx(ctx context.Context, showtimeID uint64, fn func(ctx context.Context, tx booking.Tx) error) error {
	backoff := s.RetryBackoff
	for attempt := 0; ; attempt++ {
		err := s.runTx(ctx, showtimeID, fn)
		if err == nil || !isTransientLock(err) || attempt >= s.Retries {
			return err
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

// runTx is one attempt.  The deferred rollback covers every exit that
// is not a successful commit, including panics raised by fn.
func (s *BookingStore) runTx(ctx context.Context, showtimeID uint64, fn func(ctx context.Context, tx booking.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(ctx, &mysqlTx{tx: tx, showtimeID: showtimeID}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// mysqlTx is the booking.Tx handed to engine callbacks.
type mysqlTx struct {
	tx         *sql.Tx
	showtimeID uint64
}

func (t *mysqlTx) SeatMap(ctx context.Context) (*booking.SeatMap, error) {
	var g booking.Grid
	err := t.tx.QueryRowContext(ctx,
		`SELECT seat_rows, seat_cols FROM showtimes WHERE id = ? FOR UPDATE`, t.showtimeID,
	).Scan(&g.Rows, &g.Cols)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, booking.ShowtimeNotFound(t.showtimeID)
		}
		return nil, err
	}
	booked, err := queryBookedSeats(ctx, t.tx, t.showtimeID)
	if err != nil {
		return nil, err
	}
	return booking.NewSeatMap(t.showtimeID, g, booked)
}

func (t *mysqlTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO bookings (user_id, showtime_id, created_at) VALUES (?, ?, ?)`,
		b.UserID, b.ShowtimeID, b.CreatedAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)

	query := `INSERT INTO booking_seats (booking_id, showtime_id, row_idx, col_idx) VALUES `
	args := make([]interface{}, 0, len(b.Seats)*4)
	for i, c := range b.Seats {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?)"
		args = append(args, b.ID, b.ShowtimeID, c.Row, c.Col)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		if isDuplicate(err) {
			return t.conflictOn(ctx, `booking_seats`, b.Seats, err)
		}
		return err
	}
	return nil
}

func (t *mysqlTx) MarkBooked(ctx context.Context, coords []model.Coord) error {
	if len(coords) == 0 {
		return nil
	}
	in, args := coordInClause(coords)
	args = append([]interface{}{t.showtimeID}, args...)
	res, err := t.tx.ExecContext(ctx,
		`UPDATE seats SET is_booked = 1 WHERE showtime_id = ? AND is_booked = 0 AND (row_idx, col_idx) IN (`+in+`)`,
		args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if int(n) != len(coords) {
		return t.conflictOn(ctx, `seats`, coords, fmt.Errorf("updated %d of %d seats", n, len(coords)))
	}
	return nil
}

// conflictOn finds the first requested seat that is already taken and
// reports it as a Conflict.  When no taken seat can be found the seat
// rows are inconsistent and cause is returned as a storage error.
func (t *mysqlTx) conflictOn(ctx context.Context, table string, coords []model.Coord, cause error) error {
	in, args := coordInClause(coords)
	args = append([]interface{}{t.showtimeID}, args...)
	q := `SELECT row_idx, col_idx FROM booking_seats WHERE showtime_id = ? AND (row_idx, col_idx) IN (` + in + `) ORDER BY row_idx, col_idx LIMIT 1`
	if table == `seats` {
		q = `SELECT row_idx, col_idx FROM seats WHERE showtime_id = ? AND is_booked = 1 AND (row_idx, col_idx) IN (` + in + `) ORDER BY row_idx, col_idx LIMIT 1`
	}
	var c model.Coord
	if err := t.tx.QueryRowContext(ctx, q, args...).Scan(&c.Row, &c.Col); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("showtime %d: seat rows out of sync: %w", t.showtimeID, cause)
		}
		return err
	}
	return booking.SeatConflict(c)
}

// ListForUser returns all bookings of the user with their seats.
// Bookings are ordered by creation time descending (newest first),
// seats by row then column.
func (s *BookingStore) ListForUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, showtime_id, created_at FROM bookings WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Booking, 0)
	index := make(map[uint64]int)
	for rows.Next() {
		var b model.Booking
		if err := rows.Scan(&b.ID, &b.UserID, &b.ShowtimeID, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.Seats = []model.Coord{}
		index[b.ID] = len(out)
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	// Fetch seats for all bookings in one query
	ids := make([]interface{}, 0, len(out))
	placeholders := make([]string, 0, len(out))
	for _, b := range out {
		ids = append(ids, b.ID)
		placeholders = append(placeholders, "?")
	}
	srows, err := s.db.QueryContext(ctx,
		`SELECT booking_id, row_idx, col_idx FROM booking_seats WHERE booking_id IN (`+strings.Join(placeholders, ",")+`) ORDER BY booking_id, row_idx, col_idx`,
		ids...)
	if err != nil {
		return nil, err
	}
	defer srows.Close()
	for srows.Next() {
		var bookingID uint64
		var c model.Coord
		if err := srows.Scan(&bookingID, &c.Row, &c.Col); err != nil {
			return nil, err
		}
		idx, ok := index[bookingID]
		if !ok {
			continue
		}
		out[idx].Seats = append(out[idx].Seats, c)
	}
	if err := srows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetForUser returns a single booking of the user.  A booking that
// does not exist or belongs to someone else is NotFound.
func (s *BookingStore) GetForUser(ctx context.Context, userID, bookingID uint64) (model.Booking, error) {
	var b model.Booking
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, showtime_id, created_at FROM bookings WHERE id = ? AND user_id = ?`,
		bookingID, userID,
	).Scan(&b.ID, &b.UserID, &b.ShowtimeID, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Booking{}, &booking.Error{Kind: booking.KindNotFound, Msg: fmt.Sprintf("booking %d not found", bookingID)}
		}
		return model.Booking{}, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT row_idx, col_idx FROM booking_seats WHERE booking_id = ? ORDER BY row_idx, col_idx`, b.ID)
	if err != nil {
		return model.Booking{}, err
	}
	defer rows.Close()
	b.Seats = []model.Coord{}
	for rows.Next() {
		var c model.Coord
		if err := rows.Scan(&c.Row, &c.Col); err != nil {
			return model.Booking{}, err
		}
		b.Seats = append(b.Seats, c)
	}
	if err := rows.Err(); err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

// LoadSeatMap reads the committed seat state without locking.
func (s *BookingStore) LoadSeatMap(ctx context.Context, showtimeID uint64) (*booking.SeatMap, error) {
	var g booking.Grid
	err := s.db.QueryRowContext(ctx,
		`SELECT seat_rows, seat_cols FROM showtimes WHERE id = ?`, showtimeID,
	).Scan(&g.Rows, &g.Cols)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, booking.ShowtimeNotFound(showtimeID)
		}
		return nil, err
	}
	booked, err := queryBookedSeats(ctx, s.db, showtimeID)
	if err != nil {
		return nil, err
	}
	return booking.NewSeatMap(showtimeID, g, booked)
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func queryBookedSeats(ctx context.Context, q querier, showtimeID uint64) ([]model.Coord, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT row_idx, col_idx FROM seats WHERE showtime_id = ? AND is_booked = 1 ORDER BY row_idx, col_idx`,
		showtimeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Coord
	for rows.Next() {
		var c model.Coord
		if err := rows.Scan(&c.Row, &c.Col); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// coordInClause builds "(?, ?),(?, ?)" and its arguments.
func coordInClause(coords []model.Coord) (string, []interface{}) {
	parts := make([]string, len(coords))
	args := make([]interface{}, 0, len(coords)*2)
	for i, c := range coords {
		parts[i] = "(?, ?)"
		args = append(args, c.Row, c.Col)
	}
	return strings.Join(parts, ","), args
}
