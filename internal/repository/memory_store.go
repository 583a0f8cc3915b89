package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/cinema-seat-booking/internal/booking"
	"github.com/iliyamo/cinema-seat-booking/internal/model"
	"github.com/iliyamo/cinema-seat-booking/internal/utils"
)

// MemoryStore keeps the whole service state in process.  It satisfies
// the same contracts as the MySQL repos: booking.Store,
// booking.UserResolver, the catalog reads and the auth stores.
//
// Each showtime has its own mutex which a booking transaction holds
// from start to commit.  Writes are staged on the transaction and only
// applied on commit, so a failed or panicking callback leaves nothing
// behind.
type MemoryStore struct {
	mu          sync.RWMutex // guards everything below except memShowtime.txLock
	movies      map[uint64]model.Movie
	showtimes   map[uint64]*memShowtime
	bookings    map[uint64]model.Booking
	users       map[uint64]model.User
	usersByName map[string]uint64
	tokens      map[string]memToken
	nextID      uint64
}

type memShowtime struct {
	txLock sync.Mutex // held for the duration of a booking transaction
	info   model.Showtime
	owner  map[model.Coord]uint64 // seat -> booking id; also the uniqueness constraint
}

type memToken struct {
	userID  uint64
	expires time.Time
	revoked bool
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		movies:      make(map[uint64]model.Movie),
		showtimes:   make(map[uint64]*memShowtime),
		bookings:    make(map[uint64]model.Booking),
		users:       make(map[uint64]model.User),
		usersByName: make(map[string]uint64),
		tokens:      make(map[string]memToken),
	}
}

func (s *MemoryStore) id() uint64 {
	s.nextID++
	return s.nextID
}

// ---- catalog ----

// CreateMovie stores m and assigns its ID.
func (s *MemoryStore) CreateMovie(_ context.Context, m *model.Movie) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.id()
	s.movies[m.ID] = *m
	return nil
}

// CreateShowtime stores a showtime with every seat free.
func (s *MemoryStore) CreateShowtime(_ context.Context, st *model.Showtime) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.movies[st.MovieID]; !ok {
		return ErrMovieNotFound
	}
	st.ID = s.id()
	s.showtimes[st.ID] = &memShowtime{info: *st, owner: make(map[model.Coord]uint64)}
	return nil
}

// ListMovies returns every movie ordered by id.
func (s *MemoryStore) ListMovies(_ context.Context) ([]model.Movie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Movie, 0, len(s.movies))
	for _, m := range s.movies {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetMovie retrieves a movie or ErrMovieNotFound.
func (s *MemoryStore) GetMovie(_ context.Context, id uint64) (model.Movie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.movies[id]
	if !ok {
		return model.Movie{}, ErrMovieNotFound
	}
	return m, nil
}

// ListShowtimesByMovie returns a movie's showtimes by date, time, id.
func (s *MemoryStore) ListShowtimesByMovie(_ context.Context, movieID uint64) ([]model.Showtime, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Showtime, 0)
	for _, st := range s.showtimes {
		if st.info.MovieID == movieID {
			out = append(out, st.info)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		return a.ID < b.ID
	})
	return out, nil
}

// GetShowtime retrieves a showtime or ErrShowtimeNotFound.
func (s *MemoryStore) GetShowtime(_ context.Context, id uint64) (model.Showtime, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.showtimes[id]
	if !ok {
		return model.Showtime{}, ErrShowtimeNotFound
	}
	return st.info, nil
}

// ---- users and tokens ----

// Create registers a user with a bcrypt hashed password.
func (s *MemoryStore) Create(_ context.Context, username, password string, cost int) (uint64, error) {
	username = NormalizeUsername(username)
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.usersByName[username]; ok {
		return 0, ErrUsernameExists
	}
	now := time.Now().UTC()
	u := model.User{ID: s.id(), Username: username, PasswordHash: hash, IsActive: true, CreatedAt: now, UpdatedAt: now}
	s.users[u.ID] = u
	s.usersByName[username] = u.ID
	return u.ID, nil
}

// SetActive toggles a user's active flag.
func (s *MemoryStore) SetActive(userID uint64, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		u.IsActive = active
		s.users[userID] = u
	}
}

// GetByUsername fetches a user by normalized username.
func (s *MemoryStore) GetByUsername(_ context.Context, username string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usersByName[NormalizeUsername(username)]
	if !ok {
		return model.User{}, ErrUserNotFound
	}
	return s.users[id], nil
}

// GetByID fetches a user by id.
func (s *MemoryStore) GetByID(_ context.Context, id uint64) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, ErrUserNotFound
	}
	return u, nil
}

// ResolveUser implements booking.UserResolver.
func (s *MemoryStore) ResolveUser(ctx context.Context, userID uint64) (model.User, error) {
	u, err := s.GetByID(ctx, userID)
	return resolveUser(userID, u, err)
}

// StoreRefresh records a refresh token hash.
func (s *MemoryStore) StoreRefresh(_ context.Context, userID uint64, tokenHash string, exp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[tokenHash] = memToken{userID: userID, expires: exp.UTC()}
	return nil
}

// ValidateRefresh returns the owner of a live token or ErrTokenInvalid.
func (s *MemoryStore) ValidateRefresh(_ context.Context, tokenHash string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[tokenHash]
	if !ok || t.revoked || time.Now().UTC().After(t.expires) {
		return 0, ErrTokenInvalid
	}
	return t.userID, nil
}

// RevokeByHash marks a token as revoked.
func (s *MemoryStore) RevokeByHash(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tokens[tokenHash]; ok {
		t.revoked = true
		s.tokens[tokenHash] = t
	}
	return nil
}

// ---- booking.Store ----

// InShowtimeTx implements booking.Store.
func (s *MemoryStore) InShowtimeTx(ctx context.Context, showtimeID uint64, fn func(ctx context.Context, tx booking.Tx) error) error {
	s.mu.RLock()
	st := s.showtimes[showtimeID]
	s.mu.RUnlock()

	tx := &memTx{store: s, showtimeID: showtimeID, st: st}
	if st != nil {
		st.txLock.Lock()
		defer st.txLock.Unlock()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	// a deadline that passed while fn ran aborts the commit
	if err := ctx.Err(); err != nil {
		return err
	}
	return tx.commit()
}

type memTx struct {
	store      *MemoryStore
	showtimeID uint64
	st         *memShowtime
	staged     *model.Booking
	marked     []model.Coord
}

func (t *memTx) SeatMap(_ context.Context) (*booking.SeatMap, error) {
	if t.st == nil {
		return nil, booking.ShowtimeNotFound(t.showtimeID)
	}
	t.store.mu.RLock()
	booked := make([]model.Coord, 0, len(t.st.owner))
	for c := range t.st.owner {
		booked = append(booked, c)
	}
	t.store.mu.RUnlock()
	return booking.NewSeatMap(t.showtimeID, booking.Grid{Rows: t.st.info.Rows, Cols: t.st.info.Cols}, booked)
}

func (t *memTx) InsertBooking(_ context.Context, b *model.Booking) error {
	if t.st == nil {
		return booking.ShowtimeNotFound(t.showtimeID)
	}
	if t.staged != nil {
		return fmt.Errorf("showtime %d: transaction already holds booking %d", t.showtimeID, t.staged.ID)
	}
	t.store.mu.Lock()
	b.ID = t.store.id()
	t.store.mu.Unlock()
	cp := *b
	cp.Seats = append([]model.Coord(nil), b.Seats...)
	t.staged = &cp
	return nil
}

func (t *memTx) MarkBooked(_ context.Context, coords []model.Coord) error {
	if t.st == nil {
		return booking.ShowtimeNotFound(t.showtimeID)
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	grid := booking.Grid{Rows: t.st.info.Rows, Cols: t.st.info.Cols}
	for _, c := range coords {
		if !grid.Contains(c) {
			return booking.SeatNotFound(c)
		}
		if _, taken := t.st.owner[c]; taken {
			return booking.SeatConflict(c)
		}
	}
	t.marked = append(t.marked, coords...)
	return nil
}

// commit applies the staged booking.  The seat ownership map doubles as
// the uniqueness constraint on (showtime, row, col).
func (t *memTx) commit() error {
	if t.staged == nil && len(t.marked) == 0 {
		return nil
	}
	if t.staged == nil || !sameSeats(t.staged.Seats, t.marked) {
		return fmt.Errorf("showtime %d: ledger rows and seat flags disagree", t.showtimeID)
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, c := range t.staged.Seats {
		if _, taken := t.st.owner[c]; taken {
			return booking.SeatConflict(c)
		}
	}
	for _, c := range t.staged.Seats {
		t.st.owner[c] = t.staged.ID
	}
	t.store.bookings[t.staged.ID] = *t.staged
	return nil
}

func sameSeats(a, b []model.Coord) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[model.Coord]struct{}, len(a))
	for _, c := range a {
		set[c] = struct{}{}
	}
	for _, c := range b {
		if _, ok := set[c]; !ok {
			return false
		}
	}
	return true
}

// ListForUser returns the user's bookings newest first.
func (s *MemoryStore) ListForUser(_ context.Context, userID uint64) ([]model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Booking, 0)
	for _, b := range s.bookings {
		if b.UserID == userID {
			out = append(out, copyBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// GetForUser returns one booking of the user.
func (s *MemoryStore) GetForUser(_ context.Context, userID, bookingID uint64) (model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[bookingID]
	if !ok || b.UserID != userID {
		return model.Booking{}, &booking.Error{Kind: booking.KindNotFound, Msg: fmt.Sprintf("booking %d not found", bookingID)}
	}
	return copyBooking(b), nil
}

// LoadSeatMap reads the committed seat state of a showtime.
func (s *MemoryStore) LoadSeatMap(_ context.Context, showtimeID uint64) (*booking.SeatMap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.showtimes[showtimeID]
	if !ok {
		return nil, booking.ShowtimeNotFound(showtimeID)
	}
	booked := make([]model.Coord, 0, len(st.owner))
	for c := range st.owner {
		booked = append(booked, c)
	}
	return booking.NewSeatMap(showtimeID, booking.Grid{Rows: st.info.Rows, Cols: st.info.Cols}, booked)
}

// SeatOwner reports which booking holds a seat, if any.
func (s *MemoryStore) SeatOwner(showtimeID uint64, c model.Coord) (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.showtimes[showtimeID]
	if !ok {
		return 0, false
	}
	id, ok := st.owner[c]
	return id, ok
}

// BookingCount is the number of committed bookings.
func (s *MemoryStore) BookingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bookings)
}

func copyBooking(b model.Booking) model.Booking {
	b.Seats = append([]model.Coord(nil), b.Seats...)
	model.SortCoords(b.Seats)
	return b
}

var (
	_ booking.Store        = (*MemoryStore)(nil)
	_ booking.UserResolver = (*MemoryStore)(nil)
	_ booking.Store        = (*BookingStore)(nil)
	_ booking.UserResolver = (*UserRepo)(nil)
)
