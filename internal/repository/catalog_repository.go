package repository

import (
	"context"      // context for controlling query lifetime
	"database/sql" // sql provides DB abstraction
	"errors"       // errors for sentinel comparisons

	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// CatalogRepo reads movies and showtimes.  The catalog is managed
// outside this service, so the repo is read-only apart from the seed
// helpers used at startup.
type CatalogRepo struct {
	db *sql.DB
}

// NewCatalogRepo constructs a CatalogRepo with the given DB handle.
func NewCatalogRepo(db *sql.DB) *CatalogRepo {
	return &CatalogRepo{db: db}
}

const movieColumns = `id, title, COALESCE(description, ''), COALESCE(director, ''), COALESCE(year, 0), COALESCE(poster, '')`

// ListMovies returns every movie ordered by id.  When no movies exist
// it returns an empty slice and nil error.
func (r *CatalogRepo) ListMovies(ctx context.Context) ([]model.Movie, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+movieColumns+` FROM movies ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Movie, 0)
	for rows.Next() {
		var m model.Movie
		if err := rows.Scan(&m.ID, &m.Title, &m.Description, &m.Director, &m.Year, &m.Poster); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetMovie retrieves a movie by id.  It returns ErrMovieNotFound if
// there is no matching row.
func (r *CatalogRepo) GetMovie(ctx context.Context, id uint64) (model.Movie, error) {
	var m model.Movie
	err := r.db.QueryRowContext(ctx, `SELECT `+movieColumns+` FROM movies WHERE id = ?`, id).
		Scan(&m.ID, &m.Title, &m.Description, &m.Director, &m.Year, &m.Poster)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Movie{}, ErrMovieNotFound
		}
		return model.Movie{}, err
	}
	return m, nil
}

const showtimeColumns = `id, movie_id, DATE_FORMAT(show_date, '%Y-%m-%d'), TIME_FORMAT(show_time, '%H:%i'), seat_rows, seat_cols`

// ListShowtimesByMovie returns the showtimes of a movie ordered by date
// and time ascending.
func (r *CatalogRepo) ListShowtimesByMovie(ctx context.Context, movieID uint64) ([]model.Showtime, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+showtimeColumns+` FROM showtimes WHERE movie_id = ? ORDER BY show_date ASC, show_time ASC, id ASC`,
		movieID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Showtime, 0)
	for rows.Next() {
		var s model.Showtime
		if err := rows.Scan(&s.ID, &s.MovieID, &s.Date, &s.Time, &s.Rows, &s.Cols); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetShowtime retrieves a showtime by id.  It returns
// ErrShowtimeNotFound if there is no matching row.
func (r *CatalogRepo) GetShowtime(ctx context.Context, id uint64) (model.Showtime, error) {
	var s model.Showtime
	err := r.db.QueryRowContext(ctx, `SELECT `+showtimeColumns+` FROM showtimes WHERE id = ?`, id).
		Scan(&s.ID, &s.MovieID, &s.Date, &s.Time, &s.Rows, &s.Cols)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Showtime{}, ErrShowtimeNotFound
		}
		return model.Showtime{}, err
	}
	return s, nil
}

// CreateMovie inserts a movie and assigns the generated ID.
func (r *CatalogRepo) CreateMovie(ctx context.Context, m *model.Movie) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO movies (title, description, director, year, poster) VALUES (?, ?, ?, ?, ?)`,
		m.Title, m.Description, m.Director, m.Year, m.Poster)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = uint64(id)
	return nil
}

// CreateShowtime inserts a showtime together with one free seat row per
// grid coordinate.  Both writes share a transaction so a showtime never
// exists without its seats.
func (r *CatalogRepo) CreateShowtime(ctx context.Context, s *model.Showtime) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO showtimes (movie_id, show_date, show_time, seat_rows, seat_cols) VALUES (?, ?, ?, ?, ?)`,
		s.MovieID, s.Date, s.Time, s.Rows, s.Cols)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	if s.Rows > 0 && s.Cols > 0 {
		// one multi-row INSERT for the whole grid
		query := `INSERT INTO seats (showtime_id, row_idx, col_idx, is_booked) VALUES `
		args := make([]interface{}, 0, s.Rows*s.Cols*3)
		for row := 0; row < s.Rows; row++ {
			for col := 0; col < s.Cols; col++ {
				if len(args) > 0 {
					query += ","
				}
				query += "(?, ?, ?, 0)"
				args = append(args, s.ID, row, col)
			}
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
