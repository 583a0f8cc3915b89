package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

func TestCatalogRepoCreateShowtimeInsertsGrid(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewCatalogRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO showtimes (movie_id, show_date, show_time, seat_rows, seat_cols) VALUES (?, ?, ?, ?, ?)`)).
		WithArgs(3, "2026-11-06", "18:30", 2, 2).
		WillReturnResult(sqlmock.NewResult(40, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO seats (showtime_id, row_idx, col_idx, is_booked) VALUES (?, ?, ?, 0),(?, ?, ?, 0),(?, ?, ?, 0),(?, ?, ?, 0)`)).
		WithArgs(40, 0, 0, 40, 0, 1, 40, 1, 0, 40, 1, 1).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectCommit()

	st := model.Showtime{MovieID: 3, Date: "2026-11-06", Time: "18:30", Rows: 2, Cols: 2}
	require.NoError(t, repo.CreateShowtime(context.Background(), &st))
	assert.Equal(t, uint64(40), st.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepoCreateShowtimeRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewCatalogRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO showtimes`).WillReturnResult(sqlmock.NewResult(41, 1))
	mock.ExpectExec(`INSERT INTO seats`).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	st := model.Showtime{MovieID: 3, Rows: 1, Cols: 1}
	require.ErrorIs(t, repo.CreateShowtime(context.Background(), &st), assert.AnError)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepoGetMovie(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewCatalogRepo(db)
	cols := []string{"id", "title", "description", "director", "year", "poster"}

	mock.ExpectQuery(`SELECT id, title, .* FROM movies WHERE id = \?`).WithArgs(1).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(1, "Amarcord", "", "Federico Fellini", 1973, ""))
	m, err := repo.GetMovie(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, model.Movie{ID: 1, Title: "Amarcord", Director: "Federico Fellini", Year: 1973}, m)

	mock.ExpectQuery(`FROM movies WHERE id = \?`).WithArgs(2).WillReturnRows(sqlmock.NewRows(cols))
	_, err = repo.GetMovie(context.Background(), 2)
	assert.ErrorIs(t, err, ErrMovieNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
