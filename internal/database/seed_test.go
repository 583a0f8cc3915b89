package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-booking/internal/repository"
)

func TestSeedOnlyOnEmptyCatalog(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()

	n, err := Seed(ctx, store, 5, 8)
	require.NoError(t, err)
	assert.Equal(t, 9, n)

	movies, err := store.ListMovies(ctx)
	require.NoError(t, err)
	require.Len(t, movies, 3)
	sts, err := store.ListShowtimesByMovie(ctx, movies[0].ID)
	require.NoError(t, err)
	require.Len(t, sts, 3)
	assert.Equal(t, 5, sts[0].Rows)
	assert.Equal(t, 8, sts[0].Cols)

	sm, err := store.LoadSeatMap(ctx, sts[0].ID)
	require.NoError(t, err)
	assert.Zero(t, sm.BookedCount())

	n, err = Seed(ctx, store, 5, 8)
	require.NoError(t, err)
	assert.Zero(t, n, "second run is a no-op")
}

func TestMigrateRunsEveryStatement(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for range schema {
		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS`).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, Migrate(context.Background(), db))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateStopsOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS users`).WillReturnError(assert.AnError)
	err = Migrate(context.Background(), db)
	require.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "migration 0")
}
