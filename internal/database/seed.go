package database

import (
	"context"

	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// CatalogWriter is the part of a catalog store the seed step needs.
// Both repository.CatalogRepo and repository.MemoryStore satisfy it.
type CatalogWriter interface {
	ListMovies(ctx context.Context) ([]model.Movie, error)
	CreateMovie(ctx context.Context, m *model.Movie) error
	CreateShowtime(ctx context.Context, s *model.Showtime) error
}

// DemoMovie is a movie plus the showtimes to create for it.
type DemoMovie struct {
	Movie     model.Movie
	Showtimes []model.Showtime
}

// DemoCatalog returns the demo movies, each with three showtimes on a
// rows×cols grid.
func DemoCatalog(rows, cols int) []DemoMovie {
	slots := func() []model.Showtime {
		return []model.Showtime{
			{Date: "2026-11-06", Time: "18:30", Rows: rows, Cols: cols},
			{Date: "2026-11-06", Time: "21:15", Rows: rows, Cols: cols},
			{Date: "2026-11-07", Time: "20:00", Rows: rows, Cols: cols},
		}
	}
	return []DemoMovie{
		{Movie: model.Movie{Title: "La dolce vita", Director: "Federico Fellini", Year: 1960,
			Description: "A journalist drifts through a week of Roman high society."}, Showtimes: slots()},
		{Movie: model.Movie{Title: "Nuovo Cinema Paradiso", Director: "Giuseppe Tornatore", Year: 1988,
			Description: "A filmmaker recalls the village cinema where he grew up."}, Showtimes: slots()},
		{Movie: model.Movie{Title: "Il buono, il brutto, il cattivo", Director: "Sergio Leone", Year: 1966,
			Description: "Three gunslingers race to a buried fortune."}, Showtimes: slots()},
	}
}

// Seed inserts the demo catalog when the store has no movies yet.  It
// returns the number of showtimes created.
func Seed(ctx context.Context, w CatalogWriter, rows, cols int) (int, error) {
	existing, err := w.ListMovies(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}
	n := 0
	for _, dm := range DemoCatalog(rows, cols) {
		m := dm.Movie
		if err := w.CreateMovie(ctx, &m); err != nil {
			return n, err
		}
		for _, st := range dm.Showtimes {
			st.MovieID = m.ID
			if err := w.CreateShowtime(ctx, &st); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}
