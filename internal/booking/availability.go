package booking

import "github.com/iliyamo/cinema-seat-booking/internal/model"

// SeatReader is the read side of a seat map.
type SeatReader interface {
	Get(row, col int) (SeatState, error)
}

// CheckAllFree reports whether every coordinate is inside the grid and
// free.  Coordinates are examined in ascending (row, col) order so the
// failing seat is reproducible: the first out-of-grid seat yields a
// NotFound error, otherwise the first booked seat yields a Conflict.
func CheckAllFree(m SeatReader, coords []model.Coord) error {
	sorted := make([]model.Coord, len(coords))
	copy(sorted, coords)
	model.SortCoords(sorted)

	states := make([]SeatState, len(sorted))
	for i, c := range sorted {
		st, err := m.Get(c.Row, c.Col)
		if err != nil {
			return err
		}
		states[i] = st
	}
	for i, st := range states {
		if st == Booked {
			return SeatConflict(sorted[i])
		}
	}
	return nil
}
