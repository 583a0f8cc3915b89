package booking

import (
	"fmt"

	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// Grid is the fixed shape of a showtime's seating.
type Grid struct {
	Rows int
	Cols int
}

// DefaultGrid is the 5×8 layout every seeded showtime uses.
var DefaultGrid = Grid{Rows: 5, Cols: 8}

// Contains reports whether c lies inside [0,Rows)×[0,Cols).
func (g Grid) Contains(c model.Coord) bool {
	return c.Row >= 0 && c.Row < g.Rows && c.Col >= 0 && c.Col < g.Cols
}

// SeatState is the booked/free state of one seat.
type SeatState int

const (
	Free SeatState = iota
	Booked
)

func (s SeatState) String() string {
	if s == Booked {
		return "booked"
	}
	return "free"
}

// SeatMap holds the booked set of one showtime.  The sparse set is the
// source of truth; Project derives the dense matrix for display.
//
// A SeatMap is not safe for concurrent use.  Stores hand out a fresh
// copy per transaction and serialize transactions per showtime.
type SeatMap struct {
	ShowtimeID uint64
	Grid       Grid
	booked     map[model.Coord]struct{}
}

// NewSeatMap builds a seat map with the given coordinates already
// booked.  Coordinates outside the grid are rejected.
func NewSeatMap(showtimeID uint64, g Grid, booked []model.Coord) (*SeatMap, error) {
	m := &SeatMap{ShowtimeID: showtimeID, Grid: g, booked: make(map[model.Coord]struct{}, len(booked))}
	for _, c := range booked {
		if !g.Contains(c) {
			return nil, fmt.Errorf("showtime %d: booked seat %s outside %dx%d grid", showtimeID, c, g.Rows, g.Cols)
		}
		m.booked[c] = struct{}{}
	}
	return m, nil
}

// Get returns the state of the seat at (row, col).
func (m *SeatMap) Get(row, col int) (SeatState, error) {
	c := model.Coord{Row: row, Col: col}
	if !m.Grid.Contains(c) {
		return Free, SeatNotFound(c)
	}
	if _, ok := m.booked[c]; ok {
		return Booked, nil
	}
	return Free, nil
}

// MarkBooked flips every listed seat from free to booked.  If any seat
// is outside the grid or already booked nothing is changed.
func (m *SeatMap) MarkBooked(coords []model.Coord) error {
	if err := CheckAllFree(m, coords); err != nil {
		return err
	}
	for _, c := range coords {
		m.booked[c] = struct{}{}
	}
	return nil
}

// Booked returns the booked coordinates in ascending (row, col) order.
func (m *SeatMap) Booked() []model.Coord {
	out := make([]model.Coord, 0, len(m.booked))
	for c := range m.booked {
		out = append(out, c)
	}
	model.SortCoords(out)
	return out
}

// BookedCount is the number of booked seats.
func (m *SeatMap) BookedCount() int { return len(m.booked) }

// Clone returns an independent copy.
func (m *SeatMap) Clone() *SeatMap {
	cp := &SeatMap{ShowtimeID: m.ShowtimeID, Grid: m.Grid, booked: make(map[model.Coord]struct{}, len(m.booked))}
	for c := range m.booked {
		cp.booked[c] = struct{}{}
	}
	return cp
}

// Project converts the booked set into a Rows×Cols matrix of 0 (free)
// and 1 (booked).  A booked coordinate outside the grid means the map
// was corrupted and Project panics.
func Project(m *SeatMap) [][]int {
	out := make([][]int, m.Grid.Rows)
	for r := range out {
		out[r] = make([]int, m.Grid.Cols)
	}
	for c := range m.booked {
		if !m.Grid.Contains(c) {
			panic(fmt.Sprintf("seat map %d: booked seat %s outside %dx%d grid", m.ShowtimeID, c, m.Grid.Rows, m.Grid.Cols))
		}
		out[c.Row][c.Col] = 1
	}
	return out
}
