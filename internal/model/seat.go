package model

import (
	"fmt"
	"sort"
)

// Coord addresses one seat inside a showtime's grid.  Rows and
// columns are zero based, so a 5×8 grid spans (0,0) through (4,7).
//
// Fields:
//  Row – row index, 0 ≤ Row < grid rows.
//  Col – column index, 0 ≤ Col < grid columns.
type Coord struct {
	Row int `json:"row"` // seats.row_idx
	Col int `json:"col"` // seats.col_idx
}

// String renders the coordinate as "(row,col)".
func (c Coord) String() string { return fmt.Sprintf("(%d,%d)", c.Row, c.Col) }

// Less orders coordinates by row, then by column.
func (c Coord) Less(o Coord) bool {
	if c.Row != o.Row {
		return c.Row < o.Row
	}
	return c.Col < o.Col
}

// SortCoords sorts in place in ascending (row, col) order.
func SortCoords(cs []Coord) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].Less(cs[j]) })
}

// Seat mirrors one row of the `seats` table: the booked flag of a
// single coordinate of a showtime.
//
// Fields:
//  ShowtimeID – showtime owning the seat.
//  Row, Col   – coordinate in the showtime grid.
//  IsBooked   – false until a booking claims the seat, then true forever.
type Seat struct {
	ShowtimeID uint64 // seats.showtime_id
	Row        int    // seats.row_idx
	Col        int    // seats.col_idx
	IsBooked   bool   // seats.is_booked
}
