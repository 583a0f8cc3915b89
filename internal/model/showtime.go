package model

// Showtime is a scheduled screening of a movie with a fixed seat
// grid.  The grid never changes once the showtime exists.
//
// Fields:
//  ID      – primary key identifier.
//  MovieID – movie being screened.
//  Date    – screening date, "YYYY-MM-DD".
//  Time    – screening time, "HH:MM".
//  Rows    – number of seat rows.
//  Cols    – number of seats per row.
type Showtime struct {
	ID      uint64 // showtimes.id
	MovieID uint64 // showtimes.movie_id
	Date    string // showtimes.show_date
	Time    string // showtimes.show_time
	Rows    int    // showtimes.seat_rows
	Cols    int    // showtimes.seat_cols
}
