package model

// Movie is a catalog entry.  Movies are read-only for the booking
// service; they are created by the seed step or by external tooling.
//
// Fields:
//  ID          – primary key identifier.
//  Title       – display title.
//  Description – synopsis (may be empty).
//  Director    – director name (may be empty).
//  Year        – release year, 0 when unknown.
//  Poster      – poster URL (may be empty).
type Movie struct {
	ID          uint64 // movies.id
	Title       string // movies.title
	Description string // movies.description
	Director    string // movies.director
	Year        int    // movies.year
	Poster      string // movies.poster
}
