package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order by Migrate.  Every statement is
// idempotent.  booking_seats carries the uniqueness constraint that
// makes a second claim on a seat fail.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		username VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_users_username (username)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64) NOT NULL,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_refresh_tokens_hash (token_hash),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS movies (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		description TEXT,
		director VARCHAR(255),
		year INT,
		poster TEXT
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS showtimes (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		movie_id BIGINT UNSIGNED NOT NULL,
		show_date DATE NOT NULL,
		show_time TIME NOT NULL,
		seat_rows INT NOT NULL DEFAULT 5,
		seat_cols INT NOT NULL DEFAULT 8,
		FOREIGN KEY (movie_id) REFERENCES movies(id) ON DELETE CASCADE
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS seats (
		showtime_id BIGINT UNSIGNED NOT NULL,
		row_idx INT NOT NULL,
		col_idx INT NOT NULL,
		is_booked BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (showtime_id, row_idx, col_idx),
		FOREIGN KEY (showtime_id) REFERENCES showtimes(id) ON DELETE CASCADE
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT UNSIGNED NOT NULL,
		showtime_id BIGINT UNSIGNED NOT NULL,
		created_at DATETIME(6) NOT NULL,
		KEY idx_bookings_user_created (user_id, created_at),
		FOREIGN KEY (user_id) REFERENCES users(id),
		FOREIGN KEY (showtime_id) REFERENCES showtimes(id)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS booking_seats (
		booking_id BIGINT UNSIGNED NOT NULL,
		showtime_id BIGINT UNSIGNED NOT NULL,
		row_idx INT NOT NULL,
		col_idx INT NOT NULL,
		PRIMARY KEY (booking_id, row_idx, col_idx),
		UNIQUE KEY uq_booking_seats_seat (showtime_id, row_idx, col_idx),
		FOREIGN KEY (booking_id) REFERENCES bookings(id),
		FOREIGN KEY (showtime_id, row_idx, col_idx) REFERENCES seats(showtime_id, row_idx, col_idx)
	) ENGINE=InnoDB`,
}

// Migrate creates any missing tables.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
