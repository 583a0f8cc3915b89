// Package repository defines the persistence layer: the MySQL stores
// behind database/sql and an in-memory store with the same contracts.
// Sentinel errors here let handlers tell failure scenarios apart.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrUsernameExists is returned when registering a taken username.
// Handlers should translate this into an HTTP 409 response.
var ErrUsernameExists = errors.New("username already exists")

// ErrUserNotFound is returned when no user matches a lookup.
var ErrUserNotFound = errors.New("user not found")

// ErrMovieNotFound is returned when a movie id is unknown.
var ErrMovieNotFound = errors.New("movie not found")

// ErrShowtimeNotFound is returned when a showtime id is unknown.
var ErrShowtimeNotFound = errors.New("showtime not found")

// ErrTokenInvalid is returned for unknown, revoked or expired refresh tokens.
var ErrTokenInvalid = errors.New("refresh token invalid")

// MySQL server error numbers the stores react to.
const (
	mysqlDuplicateEntry  = 1062
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

func mysqlErrNumber(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

// isDuplicate reports a unique-key violation.
func isDuplicate(err error) bool { return mysqlErrNumber(err) == mysqlDuplicateEntry }

// isTransientLock reports lock conflicts that are safe to retry with a
// fresh transaction.
func isTransientLock(err error) bool {
	n := mysqlErrNumber(err)
	return n == mysqlDeadlock || n == mysqlLockWaitTimeout
}
