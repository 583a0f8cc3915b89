package repository

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/iliyamo/cinema-seat-booking/internal/booking"
	"github.com/iliyamo/cinema-seat-booking/internal/model"
	"github.com/iliyamo/cinema-seat-booking/internal/utils"
)

// UserRepo reads and writes the `users` table.  It is also the
// identity resolver of the booking engine.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// NormalizeUsername trims and lower-cases a username.
func NormalizeUsername(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Create hashes the password, inserts the user and returns its ID.
func (r *UserRepo) Create(ctx context.Context, username, password string, cost int) (uint64, error) {
	username = NormalizeUsername(username)
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (username, password_hash) VALUES (?,?)",
		username, hash)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrUsernameExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

const userColumns = "id,username,password_hash,is_active,created_at,updated_at"

// GetByUsername fetches a user by normalized username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	return r.scanOne(ctx,
		"SELECT "+userColumns+" FROM users WHERE username=? LIMIT 1",
		NormalizeUsername(username))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.scanOne(ctx, "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
}

func (r *UserRepo) scanOne(ctx context.Context, q string, arg any) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx, q, arg).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrUserNotFound
	}
	return u, err
}

// ResolveUser implements booking.UserResolver.  Missing and inactive
// accounts are both UnknownUser.
func (r *UserRepo) ResolveUser(ctx context.Context, userID uint64) (model.User, error) {
	u, err := r.GetByID(ctx, userID)
	return resolveUser(userID, u, err)
}

func resolveUser(userID uint64, u model.User, err error) (model.User, error) {
	if errors.Is(err, ErrUserNotFound) {
		return model.User{}, &booking.Error{Kind: booking.KindUnknownUser, Msg: "user " + strconv.FormatUint(userID, 10) + " not found"}
	}
	if err != nil {
		return model.User{}, err
	}
	if !u.IsActive {
		return model.User{}, &booking.Error{Kind: booking.KindUnknownUser, Msg: "user " + strconv.FormatUint(userID, 10) + " is inactive"}
	}
	return u, nil
}
