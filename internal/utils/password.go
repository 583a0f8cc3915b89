package utils

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrBcryptCost is returned for a cost outside bcrypt's supported range.
var ErrBcryptCost = errors.New("bcrypt cost out of range")

// CheckBcryptCost reports whether cost lies in [bcrypt.MinCost, bcrypt.MaxCost].
// bcrypt itself silently replaces a too-low cost with its default, which
// would hide a misconfigured BCRYPT_COST.
func CheckBcryptCost(cost int) error {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrBcryptCost, cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return nil
}

// HashPassword hashes plain at the given cost.  Passwords longer than
// 72 bytes are rejected by bcrypt with bcrypt.ErrPasswordTooLong.
func HashPassword(plain string, cost int) (string, error) {
	if err := CheckBcryptCost(cost); err != nil {
		return "", err
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether plain matches hash.  An empty hash
// never matches.
func VerifyPassword(hash, plain string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
