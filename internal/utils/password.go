package utils

import (
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// Password length bounds accepted at registration.  bcrypt only hashes the
// first 72 bytes and refuses longer input.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
)

// HashPassword returns bcrypt hash using the given cost.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", errors.Wrap(err, "hash password")
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// BurnPasswordCheck spends roughly the time of a real comparison at the
// given cost.  Login calls it for unknown accounts so response timing does
// not reveal which emails are registered.
func BurnPasswordCheck(plain string, cost int) {
	if len(plain) > MaxPasswordLength {
		plain = plain[:MaxPasswordLength]
	}
	_, _ = bcrypt.GenerateFromPassword([]byte(plain), cost)
}
