package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrBadPassword is returned when the supplied password does not match.
var ErrBadPassword = errors.New("bad password")

// CheckAdminPassword compares a candidate against the configured bcrypt
// hash. Used to elevate a session to the admin role.
func CheckAdminPassword(hash, candidate string) error {
	if hash == "" {
		return errors.New("admin password is not configured")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)); err != nil {
		return ErrBadPassword
	}
	return nil
}

// HashPassword returns the bcrypt hash of a password. Exposed for the
// operator tooling that seeds ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
