package auth

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

// HashCost is the bcrypt cost used for new hashes. Each call salts
// independently; the salt is embedded in the resulting hash.
const HashCost = 14

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", goerrors.New("empty password", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), HashCost)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}
	return string(h), nil
}

// ComparePasswordAndHash will validate the given cleartext password matches
// the hashed password. This is the only supported comparison; callers never
// re-hash and compare for equality.
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidCredentials
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "password comparison failed")
	}
	return nil
}
