// Package user defines the account record used for authentication
// and as the owner of a user profile.
package user

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// UsernameMaxLength is the upper bound of a username.
const UsernameMaxLength = 150

const bcryptCost = 12

// User represents a registered account.
type User struct {
	// ID is the surrogate key assigned by storage.
	ID int64 `json:"id"`

	Username string `json:"username"`
	Email    string `json:"email"`

	// Password holds a bcrypt hash once SetPassword has been called.
	// Before that it may carry the cleartext submitted by a form.
	Password string `json:"password"`

	IsActive   bool      `json:"is_active"`
	DateJoined time.Time `json:"date_joined"`
}

// SetPassword replaces the stored password with the bcrypt hash of plaintext.
func (u *User) SetPassword(plaintext string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcryptCost)
	if err != nil {
		return err
	}
	u.Password = string(hash)

	return nil
}

// CheckPassword reports whether plaintext matches the stored hash.
// A stored password that is not a bcrypt hash never matches.
func (u *User) CheckPassword(plaintext string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(plaintext))
	if err != nil {
		var prefixErr bcrypt.InvalidHashPrefixError
		switch {
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword),
			errors.Is(err, bcrypt.ErrHashTooShort),
			errors.As(err, &prefixErr):
			return false, nil
		default:
			return false, err
		}
	}

	return true, nil
}
