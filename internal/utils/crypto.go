package utils

import (
	"errors"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

var ErrWeakPin = errors.New("pin must be 4 to 6 digits")

// ValidatePinFormat accepts numeric PINs of 4 to 6 digits.
func ValidatePinFormat(pin string) error {
	if len(pin) < 4 || len(pin) > 6 {
		return ErrWeakPin
	}
	for _, r := range pin {
		if !unicode.IsDigit(r) {
			return ErrWeakPin
		}
	}
	return nil
}

// HashPin hashes a wallet PIN with bcrypt.
func HashPin(pin string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPin compares a candidate PIN against the stored hash.
func CheckPin(hash, pin string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) == nil
}
