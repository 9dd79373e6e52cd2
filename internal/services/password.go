package services

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// compareHash is swapped out in tests.
var compareHash = bcrypt.CompareHashAndPassword

// dummyHash is compared against when no stored hash exists, so a login for
// an unknown account costs the same as one with a wrong password.
var dummyHash = sync.OnceValue(func() []byte {
	hash, err := bcrypt.GenerateFromPassword([]byte("evotar-unknown-account"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return hash
})

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	if len(password) == 0 {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares a plaintext password with a stored hash.
func VerifyPassword(hash, password string) error {
	if hash == "" {
		rejectPassword(password)
		return errors.New("password hash is empty")
	}
	return compareHash([]byte(hash), []byte(password))
}

// rejectPassword spends one bcrypt comparison and discards the result.
func rejectPassword(password string) {
	_ = compareHash(dummyHash(), []byte(password))
}

func randomPassword() (string, error) {
	var buf [18]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf[:]), nil
}
