package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Secret keys the HMAC used for password hashes and access tokens.
// The server is a practice tool; the value is public on purpose.
const Secret = "This is not a production server"

// Hasher hashes and verifies passwords.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// Sign returns the hex HMAC-SHA256 of value under Secret.
func Sign(value string) string {
	mac := hmac.New(sha256.New, []byte(Secret))
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}

// HMACHasher is the default hasher. It is compatible with the seed users.
type HMACHasher struct{}

func (HMACHasher) Hash(password string) (string, error) {
	return Sign(password), nil
}

func (HMACHasher) Verify(password, hash string) bool {
	return hmac.Equal([]byte(Sign(password)), []byte(hash))
}

// BcryptHasher hashes new passwords with bcrypt and still accepts HMAC
// hashes, so seeded accounts keep working.
type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (h BcryptHasher) Verify(password, hash string) bool {
	if strings.HasPrefix(hash, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
	}
	return HMACHasher{}.Verify(password, hash)
}

// NewHasher returns the hasher for a PASSWORD_HASHER value.
func NewHasher(name string) (Hasher, error) {
	switch strings.ToLower(name) {
	case "", "hmac":
		return HMACHasher{}, nil
	case "bcrypt":
		return BcryptHasher{}, nil
	}
	return nil, fmt.Errorf("unknown password hasher %q", name)
}
