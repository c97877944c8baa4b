package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"
)

// DefaultTimingFloor is the minimum wall-clock duration every
// auth-adjacent response must take, so that "user not found", "wrong
// password" and "wrong code" branches are indistinguishable by timing.
const DefaultTimingFloor = 200 * time.Millisecond

// HashToken one-way hashes a reset/verification secret before storage
// or comparison. Raw secrets are never persisted.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// SecureCompare reports whether two strings are equal in constant time.
func SecureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// NewResetToken returns a 32-byte URL-safe opaque token and its hash.
func NewResetToken() (raw, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("read token: %w", err)
	}
	raw = base64.RawURLEncoding.EncodeToString(buf)
	return raw, HashToken(raw), nil
}

// NewNumericCode returns a zero-padded random code of the given number
// of digits, e.g. "0427" for digits=4.
func NewNumericCode(digits int) (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < digits; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("read code: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}

// TimingFloor sleeps until at least min has elapsed since start. Every
// early-exit branch on an auth path must still pay the floor.
func TimingFloor(start time.Time, min time.Duration) {
	if remaining := min - time.Since(start); remaining > 0 {
		time.Sleep(remaining)
	}
}
