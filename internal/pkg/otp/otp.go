// Package otp issues and checks numeric one-time codes with a fixed validity window.
package otp

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"
)

// Result is the outcome of validating a supplied code.
type Result int

const (
	Valid Result = iota
	Absent
	Mismatched
	Expired
)

func (r Result) String() string {
	switch r {
	case Valid:
		return "valid"
	case Absent:
		return "absent"
	case Mismatched:
		return "mismatched"
	case Expired:
		return "expired"
	}
	return fmt.Sprintf("Result(%d)", int(r))
}

// Challenge generates codes of a fixed length that expire after TTL.
type Challenge struct {
	digits int
	ttl    time.Duration
}

// NewChallenge creates a challenge. Non-positive arguments fall back to 6 digits / 5 minutes.
func NewChallenge(digits int, ttl time.Duration) *Challenge {
	if digits <= 0 {
		digits = 6
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Challenge{digits: digits, ttl: ttl}
}

// TTL returns the validity window.
func (c *Challenge) TTL() time.Duration {
	return c.ttl
}

// Generate returns a uniformly sampled, zero-padded code and its expiry relative to now.
func (c *Challenge) Generate(now time.Time) (string, time.Time, error) {
	code, err := randomCode(c.digits)
	if err != nil {
		return "", time.Time{}, err
	}
	return code, now.Add(c.ttl), nil
}

// Validate checks a supplied code against the stored pair.
//
// The checks run in order: absent, mismatched, expired. A code is still valid at the
// exact expiry instant.
func Validate(stored *string, expiry *time.Time, supplied string, now time.Time) Result {
	if stored == nil || *stored == "" || expiry == nil {
		return Absent
	}
	if *stored != supplied {
		return Mismatched
	}
	if now.After(*expiry) {
		return Expired
	}
	return Valid
}

func randomCode(digits int) (string, error) {
	if digits <= 0 || digits > 18 {
		return "", errors.New("otp: invalid code length")
	}
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("otp: read random: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n.Int64()), nil
}
