// Package token signs and parses the access/refresh JWT pair.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var (
	ErrInvalid   = errors.New("invalid token")
	ErrWrongType = errors.New("wrong token type")
)

// Identity is the user snapshot embedded in an access token.
type Identity struct {
	ID         string
	Email      string
	Name       string
	Role       string
	IsVerified bool
}

// Claims is the JWT payload. Refresh tokens carry only the subject.
type Claims struct {
	jwt.RegisteredClaims
	Email      string `json:"email,omitempty"`
	Name       string `json:"name,omitempty"`
	Role       string `json:"role,omitempty"`
	IsVerified bool   `json:"isVerified,omitempty"`
	Type       string `json:"typ"`
}

// Manager issues HS256 tokens with fixed lifetimes.
type Manager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewManager creates a Manager.
func NewManager(secret string, accessTTL, refreshTTL time.Duration) *Manager {
	return &Manager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

func (m *Manager) AccessTTL() time.Duration  { return m.accessTTL }
func (m *Manager) RefreshTTL() time.Duration { return m.refreshTTL }

// IssueAccess signs a short-lived token describing the user.
func (m *Manager) IssueAccess(id Identity) (string, error) {
	claims := Claims{
		RegisteredClaims: m.registered(id.ID, m.accessTTL),
		Email:            id.Email,
		Name:             id.Name,
		Role:             id.Role,
		IsVerified:       id.IsVerified,
		Type:             TypeAccess,
	}
	return m.sign(claims)
}

// IssueRefresh signs a long-lived token that only names the subject.
func (m *Manager) IssueRefresh(subject string) (string, error) {
	claims := Claims{
		RegisteredClaims: m.registered(subject, m.refreshTTL),
		Type:             TypeRefresh,
	}
	return m.sign(claims)
}

// Parse verifies signature, expiry and token type and returns the claims.
func (m *Manager) Parse(raw, wantType string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !tok.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if claims.Type != wantType {
		return nil, ErrWrongType
	}
	if claims.Subject == "" {
		return nil, ErrInvalid
	}
	return claims, nil
}

func (m *Manager) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := m.now()
	return jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (m *Manager) sign(claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}
