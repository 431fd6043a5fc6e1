package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

// DefaultTokenLifetime is used when the issuer is built with a zero lifetime.
const DefaultTokenLifetime = 720 * time.Hour

// Claims is the payload of a marksync bearer token.
type Claims struct {
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidToken
	}
	return id, nil
}

// Issuer signs and verifies HS256 tokens with one shared secret.
type Issuer struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

// NewIssuer builds an Issuer. The secret must not be empty.
func NewIssuer(secret string, lifetime time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("token secret is empty")
	}
	if lifetime <= 0 {
		lifetime = DefaultTokenLifetime
	}
	return &Issuer{secret: []byte(secret), lifetime: lifetime, now: time.Now}, nil
}

// Issue returns a signed token for the given user.
func (i *Issuer) Issue(userID int64, email string, isAdmin bool) (string, error) {
	now := i.now()
	claims := Claims{
		Email:   email,
		IsAdmin: isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.lifetime)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of raw and returns its claims.
func (i *Issuer) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := claims.UserID(); err != nil {
		return nil, err
	}
	return claims, nil
}
