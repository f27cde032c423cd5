package admin

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenIssuer mints and validates the bearer JWTs gating the admin
// HTTP API. This is unrelated to the client-facing 32-char Bancho
// session token; admins authenticate out of band and carry a JWT.
type TokenIssuer struct {
	secret []byte
	issuer string
}

func NewTokenIssuer(secret, issuer string) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), issuer: issuer}
}

type claims struct {
	jwt.RegisteredClaims
	Subject string `json:"sub"`
}

// Issue mints a token for the named admin, valid for ttl.
func (t *TokenIssuer) Issue(admin string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   admin,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Subject: admin,
	})
	return token.SignedString(t.secret)
}

// Validate parses and verifies raw, returning the admin subject.
func (t *TokenIssuer) Validate(raw string) (string, error) {
	parsed, err := jwt.ParseWithClaims(raw, &claims{}, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("admin: unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return "", err
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return "", errors.New("admin: invalid token")
	}
	return c.Subject, nil
}
