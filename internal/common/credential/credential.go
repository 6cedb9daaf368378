// Package credential inspects bearer credentials without verifying them.
// Verification belongs to the backend; the relay only short-circuits
// credentials that are already known to be expired.
package credential

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	Subject   string
	ExpiresAt time.Time
	IsJWT     bool
}

// Inspect decodes a JWT-shaped credential. Opaque tokens yield zero Claims.
func Inspect(token string) Claims {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return Claims{}
	}

	claims := Claims{IsJWT: true}
	if sub, err := parsed.Claims.GetSubject(); err == nil {
		claims.Subject = sub
	}
	if exp, err := parsed.Claims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	return claims
}

// Expired reports whether the credential carries an exp claim in the past.
func Expired(token string, now time.Time) bool {
	claims := Inspect(token)
	if claims.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(claims.ExpiresAt)
}
