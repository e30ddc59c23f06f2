package utils // package utils provides helper functions for token creation and hashing

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
	"github.com/google/uuid"
)

// Purpose binds a token to the single operation allowed to consume it.
type Purpose string

const (
	PurposeAccess            Purpose = "access"
	PurposeEmailVerification Purpose = "email_verification"
	PurposePasswordReset     Purpose = "password_reset"
)

// ErrInvalidToken is returned by VerifyToken for every expected failure:
// bad signature, unexpected algorithm, malformed input, expiry, missing
// subject or a purpose that does not match the caller's.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the JWT payload shared by all token purposes. The subject
// (sub) carries the user's email.
type Claims struct {
	Purpose Purpose `json:"purpose"`
	jwt.RegisteredClaims
}

// SignedToken represents a signed JWT along with its expiry.
type SignedToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// IssueToken builds and signs an HS256 JWT for subject, valid for ttl and
// usable only where purpose is expected.
func IssueToken(secret, subject string, purpose Purpose, ttl time.Duration) (SignedToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return SignedToken{}, err
	}
	return SignedToken{Token: signed, Exp: exp}, nil
}

// VerifyToken parses raw, checks its signature and expiry and returns the
// subject when the embedded purpose equals want. Any failure yields
// ErrInvalidToken.
func VerifyToken(secret, raw string, want Purpose) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidToken
	}
	var claims Claims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		// Reject anything that is not HMAC-signed.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return "", ErrInvalidToken
	}
	if claims.Purpose != want || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
