// Package auth implements the signed access-token codec. It is a pure
// cryptographic transform over a process-wide symmetric secret and performs
// no database access.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/filevault/internal/common"
)

// Claims carries the standard registered claims plus the session id.
// Subject holds the user id.
type Claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
}

// Codec signs and verifies access tokens (HS256). The clock is injectable
// so expiry behavior is deterministic in tests.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// NewCodec constructs a Codec for the given symmetric secret.
func NewCodec(secret []byte) *Codec {
	return &Codec{secret: secret, now: time.Now}
}

// WithClock replaces the codec's time source and returns the codec.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	c.now = now
	return c
}

// Sign mints a token for userID bound to sessionID, expiring after validity.
func (c *Codec) Sign(userID string, sessionID string, validity time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(c.now().Add(validity)),
			IssuedAt:  jwt.NewNumericDate(c.now()),
		},
		SessionID: sessionID,
	})

	tokenString, err := token.SignedString(c.secret)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// Verify checks signature and expiry and returns the embedded user id and
// session id. Any failure (bad signature, malformed payload, expired claim)
// is reported as common.ErrInvalidToken.
func (c *Codec) Verify(tokenString string) (string, string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(c.now))
	if err != nil {
		return "", "", common.ErrInvalidToken
	}

	if !token.Valid || claims.Subject == "" || claims.SessionID == "" {
		return "", "", common.ErrInvalidToken
	}

	return claims.Subject, claims.SessionID, nil
}
