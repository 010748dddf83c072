// Package devtoken mints and verifies the signed tokens behind the
// developer-bypass (DevLogin) provider. Tokens are HS256 JWTs whose subject
// is the uid to sign in as.
package devtoken

// file: internal/devtoken/devtoken.go

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"
)

// Issuer is the iss claim of every developer token.
const Issuer = "authsession-dev"

// Claims carried by a developer token.
type Claims struct {
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// ErrInvalidToken is returned (wrapped) for tokens that fail verification.
var ErrInvalidToken = errors.New("invalid developer token")

// Mint signs a token for uid valid for ttl.
func Mint(secret []byte, uid, email, displayName string, ttl time.Duration, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("developer token secret is empty")
	}
	if uid == "" {
		return "", errors.New("developer token requires a uid")
	}
	claims := Claims{
		Email:       email,
		DisplayName: displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign developer token")
	}
	return signed, nil
}

// Verify checks signature, issuer and expiry and returns the claims.
func Verify(secret []byte, token string, now time.Time) (*Claims, error) {
	if len(secret) == 0 {
		return nil, errors.Wrap(ErrInvalidToken, "no secret configured")
	}
	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "developer token rejected"), ErrInvalidToken)
	}
	if claims.Subject == "" {
		return nil, errors.Wrap(ErrInvalidToken, "missing subject")
	}
	return claims, nil
}
