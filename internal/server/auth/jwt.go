// Package auth verifies bearer access tokens issued by the identity
// provider (Privy). Tokens are ES256 JWTs; the principal is the subject.
package auth

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/DariusIMP/publish3-backend/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

const privyIssuer = "privy.io"

// Claims are the Privy access token claims.
type Claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
}

// Verifier checks tokens against the provider's public key and app id.
type Verifier struct {
	key    *ecdsa.PublicKey
	parser *jwt.Parser
}

// NewVerifier parses a PEM-encoded EC public key. Literal "\n" sequences,
// as they often arrive through environment variables, are accepted.
func NewVerifier(pemKey, appID string) (*Verifier, error) {
	key, err := jwt.ParseECPublicKeyFromPEM([]byte(strings.ReplaceAll(pemKey, `\n`, "\n")))
	if err != nil {
		return nil, fmt.Errorf("%w: jwt verification key: %w", common.ErrConfiguration, err)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithIssuer(privyIssuer),
		jwt.WithAudience(appID),
		jwt.WithExpirationRequired(),
	)
	return &Verifier{key: key, parser: parser}, nil
}

// Verify returns the token claims or common.ErrTokenExpired /
// common.ErrInvalidToken.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := v.parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return v.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

// UserID verifies the token and returns its subject.
func (v *Verifier) UserID(tokenString string) (string, error) {
	claims, err := v.Verify(tokenString)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}
