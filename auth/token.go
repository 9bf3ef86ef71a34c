// Package auth signs and verifies the HS256 tokens guarding the admin
// endpoints.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

// Issuer is set on every token and required on verification.
const Issuer = "sipi"

// MinSecretLength is the shortest HS256 secret accepted.
const MinSecretLength = 32

var (
	ErrInvalidToken     = errors.New("invalid token format")
	ErrTokenExpired     = errors.New("token has expired")
	ErrTokenNotYetValid = errors.New("token not yet valid")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrInvalidIssuer    = errors.New("invalid issuer")
	ErrWeakSecret       = fmt.Errorf("secret must be at least %d bytes", MinSecretLength)
	ErrMissingToken     = errors.New("missing bearer token")
)

// Claims are the registered JWT claims plus the granted scope.
type Claims struct {
	jwt.Claims
	Scope string `json:"scope,omitempty"`
}

// Sign issues a token for subject valid for ttl.
func Sign(secret []byte, subject string, ttl time.Duration) (string, error) {
	if len(secret) < MinSecretLength {
		return "", ErrWeakSecret
	}

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: secret}, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create signer: %w", err)
	}

	now := time.Now()
	claims := Claims{
		Claims: jwt.Claims{
			Issuer:   Issuer,
			Subject:  subject,
			IssuedAt: jwt.NewNumericDate(now),
			Expiry:   jwt.NewNumericDate(now.Add(ttl)),
		},
		Scope: "admin",
	}

	token, err := jwt.Signed(signer).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("failed to create JWT: %w", err)
	}
	return token, nil
}

// Verify checks the signature, issuer and validity window of token.
func Verify(secret []byte, token string) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	tok, err := jwt.ParseSigned(token, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims := &Claims{}
	if err := tok.Claims(secret, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	err = claims.Validate(jwt.Expected{Issuer: Issuer, Time: time.Now()})
	switch {
	case errors.Is(err, jwt.ErrExpired):
		return nil, ErrTokenExpired
	case errors.Is(err, jwt.ErrNotValidYet), errors.Is(err, jwt.ErrIssuedInTheFuture):
		return nil, ErrTokenNotYetValid
	case errors.Is(err, jwt.ErrInvalidIssuer):
		return nil, ErrInvalidIssuer
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return claims, nil
}

// Bearer extracts the token of an "Authorization: Bearer" header.
func Bearer(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(token), nil
}

// Require wraps h so that it only runs with a valid bearer token.
func Require(secret []byte, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := Bearer(r)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="sipi"`)
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		if _, err := Verify(secret, token); err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="sipi", error="invalid_token"`)
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		h(w, r)
	}
}
