// Package auth verifies end-user bearer tokens minted by the identity provider
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"laneledger/internal/platform/config"
	perr "laneledger/internal/platform/errors"

	"github.com/golang-jwt/jwt/v5"
)

// Options configure token verification
type Options struct {
	Secret string
	Issuer string
	Leeway time.Duration
}

// FromConfig reads AUTH_* values from process config/env
func FromConfig(cfg config.Conf) Options {
	ac := cfg.Prefix("AUTH_")
	return Options{
		Secret: ac.MayString("JWT_SECRET", ""),
		Issuer: ac.MayString("JWT_ISSUER", ""),
		Leeway: ac.MayDuration("JWT_LEEWAY", 5*time.Second),
	}
}

// Claims are the registered claims we rely on; the user id is the subject
type Claims struct {
	jwt.RegisteredClaims
}

// Verifier validates HMAC signed bearer tokens
type Verifier struct {
	secret []byte
	opts   []jwt.ParserOption
}

// NewVerifier builds a Verifier, failing when no secret is configured
func NewVerifier(o Options) (*Verifier, error) {
	if strings.TrimSpace(o.Secret) == "" {
		return nil, perr.Configurationf("AUTH_JWT_SECRET is not configured")
	}
	opts := []jwt.ParserOption{
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(o.Leeway),
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
	}
	if o.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(o.Issuer))
	}
	return &Verifier{secret: []byte(o.Secret), opts: opts}, nil
}

// UserID parses raw and returns its subject
func (v *Verifier) UserID(raw string) (string, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, v.opts...)
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeUnauthorized, "invalid bearer token")
	}
	if !token.Valid {
		return "", perr.Unauthorizedf("invalid bearer token")
	}
	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return "", perr.Unauthorizedf("bearer token has no subject")
	}
	return sub, nil
}

// Mint signs a token for userID. Used by tooling and tests
func Mint(secret, issuer, userID string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("auth: empty secret")
	}
	now := time.Now()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("auth: sign: %w", err)
	}
	return s, nil
}
