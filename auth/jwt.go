// Package auth verifies the bearer tokens issued by the HTTP API.
package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// ErrInvalidToken wraps every verification failure.
var ErrInvalidToken = errors.New("invalid token")

// Options controls signing and verification.
type Options struct {
	Secret []byte        // HMAC key
	Alg    string        // HS256/HS384/HS512, default HS256
	TTL    time.Duration // lifetime of issued tokens, default 2h
}

func DefaultOptions(secret []byte) Options {
	return Options{Secret: secret, Alg: "HS256", TTL: 2 * time.Hour}
}

// JWTVerifier accepts HMAC-signed tokens carrying the user id in a "userId" claim,
// falling back to the registered "sub" claim.
type JWTVerifier struct {
	opts   Options
	method jwtlib.SigningMethod
}

func NewJWTVerifier(opts Options) (*JWTVerifier, error) {
	if len(opts.Secret) == 0 {
		return nil, errors.New("jwt secret is empty")
	}
	method, err := signingMethod(opts.Alg)
	if err != nil {
		return nil, err
	}
	return &JWTVerifier{opts: opts, method: method}, nil
}

func (v *JWTVerifier) Verify(_ context.Context, token string) (string, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return "", errors.Wrap(ErrInvalidToken, "empty")
	}
	parsed, err := jwtlib.Parse(token, func(t *jwtlib.Token) (interface{}, error) {
		// HMAC family only
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected alg: %v", t.Header["alg"])
		}
		return v.opts.Secret, nil
	}, jwtlib.WithValidMethods([]string{v.method.Alg()}))
	if err != nil {
		return "", errors.Wrap(ErrInvalidToken, err.Error())
	}
	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok || !parsed.Valid {
		return "", errors.Wrap(ErrInvalidToken, "claims")
	}
	if id := claimString(claims, "userId"); id != "" {
		return id, nil
	}
	if id := claimString(claims, "sub"); id != "" {
		return id, nil
	}
	return "", errors.Wrap(ErrInvalidToken, "no user id claim")
}

// Issue signs a token for userID. The realtime server never issues tokens itself; this
// exists for tools and tests that need one signed with the same secret.
func (v *JWTVerifier) Issue(userID string) (string, error) {
	ttl := v.opts.TTL
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	now := time.Now()
	claims := jwtlib.MapClaims{
		"userId": userID,
		"sub":    userID,
		"iat":    now.Unix(),
		"exp":    now.Add(ttl).Unix(),
	}
	return jwtlib.NewWithClaims(v.method, claims).SignedString(v.opts.Secret)
}

func claimString(c jwtlib.MapClaims, key string) string {
	switch val := c[key].(type) {
	case string:
		return val
	case float64:
		// numeric ids from older tokens
		return fmt.Sprintf("%.0f", val)
	}
	return ""
}

func signingMethod(alg string) (jwtlib.SigningMethod, error) {
	switch strings.ToUpper(strings.TrimSpace(alg)) {
	case "", "HS256":
		return jwtlib.SigningMethodHS256, nil
	case "HS384":
		return jwtlib.SigningMethodHS384, nil
	case "HS512":
		return jwtlib.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("unsupported alg: %s (use HS256/HS384/HS512)", alg)
	}
}
