// Package auth guards the admin API with a shared operator token.
//
// It intentionally avoids policy decisions and storage concerns.
package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

var ErrUnauthorized = errors.New("auth: unauthorized")

// HeaderAPIKey is accepted alongside "Authorization: Bearer <token>".
const HeaderAPIKey = "X-Api-Key"

// Validator validates an operator token.
type Validator interface {
	Validate(token string) error
}

// StaticToken accepts exactly one shared token. An empty Token denies everything.
type StaticToken struct {
	Token string
}

func (s StaticToken) Validate(token string) error {
	if s.Token == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(s.Token), []byte(token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// FuncValidator adapts a function into a Validator.
type FuncValidator func(token string) error

func (f FuncValidator) Validate(token string) error {
	return f(token)
}

// TokenFromHeader extracts the caller token, preferring a bearer
// Authorization header over HeaderAPIKey.
func TokenFromHeader(h http.Header) string {
	if raw := strings.TrimSpace(h.Get("Authorization")); raw != "" {
		scheme, value, ok := strings.Cut(raw, " ")
		if ok && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(value)
		}
	}
	return strings.TrimSpace(h.Get(HeaderAPIKey))
}

// Check validates the token carried by h.
func Check(v Validator, h http.Header) error {
	token := TokenFromHeader(h)
	if token == "" {
		return ErrUnauthorized
	}
	return v.Validate(token)
}
