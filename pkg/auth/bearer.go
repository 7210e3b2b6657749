package auth

import (
	"errors"
	"net/http"
	"strings"
)

const bearerTokenType = "Bearer"

// Common Bearer token extraction errors.
var (
	ErrAuthHeaderMissing       = errors.New("authorization header required")
	ErrInvalidAuthHeaderFormat = errors.New("invalid authorization header format, expected 'Bearer <token>'")
	ErrEmptyBearerToken        = errors.New("empty token in authorization header")
)

// ExtractBearerToken extracts and validates a Bearer token from the
// Authorization header per RFC 6750 §2.1. Callers are responsible for
// further token validation (JWT parsing, provider lookup, etc.).
func ExtractBearerToken(r *http.Request) (string, error) {
	return ExtractBearerTokenFromHeader(r.Header)
}

// ExtractBearerTokenFromHeader is ExtractBearerToken against a bare
// http.Header, for callers (the JSON-RPC dispatcher, the bidirectional
// engine's upgrade gate) that don't have a full *http.Request.
func ExtractBearerTokenFromHeader(h http.Header) (string, error) {
	authHeader := h.Get("Authorization")
	if authHeader == "" {
		return "", ErrAuthHeaderMissing
	}

	prefix := bearerTokenType + " "
	if !strings.HasPrefix(authHeader, prefix) {
		return "", ErrInvalidAuthHeaderFormat
	}

	token := strings.TrimPrefix(authHeader, prefix)
	if strings.TrimSpace(token) == "" {
		return "", ErrEmptyBearerToken
	}

	return token, nil
}
