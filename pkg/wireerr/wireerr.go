// Package wireerr is the single error currency crossing from internal
// code into any transport's wire response. Transports never format a
// raw error onto the wire; they translate a wireerr.Error's Type into
// a stable protocol-specific code and write only its Message. Cause
// is for logging and is never serialized.
package wireerr

import (
	"errors"
	"fmt"
)

// Type is a closed enum matching the error taxonomy (§7): transport,
// routing, authentication, authorization, validation, handler, and
// connection-scoped failures each map to one of these.
type Type string

const (
	TypeParseError              Type = "parse_error"
	TypeInvalidRequest          Type = "invalid_request"
	TypeMethodNotFound          Type = "method_not_found"
	TypeInvalidParams           Type = "invalid_params"
	TypeInternal                Type = "internal"
	TypeAuthenticationRequired  Type = "authentication_required"
	TypeInsufficientPermissions Type = "insufficient_permissions"
	TypeTokenExpired            Type = "token_expired"
)

// Error is the single tagged wrapper carried across every internal
// boundary. Message is the only field ever written to a wire
// response; Cause is logged at the point the error crosses from
// internal to wire representation and is otherwise never exposed.
type Error struct {
	Type    Type
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(t Type, message string, cause error) *Error {
	return &Error{Type: t, Message: message, Cause: cause}
}

// NewParseError reports malformed request framing. message is safe to
// echo (it should never embed raw parser internals beyond "Parse error").
func NewParseError(cause error) *Error {
	return newError(TypeParseError, "Parse error", cause)
}

// NewInvalidRequest reports a structurally invalid request envelope.
func NewInvalidRequest(message string) *Error {
	return newError(TypeInvalidRequest, message, nil)
}

// NewMethodNotFound reports an unknown method or path. The identifier
// is safe to echo.
func NewMethodNotFound(identifier string) *Error {
	return newError(TypeMethodNotFound, fmt.Sprintf("Method not found: %s", identifier), nil)
}

// NewInvalidParams reports typed parameter deserialization failure.
// The wire message is always the fixed string; cause is logged only.
func NewInvalidParams(cause error) *Error {
	return newError(TypeInvalidParams, "Invalid params", cause)
}

// NewInternal wraps any handler-returned error. The wire message is
// always "Internal error"; cause carries the detail for logging.
func NewInternal(cause error) *Error {
	return newError(TypeInternal, "Internal error", cause)
}

// NewAuthenticationRequired covers every authentication failure except
// expiry: missing credential, malformed credential, invalid token. All
// of these collapse to one message to avoid an oracle on token
// validity.
func NewAuthenticationRequired() *Error {
	return newError(TypeAuthenticationRequired, "Authentication required", nil)
}

// NewTokenExpired reports a specifically expired (as opposed to
// otherwise invalid) token.
func NewTokenExpired() *Error {
	return newError(TypeTokenExpired, "Token expired", nil)
}

// NewInsufficientPermissions reports a failed permission check. The
// required-permission set is never echoed onto the wire.
func NewInsufficientPermissions() *Error {
	return newError(TypeInsufficientPermissions, "Insufficient permissions", nil)
}

// Code returns the stable JSON-RPC error code for e's Type.
func (e *Error) Code() int {
	switch e.Type {
	case TypeParseError:
		return -32700
	case TypeInvalidRequest:
		return -32600
	case TypeMethodNotFound:
		return -32601
	case TypeInvalidParams:
		return -32602
	case TypeAuthenticationRequired:
		return -32001
	case TypeInsufficientPermissions:
		return -32002
	case TypeTokenExpired:
		return -32003
	default:
		return -32603
	}
}

// HTTPStatus returns the HTTP status code the REST transport writes for
// e's Type. The JSON-RPC dispatcher does not use it: it answers parse,
// routing, params and internal errors with 200.
func (e *Error) HTTPStatus() int {
	switch e.Type {
	case TypeAuthenticationRequired, TypeTokenExpired:
		return 401
	case TypeInsufficientPermissions:
		return 403
	case TypeMethodNotFound:
		return 404
	case TypeInvalidRequest, TypeInvalidParams, TypeParseError:
		return 400
	default:
		return 500
	}
}

// As reports whether err is, or wraps, a *Error.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
