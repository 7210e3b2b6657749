package auth

import "fmt"

// ErrorType is a closed enum of the auth failure taxonomy. Every
// AuthError carries exactly one of these, and every transport maps
// each one to a stable wire code (see pkg/wireerr and pkg/jsonrpc).
type ErrorType string

const (
	ErrorTypeInvalidCredentials     ErrorType = "invalid_credentials"
	ErrorTypeTokenExpired           ErrorType = "token_expired"
	ErrorTypeInsufficientPermission ErrorType = "insufficient_permissions"
	ErrorTypeUnsupportedScheme      ErrorType = "unsupported_scheme"
	ErrorTypeInternal               ErrorType = "internal"
)

// AuthError is the tagged error value every AuthProvider returns on
// failure. Construct with the NewXxxError helpers below rather than
// the struct literal, so the Type/Message pairing stays consistent.
type AuthError struct {
	Type     ErrorType
	Message  string
	Required PermissionGroups
	Actual   []string
	Cause    error
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Cause
}

// NewInvalidCredentialsError returns the single unified error value
// used for both "unknown user" and "wrong password" — the local
// identity provider (pkg/identity/local) depends on this being
// byte-identical across both cases.
func NewInvalidCredentialsError() *AuthError {
	return &AuthError{Type: ErrorTypeInvalidCredentials, Message: "invalid credentials"}
}

// NewTokenExpiredError reports an expired, otherwise well-formed token.
func NewTokenExpiredError() *AuthError {
	return &AuthError{Type: ErrorTypeTokenExpired, Message: "token expired"}
}

// NewInsufficientPermissionsError never echoes required/actual on the
// wire (see §7 of the spec); callers that need them for logging can
// read the fields directly.
func NewInsufficientPermissionsError(required PermissionGroups, actual []string) *AuthError {
	return &AuthError{
		Type:     ErrorTypeInsufficientPermission,
		Message:  "insufficient permissions",
		Required: required,
		Actual:   actual,
	}
}

// NewUnsupportedSchemeError reports an Authorization header whose
// scheme is not "Bearer".
func NewUnsupportedSchemeError(scheme string) *AuthError {
	return &AuthError{Type: ErrorTypeUnsupportedScheme, Message: fmt.Sprintf("unsupported auth scheme: %s", scheme)}
}

// NewInternalAuthError wraps an opaque provider-internal failure.
// cause is logged by the caller, never serialized to the wire.
func NewInternalAuthError(cause error) *AuthError {
	return &AuthError{Type: ErrorTypeInternal, Message: "internal authentication error", Cause: cause}
}

// IsTokenExpired reports whether err is an AuthError of type TokenExpired.
func IsTokenExpired(err error) bool {
	var ae *AuthError
	return asAuthError(err, &ae) && ae.Type == ErrorTypeTokenExpired
}

// IsInvalidCredentials reports whether err is an AuthError of type InvalidCredentials.
func IsInvalidCredentials(err error) bool {
	var ae *AuthError
	return asAuthError(err, &ae) && ae.Type == ErrorTypeInvalidCredentials
}

// IsInsufficientPermissions reports whether err denotes a failed
// permission check.
func IsInsufficientPermissions(err error) bool {
	var ae *AuthError
	return asAuthError(err, &ae) && ae.Type == ErrorTypeInsufficientPermission
}

func asAuthError(err error, target **AuthError) bool {
	ae, ok := err.(*AuthError)
	if !ok {
		return false
	}
	*target = ae
	return true
}
