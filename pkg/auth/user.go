// Package auth defines the authentication contract shared by every
// transport: a provider verifies a bearer credential and yields an
// AuthenticatedUser, or a tagged AuthError. Permission evaluation
// against a method's declared rule is the dispatcher's job, not the
// provider's.
package auth

import "context"

// AuthenticatedUser is the result of a successful authentication.
// Immutable after construction: callers must not mutate Permissions
// or Metadata in place.
type AuthenticatedUser struct {
	UserID      string
	Permissions []string
	Metadata    map[string]any
}

// HasPermission reports whether the user holds the given permission.
func (u AuthenticatedUser) HasPermission(perm string) bool {
	for _, p := range u.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether the user holds every permission
// in the given group. An empty group is satisfied by any user.
func (u AuthenticatedUser) HasAllPermissions(group []string) bool {
	for _, want := range group {
		if !u.HasPermission(want) {
			return false
		}
	}
	return true
}

// PermissionGroups is the two-level "groups of permissions" shape
// from a method's declared authorization rule: the request is
// authorized iff the user satisfies at least one group in full.
// An empty outer slice means "any authenticated user"; an empty inner
// group is equivalent to "authenticated".
type PermissionGroups [][]string

// Authorized reports whether u satisfies g per the spec's rule: ALL
// permissions within at least one group (AND within a group, OR
// between groups).
func (g PermissionGroups) Authorized(u AuthenticatedUser) bool {
	if len(g) == 0 {
		return true
	}
	for _, group := range g {
		if u.HasAllPermissions(group) {
			return true
		}
	}
	return false
}

// AuthProvider is the single extension point higher layers depend on.
// Concrete providers (pkg/session wraps identity providers behind this
// interface) never leak their own types across the boundary.
type AuthProvider interface {
	Authenticate(ctx context.Context, credentialToken string) (AuthenticatedUser, error)
}
