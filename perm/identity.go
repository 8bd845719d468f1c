// Package perm implements the permission model: a caller identity with
// global permission strings, and per-object grants stored in PostgreSQL.
//
// Global permissions follow the "app.action_model" convention, e.g.
// "taskboard.add_task". Object grants are plain action strings scoped to a
// single row of a guarded model, e.g. "change_project" on one project.
package perm

import "github.com/google/uuid"

// Identity describes the caller of a request.
type Identity struct {
	UserID        uuid.UUID
	Authenticated bool
	Superuser     bool
	Perms         []string
}

// Anonymous returns the identity of an unauthenticated caller.
func Anonymous() Identity {
	return Identity{}
}

// HasPerm reports whether the identity holds the given global permission.
// Superusers hold every permission.
func (id Identity) HasPerm(p string) bool {
	if id.Superuser {
		return true
	}
	for _, have := range id.Perms {
		if have == p {
			return true
		}
	}
	return false
}

// CheckAuthenticated reports whether the identity belongs to a logged-in,
// active user.
func CheckAuthenticated(id Identity) bool {
	return id.Authenticated
}

// CheckPerms checks the identity against a list of global permissions.
// With anyPerm one matching permission is enough, otherwise all must match.
// An empty list always passes.
func CheckPerms(id Identity, perms []string, anyPerm bool) bool {
	if len(perms) == 0 {
		return true
	}
	for _, p := range perms {
		if id.HasPerm(p) {
			if anyPerm {
				return true
			}
		} else if !anyPerm {
			return false
		}
	}
	return !anyPerm
}
