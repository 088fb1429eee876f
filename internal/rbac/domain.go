package rbac

import "time"

// Permission represents an atomic named capability. Names are unique across
// the catalog; a permission is immutable once created except for deletion.
type Permission struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
}

// RoleGrant attaches a permission to a role. The composite key makes
// re-granting a no-op rather than a duplicate.
type RoleGrant struct {
	RoleID       int64
	PermissionID int64
	CreatedAt    time.Time
}

// UserGrant attaches a permission directly to a user, bypassing role
// membership.
type UserGrant struct {
	UserID       int64
	PermissionID int64
	CreatedAt    time.Time
}

// Principal describes the slice of an identity-store user the resolver needs.
type Principal struct {
	ID     int64
	Active bool
}
