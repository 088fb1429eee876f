package rbac

import "errors"

var (
	// ErrNotFound indicates that a referenced role, permission or grant does
	// not exist.
	ErrNotFound = errors.New("rbac: not found")
	// ErrDuplicateName indicates a permission name collision outside the
	// idempotent-create path.
	ErrDuplicateName = errors.New("rbac: duplicate permission name")
	// ErrPrincipalNotFound indicates the resolver was queried for an unknown
	// principal.
	ErrPrincipalNotFound = errors.New("rbac: principal not found")
	// ErrNameRequired indicates an empty permission name.
	ErrNameRequired = errors.New("rbac: permission name required")
)
