package identity

import (
	"errors"
	"time"
)

// User represents a principal owned by the identity store.
type User struct {
	ID        int64
	Email     string
	FirstName string
	LastName  string
	Gender    string
	Country   string
	Phone     string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUser carries the attributes needed to create a principal.
type NewUser struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Gender    string
	Country   string
	Phone     string
}

// Role represents a named grouping of principals.
type Role struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

var (
	// ErrNotFound indicates the requested user or role does not exist.
	ErrNotFound = errors.New("identity: not found")
	// ErrDuplicateEmail indicates a user with that email already exists.
	ErrDuplicateEmail = errors.New("identity: duplicate email")
	// ErrDuplicateRole indicates a role with that name already exists.
	ErrDuplicateRole = errors.New("identity: duplicate role name")
	// ErrWeakPassword indicates the password fails the minimum policy.
	ErrWeakPassword = errors.New("identity: password too weak")
)
