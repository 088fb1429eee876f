package identity

import "context"

// Store is the identity provider collaborator consumed by the resolver and
// the seeder. Hosts with an external provider implement this interface;
// PGStore is the bundled PostgreSQL reference implementation.
type Store interface {
	FindUserByEmail(ctx context.Context, email string) (User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	CreateUser(ctx context.Context, nu NewUser) (User, error)

	FindRoleByName(ctx context.Context, name string) (Role, error)
	CreateRole(ctx context.Context, name, description string) (Role, error)
	ListRoles(ctx context.Context) ([]Role, error)

	AddUserToRole(ctx context.Context, userID, roleID int64) error
	UserRoles(ctx context.Context, userID int64) ([]Role, error)
}
