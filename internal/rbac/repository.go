package rbac

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryPort defines persistence operations for the permission catalog
// and the grant graph.
type RepositoryPort interface {
	CreatePermission(ctx context.Context, name, description string) (Permission, error)
	GetPermission(ctx context.Context, id int64) (Permission, error)
	GetPermissionByName(ctx context.Context, name string) (Permission, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	DeletePermission(ctx context.Context, id int64) error

	GrantToRole(ctx context.Context, roleID, permissionID int64) error
	RevokeFromRole(ctx context.Context, roleID, permissionID int64) error
	GrantToUser(ctx context.Context, userID, permissionID int64) error
	RevokeFromUser(ctx context.Context, userID, permissionID int64) error

	PermissionsForRole(ctx context.Context, roleID int64) ([]Permission, error)
	PermissionsDirectlyForUser(ctx context.Context, userID int64) ([]Permission, error)
	EffectivePermissions(ctx context.Context, userID int64) ([]Permission, error)
	UserHasPermission(ctx context.Context, userID int64, name string) (bool, error)
}

// PGRepository implements RepositoryPort on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// CreatePermission inserts a permission, returning the existing row when the
// name is already taken. The conflict clause touches only the name so the
// stored description stays immutable.
func (r *PGRepository) CreatePermission(ctx context.Context, name, description string) (Permission, error) {
	const query = `
		INSERT INTO permissions (name, description)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, description, created_at`
	var p Permission
	err := r.pool.QueryRow(ctx, query, strings.TrimSpace(name), strings.TrimSpace(description)).
		Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt)
	if err != nil {
		return Permission{}, mapPGError(err)
	}
	return p, nil
}

// GetPermission fetches a permission by id.
func (r *PGRepository) GetPermission(ctx context.Context, id int64) (Permission, error) {
	const query = `SELECT id, name, description, created_at FROM permissions WHERE id = $1`
	var p Permission
	err := r.pool.QueryRow(ctx, query, id).Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, ErrNotFound
		}
		return Permission{}, err
	}
	return p, nil
}

// GetPermissionByName fetches a permission by its unique name.
func (r *PGRepository) GetPermissionByName(ctx context.Context, name string) (Permission, error) {
	const query = `SELECT id, name, description, created_at FROM permissions WHERE name = $1`
	var p Permission
	err := r.pool.QueryRow(ctx, query, strings.TrimSpace(name)).Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, ErrNotFound
		}
		return Permission{}, err
	}
	return p, nil
}

// ListPermissions returns the whole catalog in creation order.
func (r *PGRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	const query = `SELECT id, name, description, created_at FROM permissions ORDER BY id`
	return r.queryPermissions(ctx, query)
}

// DeletePermission removes a permission. Grants referencing it are removed by
// the FK cascade. Returns ErrNotFound when the id is unknown.
func (r *PGRepository) DeletePermission(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GrantToRole attaches a permission to a role. The composite primary key
// absorbs concurrent double-inserts; a foreign key violation means one of the
// referenced ids does not exist.
func (r *PGRepository) GrantToRole(ctx context.Context, roleID, permissionID int64) error {
	const query = `
		INSERT INTO role_permissions (role_id, permission_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`
	if _, err := r.pool.Exec(ctx, query, roleID, permissionID); err != nil {
		return mapPGError(err)
	}
	return nil
}

// RevokeFromRole detaches a permission from a role. Revoking an absent grant
// is a no-op.
func (r *PGRepository) RevokeFromRole(ctx context.Context, roleID, permissionID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`, roleID, permissionID)
	return err
}

// GrantToUser attaches a permission directly to a user.
func (r *PGRepository) GrantToUser(ctx context.Context, userID, permissionID int64) error {
	const query = `
		INSERT INTO user_permissions (user_id, permission_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`
	if _, err := r.pool.Exec(ctx, query, userID, permissionID); err != nil {
		return mapPGError(err)
	}
	return nil
}

// RevokeFromUser detaches a direct permission from a user.
func (r *PGRepository) RevokeFromUser(ctx context.Context, userID, permissionID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM user_permissions WHERE user_id = $1 AND permission_id = $2`, userID, permissionID)
	return err
}

// PermissionsForRole returns the permissions attached to a role.
func (r *PGRepository) PermissionsForRole(ctx context.Context, roleID int64) ([]Permission, error) {
	const query = `
		SELECT p.id, p.name, p.description, p.created_at
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = $1
		ORDER BY p.id`
	return r.queryPermissions(ctx, query, roleID)
}

// PermissionsDirectlyForUser returns the permissions granted to a user
// without going through role membership.
func (r *PGRepository) PermissionsDirectlyForUser(ctx context.Context, userID int64) ([]Permission, error) {
	const query = `
		SELECT p.id, p.name, p.description, p.created_at
		FROM permissions p
		JOIN user_permissions up ON up.permission_id = p.id
		WHERE up.user_id = $1
		ORDER BY p.id`
	return r.queryPermissions(ctx, query, userID)
}

// EffectivePermissions returns the union of direct grants and role-inherited
// grants for a user. UNION deduplicates by row identity.
func (r *PGRepository) EffectivePermissions(ctx context.Context, userID int64) ([]Permission, error) {
	const query = `
		SELECT p.id, p.name, p.description, p.created_at
		FROM permissions p
		JOIN user_permissions up ON up.permission_id = p.id
		WHERE up.user_id = $1
		UNION
		SELECT p.id, p.name, p.description, p.created_at
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		JOIN user_roles ur ON ur.role_id = rp.role_id
		WHERE ur.user_id = $1
		ORDER BY 1`
	return r.queryPermissions(ctx, query, userID)
}

// UserHasPermission reports whether the user holds the named permission,
// directly or through any role, without materializing the full set.
func (r *PGRepository) UserHasPermission(ctx context.Context, userID int64, name string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM permissions p
			WHERE p.name = $2 AND (
				EXISTS (
					SELECT 1 FROM user_permissions up
					WHERE up.user_id = $1 AND up.permission_id = p.id
				)
				OR EXISTS (
					SELECT 1 FROM user_roles ur
					JOIN role_permissions rp ON rp.role_id = ur.role_id
					WHERE ur.user_id = $1 AND rp.permission_id = p.id
				)
			)
		)`
	var has bool
	if err := r.pool.QueryRow(ctx, query, userID, strings.TrimSpace(name)).Scan(&has); err != nil {
		return false, err
	}
	return has, nil
}

func (r *PGRepository) queryPermissions(ctx context.Context, query string, args ...any) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
)

func mapPGError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgForeignKeyViolation:
			return ErrNotFound
		case pgUniqueViolation:
			return ErrDuplicateName
		}
	}
	return err
}

var _ RepositoryPort = (*PGRepository)(nil)
