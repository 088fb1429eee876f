package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/grantline/grantline/internal/rbac"
)

const minPasswordLength = 8

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a PostgreSQL identity store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const userColumns = `id, email, first_name, last_name, gender, country, phone, is_active, created_at, updated_at`

// FindUserByEmail fetches a user by email.
func (s *PGStore) FindUserByEmail(ctx context.Context, email string) (User, error) {
	return s.scanUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, strings.TrimSpace(email))
}

// GetUser fetches a user by id.
func (s *PGStore) GetUser(ctx context.Context, id int64) (User, error) {
	return s.scanUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// CreateUser inserts a new active principal with a bcrypt password hash.
func (s *PGStore) CreateUser(ctx context.Context, nu NewUser) (User, error) {
	if len(nu.Password) < minPasswordLength {
		return User{}, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(nu.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	const query = `
		INSERT INTO users (email, password_hash, first_name, last_name, gender, country, phone, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, NOW(), NOW())
		RETURNING ` + userColumns
	var u User
	err = s.pool.QueryRow(ctx, query,
		strings.TrimSpace(nu.Email), string(hash), nu.FirstName, nu.LastName, nu.Gender, nu.Country, nu.Phone).
		Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Gender, &u.Country, &u.Phone, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrDuplicateEmail
		}
		return User{}, err
	}
	return u, nil
}

// FindRoleByName fetches a role by its unique name.
func (s *PGStore) FindRoleByName(ctx context.Context, name string) (Role, error) {
	const query = `SELECT id, name, description, created_at, updated_at FROM roles WHERE name = $1`
	var r Role
	err := s.pool.QueryRow(ctx, query, strings.TrimSpace(name)).
		Scan(&r.ID, &r.Name, &r.Description, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, err
	}
	return r, nil
}

// CreateRole inserts a new role.
func (s *PGStore) CreateRole(ctx context.Context, name, description string) (Role, error) {
	const query = `
		INSERT INTO roles (name, description)
		VALUES ($1, $2)
		RETURNING id, name, description, created_at, updated_at`
	var r Role
	err := s.pool.QueryRow(ctx, query, strings.TrimSpace(name), strings.TrimSpace(description)).
		Scan(&r.ID, &r.Name, &r.Description, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Role{}, ErrDuplicateRole
		}
		return Role{}, err
	}
	return r, nil
}

// ListRoles returns all roles.
func (s *PGStore) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, description, created_at, updated_at FROM roles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var r Role
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

// AddUserToRole records role membership. Adding an existing membership is a
// no-op; unknown ids surface as ErrNotFound through the foreign keys.
func (s *PGStore) AddUserToRole(ctx context.Context, userID, roleID int64) error {
	const query = `
		INSERT INTO user_roles (user_id, role_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`
	if _, err := s.pool.Exec(ctx, query, userID, roleID); err != nil {
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// UserRoles returns the roles held by a user.
func (s *PGStore) UserRoles(ctx context.Context, userID int64) ([]Role, error) {
	const query = `
		SELECT r.id, r.name, r.description, r.created_at, r.updated_at
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		ORDER BY r.id`
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var r Role
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

// Principal implements rbac.IdentityPort.
func (s *PGStore) Principal(ctx context.Context, userID int64) (rbac.Principal, error) {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return rbac.Principal{}, rbac.ErrPrincipalNotFound
		}
		return rbac.Principal{}, err
	}
	return rbac.Principal{ID: u.ID, Active: u.IsActive}, nil
}

// PrincipalRoles implements rbac.IdentityPort.
func (s *PGStore) PrincipalRoles(ctx context.Context, userID int64) ([]int64, error) {
	roles, err := s.UserRoles(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(roles))
	for _, r := range roles {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

func (s *PGStore) scanUser(ctx context.Context, query string, arg any) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx, query, arg).
		Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Gender, &u.Country, &u.Phone, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

var (
	_ Store             = (*PGStore)(nil)
	_ rbac.IdentityPort = (*PGStore)(nil)
)
