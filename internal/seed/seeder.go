package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/grantline/grantline/internal/identity"
	"github.com/grantline/grantline/internal/observability"
	"github.com/grantline/grantline/internal/rbac"
)

// AuthzPort is the slice of the authorization service the seeder uses.
// *rbac.Service satisfies it.
type AuthzPort interface {
	CreatePermission(ctx context.Context, name, description string) (rbac.Permission, error)
	ListPermissions(ctx context.Context) ([]rbac.Permission, error)
	GrantToUser(ctx context.Context, userID, permissionID int64) error
}

// Seeder establishes the baseline roles, permission catalog, users and
// grants. Every phase is idempotent and safe to re-run; per-item failures are
// logged and do not abort the remaining work. Run aggregates what went wrong,
// leaving the abort-or-continue decision to the caller.
type Seeder struct {
	identity identity.Store
	authz    AuthzPort
	cfg      Config
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewSeeder constructs a Seeder. Metrics are optional.
func NewSeeder(store identity.Store, authz AuthzPort, cfg Config, logger *slog.Logger, metrics *observability.Metrics) *Seeder {
	return &Seeder{identity: store, authz: authz, cfg: cfg, logger: logger, metrics: metrics}
}

// Run executes the four seeding phases in their fixed order: roles, then the
// permission catalog, then users with role memberships and elevated grants,
// then the catalog-wide grant to the super-admin account.
func (s *Seeder) Run(ctx context.Context) error {
	logger := s.logger.With(slog.String("seed_run", uuid.NewString()))
	logger.Info("starting bootstrap seeding")

	var errs []error
	if err := s.ensureRoles(ctx, logger); err != nil {
		errs = append(errs, err)
	}
	if err := s.ensurePermissions(ctx, logger); err != nil {
		errs = append(errs, err)
	}
	if err := s.ensureUsers(ctx, logger); err != nil {
		errs = append(errs, err)
	}
	if err := s.GrantAllToSuperAdmin(ctx); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		logger.Warn("bootstrap seeding finished with errors", slog.Int("errors", len(errs)))
		return errors.Join(errs...)
	}
	logger.Info("bootstrap seeding complete")
	return nil
}

// ensureRoles creates each configured role when absent. Creation failures are
// logged and do not abort the remaining roles.
func (s *Seeder) ensureRoles(ctx context.Context, logger *slog.Logger) error {
	var errs []error
	for _, name := range s.cfg.Roles {
		_, err := s.identity.FindRoleByName(ctx, name)
		if err == nil {
			logger.Info("role already exists", slog.String("role", name))
			continue
		}
		if !errors.Is(err, identity.ErrNotFound) {
			logger.Error("lookup role", slog.String("role", name), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("seed: lookup role %q: %w", name, err))
			continue
		}
		if _, err := s.identity.CreateRole(ctx, name, ""); err != nil {
			logger.Error("create role", slog.String("role", name), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("seed: create role %q: %w", name, err))
			continue
		}
		logger.Info("role created", slog.String("role", name))
	}
	s.observePhase("roles", errs)
	return errors.Join(errs...)
}

// ensurePermissions upserts each configured catalog entry by name. Re-running
// tops up entries missing after a partial earlier run; existing entries are
// returned unchanged.
func (s *Seeder) ensurePermissions(ctx context.Context, logger *slog.Logger) error {
	var errs []error
	for _, perm := range s.cfg.Permissions {
		if _, err := s.authz.CreatePermission(ctx, perm.Name, perm.Description); err != nil {
			logger.Error("ensure permission", slog.String("permission", perm.Name), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("seed: ensure permission %q: %w", perm.Name, err))
			continue
		}
		logger.Info("permission ensured", slog.String("permission", perm.Name))
	}
	s.observePhase("permissions", errs)
	return errors.Join(errs...)
}

// ensureUsers creates each configured principal when its email is unknown,
// assigns the requested roles and, for members of the elevated role, the
// fixed elevated grant set. An existing principal is skipped entirely: roles
// and grants are not re-synced on repeated runs.
func (s *Seeder) ensureUsers(ctx context.Context, logger *slog.Logger) error {
	var errs []error
	for _, su := range s.cfg.Users {
		if err := s.ensureUser(ctx, logger, su); err != nil {
			errs = append(errs, err)
		}
	}
	s.observePhase("users", errs)
	return errors.Join(errs...)
}

func (s *Seeder) ensureUser(ctx context.Context, logger *slog.Logger, su UserSeed) error {
	logger = logger.With(slog.String("email", su.Email))

	_, err := s.identity.FindUserByEmail(ctx, su.Email)
	if err == nil {
		logger.Info("user already exists")
		return nil
	}
	if !errors.Is(err, identity.ErrNotFound) {
		logger.Error("lookup user", slog.Any("error", err))
		return fmt.Errorf("seed: lookup user %q: %w", su.Email, err)
	}

	user, err := s.identity.CreateUser(ctx, identity.NewUser{
		Email:     su.Email,
		Password:  su.Password,
		FirstName: su.FirstName,
		LastName:  su.LastName,
		Gender:    su.Gender,
		Country:   su.Country,
		Phone:     su.Phone,
	})
	if err != nil {
		logger.Error("create user", slog.Any("error", err))
		return fmt.Errorf("seed: create user %q: %w", su.Email, err)
	}
	logger.Info("user created")

	elevated := false
	for _, roleName := range su.Roles {
		role, err := s.identity.FindRoleByName(ctx, roleName)
		if err != nil {
			logger.Warn("requested role does not exist", slog.String("role", roleName))
			continue
		}
		if err := s.identity.AddUserToRole(ctx, user.ID, role.ID); err != nil {
			logger.Error("assign role", slog.String("role", roleName), slog.Any("error", err))
			continue
		}
		logger.Info("role assigned", slog.String("role", roleName))
		if s.cfg.ElevatedRole != "" && strings.EqualFold(roleName, s.cfg.ElevatedRole) {
			elevated = true
		}
	}

	if elevated {
		s.grantElevated(ctx, logger, user.ID)
	}
	return nil
}

// grantElevated attaches the fixed elevated permission set as direct user
// grants, creating catalog entries for names not seeded in phase two.
func (s *Seeder) grantElevated(ctx context.Context, logger *slog.Logger, userID int64) {
	for _, name := range s.cfg.ElevatedGrants {
		perm, err := s.authz.CreatePermission(ctx, name, "")
		if err != nil {
			logger.Error("ensure elevated permission", slog.String("permission", name), slog.Any("error", err))
			continue
		}
		if err := s.authz.GrantToUser(ctx, userID, perm.ID); err != nil {
			logger.Error("grant elevated permission", slog.String("permission", name), slog.Any("error", err))
			continue
		}
		logger.Info("elevated permission granted", slog.String("permission", name))
	}
}

// GrantAllToSuperAdmin grants every permission currently in the catalog to
// the configured super-admin account. A missing account logs a warning and
// is not an error; the reconcile job re-runs this until the account appears.
func (s *Seeder) GrantAllToSuperAdmin(ctx context.Context) error {
	logger := s.logger
	if s.cfg.SuperAdminEmail == "" {
		logger.Info("no super admin configured, skipping catalog-wide grant")
		return nil
	}
	admin, err := s.identity.FindUserByEmail(ctx, s.cfg.SuperAdminEmail)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			logger.Warn("super admin account not found", slog.String("email", s.cfg.SuperAdminEmail))
			s.observePhase("super_admin", nil)
			return nil
		}
		s.observePhase("super_admin", []error{err})
		return fmt.Errorf("seed: lookup super admin: %w", err)
	}

	perms, err := s.authz.ListPermissions(ctx)
	if err != nil {
		s.observePhase("super_admin", []error{err})
		return fmt.Errorf("seed: list permissions: %w", err)
	}
	var errs []error
	for _, perm := range perms {
		if err := s.authz.GrantToUser(ctx, admin.ID, perm.ID); err != nil {
			logger.Error("grant to super admin", slog.String("permission", perm.Name), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("seed: grant %q to super admin: %w", perm.Name, err))
		}
	}
	if len(errs) == 0 {
		logger.Info("all catalog permissions granted to super admin",
			slog.String("email", s.cfg.SuperAdminEmail), slog.Int("permissions", len(perms)))
	}
	s.observePhase("super_admin", errs)
	return errors.Join(errs...)
}

func (s *Seeder) observePhase(phase string, errs []error) {
	result := "ok"
	if len(errs) > 0 {
		result = "error"
	}
	s.metrics.ObserveSeedPhase(phase, result)
}
