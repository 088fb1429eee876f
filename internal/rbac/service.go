package rbac

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/grantline/grantline/internal/observability"
)

// IdentityPort is the slice of the external identity store the resolver
// needs: principal existence plus current role memberships. Implementations
// return ErrPrincipalNotFound for unknown principals.
type IdentityPort interface {
	Principal(ctx context.Context, userID int64) (Principal, error)
	PrincipalRoles(ctx context.Context, userID int64) ([]int64, error)
}

// Service orchestrates the permission catalog, the grant graph and the
// authorization resolver.
type Service struct {
	repo     RepositoryPort
	identity IdentityPort
	cache    *Cache
	metrics  *observability.Metrics
}

// NewService constructs a Service. Cache and metrics are optional.
func NewService(repo RepositoryPort, identity IdentityPort, cache *Cache, metrics *observability.Metrics) *Service {
	return &Service{repo: repo, identity: identity, cache: cache, metrics: metrics}
}

// CreatePermission adds a named permission to the catalog. Creating an
// existing name returns the existing record unchanged.
func (s *Service) CreatePermission(ctx context.Context, name, description string) (Permission, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Permission{}, ErrNameRequired
	}
	return s.repo.CreatePermission(ctx, name, description)
}

// GetPermission fetches a catalog entry by id.
func (s *Service) GetPermission(ctx context.Context, id int64) (Permission, error) {
	return s.repo.GetPermission(ctx, id)
}

// GetPermissionByName fetches a catalog entry by its unique name.
func (s *Service) GetPermissionByName(ctx context.Context, name string) (Permission, error) {
	return s.repo.GetPermissionByName(ctx, name)
}

// ListPermissions returns the catalog in creation order.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// DeletePermission removes a permission and, through the storage cascade,
// every grant referencing it.
func (s *Service) DeletePermission(ctx context.Context, id int64) error {
	if err := s.repo.DeletePermission(ctx, id); err != nil {
		return err
	}
	return s.invalidate(ctx)
}

// GrantToRole idempotently attaches a permission to a role.
func (s *Service) GrantToRole(ctx context.Context, roleID, permissionID int64) error {
	if err := s.repo.GrantToRole(ctx, roleID, permissionID); err != nil {
		return err
	}
	return s.invalidate(ctx)
}

// RevokeFromRole idempotently detaches a permission from a role.
func (s *Service) RevokeFromRole(ctx context.Context, roleID, permissionID int64) error {
	if err := s.repo.RevokeFromRole(ctx, roleID, permissionID); err != nil {
		return err
	}
	return s.invalidate(ctx)
}

// GrantToUser idempotently attaches a permission directly to a user.
func (s *Service) GrantToUser(ctx context.Context, userID, permissionID int64) error {
	if err := s.repo.GrantToUser(ctx, userID, permissionID); err != nil {
		return err
	}
	return s.invalidate(ctx)
}

// RevokeFromUser idempotently detaches a direct permission from a user.
func (s *Service) RevokeFromUser(ctx context.Context, userID, permissionID int64) error {
	if err := s.repo.RevokeFromUser(ctx, userID, permissionID); err != nil {
		return err
	}
	return s.invalidate(ctx)
}

// PermissionsForRole returns the permissions attached to a role.
func (s *Service) PermissionsForRole(ctx context.Context, roleID int64) ([]Permission, error) {
	return s.repo.PermissionsForRole(ctx, roleID)
}

// PermissionsDirectlyForUser returns a user's direct grants.
func (s *Service) PermissionsDirectlyForUser(ctx context.Context, userID int64) ([]Permission, error) {
	return s.repo.PermissionsDirectlyForUser(ctx, userID)
}

// EffectivePermissions computes the union of a user's direct grants and the
// grants of every role the user holds. Unknown principals propagate
// ErrPrincipalNotFound; inactive principals resolve to the empty set.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]Permission, error) {
	principal, err := s.identity.Principal(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !principal.Active {
		return []Permission{}, nil
	}

	start := time.Now()
	perms, cached, err := s.cache.FetchEffective(ctx, userID, func(ctx context.Context) ([]Permission, error) {
		return s.repo.EffectivePermissions(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveResolve(time.Since(start))
	if cached {
		s.metrics.ObserveCacheEvent("hit")
	} else {
		s.metrics.ObserveCacheEvent("miss")
	}
	if perms == nil {
		perms = []Permission{}
	}
	return perms, nil
}

// HasPermission reports whether the user holds the named permission. It uses
// an indexed existence query instead of materializing the full set.
func (s *Service) HasPermission(ctx context.Context, userID int64, name string) (bool, error) {
	principal, err := s.identity.Principal(ctx, userID)
	if err != nil {
		s.metrics.ObserveDecision("error")
		return false, err
	}
	if !principal.Active {
		s.metrics.ObserveDecision("deny")
		return false, nil
	}
	has, err := s.repo.UserHasPermission(ctx, userID, name)
	if err != nil {
		s.metrics.ObserveDecision("error")
		return false, err
	}
	if has {
		s.metrics.ObserveDecision("allow")
	} else {
		s.metrics.ObserveDecision("deny")
	}
	return has, nil
}

// invalidate bumps the resolver cache version. The bump happens synchronously
// inside every mutating call so readers in the same process never observe a
// stale set after the call returns.
func (s *Service) invalidate(ctx context.Context) error {
	if err := s.cache.Bump(ctx); err != nil {
		return fmt.Errorf("rbac: invalidate cache: %w", err)
	}
	s.metrics.ObserveCacheEvent("invalidate")
	return nil
}
