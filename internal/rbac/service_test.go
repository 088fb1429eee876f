package rbac

import (
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepository struct {
	perms       map[int64]Permission
	permsByName map[string]int64
	nextPermID  int64

	roles      map[int64]struct{}
	users      map[int64]struct{}
	roleGrants map[int64]map[int64]struct{}
	userGrants map[int64]map[int64]struct{}
	userRoles  map[int64][]int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		perms:       make(map[int64]Permission),
		permsByName: make(map[string]int64),
		nextPermID:  1,
		roles:       make(map[int64]struct{}),
		users:       make(map[int64]struct{}),
		roleGrants:  make(map[int64]map[int64]struct{}),
		userGrants:  make(map[int64]map[int64]struct{}),
		userRoles:   make(map[int64][]int64),
	}
}

func (m *mockRepository) addRole(id int64) { m.roles[id] = struct{}{} }

func (m *mockRepository) addUser(id int64, roleIDs ...int64) {
	m.users[id] = struct{}{}
	m.userRoles[id] = append(m.userRoles[id], roleIDs...)
}

func (m *mockRepository) CreatePermission(ctx context.Context, name, description string) (Permission, error) {
	name = strings.TrimSpace(name)
	if id, ok := m.permsByName[name]; ok {
		return m.perms[id], nil
	}
	p := Permission{ID: m.nextPermID, Name: name, Description: strings.TrimSpace(description)}
	m.nextPermID++
	m.perms[p.ID] = p
	m.permsByName[p.Name] = p.ID
	return p, nil
}

func (m *mockRepository) GetPermission(ctx context.Context, id int64) (Permission, error) {
	p, ok := m.perms[id]
	if !ok {
		return Permission{}, ErrNotFound
	}
	return p, nil
}

func (m *mockRepository) GetPermissionByName(ctx context.Context, name string) (Permission, error) {
	id, ok := m.permsByName[strings.TrimSpace(name)]
	if !ok {
		return Permission{}, ErrNotFound
	}
	return m.perms[id], nil
}

func (m *mockRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	out := make([]Permission, 0, len(m.perms))
	for _, p := range m.perms {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockRepository) DeletePermission(ctx context.Context, id int64) error {
	p, ok := m.perms[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.perms, id)
	delete(m.permsByName, p.Name)
	for _, grants := range m.roleGrants {
		delete(grants, id)
	}
	for _, grants := range m.userGrants {
		delete(grants, id)
	}
	return nil
}

func (m *mockRepository) GrantToRole(ctx context.Context, roleID, permissionID int64) error {
	if _, ok := m.roles[roleID]; !ok {
		return ErrNotFound
	}
	if _, ok := m.perms[permissionID]; !ok {
		return ErrNotFound
	}
	if m.roleGrants[roleID] == nil {
		m.roleGrants[roleID] = make(map[int64]struct{})
	}
	m.roleGrants[roleID][permissionID] = struct{}{}
	return nil
}

func (m *mockRepository) RevokeFromRole(ctx context.Context, roleID, permissionID int64) error {
	delete(m.roleGrants[roleID], permissionID)
	return nil
}

func (m *mockRepository) GrantToUser(ctx context.Context, userID, permissionID int64) error {
	if _, ok := m.users[userID]; !ok {
		return ErrNotFound
	}
	if _, ok := m.perms[permissionID]; !ok {
		return ErrNotFound
	}
	if m.userGrants[userID] == nil {
		m.userGrants[userID] = make(map[int64]struct{})
	}
	m.userGrants[userID][permissionID] = struct{}{}
	return nil
}

func (m *mockRepository) RevokeFromUser(ctx context.Context, userID, permissionID int64) error {
	delete(m.userGrants[userID], permissionID)
	return nil
}

func (m *mockRepository) PermissionsForRole(ctx context.Context, roleID int64) ([]Permission, error) {
	return m.collect(m.roleGrants[roleID]), nil
}

func (m *mockRepository) PermissionsDirectlyForUser(ctx context.Context, userID int64) ([]Permission, error) {
	return m.collect(m.userGrants[userID]), nil
}

func (m *mockRepository) EffectivePermissions(ctx context.Context, userID int64) ([]Permission, error) {
	ids := make(map[int64]struct{})
	for id := range m.userGrants[userID] {
		ids[id] = struct{}{}
	}
	for _, roleID := range m.userRoles[userID] {
		for id := range m.roleGrants[roleID] {
			ids[id] = struct{}{}
		}
	}
	return m.collect(ids), nil
}

func (m *mockRepository) UserHasPermission(ctx context.Context, userID int64, name string) (bool, error) {
	id, ok := m.permsByName[strings.TrimSpace(name)]
	if !ok {
		return false, nil
	}
	if _, ok := m.userGrants[userID][id]; ok {
		return true, nil
	}
	for _, roleID := range m.userRoles[userID] {
		if _, ok := m.roleGrants[roleID][id]; ok {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepository) collect(ids map[int64]struct{}) []Permission {
	out := make([]Permission, 0, len(ids))
	for id := range ids {
		if p, ok := m.perms[id]; ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

var _ RepositoryPort = (*mockRepository)(nil)

// ============================================================================
// STUB IDENTITY
// ============================================================================

type stubIdentity struct {
	principals map[int64]Principal
	roles      map[int64][]int64
}

func (s *stubIdentity) Principal(ctx context.Context, userID int64) (Principal, error) {
	p, ok := s.principals[userID]
	if !ok {
		return Principal{}, ErrPrincipalNotFound
	}
	return p, nil
}

func (s *stubIdentity) PrincipalRoles(ctx context.Context, userID int64) ([]int64, error) {
	return s.roles[userID], nil
}

// ============================================================================
// FIXTURE
// ============================================================================

type fixture struct {
	repo     *mockRepository
	identity *stubIdentity
	service  *Service
}

func newFixture() *fixture {
	repo := newMockRepository()
	ident := &stubIdentity{
		principals: make(map[int64]Principal),
		roles:      make(map[int64][]int64),
	}
	return &fixture{
		repo:     repo,
		identity: ident,
		service:  NewService(repo, ident, nil, nil),
	}
}

func (f *fixture) addUser(id int64, active bool, roleIDs ...int64) {
	f.identity.principals[id] = Principal{ID: id, Active: active}
	f.identity.roles[id] = roleIDs
	f.repo.addUser(id, roleIDs...)
}

func names(perms []Permission) []string {
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		out = append(out, p.Name)
	}
	return out
}

// ============================================================================
// TESTS
// ============================================================================

func TestCreatePermissionIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.service.CreatePermission(ctx, "users.view", "View users")
	require.NoError(t, err)
	second, err := f.service.CreatePermission(ctx, "users.view", "different description")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "View users", second.Description)

	perms, err := f.service.ListPermissions(ctx)
	require.NoError(t, err)
	assert.Len(t, perms, 1)
}

func TestCreatePermissionRequiresName(t *testing.T) {
	f := newFixture()
	_, err := f.service.CreatePermission(context.Background(), "  ", "")
	assert.ErrorIs(t, err, ErrNameRequired)
}

func TestListPermissionsCreationOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for _, name := range []string{"zeta", "alpha", "mid"} {
		_, err := f.service.CreatePermission(ctx, name, "")
		require.NoError(t, err)
	}
	perms, err := f.service.ListPermissions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, names(perms))
}

func TestGrantToRoleIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.repo.addRole(10)
	perm, err := f.service.CreatePermission(ctx, "inventory.view", "")
	require.NoError(t, err)

	require.NoError(t, f.service.GrantToRole(ctx, 10, perm.ID))
	require.NoError(t, f.service.GrantToRole(ctx, 10, perm.ID))

	perms, err := f.service.PermissionsForRole(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, perms, 1)
}

func TestGrantToRoleUnknownIDs(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.repo.addRole(10)

	assert.ErrorIs(t, f.service.GrantToRole(ctx, 10, 999), ErrNotFound)
	assert.ErrorIs(t, f.service.GrantToRole(ctx, 999, 1), ErrNotFound)
}

func TestRevokeAbsentGrantIsNoOp(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.repo.addRole(10)
	f.addUser(1, true)

	assert.NoError(t, f.service.RevokeFromRole(ctx, 10, 42))
	assert.NoError(t, f.service.RevokeFromUser(ctx, 1, 42))
}

func TestDeletePermissionCascades(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.repo.addRole(10)
	f.addUser(1, true, 10)

	perm, err := f.service.CreatePermission(ctx, "master.edit", "")
	require.NoError(t, err)
	require.NoError(t, f.service.GrantToRole(ctx, 10, perm.ID))
	require.NoError(t, f.service.GrantToUser(ctx, 1, perm.ID))

	require.NoError(t, f.service.DeletePermission(ctx, perm.ID))

	rolePerms, err := f.service.PermissionsForRole(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, rolePerms)

	direct, err := f.service.PermissionsDirectlyForUser(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, direct)

	effective, err := f.service.EffectivePermissions(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, effective)

	assert.ErrorIs(t, f.service.DeletePermission(ctx, perm.ID), ErrNotFound)
}

func TestEffectivePermissionsUnion(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.repo.addRole(10)
	f.addUser(1, true, 10)

	a, err := f.service.CreatePermission(ctx, "A", "")
	require.NoError(t, err)
	b, err := f.service.CreatePermission(ctx, "B", "")
	require.NoError(t, err)
	c, err := f.service.CreatePermission(ctx, "C", "")
	require.NoError(t, err)

	require.NoError(t, f.service.GrantToUser(ctx, 1, a.ID))
	require.NoError(t, f.service.GrantToRole(ctx, 10, b.ID))
	require.NoError(t, f.service.GrantToRole(ctx, 10, c.ID))

	effective, err := f.service.EffectivePermissions(ctx, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A", "B", "C"}, names(effective))
}

func TestEffectivePermissionsDeduplicates(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.repo.addRole(10)
	f.addUser(1, true, 10)

	perm, err := f.service.CreatePermission(ctx, "report.view", "")
	require.NoError(t, err)
	require.NoError(t, f.service.GrantToUser(ctx, 1, perm.ID))
	require.NoError(t, f.service.GrantToRole(ctx, 10, perm.ID))

	effective, err := f.service.EffectivePermissions(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, effective, 1)
}

func TestEffectivePermissionsInactivePrincipal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.repo.addRole(10)
	f.addUser(2, false, 10)

	perm, err := f.service.CreatePermission(ctx, "org.view", "")
	require.NoError(t, err)
	require.NoError(t, f.service.GrantToRole(ctx, 10, perm.ID))

	effective, err := f.service.EffectivePermissions(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, effective)
}

func TestEffectivePermissionsUnknownPrincipal(t *testing.T) {
	f := newFixture()
	_, err := f.service.EffectivePermissions(context.Background(), 404)
	assert.ErrorIs(t, err, ErrPrincipalNotFound)
}

func TestHasPermission(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.repo.addRole(10)
	f.addUser(1, true, 10)
	f.addUser(2, false)

	perm, err := f.service.CreatePermission(ctx, "sales.order.view", "")
	require.NoError(t, err)
	require.NoError(t, f.service.GrantToRole(ctx, 10, perm.ID))

	has, err := f.service.HasPermission(ctx, 1, "sales.order.view")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = f.service.HasPermission(ctx, 1, "sales.order.edit")
	require.NoError(t, err)
	assert.False(t, has)

	// Inactive principals deny without error.
	has, err = f.service.HasPermission(ctx, 2, "sales.order.view")
	require.NoError(t, err)
	assert.False(t, has)

	_, err = f.service.HasPermission(ctx, 404, "sales.order.view")
	assert.ErrorIs(t, err, ErrPrincipalNotFound)
}
