package rbac

// Permissions guarding the authorization admin surface itself.
const (
	PermAuthzView = "authz.view"
	PermAuthzEdit = "authz.edit"
)

// AdminScopes lists all permissions related to authorization administration.
func AdminScopes() []string {
	return []string{
		PermAuthzView,
		PermAuthzEdit,
	}
}
