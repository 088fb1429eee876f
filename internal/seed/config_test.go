package seed

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfigFile(t, `{
		"roles": ["User", "Admin"],
		"permissions": [{"name": "Create Users", "description": "Allows creating users"}],
		"users": [{"email": "alice@example.com", "password": "alice-secret", "roles": ["Admin"]}],
		"elevatedRole": "Administrator",
		"elevatedGrants": ["ManageSettings"],
		"superAdminEmail": "alice@example.com"
	}`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"User", "Admin"}, cfg.Roles)
	require.Len(t, cfg.Users, 1)
	assert.Equal(t, "alice@example.com", cfg.Users[0].Email)
	assert.Equal(t, "Administrator", cfg.ElevatedRole)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestLoadFileMalformedJSON(t *testing.T) {
	path := writeConfigFile(t, `{"roles": [`)
	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestLoadFileRejectsInvalidConfig(t *testing.T) {
	for name, body := range map[string]string{
		"bad user email":  `{"users": [{"email": "not-an-email", "password": "long-enough"}]}`,
		"short password":  `{"users": [{"email": "a@example.com", "password": "short"}]}`,
		"bad admin email": `{"superAdminEmail": "not-an-email"}`,
		"empty role name": `{"roles": [""]}`,
	} {
		t.Run(name, func(t *testing.T) {
			path := writeConfigFile(t, body)
			_, err := LoadFile(path)
			assert.Error(t, err)
		})
	}
}
