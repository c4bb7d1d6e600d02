package gateway

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	assert.Equal(t, ":8470", cfg.ListenAddr)
	assert.Equal(t, "gatewarden.db", cfg.DBPath)
	assert.True(t, cfg.Base64Transport)
	assert.False(t, cfg.AlwaysReauthenticate)
	assert.Empty(t, cfg.RequiredPermissions)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: ":9000"
db: /var/lib/gatewarden/accounts.db
passphrase: sesame
reauthenticate: true
permissions:
  - vault:open
  - vault:audit
`), 0o600))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFile(path))

	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, "/var/lib/gatewarden/accounts.db", cfg.DBPath)
	assert.Equal(t, "sesame", cfg.Passphrase)
	assert.True(t, cfg.AlwaysReauthenticate)
	assert.Equal(t, []string{"vault:open", "vault:audit"}, cfg.RequiredPermissions)
}

func TestLoadFileMissing(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFile(filepath.Join(t.TempDir(), "nope.yaml")))
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("GATEWARDEN_LISTEN", ":7000")
	t.Setenv("GATEWARDEN_DB", "env.db")
	t.Setenv("GATEWARDEN_PASSPHRASE", "from-env")
	t.Setenv("GATEWARDEN_REAUTH", "1")
	t.Setenv("GATEWARDEN_PERMISSIONS", "zone:read, zone:write, ")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, ":7000", cfg.ListenAddr)
	assert.Equal(t, "env.db", cfg.DBPath)
	assert.Equal(t, "from-env", cfg.Passphrase)
	assert.True(t, cfg.AlwaysReauthenticate)
	assert.Equal(t, []string{"zone:read", "zone:write"}, cfg.RequiredPermissions)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Passphrase = "sesame"
		return cfg
	}

	assert.NoError(t, valid().Validate())

	cfg := valid()
	cfg.ListenAddr = ""
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.DBPath = ""
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Passphrase = ""
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Base64Transport = false
	assert.Error(t, cfg.Validate())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := New(DefaultConfig(), nil) // missing passphrase
	assert.Error(t, err)
}

func TestNewBuildsServer(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "accounts.db")
	cfg.Passphrase = "sesame"
	cfg.RequiredPermissions = []string{"vault:open"}

	s, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, s.realm.Close())
}
