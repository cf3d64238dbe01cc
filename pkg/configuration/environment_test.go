package configuration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnv(t *testing.T) {
	tmp := t.TempDir()
	envFile := filepath.Join(tmp, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("APPROVALS_TEST_ENV_LOAD=ok\n"), 0o600))

	t.Cleanup(func() { _ = os.Unsetenv("APPROVALS_TEST_ENV_LOAD") })

	n, err := LoadEnv([]string{envFile, filepath.Join(tmp, ".env.local")})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "ok", os.Getenv("APPROVALS_TEST_ENV_LOAD"))
}

func TestLoadEnvNoFiles(t *testing.T) {
	n, err := LoadEnv([]string{filepath.Join(t.TempDir(), ".env")})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestDatabaseConnectionString(t *testing.T) {
	opts := DatabaseOptions{
		Name:     "approvals",
		Host:     "db",
		Port:     "5433",
		User:     "svc",
		Password: "secret",
	}
	assert.Equal(t,
		"host=db port=5433 user=svc dbname=approvals password=secret sslmode=disable",
		opts.ConnectionString(),
	)
}
