package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validConfig = `{
	"listening_addr": "0.0.0.0:8080",
	"scylladb": {"hostnames": ["scylla-1"], "keyspace": "social"},
	"postgresql": {"host": "pg", "port": "5432", "username": "svc", "password": "pw", "database": "social", "ssl_strategy": "require"},
	"nats": {"host": "nats://nats:4222"}
}`

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, validConfig)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:8080", cfg.ListeningAddr)
	require.Equal(t, []string{"scylla-1"}, cfg.ScyllaDB.Hostnames)
	require.Equal(t, SSLRequire, cfg.PostgreSQL.SSLStrategy)

	port, err := cfg.PostgresPort()
	require.NoError(t, err)
	require.Equal(t, uint16(5432), port)
}

func TestLoadRejectsInvalidSSLStrategy(t *testing.T) {
	path := writeConfig(t, `{
		"listening_addr": "0.0.0.0:8080",
		"scylladb": {"hostnames": ["scylla-1"], "keyspace": "social"},
		"postgresql": {"host": "pg", "port": "5432", "database": "social", "ssl_strategy": "yolo"},
		"nats": {"host": "nats://nats:4222"}
	}`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsMissingRequiredField(t *testing.T) {
	path := writeConfig(t, `{
		"scylladb": {"hostnames": ["scylla-1"], "keyspace": "social"},
		"postgresql": {"host": "pg", "port": "5432", "database": "social", "ssl_strategy": "disable"},
		"nats": {"host": "nats://nats:4222"}
	}`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.Error(t, err)
}
