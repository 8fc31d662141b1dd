package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vals map[string]string) func(string) string {
	return func(k string) string { return vals[k] }
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(env(map[string]string{"DATABASE_URL": "postgres://localhost/flow"}))
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.ListenAddr)
	assert.Equal(t, 10*time.Second, cfg.ExecutionTimeout)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, map[string]connection{
		DefaultConnection: {Driver: "postgres", DSN: "postgres://localhost/flow"},
	}, cfg.Connections)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := loadConfig(env(nil))
	assert.EqualError(t, err, "DATABASE_URL is not set")

	_, err = loadConfig(env(map[string]string{
		"DATABASE_URL":      "postgres://localhost/flow",
		"EXECUTION_TIMEOUT": "soon",
	}))
	assert.ErrorContains(t, err, "EXECUTION_TIMEOUT")

	_, err = loadConfig(env(map[string]string{
		"DATABASE_URL":     "postgres://localhost/flow",
		"CONNECTIONS_FILE": filepath.Join(t.TempDir(), "absent.yaml"),
	}))
	assert.ErrorContains(t, err, "read connections file")
}

func TestLoadConfigConnectionsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "connections.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
connections:
  cache:
    driver: sqlite
    dsn: "file::memory:"
  default:
    driver: postgres
    dsn: postgres://other/flow
`), 0o600))

	cfg, err := loadConfig(env(map[string]string{
		"DATABASE_URL":      "postgres://localhost/flow",
		"CONNECTIONS_FILE":  path,
		"EXECUTION_TIMEOUT": "250ms",
	}))
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.ExecutionTimeout)
	assert.Equal(t, connection{Driver: "sqlite", DSN: "file::memory:"}, cfg.Connections["cache"])
	assert.Equal(t, "postgres://other/flow", cfg.Connections[DefaultConnection].DSN)
}

func TestParseConnectionsRejectsBadEntries(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"driver", "connections:\n  x:\n    driver: mysql\n    dsn: a\n", `unknown driver "mysql"`},
		{"dsn", "connections:\n  x:\n    driver: sqlite\n", "dsn is required"},
		{"yaml", "connections: [", "parse connections"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := parseConnections([]byte(tt.raw), map[string]connection{})
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
