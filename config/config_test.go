package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratumdb/stratum/dialect"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stratum.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
dialect: postgres
dsn: postgres://localhost/app?sslmode=disable
migrations_dir: db/migrations
snapshot: db/snapshot.json
journal: db/journal.json
slow_query: 250ms
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, dialect.Postgres, c.Dialect)
	assert.Equal(t, "db/migrations", c.MigrationsDir)
	assert.Equal(t, Duration(250*time.Millisecond), c.SlowQuery)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, dialect.SQLite, c.Dialect)
	assert.Equal(t, "migrations", c.MigrationsDir)
	assert.Equal(t, Duration(200*time.Millisecond), c.SlowQuery)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "dialect: postgres\ndsn: postgres://localhost/app\n")
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, dialect.Postgres, c.Dialect)
	assert.Equal(t, "migrations/journal.json", c.JournalPath)
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, "dialect: sqlite\ndsn: file:app.db\n")
	t.Setenv(EnvDialect, "postgres")
	t.Setenv(EnvDSN, "postgres://localhost/app")
	t.Setenv(EnvSlowQuery, "1s")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, dialect.Postgres, c.Dialect)
	assert.Equal(t, "postgres://localhost/app", c.DSN)
	assert.Equal(t, Duration(time.Second), c.SlowQuery)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
	}{
		{name: "unknown dialect", body: "dialect: oracle\ndsn: x\n"},
		{name: "missing dsn", body: "dialect: postgres\ndsn: \"\"\n"},
		{name: "bad duration", body: "dialect: sqlite\ndsn: x\nslow_query: fast\n"},
		{name: "malformed yaml", body: "dialect: [\n"},
		{name: "bad env duration", body: "dialect: sqlite\ndsn: x\n", env: map[string]string{EnvSlowQuery: "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}
