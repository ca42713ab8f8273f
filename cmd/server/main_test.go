package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "cli-test-secret-that-is-32-bytes-long"

func envFrom(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoadConfig_FlagsOverrideEnvironment(t *testing.T) {
	root := newRootCmd()
	serve, _, err := root.Find([]string{"serve"})
	require.NoError(t, err)
	require.NoError(t, serve.ParseFlags([]string{"--addr", ":9999", "--log-format", "json"}))

	flags := &flagValues{addr: ":9999", logFormat: "json"}
	cfg, err := loadConfig(serve, flags, envFrom(map[string]string{
		"PORT":       "7000",
		"JWT_SECRET": testSecret,
		"LOG_LEVEL":  "debug",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Addr, "flag beats PORT")
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "debug", cfg.Log.Level, "env applies where no flag was given")
}

func TestLoadConfig_UnsetFlagsDoNotClobber(t *testing.T) {
	root := newRootCmd()
	require.NoError(t, root.ParseFlags(nil))

	cfg, err := loadConfig(root, &flagValues{}, envFrom(map[string]string{
		"JWT_SECRET": testSecret,
		"DB_PATH":    "/tmp/notes.db",
	}))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/notes.db", cfg.Storage.SQLitePath)
	assert.Equal(t, ":8080", cfg.Addr)
}

func TestLoadConfig_MissingSecretFails(t *testing.T) {
	root := newRootCmd()
	require.NoError(t, root.ParseFlags(nil))

	_, err := loadConfig(root, &flagValues{}, envFrom(map[string]string{}))
	assert.ErrorContains(t, err, "jwt_secret")
}

func TestMigrateCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("LOG_LEVEL", "error")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"migrate", "--db-path", ":memory:"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "schema at version 2")
}
