package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every override so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"PORT", "MESSAGE_CAP", "STORE_DRIVER", "DATABASE_URL", "TRIAGE_ENCRYPTION_KEY",
		"POSTGRES_NOTIFY_CHANNEL", "TRIAGE_RULES_PATH", "LOG_LEVEL", "LOG_FORMAT"} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 50, cfg.Server.MessageCap)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "handoff_tickets", cfg.Store.NotifyChannel)
	assert.Empty(t, cfg.Rules.Path)
	assert.Equal(t, 10*time.Second, cfg.GetRequestTimeout())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
  message_cap: 5
  request_timeout: 3s
store:
  driver: memory
log:
  level: debug
  format: console
`), 0o600))

	t.Setenv("PORT", "7070")
	t.Setenv("TRIAGE_RULES_PATH", "/etc/triage/rules.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr, "env wins over file")
	assert.Equal(t, 5, cfg.Server.MessageCap)
	assert.Equal(t, 3*time.Second, cfg.GetRequestTimeout())
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "dev-key", cfg.Store.EncryptionKey, "unset keys keep defaults")
	assert.Equal(t, "/etc/triage/rules.yaml", cfg.Rules.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("server: ["), 0o600))
	_, err = Load(bad)
	assert.Error(t, err)

	t.Setenv("MESSAGE_CAP", "lots")
	_, err = Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Driver = "mongo"
	cfg.Server.MessageCap = -1
	cfg.Log.Level = "loud"
	cfg.Server.RequestTimeout = "soon"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"store.driver", "server.message_cap", "log.level", "server.request_timeout"} {
		assert.Contains(t, err.Error(), want)
	}

	mem := DefaultConfig()
	mem.Store.Driver = "memory"
	mem.Store.DSN = ""
	assert.NoError(t, mem.Validate())
}
