package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaults() Config {
	var c Config
	c.LoadDefaults()
	return c
}

func TestLoadDefaults(t *testing.T) {
	c := defaults()

	assert.Equal(t, "wallet.db", filepath.Base(c.DBPath))
	assert.Equal(t, 5, c.DefaultTimeoutMinutes)
	assert.False(t, c.RequireReauthOnRestart)
	assert.Equal(t, 10*time.Second, c.SessionPollInterval)
	assert.Equal(t, "text", c.LogFormat)
	require.NoError(t, c.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty db path", func(c *Config) { c.DBPath = "" }},
		{"empty rp id", func(c *Config) { c.RPID = "" }},
		{"zero timeout", func(c *Config) { c.DefaultTimeoutMinutes = 0 }},
		{"zero poll", func(c *Config) { c.SessionPollInterval = 0 }},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := defaults()
			tt.mutate(&c)
			require.Error(t, c.Validate())
		})
	}
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Precedence(t *testing.T) {
	yml := writeFile(t, "cfg.yaml", `
db_path: /tmp/from-file.db
default_timeout_minutes: 7
session_poll_interval: 3s
log_format: console
`)

	cfg, err := LoadConfig([]string{"-config", yml, "-t", "9", "-r"})
	require.NoError(t, err)

	want := defaults()
	want.DBPath = "/tmp/from-file.db"
	want.DefaultTimeoutMinutes = 9
	want.SessionPollInterval = 3 * time.Second
	want.LogFormat = "console"
	want.RequireReauthOnRestart = true

	assert.Empty(t, cmp.Diff(want, *cfg))
}

func TestLoadConfig_JSON(t *testing.T) {
	js := writeFile(t, "cfg.json", `{"rp_id":"example.test","session_poll_interval":"1m","require_reauth_on_restart":true}`)

	cfg, err := LoadConfig([]string{"-c", js, "-r=false"})
	require.NoError(t, err)

	want := defaults()
	want.RPID = "example.test"
	want.SessionPollInterval = time.Minute

	assert.Empty(t, cmp.Diff(want, *cfg))
}

func TestLoadConfig_Errors(t *testing.T) {
	bad := writeFile(t, "bad.json", `{ this is not valid json`)

	_, err := LoadConfig([]string{"-c", bad})
	require.Error(t, err)

	_, err = LoadConfig([]string{"-c", filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)

	_, err = LoadConfig([]string{"-t", "abc"})
	require.Error(t, err)

	_, err = LoadConfig([]string{"-t", "0"})
	require.Error(t, err)
}
