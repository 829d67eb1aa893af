package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile_Defaults(t *testing.T) {
	path := writeConfig(t, "environment: test\n")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Environment)
	assert.Equal(t, "http://localhost:8080/api", cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, "sqlite", cfg.Session.Backend)
	assert.True(t, cfg.Session.ExclusiveChannels)
	assert.Equal(t, 30*time.Second, cfg.Cache.StaleTime)
	assert.Equal(t, 5*time.Minute, cfg.Cache.CacheTime)
	assert.True(t, cfg.Cache.KeepPreviousData)
	assert.Equal(t, int64(5*1024*1024), cfg.Upload.MaxBytes)
	assert.Equal(t, []string{"image/jpeg", "image/png"}, cfg.Upload.AllowedTypes)
	assert.Equal(t, 10, cfg.Catalog.DefaultLimit)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 2*time.Hour, cfg.Security.JWTTTL)
}

func TestLoadFile_OverridesFromYAML(t *testing.T) {
	path := writeConfig(t, `
api:
  baseurl: https://tickets.example.com/api
  timeout: 3s
session:
  backend: redis
  exclusivechannels: false
cache:
  staletime: 1m
upload:
  allowedtypes: image/png
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "https://tickets.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.API.Timeout)
	assert.Equal(t, "redis", cfg.Session.Backend)
	assert.False(t, cfg.Session.ExclusiveChannels)
	assert.Equal(t, time.Minute, cfg.Cache.StaleTime)
	assert.Equal(t, []string{"image/png"}, cfg.Upload.AllowedTypes)
}

func TestLoadFile_EnvOverride(t *testing.T) {
	path := writeConfig(t, "environment: test\n")
	t.Setenv("TICKETONE_API_BASEURL", "http://127.0.0.1:9999/api")
	t.Setenv("TICKETONE_SESSION_BACKEND", "memory")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:9999/api", cfg.API.BaseURL)
	assert.Equal(t, "memory", cfg.Session.Backend)
}

func TestLoadFile_RejectsUnknownBackend(t *testing.T) {
	path := writeConfig(t, "session:\n  backend: cookie\n")

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown session backend")
}

func TestLoadFile_MissingExplicitFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
