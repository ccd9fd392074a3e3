package config

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/munin/pkg/security"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, 9300, cfg.Port)
	assert.Equal(t, "127.0.0.1", cfg.Bind)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.TLS.Enabled())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "munin.yaml")

	want := DefaultConfig()
	want.DataDir = "/var/lib/munin"
	want.Port = 9400
	want.APIKey = "sekrit"
	want.FsyncInterval = 250 * time.Millisecond
	require.NoError(t, SaveConfig(want, path))

	got, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadConfig_Missing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadConfig_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [not a port"), 0600))

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfig_TLSBundle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "munin.yaml")
	raw := `
data_dir: ./data
port: 9300
tls:
  protocol: TLSv1.3
  client_auth: required
  keystore:
    path: /certs/server.pem
    password: storepass
  truststore:
    path: /certs/ca.pem
    password: trustpass
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0600))

	// The bundle parses, but the factory cannot load the nonexistent
	// stores, so the load fails with a TLS configuration error.
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid tls configuration")
}

func TestLoadConfig_TLSPairRuleSurfacesAtLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "munin.yaml")
	raw := `
tls:
  keystore:
    path: /certs/server.pem
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0600))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key store path is set but no key store password")
}

func TestLoadConfig_TLSParsesIntoBundle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "munin.yaml")
	raw := `
tls:
  protocol: TLSv1.2
  client_auth: requested
  enabled_protocols: [TLSv1.2, TLSv1.3]
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, security.Config{
		Protocol:         "TLSv1.2",
		ClientAuth:       "requested",
		EnabledProtocols: []string{"TLSv1.2", "TLSv1.3"},
	}, cfg.TLS)
}

func TestGenerateSecureKey(t *testing.T) {
	key, err := GenerateSecureKey(32)
	require.NoError(t, err)
	assert.Len(t, key, 64) // hex-encoded

	decoded, err := hex.DecodeString(key)
	require.NoError(t, err)
	assert.Len(t, decoded, 32)

	other, err := GenerateSecureKey(32)
	require.NoError(t, err)
	assert.NotEqual(t, key, other)
}

func TestBootstrapConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "munin.yaml")

	cfg, err := BootstrapConfig(path, "/custom/data")
	require.NoError(t, err)
	assert.Equal(t, "/custom/data", cfg.DataDir)
	assert.NotEqual(t, "auto", cfg.APIKey)
	assert.True(t, ConfigExists(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.APIKey, loaded.APIKey)
}
