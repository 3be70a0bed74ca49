package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("RPCWALL_DB_PATH", filepath.Join(t.TempDir(), "rpcwall.db"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8545", cfg.ListenAddr)
	assert.Equal(t, "127.0.0.1:8580", cfg.AdminAddr)
	assert.Equal(t, "http://127.0.0.1:9933", cfg.ProxyToURL)
	assert.Equal(t, int64(10*1024*1024), cfg.MaxBodySizeBytes)
	assert.Equal(t, 30, cfg.RequestTimeoutSecs)
	assert.False(t, cfg.AllowUnrestricted)
	assert.Empty(t, cfg.AllowIPs)
	assert.Empty(t, cfg.WebhookURLs)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("RPCWALL_DB_PATH", filepath.Join(t.TempDir(), "rpcwall.db"))
	t.Setenv("RPCWALL_PROXY_TO_URL", "wss://node.example.com:9944")
	t.Setenv("RPCWALL_ALLOW_IPS", "127.0.0.1, 10.0.0.0/8 ,192.168.1.0/24")
	t.Setenv("RPCWALL_ALLOW_UNRESTRICTED", "true")
	t.Setenv("RPCWALL_MAX_BODY_SIZE_BYTES", "4096")
	t.Setenv("RPCWALL_REQUEST_TIMEOUT_SECS", "5")
	t.Setenv("RPCWALL_WEBHOOK_URLS", "https://hooks.example.com/fw")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "wss://node.example.com:9944", cfg.ProxyToURL)
	assert.Equal(t, []string{"127.0.0.1", "10.0.0.0/8", "192.168.1.0/24"}, cfg.AllowIPs)
	assert.True(t, cfg.AllowUnrestricted)
	assert.Equal(t, int64(4096), cfg.MaxBodySizeBytes)
	assert.Equal(t, 5, cfg.RequestTimeoutSecs)
	assert.Equal(t, []string{"https://hooks.example.com/fw"}, cfg.WebhookURLs)
}

func TestLoadRejectsBadProxyTarget(t *testing.T) {
	t.Setenv("RPCWALL_DB_PATH", filepath.Join(t.TempDir(), "rpcwall.db"))
	t.Setenv("RPCWALL_PROXY_TO_URL", "ftp://node.example.com")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsBadWebhookURL(t *testing.T) {
	t.Setenv("RPCWALL_DB_PATH", filepath.Join(t.TempDir(), "rpcwall.db"))
	t.Setenv("RPCWALL_WEBHOOK_URLS", "gopher://hooks.example.com")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("RPCWALL_DB_PATH", filepath.Join(t.TempDir(), "rpcwall.db"))
	t.Setenv("RPCWALL_REQUEST_TIMEOUT_SECS", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.RequestTimeoutSecs)
}
