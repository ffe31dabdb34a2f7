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
	path := filepath.Join(t.TempDir(), "eload.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "device:\n  port: /dev/ttyUSB0\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "serial", cfg.Device.Transport)
	assert.Equal(t, 9600, cfg.Device.BaudRate)
	assert.Equal(t, 3, cfg.Device.RetryCount)
	assert.Equal(t, 100*time.Millisecond, cfg.Device.Pause)
	assert.Equal(t, 10*time.Millisecond, cfg.Device.PollInterval)
	assert.Equal(t, 5*time.Second, cfg.Device.SafetyTimeout)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.False(t, cfg.Database.Enabled)
	assert.True(t, cfg.HTTP.Swagger)
	assert.Equal(t, 10*time.Second, cfg.HTTP.WriteTimeout)
	assert.Equal(t, ":4001", cfg.Bridge.Addr)
	assert.Equal(t, 1, cfg.Bridge.MaxClients)
	assert.Equal(t, 5*time.Minute, cfg.Bridge.IdleTimeout)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := writeConfig(t, `
device:
  transport: tcp
  port: 192.168.1.20:4001
  retryCount: 5
  pause: 250ms
sampler:
  interval: 2s
`)
	t.Setenv("ELOAD_DEVICE_RETRYCOUNT", "7")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "tcp", cfg.Device.Transport)
	assert.Equal(t, "192.168.1.20:4001", cfg.Device.Port)
	assert.Equal(t, 7, cfg.Device.RetryCount)
	assert.Equal(t, 250*time.Millisecond, cfg.Device.Pause)
	assert.Equal(t, 2*time.Second, cfg.Sampler.Interval)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"缺少端口", "device:\n  port: \"\"\n", true},
		{"模拟模式无需端口", "app:\n  simulate: true\n", false},
		{"未知传输方式", "device:\n  port: x\n  transport: usb\n", true},
		{"重试次数非法", "device:\n  port: x\n  retryCount: 0\n", true},
		{"启用认证但无密钥", "app:\n  simulate: true\nhttp:\n  auth:\n    enabled: true\n", true},
		{"启用认证", "app:\n  simulate: true\nhttp:\n  auth:\n    enabled: true\n    apiKeys: [k1]\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
