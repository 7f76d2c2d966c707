package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, ModeOffline, cfg.Mode)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "http://localhost:2452/api", cfg.Upstream.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, "student", cfg.Auth.DefaultRole)
	assert.Equal(t, 15*time.Second, cfg.Session.LoadTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Session.EvaluateTimeout)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:3010", "http://localhost:3020"}, cfg.CORSOrigins())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ATTEMPT_MODE", "ONLINE")
	t.Setenv("ATTEMPT_UPSTREAM_BASE_URL", "https://classroom.example/api/")
	t.Setenv("ATTEMPT_UPSTREAM_TIMEOUT", "5s")
	t.Setenv("ATTEMPT_AUTH_HMAC_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("ATTEMPT_CORS_ORIGINS_ONLINE", "https://a.example, https://b.example,")
	t.Setenv("ATTEMPT_SESSION_EVALUATE_TIMEOUT", "45s")

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, ModeOnline, cfg.Mode)
	assert.Equal(t, "https://classroom.example/api", cfg.Upstream.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, 45*time.Second, cfg.Session.EvaluateTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins())
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown mode", env: map[string]string{"ATTEMPT_MODE": "cloud"}},
		{name: "online with short secret", env: map[string]string{"ATTEMPT_MODE": "online", "ATTEMPT_AUTH_HMAC_SECRET": "short"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(viper.New())
			assert.Error(t, err)
		})
	}
}

func TestFromEnv_DotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("ATTEMPT_HTTP_ADDR=:9191\n"), 0o600))
	t.Setenv("ATTEMPT_DOTENV", path)
	// godotenv never overrides a variable that is already set; register it
	// with t.Setenv so it is restored afterwards, then clear it.
	t.Setenv("ATTEMPT_HTTP_ADDR", "")
	require.NoError(t, os.Unsetenv("ATTEMPT_HTTP_ADDR"))

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":9191", cfg.HTTPAddr)
}
