package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-engine/internal/config"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c := config.New()
	require.Equal(t, ":8080", c.GetPort())
	require.Equal(t, "DEV", c.GetEnv())
	require.Equal(t, config.StoreMemory, c.GetStore())
	require.Equal(t, c.GetStore(), c.GetCodeStore())
	require.Equal(t, 100, c.GetCleanupBatchSize())
	require.Equal(t, 30*time.Minute, c.GetOTPLifetime())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", ":9000")
	t.Setenv("CODE_STORE", config.StoreRedis)
	t.Setenv("OTP_LIFETIME", "10m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	c := config.New()
	require.Equal(t, ":9000", c.GetPort())
	require.Equal(t, config.StoreRedis, c.GetCodeStore())
	require.Equal(t, 10*time.Minute, c.GetOTPLifetime())
	require.True(t, c.GetAllowedOrigins().IsAllowedOrigin("https://b.example.com"))
}

func TestInvalidDurationFallsBack(t *testing.T) {
	t.Setenv("AUTH_CODE_LIFETIME", "soon")
	require.Equal(t, 5*time.Minute, config.New().GetAuthCodeLifetime())
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("APP_NAME=From Dotenv\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("APP_NAME") })

	c := config.Load(envFile)
	require.Equal(t, "From Dotenv", c.GetAppName())
}
