package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultsValidateLocalMode(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "local"
	require.NoError(t, cfg.Validate())
}

func TestValidateServerModeNeedsCustody(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "server"
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "custody: base_url")
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "local"
	cfg.Groups.DebtPolicy = "forgive"
	cfg.Groups.LockTTL.Duration = 0
	cfg.Server.Port = 0

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "debt_policy")
	require.Contains(t, err.Error(), "lock_ttl")
	require.Contains(t, err.Error(), "server: port")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AHORRO_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("AHORRO_POSTGRES_PASSWORD", "hunter2")
	t.Setenv("AHORRO_GROUPS_GRACE_WINDOW", "48h")
	t.Setenv("AHORRO_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("AHORRO_S3_ENABLED", "true")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	require.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	require.Equal(t, "hunter2", cfg.Postgres.Password)
	require.Equal(t, 48*time.Hour, cfg.Groups.GraceWindow.Duration)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	require.True(t, cfg.S3.Enabled)
}
