package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable New reads so host settings do not leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "DB_ADAPTER", "SQLITE_FILE", "MIGRATIONS_DIR", "LOG_LEVEL", "ENV", "NODE_ENV",
		"POSTGRES_DSN", "POSTGRES_HOST", "DB_HOST", "POSTGRES_PORT", "DB_PORT",
		"POSTGRES_USER", "DB_USER", "POSTGRES_PASSWORD", "DB_PASSWORD",
		"POSTGRES_DB", "DB_NAME", "POSTGRES_SSLMODE", "DB_SSLMODE",
		"TOKEN_EXPIRY", "TOKEN_SWEEP_SCHEDULE", "LOGIN_RATE_LIMIT_PER_MINUTE",
		"SMTP_HOST", "SMTP_PORT", "SMTP_USER", "SMTP_PASSWORD", "SMTP_FROM", "ACTIVATION_URL",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestNew_Defaults(t *testing.T) {
	clearEnv(t)

	c, err := New()
	require.NoError(t, err)
	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, "sqlite", c.DBAdapter)
	assert.Equal(t, 168*time.Hour, c.TokenExpiry)
	assert.Equal(t, "@hourly", c.TokenSweepSchedule)
	assert.Equal(t, 60, c.LoginRatePerMinute)
	assert.Equal(t, "587", c.SMTP.Port)
	assert.False(t, c.IsProduction())
}

func TestNew_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("DB_ADAPTER", "memory")
	t.Setenv("TOKEN_EXPIRY", "10s")
	t.Setenv("LOGIN_RATE_LIMIT_PER_MINUTE", "0")
	t.Setenv("SMTP_HOST", "smtp.example.com")

	c, err := New()
	require.NoError(t, err)
	assert.Equal(t, "9090", c.Port)
	assert.Equal(t, 10*time.Second, c.TokenExpiry)
	assert.Equal(t, 0, c.LoginRatePerMinute)
	assert.Equal(t, "smtp.example.com", c.SMTP.Host)
}

func TestNew_PostgresBuildsDSN(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_ADAPTER", "postgres")
	t.Setenv("DB_HOST", "db")
	t.Setenv("POSTGRES_PASSWORD", "secret")

	c, err := New()
	require.NoError(t, err)
	assert.Equal(t, "host=db port=5432 user=hoaxify dbname=hoaxify sslmode=disable password=secret", c.PostgresDSN)
}

func TestNew_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"port":             {"PORT": "http"},
		"adapter":          {"DB_ADAPTER": "mongo"},
		"expiry":           {"TOKEN_EXPIRY": "-1h"},
		"rate":             {"LOGIN_RATE_LIMIT_PER_MINUTE": "-3"},
		"memory in prod":   {"DB_ADAPTER": "memory", "ENV": "production"},
		"duration garbage": {"TOKEN_EXPIRY": "a week"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := New()
			assert.Error(t, err)
		})
	}
}

func TestBuildPostgresDSN(t *testing.T) {
	c := &Config{PostgresDSN: "postgres://u:p@h/db"}
	dsn, err := c.BuildPostgresDSN()
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@h/db", dsn)

	c = &Config{PostgresHost: "h", PostgresDB: "db"}
	_, err = c.BuildPostgresDSN()
	assert.EqualError(t, err, "POSTGRES_USER must be set")

	c = &Config{PostgresHost: "h", PostgresUser: "u", PostgresDB: "db"}
	dsn, err = c.BuildPostgresDSN()
	require.NoError(t, err)
	assert.Equal(t, "host=h port=5432 user=u dbname=db sslmode=disable", dsn)
}
