package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvironment(t *testing.T) {
	cases := map[string]Environment{
		"":       EnvProd,
		"prod":   EnvProd,
		" DEV ":  EnvDev,
		"Prod\n": EnvProd,
	}
	for in, want := range cases {
		got, err := ParseEnvironment(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseEnvironment("staging")
	assert.Error(t, err)
}

func TestExpandReplacesFirstPlaceholder(t *testing.T) {
	assert.Equal(t, "/requests/abc", Expand("/requests/:id", "id", "abc"))
	assert.Equal(t, "/requests/user/u%2F1", Expand("/requests/user/:userId", "userId", "u/1"))
	assert.Equal(t, "/a/x/:id", Expand("/a/:id/:id", "id", "x"))
}

func TestDefaultReturnsIndependentCopies(t *testing.T) {
	a := Default()
	b := a.WithBaseURL(EnvDev, "http://localhost:8080")

	base, err := a.BaseURL(EnvDev)
	require.NoError(t, err)
	assert.Equal(t, "https://dev-api.kwikpik.io/api/v1", base)

	base, err = b.BaseURL(EnvDev)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", base)

	c := Default()
	c.BaseURLs[EnvProd] = "mutated"
	base, _ = Default().BaseURL(EnvProd)
	assert.Equal(t, "https://api.kwikpik.io/api/v1", base)
}

func TestBaseURLUnknownEnvironment(t *testing.T) {
	_, err := Default().BaseURL("staging")
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	t.Setenv("KWIKPIK_API_KEY", "key-1")
	t.Setenv("KWIKPIK_ENV", "dev")
	t.Setenv("KWIKPIK_BASE_URL", "http://localhost:9000")
	t.Setenv("KWIKPIK_TIMEOUT", "3s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "key-1", cfg.APIKey)
	assert.Equal(t, EnvDev, cfg.Env)
	assert.Equal(t, "http://localhost:9000", cfg.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
}

func TestLoadRequiresAPIKey(t *testing.T) {
	t.Setenv("KWIKPIK_API_KEY", "")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsBadTimeout(t *testing.T) {
	t.Setenv("KWIKPIK_API_KEY", "key-1")
	t.Setenv("KWIKPIK_ENV", "")
	t.Setenv("KWIKPIK_TIMEOUT", "soon")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadSandboxDefaults(t *testing.T) {
	t.Setenv("DB_SOURCE", "")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DELIVERY_TICK", "")
	t.Setenv("SANDBOX_API_KEY", "")
	t.Setenv("SANDBOX_BALANCE", "")

	cfg, err := LoadSandbox()
	require.NoError(t, err)
	assert.Empty(t, cfg.DBSource)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.NotEmpty(t, cfg.JWTSecret)
	assert.Equal(t, "@every 30s", cfg.DeliveryTick)
	assert.Equal(t, "sk_sandbox_demo", cfg.DemoAPIKey)
	assert.Equal(t, 50000.0, cfg.DemoBalance)
}

func TestLoadSandboxRejectsBadBalance(t *testing.T) {
	t.Setenv("SANDBOX_BALANCE", "lots")
	_, err := LoadSandbox()
	assert.ErrorContains(t, err, "SANDBOX_BALANCE")
}
