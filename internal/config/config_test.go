package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/classroom-portal/internal/config"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("API_BASE_URL", "")
	t.Setenv("GUARD_WAIT", "")

	c := config.New()

	require.Equal(t, ":3000", c.GetPort())
	require.Equal(t, "http://localhost:8080/api", c.GetAPIBaseURL())
	require.Equal(t, 2*time.Second, c.GetGuardWait())
	require.Equal(t, 30*time.Second, c.GetRequestTimeout())
	require.Equal(t, "/auth/refresh", c.GetRefreshPath())
	require.True(t, c.GetRestoreOnStart())
}

func TestLoad_FileOverlay(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("API_BASE_URL", "")
	t.Setenv("REQUEST_TIMEOUT", "")

	path := filepath.Join(t.TempDir(), "portal.yaml")
	err := os.WriteFile(path, []byte("port: 9090\napi_base_url: https://api.example.com/api/\nrequest_timeout: 5s\nallowed_origins: https://a.example.com, https://b.example.com\n"), 0o600)
	require.NoError(t, err)

	c, err := config.Load(path)
	require.NoError(t, err)

	require.Equal(t, ":9090", c.GetPort())
	require.Equal(t, "https://api.example.com/api", c.GetAPIBaseURL())
	require.Equal(t, 5*time.Second, c.GetRequestTimeout())
	require.True(t, c.GetAllowedOrigins().IsAllowedOrigin("https://b.example.com"))

	t.Run("environment wins over file", func(t *testing.T) {
		t.Setenv("PORT", "7070")
		require.Equal(t, ":7070", c.GetPort())
	})
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
