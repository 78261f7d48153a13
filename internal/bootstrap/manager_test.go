package bootstrap

import (
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/openclaw/gateway/internal/apperr"
	"github.com/openclaw/gateway/internal/users"
)

func newTestStore(t *testing.T) *users.Store {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s, err := users.Open(db)
	require.NoError(t, err)
	return s
}

func TestBootstrapScenario(t *testing.T) {
	store := newTestStore(t)
	mgr := NewManager(store, "http://localhost:8080")

	status, err := mgr.Status()
	require.NoError(t, err)
	require.False(t, status.Initialized)
	require.Equal(t, 0, status.UserCount)
	require.True(t, status.BootstrapActive)
	require.Contains(t, status.SetupURL, "/setup?token=")

	token := strings.TrimPrefix(status.SetupURL, "http://localhost:8080/setup?token=")

	u, err := mgr.Init(token, "a", "pw", "")
	require.NoError(t, err)
	require.Equal(t, users.RoleAdmin, u.Role)

	_, err = mgr.Init(token, "a", "pw", "")
	require.Error(t, err)
	require.Equal(t, apperr.Unauthorized, apperr.KindOf(err))
}

func TestBootstrapEnvShortcut(t *testing.T) {
	store := newTestStore(t)
	mgr := NewManager(store, "http://localhost:8080")

	t.Setenv(envAdminUser, "envadmin")
	t.Setenv(envAdminPass, "envpass")

	status, err := mgr.Status()
	require.NoError(t, err)
	require.True(t, status.Initialized)
	require.Equal(t, 1, status.UserCount)

	_, err = store.GetByUsername("envadmin")
	require.NoError(t, err)
}
