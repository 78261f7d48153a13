package gateway

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/openclaw/gateway/internal/bootstrap"
	"github.com/openclaw/gateway/internal/broadcast"
	"github.com/openclaw/gateway/internal/eventstore"
	"github.com/openclaw/gateway/internal/tokens"
	"github.com/openclaw/gateway/internal/tools"
	"github.com/openclaw/gateway/internal/users"
	"github.com/openclaw/gateway/pkg/protocol"
)

func newTestServer(t *testing.T) *Server {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	userStore, err := users.Open(db)
	require.NoError(t, err)

	eventStore, err := eventstore.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { eventStore.Close() })

	tokenMgr, err := tokens.NewManager(nil, time.Minute, time.Hour)
	require.NoError(t, err)

	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(tools.EchoTool{}))

	return NewServer(Config{
		Users:       userStore,
		Tokens:      tokenMgr,
		Events:      eventStore,
		Tools:       reg,
		Bootstrap:   bootstrap.NewManager(userStore, "http://localhost"),
		Broadcaster: broadcast.New(),
		Version:     "test",
	})
}

func TestSetupInitAndLoginFlow(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	statusResult, rpcErr := s.dispatch(ctx, protocol.MethodSetupStatus, nil, nil)
	require.Nil(t, rpcErr)
	status := statusResult.(bootstrap.Status)
	require.True(t, status.BootstrapActive)

	token := status.SetupURL[len("http://localhost/setup?token="):]
	initResult, rpcErr := s.dispatch(ctx, protocol.MethodSetupInit, map[string]interface{}{
		"token": token, "username": "ada", "password": "hunter2",
	}, nil)
	require.Nil(t, rpcErr)
	require.Equal(t, "ada", initResult.(publicUser).Username)

	_, rpcErr = s.dispatch(ctx, protocol.MethodSetupInit, map[string]interface{}{
		"token": token, "username": "ada", "password": "hunter2",
	}, nil)
	require.NotNil(t, rpcErr)
	require.Equal(t, protocol.ErrCodeUnauthorized, rpcErr.Code)

	loginResult, rpcErr := s.dispatch(ctx, protocol.MethodAuthLogin, map[string]interface{}{
		"username": "ada", "password": "hunter2",
	}, nil)
	require.Nil(t, rpcErr)
	pair := loginResult.(tokenPair)
	require.NotEmpty(t, pair.AccessToken)
}

func TestToolsExecuteScenario(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	result, rpcErr := s.dispatch(ctx, protocol.MethodToolsExecute, map[string]interface{}{
		"name": "echo", "params": map[string]interface{}{"msg": "x"},
	}, nil)
	require.Nil(t, rpcErr)
	m := result.(map[string]interface{})
	require.Equal(t, true, m["success"])
	require.Equal(t, "x", m["content"])

	_, rpcErr = s.dispatch(ctx, protocol.MethodToolsExecute, map[string]interface{}{
		"name": "echo", "params": map[string]interface{}{},
	}, nil)
	require.NotNil(t, rpcErr)
	require.Equal(t, protocol.ErrCodeInvalidParams, rpcErr.Code)
}

func TestUnknownMethodNotFound(t *testing.T) {
	s := newTestServer(t)
	_, rpcErr := s.dispatch(context.Background(), "bogus.method", nil, nil)
	require.NotNil(t, rpcErr)
	require.Equal(t, protocol.ErrCodeMethodNotFound, rpcErr.Code)
}

func TestAuthenticatePublicMethodsAllowedWithoutToken(t *testing.T) {
	s := newTestServer(t)
	claims, rpcErr := s.authenticate(protocol.MethodSystemHealth, "")
	require.Nil(t, rpcErr)
	require.Nil(t, claims)

	_, rpcErr = s.authenticate(protocol.MethodUsersList, "")
	require.NotNil(t, rpcErr)
	require.Equal(t, protocol.ErrCodeUnauthorized, rpcErr.Code)
}
