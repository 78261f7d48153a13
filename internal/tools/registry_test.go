package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openclaw/gateway/internal/apperr"
)

func TestRegistryEchoScenario(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(EchoTool{}))

	result := reg.Execute(context.Background(), "echo", map[string]interface{}{"msg": "x"})
	require.False(t, result.IsError)
	require.Equal(t, "x", result.ForLLM)

	result = reg.Execute(context.Background(), "echo", map[string]interface{}{})
	require.True(t, result.IsError)
	require.Equal(t, apperr.Validation, apperr.KindOf(result.Err))
}

func TestRegistryExecuteUnregisteredToolNotFound(t *testing.T) {
	reg := NewRegistry()
	result := reg.Execute(context.Background(), "does-not-exist", nil)
	require.True(t, result.IsError)
	require.Equal(t, apperr.NotFound, apperr.KindOf(result.Err))
}

func TestRegistryListAndGet(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(EchoTool{}))

	got, err := reg.Get("echo")
	require.NoError(t, err)
	require.Equal(t, "echo", got.Name())

	_, err = reg.Get("missing")
	require.Error(t, err)

	require.Len(t, reg.List(), 1)
}
