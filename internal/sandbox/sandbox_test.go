package sandbox

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, LevelStandard, cfg.Level)
	require.False(t, cfg.NetworkAllowed)
}

func TestLevelOrdering(t *testing.T) {
	require.True(t, LevelParanoid > LevelStrict)
	require.True(t, LevelStrict > LevelStandard)
	require.True(t, LevelStandard > LevelMinimal)
	require.True(t, LevelMinimal > LevelNone)
}

func TestNewReturnsPlatformExecutor(t *testing.T) {
	exec := New()
	require.NotNil(t, exec)
	// Available() must not panic regardless of whether the helper is installed.
	_ = exec.Available()
}
