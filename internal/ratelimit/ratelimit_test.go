package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPerKeyAllowsBurstThenThrottles(t *testing.T) {
	p := NewPerKey(1, 3)

	for i := 0; i < 3; i++ {
		require.True(t, p.Allow("peer-1"), "burst token %d should be allowed", i)
	}
	require.False(t, p.Allow("peer-1"), "burst exhausted, next call should be throttled")
}

func TestPerKeyTracksKeysIndependently(t *testing.T) {
	p := NewPerKey(1, 1)

	require.True(t, p.Allow("peer-1"))
	require.False(t, p.Allow("peer-1"))
	require.True(t, p.Allow("peer-2"), "a distinct key must not share peer-1's bucket")
}

func TestNewPerKeyDefaultsNonPositiveBurstToOne(t *testing.T) {
	p := NewPerKey(1, 0)

	require.True(t, p.Allow("peer-1"))
	require.False(t, p.Allow("peer-1"))
}
