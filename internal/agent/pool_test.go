package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openclaw/gateway/internal/apperr"
	"github.com/openclaw/gateway/internal/ids"
	"github.com/openclaw/gateway/internal/providers"
)

func TestPoolRoutesBySessionKeyAgentSegment(t *testing.T) {
	providerA := &fakeProvider{responses: []*providers.ChatResponse{{Content: "from a", FinishReason: "stop"}}}
	providerB := &fakeProvider{responses: []*providers.ChatResponse{{Content: "from b", FinishReason: "stop"}}}

	rtA := newTestRuntime(t, providerA, nil)
	rtB := newTestRuntime(t, providerB, nil)

	pool := NewPool(map[string]*Runtime{"agent-a": rtA, "agent-b": rtB}, "agent-a")

	key := string(ids.BuildSessionKey(ids.AgentId("agent-b"), ids.ChannelId("telegram"), "acct-1", ids.PeerType("user"), ids.PeerId("peer-1")))

	reply, err := pool.ProcessMessage(context.Background(), key, "hi")
	require.NoError(t, err)
	require.Equal(t, "from b", reply)
	require.Equal(t, 1, providerB.calls)
	require.Equal(t, 0, providerA.calls)
}

func TestPoolFallsBackToDefaultForUnparsableSessionKey(t *testing.T) {
	providerA := &fakeProvider{responses: []*providers.ChatResponse{{Content: "default reply", FinishReason: "stop"}}}
	rtA := newTestRuntime(t, providerA, nil)

	pool := NewPool(map[string]*Runtime{"agent-a": rtA}, "agent-a")

	reply, err := pool.ProcessMessage(context.Background(), "not-a-structured-key", "hi")
	require.NoError(t, err)
	require.Equal(t, "default reply", reply)
}

func TestPoolReportsNotFoundForUnknownAgent(t *testing.T) {
	pool := NewPool(map[string]*Runtime{}, "missing")

	_, err := pool.ProcessMessage(context.Background(), "not-a-structured-key", "hi")
	require.Error(t, err)
	require.Equal(t, apperr.NotFound, apperr.KindOf(err))
}
