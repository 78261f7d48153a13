package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openclaw/gateway/internal/apperr"
	"github.com/openclaw/gateway/internal/eventstore"
	"github.com/openclaw/gateway/internal/ids"
	"github.com/openclaw/gateway/internal/providers"
	"github.com/openclaw/gateway/internal/tools"
)

// fakeProvider replays a scripted sequence of responses, one per Chat call.
type fakeProvider struct {
	responses []*providers.ChatResponse
	errs      []error
	calls     int
}

func (f *fakeProvider) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	return f.responses[i], nil
}

func (f *fakeProvider) ChatStream(ctx context.Context, req providers.ChatRequest, onChunk func(providers.StreamChunk)) (*providers.ChatResponse, error) {
	return f.Chat(ctx, req)
}

func (f *fakeProvider) DefaultModel() string { return "fake-model" }
func (f *fakeProvider) Name() string         { return "fake" }

func newTestRuntime(t *testing.T, provider providers.Provider, reg *tools.Registry) *Runtime {
	store, err := eventstore.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	if reg == nil {
		reg = tools.NewRegistry()
	}

	return New("test-agent", Config{
		Provider: provider,
		Tools:    reg,
		Events:   store,
		Model:    "fake-model",
	})
}

func TestProcessMessageNoToolUse(t *testing.T) {
	provider := &fakeProvider{
		responses: []*providers.ChatResponse{
			{Content: "hello there", FinishReason: "stop"},
		},
	}
	rt := newTestRuntime(t, provider, nil)

	reply, err := rt.ProcessMessage(context.Background(), "session-1", "hi")
	require.NoError(t, err)
	require.Equal(t, "hello there", reply)
	require.Equal(t, 1, provider.calls)
}

func TestProcessMessageSingleToolUse(t *testing.T) {
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(tools.EchoTool{}))

	provider := &fakeProvider{
		responses: []*providers.ChatResponse{
			{
				Content:      "",
				FinishReason: "tool_calls",
				ToolCalls: []providers.ToolCall{
					{ID: "call-1", Name: "echo", Arguments: map[string]interface{}{"msg": "ping"}},
				},
			},
			{Content: "done", FinishReason: "stop"},
		},
	}
	rt := newTestRuntime(t, provider, reg)

	reply, err := rt.ProcessMessage(context.Background(), "session-2", "please echo")
	require.NoError(t, err)
	require.Equal(t, "done", reply)
	require.Equal(t, 2, provider.calls)

	events, err := rt.events.GetEvents(ids.SessionKey("session-2"))
	require.NoError(t, err)
	var sawToolCalled, sawToolResult bool
	for _, ev := range events {
		switch ev.Kind {
		case eventstore.KindToolCalled:
			sawToolCalled = true
		case eventstore.KindToolResult:
			sawToolResult = true
		}
	}
	require.True(t, sawToolCalled)
	require.True(t, sawToolResult)
}

func TestProcessMessageUnknownToolAbortsLoop(t *testing.T) {
	provider := &fakeProvider{
		responses: []*providers.ChatResponse{
			{
				Content:      "partial",
				FinishReason: "tool_calls",
				ToolCalls: []providers.ToolCall{
					{ID: "call-1", Name: "does-not-exist", Arguments: map[string]interface{}{}},
				},
			},
		},
	}
	rt := newTestRuntime(t, provider, nil)

	reply, err := rt.ProcessMessage(context.Background(), "session-3", "hi")
	require.NoError(t, err)
	require.Equal(t, "partial", reply)
	require.Equal(t, 1, provider.calls)
}

func TestProcessMessageProviderErrorTaggedUpstream(t *testing.T) {
	provider := &fakeProvider{
		responses: []*providers.ChatResponse{nil},
		errs:      []error{&providerFailure{}},
	}
	rt := newTestRuntime(t, provider, nil)

	_, err := rt.ProcessMessage(context.Background(), "session-4", "hi")
	require.Error(t, err)
	require.Equal(t, apperr.Upstream, apperr.KindOf(err))
}

type providerFailure struct{}

func (*providerFailure) Error() string { return "provider unavailable" }
