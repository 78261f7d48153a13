package channels

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openclaw/gateway/internal/message"
)

type fakeAdapter struct {
	id        string
	connected bool
	startErr  error
}

func (f *fakeAdapter) ID() string    { return f.id }
func (f *fakeAdapter) Label() string { return "Fake " + f.id }
func (f *fakeAdapter) Capabilities() Capabilities {
	return Capabilities{Text: true}
}
func (f *fakeAdapter) Start(ctx context.Context) error { return f.startErr }
func (f *fakeAdapter) Stop(ctx context.Context) error  { return nil }
func (f *fakeAdapter) Probe(ctx context.Context) ProbeResult {
	return ProbeResult{Connected: f.connected, AccountID: "acct-" + f.id}
}
func (f *fakeAdapter) SendText(ctx context.Context, out OutboundContext, text string) (message.DeliveryResult, error) {
	return message.DeliveryResult{MessageID: "m1"}, nil
}
func (f *fakeAdapter) SendMedia(ctx context.Context, out OutboundContext, attachments []message.Attachment) (message.DeliveryResult, error) {
	return message.DeliveryResult{MessageID: "m2"}, nil
}
func (f *fakeAdapter) TextChunkLimit() int       { return 4096 }
func (f *fakeAdapter) DeliveryMode() DeliveryMode { return DeliveryImmediate }
func (f *fakeAdapter) Normalize(raw interface{}) (message.Inbound, error) {
	return message.Inbound{Content: raw.(string)}, nil
}

func TestRegistryListAndProbe(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeAdapter{id: "telegram", connected: true})

	infos := reg.List()
	require.Len(t, infos, 1)
	require.Equal(t, "telegram", infos[0].ID)
	require.True(t, infos[0].Connected)

	info, err := reg.Probe(context.Background(), "telegram")
	require.NoError(t, err)
	require.Equal(t, "acct-telegram", info.AccountID)

	_, err = reg.Probe(context.Background(), "bogus")
	require.Error(t, err)
}

func TestRegistryStartAllPropagatesError(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeAdapter{id: "ok"})
	reg.Register(&fakeAdapter{id: "broken", startErr: errStartFailed})

	err := reg.StartAll(context.Background())
	require.Error(t, err)
}

var errStartFailed = &startError{}

type startError struct{}

func (*startError) Error() string { return "start failed" }
