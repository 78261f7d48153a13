package telegram

import (
	"testing"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/gateway/internal/ids"
)

func TestNormalizeDirectMessage(t *testing.T) {
	a := &Adapter{}
	update := telego.Update{Message: &telego.Message{
		MessageID: 42,
		Text:      "hello",
		Chat:      telego.Chat{ID: 100, Type: "private"},
		From:      &telego.User{ID: 7, Username: "ada"},
		Date:      1700000000,
	}}

	in, err := a.Normalize(update)
	require.NoError(t, err)
	require.Equal(t, "hello", in.Content)
	require.Equal(t, ids.PeerDM, in.PeerType)
	require.Equal(t, ids.PeerId("7"), in.PeerID)
}

func TestNormalizeGroupMessage(t *testing.T) {
	a := &Adapter{}
	update := telego.Update{Message: &telego.Message{
		MessageID: 43,
		Text:      "hi all",
		Chat:      telego.Chat{ID: -100, Type: "supergroup"},
		From:      &telego.User{ID: 8},
	}}

	in, err := a.Normalize(update)
	require.NoError(t, err)
	require.Equal(t, ids.PeerGroup, in.PeerType)
}

func TestNormalizeRejectsNoMessage(t *testing.T) {
	a := &Adapter{}
	_, err := a.Normalize(telego.Update{})
	require.Error(t, err)
}

func TestCapabilitiesAndLimits(t *testing.T) {
	a := &Adapter{}
	require.Equal(t, 4096, a.TextChunkLimit())
	require.True(t, a.Capabilities().Voice)
	require.Equal(t, "telegram", a.ID())
}
