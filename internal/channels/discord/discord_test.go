package discord

import (
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/gateway/internal/ids"
)

func TestNormalizeDirectMessage(t *testing.T) {
	a := &Adapter{botID: "bot-1"}
	raw := &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "msg-1",
		Content:   "hello",
		Author:    &discordgo.User{ID: "user-1", Username: "ada"},
		Timestamp: time.Unix(0, 0),
	}}

	in, err := a.Normalize(raw)
	require.NoError(t, err)
	require.Equal(t, "hello", in.Content)
	require.Equal(t, ids.PeerDM, in.PeerType)
	require.Equal(t, ids.PeerId("user-1"), in.PeerID)
}

func TestNormalizeGroupMessage(t *testing.T) {
	a := &Adapter{botID: "bot-1"}
	raw := &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:      "msg-2",
		Content: "hi team",
		Author:  &discordgo.User{ID: "user-2"},
		GuildID: "guild-1",
	}}

	in, err := a.Normalize(raw)
	require.NoError(t, err)
	require.Equal(t, ids.PeerGroup, in.PeerType)
}

func TestNormalizeRejectsWrongType(t *testing.T) {
	a := &Adapter{}
	_, err := a.Normalize("not a discord event")
	require.Error(t, err)
}

func TestCapabilitiesAndLimits(t *testing.T) {
	a := &Adapter{}
	require.Equal(t, 2000, a.TextChunkLimit())
	require.True(t, a.Capabilities().Text)
	require.Equal(t, "discord", a.ID())
}
