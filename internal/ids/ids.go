// Package ids defines the typed handles used throughout the gateway:
// AgentId, ChannelId, PeerId and the canonical SessionKey built from them.
package ids

import (
	"fmt"
	"strings"
)

// AgentId identifies an agent configuration. Never the empty string.
type AgentId string

// ChannelId identifies a messaging platform, e.g. "telegram", "discord".
type ChannelId string

// PeerId identifies the remote party on a channel (a user id, chat id, ...).
type PeerId string

// PeerType classifies the shape of a peer within a channel.
type PeerType string

const (
	PeerDM      PeerType = "dm"
	PeerGroup   PeerType = "group"
	PeerChannel PeerType = "channel"
	PeerThread  PeerType = "thread"
)

// Valid reports whether pt is one of the four recognized peer types.
func (pt PeerType) Valid() bool {
	switch pt {
	case PeerDM, PeerGroup, PeerChannel, PeerThread:
		return true
	}
	return false
}

// SessionKey is the canonical, exact-string-equality primary key for all
// session-scoped data. The only legitimate way to produce one is BuildSessionKey
// or MainSessionKey.
type SessionKey string

// BuildSessionKey constructs the canonical key
// "agent:{agent}:channel:{channel}:account:{account}:{peer-type}:{peer}".
func BuildSessionKey(agent AgentId, channel ChannelId, account string, peerType PeerType, peer PeerId) SessionKey {
	return SessionKey(fmt.Sprintf("agent:%s:channel:%s:account:%s:%s:%s",
		agent, channel, account, peerType, peer))
}

// MainSessionKey returns the singleton session key used for an agent's
// standalone/system conversation, not tied to any channel.
func MainSessionKey(agent AgentId) SessionKey {
	return SessionKey(fmt.Sprintf("agent:%s:main", agent))
}

// String satisfies fmt.Stringer.
func (k SessionKey) String() string { return string(k) }

// Empty reports whether the key holds the zero value.
func (k SessionKey) Empty() bool { return k == "" }

// ParsedSessionKey is the decomposed form of a SessionKey built by BuildSessionKey.
type ParsedSessionKey struct {
	Agent    AgentId
	Channel  ChannelId
	Account  string
	PeerType PeerType
	Peer     PeerId
}

// ParseSessionKey decomposes a key built by BuildSessionKey. It returns an
// error for keys in any other shape, including MainSessionKey output.
func ParseSessionKey(key SessionKey) (ParsedSessionKey, error) {
	parts := strings.Split(string(key), ":")
	if len(parts) != 8 || parts[0] != "agent" || parts[2] != "channel" || parts[4] != "account" {
		return ParsedSessionKey{}, fmt.Errorf("ids: malformed session key %q", key)
	}
	pt := PeerType(parts[6])
	if !pt.Valid() {
		return ParsedSessionKey{}, fmt.Errorf("ids: unknown peer type %q in session key %q", parts[6], key)
	}
	return ParsedSessionKey{
		Agent:    AgentId(parts[1]),
		Channel:  ChannelId(parts[3]),
		Account:  parts[5],
		PeerType: pt,
		Peer:     PeerId(parts[7]),
	}, nil
}
