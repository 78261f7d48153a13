package eventstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openclaw/gateway/internal/ids"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEventIDDeterministic(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e1, err := NewEvent("agent:default:channel:telegram:account:b1:dm:u42", "default", ts, KindSessionStarted, SessionStarted{Channel: "telegram", PeerID: "u42"})
	require.NoError(t, err)
	e2, err := NewEvent("agent:default:channel:telegram:account:b1:dm:u42", "default", ts, KindSessionStarted, SessionStarted{Channel: "telegram", PeerID: "u42"})
	require.NoError(t, err)
	require.Equal(t, e1.ID, e2.ID)

	e3, err := NewEvent("agent:default:channel:telegram:account:b1:dm:u43", "default", ts, KindSessionStarted, SessionStarted{Channel: "telegram", PeerID: "u42"})
	require.NoError(t, err)
	require.NotEqual(t, e1.ID, e3.ID)
}

func TestProjectionApplyMessageCount(t *testing.T) {
	key := ids.SessionKey("agent:default:channel:telegram:account:b1:dm:u42")
	proj := NewProjection(key, "default")

	ts := time.Now().UTC()
	started, err := NewEvent(key, "default", ts, KindSessionStarted, SessionStarted{Channel: "telegram", PeerID: "u42"})
	require.NoError(t, err)
	require.NoError(t, proj.Apply(started))

	received, err := NewEvent(key, "default", ts.Add(time.Second), KindMessageReceived, MessageReceived{Content: "hi"})
	require.NoError(t, err)
	require.NoError(t, proj.Apply(received))

	sent, err := NewEvent(key, "default", ts.Add(2*time.Second), KindMessageSent, MessageSent{Content: "hello back", MessageID: "m1"})
	require.NoError(t, err)
	require.NoError(t, proj.Apply(sent))

	require.Equal(t, int64(1), proj.MessageCount, "message_count increments only on MessageReceived")
	require.Equal(t, StateActive, proj.State)
	require.Equal(t, "telegram", proj.Channel)
	require.Equal(t, "u42", proj.PeerID)
	require.Len(t, proj.Messages, 2)
}

func TestAppendAndGetProjectionScenario(t *testing.T) {
	s := newTestStore(t)
	key := ids.SessionKey("agent:default:channel:telegram:account:b1:dm:u42")

	started, err := NewEvent(key, "default", time.Now(), KindSessionStarted, SessionStarted{Channel: "telegram", PeerID: "u42"})
	require.NoError(t, err)
	_, err = s.Append(started)
	require.NoError(t, err)

	received, err := NewEvent(key, "default", time.Now().Add(time.Millisecond), KindMessageReceived, MessageReceived{Content: "hi"})
	require.NoError(t, err)
	_, err = s.Append(received)
	require.NoError(t, err)

	proj, err := s.GetProjection(key)
	require.NoError(t, err)
	require.Equal(t, StateActive, proj.State)
	require.EqualValues(t, 1, proj.MessageCount)
	require.Equal(t, "telegram", proj.Channel)
	require.Equal(t, "u42", proj.PeerID)
	require.Len(t, proj.Messages, 1)
	require.Equal(t, "hi", proj.Messages[0].InboundText)
}

func TestGetEventsOrderingTieBreak(t *testing.T) {
	s := newTestStore(t)
	key := ids.SessionKey("agent:default:channel:telegram:account:b1:dm:u42")
	ts := time.Now().UTC()

	// Two events sharing the same timestamp must sort by event-id hex.
	a, err := NewEvent(key, "default", ts, KindStateChanged, StateChanged{Key: "a", Value: []byte(`1`)})
	require.NoError(t, err)
	b, err := NewEvent(key, "default", ts, KindStateChanged, StateChanged{Key: "b", Value: []byte(`2`)})
	require.NoError(t, err)

	_, err = s.Append(b)
	require.NoError(t, err)
	_, err = s.Append(a)
	require.NoError(t, err)

	events, err := s.GetEvents(key)
	require.NoError(t, err)
	require.Len(t, events, 2)
	if a.ID.Less(b.ID) {
		require.Equal(t, a.ID, events[0].ID)
	} else {
		require.Equal(t, b.ID, events[0].ID)
	}
}

func TestProjectionMergeIdempotentAndCommutative(t *testing.T) {
	key := ids.SessionKey("agent:default:channel:telegram:account:b1:dm:u42")
	p := NewProjection(key, "default")
	p.MessageCount = 3
	p.LastActivity = time.Now()

	require.Equal(t, p, Merge(p, p))

	q := p
	q.Messages = append([]ProjectedMessage{}, p.Messages...)
	merged1 := Merge(p, q)
	merged2 := Merge(q, p)
	require.Equal(t, merged1.State, merged2.State)
	require.Equal(t, merged1.LastActivity, merged2.LastActivity)
}

func TestConcurrentAppendSameSessionSerializes(t *testing.T) {
	s := newTestStore(t)
	key := ids.SessionKey("agent:default:channel:telegram:account:b1:dm:u42")

	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		i := i
		go func() {
			ev, err := NewEvent(key, "default", time.Now().Add(time.Duration(i)*time.Millisecond), KindMessageReceived, MessageReceived{Content: "m"})
			if err != nil {
				done <- err
				return
			}
			_, err = s.Append(ev)
			done <- err
		}()
	}
	require.NoError(t, <-done)
	require.NoError(t, <-done)

	events, err := s.GetEvents(key)
	require.NoError(t, err)
	require.Len(t, events, 2)

	proj, err := s.GetProjection(key)
	require.NoError(t, err)
	require.EqualValues(t, 2, proj.MessageCount)
}
