package broadcast

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBroadcastDeliversInOrder(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	defer sub.Unsubscribe()

	_, n := b.Broadcast(Event{Type: EventHeartbeat})
	require.Equal(t, 1, n)
	_, n = b.Broadcast(Event{Type: EventMessageSent})
	require.Equal(t, 1, n)

	first := <-sub.C
	require.NotNil(t, first.Envelope)
	require.Equal(t, EventHeartbeat, first.Envelope.Event.Type)

	second := <-sub.C
	require.NotNil(t, second.Envelope)
	require.Equal(t, EventMessageSent, second.Envelope.Event.Type)
}

func TestSlowSubscriberGetsLagged(t *testing.T) {
	b := NewWithBacklog(2)
	sub := b.Subscribe()
	defer sub.Unsubscribe()

	for i := 0; i < 5; i++ {
		b.Broadcast(Event{Type: EventHeartbeat})
	}

	var sawLag bool
	for i := 0; i < 3; i++ {
		item := <-sub.C
		if item.Lagged != nil {
			sawLag = true
		}
	}
	require.True(t, sawLag)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	require.Equal(t, 1, b.Len())
	sub.Unsubscribe()
	require.Equal(t, 0, b.Len())

	_, n := b.Broadcast(Event{Type: EventHeartbeat})
	require.Equal(t, 0, n)
}
