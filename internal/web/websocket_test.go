package web

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"argus/internal/metrics"
)

func newTestClient(h *Hub, topic string, buffer int) *WSClient {
	client := &WSClient{
		send:  make(chan WSMessage, buffer),
		topic: topic,
		hub:   h,
	}
	h.register(topic, client)
	return client
}

func TestHub_BroadcastReachesAllSubscribers(t *testing.T) {
	h := NewHub(metrics.NewCollector())

	a := newTestClient(h, "sla_monitoring", 4)
	b := newTestClient(h, "sla_monitoring", 4)
	other := newTestClient(h, "other", 4)

	require.Equal(t, 2, h.ConnectionCount("sla_monitoring"))
	require.Equal(t, 1, h.ConnectionCount("other"))

	h.Broadcast("sla_monitoring", map[string]string{"hello": "world"})

	for _, client := range []*WSClient{a, b} {
		select {
		case msg := <-client.send:
			assert.Equal(t, "update", msg.Type)
		default:
			t.Fatal("subscriber did not receive broadcast")
		}
	}
	assert.Empty(t, other.send)
}

func TestHub_SlowSubscriberDropped(t *testing.T) {
	h := NewHub(metrics.NewCollector())

	slow := newTestClient(h, "sla_monitoring", 1)
	fast := newTestClient(h, "sla_monitoring", 4)

	// Fill the slow client's queue, then broadcast again
	h.Broadcast("sla_monitoring", "first")
	h.Broadcast("sla_monitoring", "second")

	assert.Equal(t, 1, h.ConnectionCount("sla_monitoring"))

	// The dropped client's channel is closed
	<-slow.send
	_, open := <-slow.send
	assert.False(t, open)

	assert.Len(t, fast.send, 2)
}

func TestHub_UnregisterIsIdempotent(t *testing.T) {
	h := NewHub(metrics.NewCollector())

	client := newTestClient(h, "sla_monitoring", 1)
	h.unregister("sla_monitoring", client)
	h.unregister("sla_monitoring", client)

	assert.Equal(t, 0, h.ConnectionCount("sla_monitoring"))

	// Broadcasting to an empty topic is a no-op
	h.Broadcast("sla_monitoring", "anyone there")
}

func TestHub_ConnectionCountUnknownTopic(t *testing.T) {
	h := NewHub(metrics.NewCollector())
	assert.Equal(t, 0, h.ConnectionCount("ghost"))
}
