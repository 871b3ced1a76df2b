package server

import (
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/praxislabs/praxis/internal/bus"
)

func dialEvents(t *testing.T, f *testServer) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/api/events"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) bus.Event {
	t.Helper()

	var e bus.Event
	require.NoError(t, conn.ReadJSON(&e))
	return e
}

// waitSubscribed blocks until the stream handler has registered its bus
// subscription, so a subsequent publish cannot race past it.
func waitSubscribed(t *testing.T, f *testServer, before int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f.bus.Subscribers() > before {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("event stream never subscribed to the bus")
}

func TestEventStreamBackfillsHistory(t *testing.T) {
	f := newTestServer(t)

	early := bus.NewEvent(bus.EventMoodAppended, "mentor")
	early.MoodValue = 25
	early.Reason = "seeded before any client connected"
	require.NoError(t, f.bus.Publish(early))

	later := bus.NewEvent(bus.EventCacheHit, "mentor")
	require.NoError(t, f.bus.Publish(later))

	conn := dialEvents(t, f)

	first := readEvent(t, conn)
	require.Equal(t, bus.EventMoodAppended, first.Type)
	require.Equal(t, 25, first.MoodValue)
	require.Equal(t, early.ID, first.ID)

	second := readEvent(t, conn)
	require.Equal(t, bus.EventCacheHit, second.Type)
	require.Equal(t, later.ID, second.ID)
}

func TestEventStreamDeliversLiveEvents(t *testing.T) {
	f := newTestServer(t)

	before := f.bus.Subscribers()
	conn := dialEvents(t, f)
	waitSubscribed(t, f, before)

	live := bus.NewEvent(bus.EventDriftDetected, "mentor")
	live.DriftScore = 62
	live.Detail = "volatility crossed the patrol threshold"
	require.NoError(t, f.bus.Publish(live))

	e := readEvent(t, conn)
	require.Equal(t, bus.EventDriftDetected, e.Type)
	require.Equal(t, "mentor", e.PersonaID)
	require.Equal(t, 62, e.DriftScore)
}

func TestEventStreamSurvivesClientDisconnect(t *testing.T) {
	f := newTestServer(t)

	before := f.bus.Subscribers()
	conn := dialEvents(t, f)
	waitSubscribed(t, f, before)
	require.NoError(t, conn.Close())

	// The handler should notice the close and drop its subscription.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f.bus.Subscribers() == before {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("subscription still registered after disconnect: %d", f.bus.Subscribers())
}
