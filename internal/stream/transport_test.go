package stream

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebSocketTransport_DeliversAndPings(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	pings := make(chan string, 1)
	queries := make(chan string, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries <- r.URL.Query().Get("workspace_id")
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		_ = ws.WriteMessage(websocket.TextMessage,
			[]byte(`{"type":"cycle.started","workspace_id":"w1","data":{"cycle_id":3}}`))
		_, msg, err := ws.ReadMessage()
		if err == nil {
			pings <- string(msg)
		}
	}))
	defer srv.Close()

	endpoint, err := EndpointURL(srv.URL, "/ws/events", "w1")
	require.NoError(t, err)

	ch := NewChannel(&WebSocketTransport{}, endpoint, WithBackoff(1, time.Hour))
	got := make(chan Event, 1)
	ch.Subscribe(func(ev Event) { got <- ev })
	ch.Connect()
	defer ch.Disconnect()

	select {
	case ev := <-got:
		assert.Equal(t, CycleStarted{CycleID: 3}, ev.Payload)
	case <-time.After(5 * time.Second):
		t.Fatal("no event received")
	}
	assert.Equal(t, "w1", <-queries)

	ch.Ping()
	select {
	case msg := <-pings:
		assert.JSONEq(t, `{"type":"ping"}`, msg)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not receive ping")
	}
}

func TestWebSocketTransport_DialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	tr := &WebSocketTransport{}
	_, err := tr.Dial(t.Context(), "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/events")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

// startTestNATS starts an embedded NATS server and returns it with its client URL.
func startTestNATS(t *testing.T) (*natsserver.Server, string) {
	t.Helper()
	opts := &natsserver.Options{Host: "127.0.0.1", Port: -1}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv, srv.ClientURL()
}

func TestNATSTransport_ReceivesEvents(t *testing.T) {
	_, url := startTestNATS(t)
	subject := NATSSubject("w1")

	ch := NewChannel(&NATSTransport{URL: url}, subject, WithBackoff(1, time.Hour))
	got := make(chan Event, 4)
	ch.Subscribe(func(ev Event) { got <- ev })
	ch.Connect()
	defer ch.Disconnect()

	require.Eventually(t, func() bool { return ch.State() == StateOpen }, 5*time.Second, 10*time.Millisecond)

	pub, err := nats.Connect(url)
	require.NoError(t, err)
	defer pub.Close()

	raw, err := Encode(Event{WorkspaceID: "w1", Payload: NodeUpdated{NodeID: "n1", NewConfidence: 0.8}})
	require.NoError(t, err)
	require.NoError(t, pub.Publish(subject, raw))
	require.NoError(t, pub.Publish(subject, []byte("garbage")))
	require.NoError(t, pub.Publish(subject, raw))

	for i := 0; i < 2; i++ {
		select {
		case ev := <-got:
			assert.Equal(t, NodeUpdated{NodeID: "n1", NewConfidence: 0.8}, ev.Payload)
		case <-time.After(5 * time.Second):
			t.Fatalf("no event %d received", i)
		}
	}
}

func TestNATSTransport_ServerShutdownSchedulesReconnect(t *testing.T) {
	srv, url := startTestNATS(t)

	ch := NewChannel(&NATSTransport{URL: url}, NATSSubject(""), WithBackoff(2, time.Hour))
	ch.Connect()
	defer ch.Disconnect()
	require.Eventually(t, func() bool { return ch.State() == StateOpen }, 5*time.Second, 10*time.Millisecond)

	srv.Shutdown()
	require.Eventually(t, func() bool { return ch.State() == StateReconnectScheduled }, 5*time.Second, 10*time.Millisecond)
}
