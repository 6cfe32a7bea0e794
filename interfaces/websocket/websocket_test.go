package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	appevents "github.com/frenb/accelent/application/events"
	"github.com/frenb/accelent/domain/core/valueobjects"
	"github.com/frenb/accelent/domain/events"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T, cfg *ServerConfig) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(nil, nil)
	go hub.Run()
	srv := httptest.NewServer(NewServer(hub, cfg, nil))
	t.Cleanup(func() {
		srv.Close()
		hub.Stop()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestServer_WelcomeMessage(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *ServerConfig
		wantType string
	}{
		{name: "plain", cfg: nil, wantType: TypeConnectionEstablished},
		{
			name: "with snapshot",
			cfg: &ServerConfig{Snapshot: func() interface{} {
				return map[string]int{"version": 7}
			}},
			wantType: TypeSnapshot,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, srv := startHub(t, tt.cfg)
			conn := dial(t, srv)

			msg := readMessage(t, conn)
			assert.Equal(t, tt.wantType, msg.Type)
			assert.Contains(t, string(msg.Data), "connectionId")
			if tt.wantType == TypeSnapshot {
				assert.Contains(t, string(msg.Data), `"version":7`)
			}
		})
	}
}

func TestBroadcaster_ForwardsBusEvents(t *testing.T) {
	hub, srv := startHub(t, nil)
	conn := dial(t, srv)
	readMessage(t, conn)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	bus := appevents.NewBus(nil)
	defer NewBroadcaster(hub, nil).Attach(bus)()

	id := valueobjects.NewNodeID()
	bus.Publish(context.Background(), events.NewNodeOutputChanged(id, nil, time.Now()))

	msg := readMessage(t, conn)
	assert.Equal(t, events.TypeNodeOutputChanged, msg.Type)

	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Equal(t, id.String(), data["node_id"])

	assert.Eventually(t, func() bool { return hub.GetMetrics().MessagesSent == 1 }, time.Second, 10*time.Millisecond)
}

func TestServer_ConnectionLimit(t *testing.T) {
	hub, srv := startHub(t, &ServerConfig{MaxConnections: 1})
	dial(t, srv)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 429, resp.StatusCode)
}

func TestHub_UnregistersClosedClients(t *testing.T) {
	hub, srv := startHub(t, nil)
	conn := dial(t, srv)
	readMessage(t, conn)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	conn.Close()

	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
