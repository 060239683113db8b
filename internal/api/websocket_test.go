package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/smarthome-core/internal/infrastructure/config"
	"github.com/nerrad567/smarthome-core/internal/infrastructure/logging"
)

func dialWS(t *testing.T, srv *Server, query string) *websocket.Conn {
	t.Helper()

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for srv.Hub().ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func readWS(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()

	//nolint:errcheck // Test deadline
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	return f
}

func TestWebSocket_BroadcastToSubscribers(t *testing.T) {
	srv := testServer(t)
	conn := dialWS(t, srv, "?channel="+ChannelDeviceState)

	srv.Hub().Broadcast("other.channel", map[string]string{"x": "y"})
	srv.Hub().Broadcast(ChannelDeviceState, map[string]string{"device": "kettle"})

	f := readWS(t, conn)
	if f.Type != frameEvent || f.Channel != ChannelDeviceState {
		t.Fatalf("frame = %+v, want device state event", f)
	}
	var data map[string]string
	if err := json.Unmarshal(f.Data, &data); err != nil || data["device"] != "kettle" {
		t.Errorf("data = %s (err %v)", f.Data, err)
	}
}

func TestWebSocket_Frames(t *testing.T) {
	srv := testServer(t)
	conn := dialWS(t, srv, "")

	send := func(f frame) {
		t.Helper()
		if err := conn.WriteJSON(f); err != nil {
			t.Fatalf("WriteJSON: %v", err)
		}
	}

	send(frame{Type: frameSubscribe, ID: "1", Channels: []string{ChannelDeviceState}})
	if f := readWS(t, conn); f.Type != frameAck || f.ID != "1" {
		t.Fatalf("subscribe reply = %+v, want ack", f)
	}

	srv.Hub().Broadcast(ChannelDeviceState, "changed")
	if f := readWS(t, conn); f.Channel != ChannelDeviceState {
		t.Errorf("event = %+v", f)
	}

	send(frame{Type: framePing, ID: "2"})
	if f := readWS(t, conn); f.Type != framePong || f.ID != "2" {
		t.Errorf("ping reply = %+v, want pong", f)
	}

	send(frame{Type: "dance", ID: "3"})
	if f := readWS(t, conn); f.Type != frameError || f.ID != "3" {
		t.Errorf("unknown type reply = %+v, want error", f)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	if f := readWS(t, conn); f.Type != frameError {
		t.Errorf("malformed frame reply = %+v, want error", f)
	}

	// After unsubscribing, the next frame must be the pong, not the event.
	send(frame{Type: frameUnsubscribe, ID: "4", Channels: []string{ChannelDeviceState}})
	if f := readWS(t, conn); f.Type != frameAck || f.ID != "4" {
		t.Fatalf("unsubscribe reply = %+v, want ack", f)
	}
	srv.Hub().Broadcast(ChannelDeviceState, "ignored")
	send(frame{Type: framePing, ID: "5"})
	if f := readWS(t, conn); f.Type != framePong || f.ID != "5" {
		t.Errorf("frame after unsubscribe = %+v, want pong", f)
	}
}

func TestHub_RunClosesClients(t *testing.T) {
	srv := testServer(t)
	conn := dialWS(t, srv, "?channel="+ChannelDeviceState)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.Hub().Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if n := srv.Hub().ClientCount(); n != 0 {
		t.Errorf("ClientCount() = %d after Run, want 0", n)
	}

	//nolint:errcheck // Test deadline
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	// Broadcasting after shutdown must not panic on a closed queue.
	srv.Hub().Broadcast(ChannelDeviceState, "late")
}

func TestNewHub_Defaults(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, logging.Discard())
	if hub.cfg.PingInterval <= 0 || hub.cfg.PongTimeout <= 0 || hub.cfg.MaxMessageSize <= 0 {
		t.Errorf("cfg = %+v, want defaults applied", hub.cfg)
	}
}
