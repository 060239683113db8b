package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/smarthome-core/internal/infrastructure/config"
	"github.com/nerrad567/smarthome-core/internal/infrastructure/logging"
)

// ChannelDeviceState carries bridge.StateEvent payloads.
const ChannelDeviceState = "device.state_changed"

// Frame types. Clients send subscribe, unsubscribe and ping; the server
// sends event, ack, pong and error.
const (
	frameSubscribe   = "subscribe"
	frameUnsubscribe = "unsubscribe"
	framePing        = "ping"
	frameEvent       = "event"
	frameAck         = "ack"
	framePong        = "pong"
	frameError       = "error"
)

const (
	streamQueueSize = 256

	defaultWSMaxMessageSize = 8192
	defaultWSPingInterval   = 30
	defaultWSPongTimeout    = 10
)

// frame is the JSON envelope exchanged with stream clients.
type frame struct {
	Type     string          `json:"type"`
	ID       string          `json:"id,omitempty"`
	Channel  string          `json:"channel,omitempty"`
	Time     string          `json:"time,omitempty"`
	Channels []string        `json:"channels,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// Hub fans state events out to connected WebSocket clients.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	streams map[*stream]struct{}
}

// stream is one connected client. queue is closed exactly once, by
// whichever of detach or closeAll removes the stream from the hub.
type stream struct {
	hub   *Hub
	conn  *websocket.Conn
	queue chan []byte

	mu       sync.RWMutex
	channels map[string]bool
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The CORS middleware decides which origins reach the handler.
	CheckOrigin: func(*http.Request) bool { return true },
}

// NewHub creates a hub. Zero config fields take defaults.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultWSMaxMessageSize
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultWSPingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = defaultWSPongTimeout
	}
	return &Hub{cfg: cfg, logger: logger, streams: make(map[*stream]struct{})}
}

// Run blocks until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Broadcast queues an event for every client subscribed to channel.
// A client whose queue is full misses the event.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("websocket payload not serialisable", "channel", channel, "error", err)
		return
	}
	msg, err := json.Marshal(frame{
		Type:    frameEvent,
		Channel: channel,
		Time:    time.Now().UTC().Format(time.RFC3339Nano),
		Data:    data,
	})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.streams {
		if s.subscribed(channel) {
			s.offer(msg)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.streams)
}

func (h *Hub) attach(s *stream) {
	h.mu.Lock()
	h.streams[s] = struct{}{}
	n := len(h.streams)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

func (h *Hub) detach(s *stream) {
	h.mu.Lock()
	_, ok := h.streams[s]
	delete(h.streams, s)
	if ok {
		close(s.queue)
	}
	n := len(h.streams)
	h.mu.Unlock()
	h.logger.Debug("websocket client disconnected", "clients", n)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.streams {
		delete(h.streams, s)
		close(s.queue)
		s.conn.Close()
	}
}

// handleWebSocket upgrades the connection and streams events. Clients may
// subscribe up front with ?channel=... (repeatable) or later with a
// subscribe frame.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	initial := r.URL.Query()["channel"]

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	st := &stream{
		hub:      s.hub,
		conn:     conn,
		queue:    make(chan []byte, streamQueueSize),
		channels: make(map[string]bool, len(initial)),
	}
	for _, ch := range initial {
		st.channels[ch] = true
	}

	s.hub.attach(st)
	go st.writeLoop()
	go st.readLoop()
}

func (s *stream) readLoop() {
	defer func() {
		s.hub.detach(s)
		s.conn.Close()
	}()

	cfg := s.hub.cfg
	idle := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	s.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	//nolint:errcheck // A failed deadline surfaces as a read error
	s.conn.SetReadDeadline(time.Now().Add(idle))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(idle))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.hub.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		//nolint:errcheck // A failed deadline surfaces as a read error
		s.conn.SetReadDeadline(time.Now().Add(idle))
		s.handle(data)
	}
}

func (s *stream) writeLoop() {
	cfg := s.hub.cfg
	ping := time.NewTicker(time.Duration(cfg.PingInterval) * time.Second)
	defer func() {
		ping.Stop()
		s.conn.Close()
	}()
	writeWait := time.Duration(cfg.PongTimeout) * time.Second

	for {
		var (
			kind int
			data []byte
		)
		select {
		case msg, ok := <-s.queue:
			if !ok {
				//nolint:errcheck // Connection is going away regardless
				s.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			kind, data = websocket.TextMessage, msg
		case <-ping.C:
			kind = websocket.PingMessage
		}

		//nolint:errcheck // A failed deadline surfaces as a write error
		s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := s.conn.WriteMessage(kind, data); err != nil {
			return
		}
	}
}

func (s *stream) handle(data []byte) {
	var in frame
	if err := json.Unmarshal(data, &in); err != nil {
		s.reply(frame{Type: frameError, Error: "invalid JSON frame"})
		return
	}

	switch in.Type {
	case frameSubscribe, frameUnsubscribe:
		on := in.Type == frameSubscribe
		s.mu.Lock()
		for _, ch := range in.Channels {
			if on {
				s.channels[ch] = true
			} else {
				delete(s.channels, ch)
			}
		}
		s.mu.Unlock()
		s.reply(frame{Type: frameAck, ID: in.ID, Channels: in.Channels})
	case framePing:
		s.reply(frame{Type: framePong, ID: in.ID})
	default:
		s.reply(frame{Type: frameError, ID: in.ID, Error: "unknown frame type " + in.Type})
	}
}

func (s *stream) subscribed(channel string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.channels[channel]
}

func (s *stream) reply(f frame) {
	f.Time = time.Now().UTC().Format(time.RFC3339Nano)
	msg, err := json.Marshal(f)
	if err != nil {
		return
	}

	// detach closes queue under the hub lock; holding it here keeps a
	// reply from racing that close.
	s.hub.mu.RLock()
	defer s.hub.mu.RUnlock()
	if _, ok := s.hub.streams[s]; ok {
		s.offer(msg)
	}
}

// offer queues msg without blocking. Caller holds hub.mu.
func (s *stream) offer(msg []byte) {
	select {
	case s.queue <- msg:
	default:
	}
}
