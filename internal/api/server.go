package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/smarthome-core/internal/bridge"
	"github.com/nerrad567/smarthome-core/internal/device"
	"github.com/nerrad567/smarthome-core/internal/history"
	"github.com/nerrad567/smarthome-core/internal/infrastructure/config"
	"github.com/nerrad567/smarthome-core/internal/infrastructure/logging"
	"github.com/nerrad567/smarthome-core/internal/location"
)

// gracefulShutdownTimeout bounds how long Close waits for in-flight requests.
const gracefulShutdownTimeout = 10 * time.Second

// defaultDeviceTimeout bounds device I/O made on behalf of a request.
const defaultDeviceTimeout = 5 * time.Second

// DeviceBuilder builds devices from specs. *device.Factory satisfies it.
type DeviceBuilder interface {
	Build(spec device.Spec) (device.Device, error)
}

// HistoryStore reads and purges device history. *history.SQLiteStore
// satisfies it.
type HistoryStore interface {
	List(ctx context.Context, room, device string, limit int) ([]history.Entry, error)
	DeleteDevice(ctx context.Context, room, device string) error
}

// Deps holds the server's dependencies. Bridge and History are optional.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Logger  *logging.Logger
	Home    *location.Home
	Factory DeviceBuilder
	Bridge  *bridge.Bridge
	History HistoryStore

	// DeviceTimeout bounds outlet I/O per request. Defaults to 5s.
	DeviceTimeout time.Duration
	Version       string
}

// Server is the HTTP API server.
type Server struct {
	cfg           config.APIConfig
	wsCfg         config.WebSocketConfig
	logger        *logging.Logger
	home          *location.Home
	factory       DeviceBuilder
	bridge        *bridge.Bridge
	history       HistoryStore
	deviceTimeout time.Duration
	version       string

	hub      *Hub
	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
}

// New creates a server. It does not listen until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Home == nil {
		return nil, fmt.Errorf("home is required")
	}
	if deps.Factory == nil {
		return nil, fmt.Errorf("device factory is required")
	}

	s := &Server{
		cfg:           deps.Config,
		wsCfg:         deps.WS,
		logger:        deps.Logger,
		home:          deps.Home,
		factory:       deps.Factory,
		bridge:        deps.Bridge,
		history:       deps.History,
		deviceTimeout: deps.DeviceTimeout,
		version:       deps.Version,
	}
	if s.deviceTimeout <= 0 {
		s.deviceTimeout = defaultDeviceTimeout
	}
	s.hub = NewHub(deps.WS, deps.Logger)

	if s.bridge != nil {
		s.bridge.OnState(func(ev bridge.StateEvent) {
			s.hub.Broadcast(ChannelDeviceState, ev)
		})
	}

	return s, nil
}

// Hub returns the server's WebSocket hub.
func (s *Server) Hub() *Hub { return s.hub }

// Handler returns the router without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the configured address and serves in the background. A bind
// failure is returned directly.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server started", "address", ln.Addr().String())
	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close waits up to 10 seconds for in-flight requests, then closes the
// listener and every WebSocket client.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports an error until Start has succeeded.
func (s *Server) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("api health check: %w", err)
	}
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
