package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ServerConfig holds WebSocket server configuration
type ServerConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
	MaxConnections  int
	// Snapshot, if set, produces the state sent to a client right after it
	// connects
	Snapshot func() interface{}
}

// DefaultServerConfig returns default WebSocket server configuration
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		MaxConnections:  1000,
	}
}

// Server upgrades HTTP requests and hands the connections to the hub
type Server struct {
	hub      *Hub
	upgrader websocket.Upgrader
	config   *ServerConfig
	logger   *zap.Logger
}

// NewServer creates a new WebSocket server
func NewServer(hub *Hub, config *ServerConfig, logger *zap.Logger) *Server {
	if config == nil {
		config = DefaultServerConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config: config,
		logger: logger,
	}
}

// ServeHTTP handles WebSocket upgrade requests
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.config.MaxConnections > 0 && s.hub.ClientCount() >= s.config.MaxConnections {
		s.logger.Warn("Connection limit exceeded", zap.Int("currentConnections", s.hub.ClientCount()))
		http.Error(w, "Connection limit exceeded", http.StatusTooManyRequests)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Failed to upgrade connection",
			zap.Error(err),
			zap.String("remoteAddr", r.RemoteAddr),
		)
		return
	}

	client := NewClient(s.hub, conn, s.logger)
	welcome, err := s.welcome(client)
	if err != nil {
		s.logger.Error("Failed to encode welcome message", zap.Error(err))
	}
	client.Start(welcome)

	s.logger.Info("New WebSocket connection established",
		zap.String("connectionID", client.id),
		zap.String("remoteAddr", r.RemoteAddr),
	)
}

func (s *Server) welcome(c *Client) ([]byte, error) {
	if s.config.Snapshot == nil {
		return encode(TypeConnectionEstablished, map[string]string{"connectionId": c.id})
	}
	return encode(TypeSnapshot, map[string]interface{}{
		"connectionId": c.id,
		"graph":        s.config.Snapshot(),
	})
}

// Hub returns the WebSocket hub
func (s *Server) Hub() *Hub {
	return s.hub
}
