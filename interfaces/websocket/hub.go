// Package websocket streams workspace events to browser clients.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrBroadcastFull is returned when the hub cannot keep up with events
var ErrBroadcastFull = errors.New("broadcast channel full, message dropped")

// Message is the envelope of everything sent to clients
type Message struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// HubMetrics tracks WebSocket metrics
type HubMetrics struct {
	ActiveConnections int64
	MessagesSent      int64
	MessagesFailed    int64
}

// Hub maintains active WebSocket connections and fans messages out to all
// of them
type Hub struct {
	clients map[*Client]bool
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	logger  *zap.Logger
	onCount func(int)

	metrics   HubMetrics
	metricsMu sync.Mutex
}

// NewHub creates a new WebSocket hub. onCount, if set, is called with the
// number of connected clients whenever it changes.
func NewHub(logger *zap.Logger, onCount func(int)) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client, 100),
		unregister: make(chan *Client, 100),
		broadcast:  make(chan []byte, 1000),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		logger:     logger,
		onCount:    onCount,
	}
}

// Run starts the hub's main event loop
func (h *Hub) Run() {
	defer close(h.done)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("Hub shutting down")
			h.closeAllConnections()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastToAll(message)

		case <-ticker.C:
			h.logger.Debug("Hub status", zap.Int("clients", h.ClientCount()))
		}
	}
}

// Stop shuts the hub down and waits for Run to return
func (h *Hub) Stop() {
	h.logger.Info("Stopping WebSocket hub")
	h.cancel()
	<-h.done
}

// Broadcast queues a message for every connected client. It never blocks;
// when the queue is full the message is dropped and ErrBroadcastFull
// returned.
func (h *Hub) Broadcast(messageType string, data interface{}) error {
	payload, err := encode(messageType, data)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- payload:
		return nil
	default:
		h.countFailed(1)
		return ErrBroadcastFull
	}
}

func encode(messageType string, data interface{}) ([]byte, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal data: %w", err)
		}
		raw = b
	}
	return json.Marshal(Message{Type: messageType, Data: raw, Timestamp: time.Now().UnixMilli()})
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	n := len(h.clients)
	h.mu.Unlock()

	h.metricsMu.Lock()
	h.metrics.ActiveConnections = int64(n)
	h.metricsMu.Unlock()
	if h.onCount != nil {
		h.onCount(n)
	}

	h.logger.Info("Client registered",
		zap.String("connectionID", client.id),
		zap.Int("connections", n),
	)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	close(client.send)
	n := len(h.clients)
	h.mu.Unlock()

	h.metricsMu.Lock()
	h.metrics.ActiveConnections = int64(n)
	h.metricsMu.Unlock()
	if h.onCount != nil {
		h.onCount(n)
	}

	h.logger.Info("Client unregistered",
		zap.String("connectionID", client.id),
		zap.Int("remainingConnections", n),
	)
}

func (h *Hub) broadcastToAll(message []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	sent, failed := 0, 0
	for _, client := range clients {
		select {
		case client.send <- message:
			sent++
		default:
			failed++
			h.logger.Warn("Closing slow client", zap.String("connectionID", client.id))
			go func(c *Client) {
				select {
				case h.unregister <- c:
				case <-h.ctx.Done():
				}
				c.conn.Close()
			}(client)
		}
	}

	h.metricsMu.Lock()
	h.metrics.MessagesSent += int64(sent)
	h.metrics.MessagesFailed += int64(failed)
	h.metricsMu.Unlock()
}

func (h *Hub) countFailed(n int) {
	h.metricsMu.Lock()
	h.metrics.MessagesFailed += int64(n)
	h.metricsMu.Unlock()
}

func (h *Hub) closeAllConnections() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		client.conn.Close()
		delete(h.clients, client)
	}
	if h.onCount != nil {
		h.onCount(0)
	}
	h.logger.Info("All connections closed")
}

// GetMetrics returns current hub metrics
func (h *Hub) GetMetrics() HubMetrics {
	h.metricsMu.Lock()
	defer h.metricsMu.Unlock()
	return h.metrics
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
