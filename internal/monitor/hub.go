package monitor

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub serves progress events to websocket clients. New clients receive the
// latest event on connect.
type Hub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[*websocket.Conn]*sync.Mutex
	last    *Event

	server *http.Server
}

// NewHub creates an empty hub. A nil logger uses slog.Default().
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:  logger,
		clients: make(map[*websocket.Conn]*sync.Mutex),
	}
}

// Handler returns a mux serving the hub at /progress.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/progress", h)
	return mux
}

// Listen starts serving on addr in the background and returns the bound address.
func (h *Hub) Listen(addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}
	h.server = &http.Server{Handler: h.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("progress server stopped", "error", err)
		}
	}()
	h.logger.Info("progress server listening", "addr", ln.Addr().String(), "path", "/progress")
	return ln.Addr().String(), nil
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	connMutex := &sync.Mutex{}
	h.mu.Lock()
	h.clients[conn] = connMutex
	last := h.last
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	if last != nil {
		connMutex.Lock()
		err := conn.WriteJSON(last)
		connMutex.Unlock()
		if err != nil {
			return
		}
	}

	// Clients only listen; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish broadcasts e to every client and drops those that fail.
func (h *Hub) Publish(e Event) error {
	h.mu.Lock()
	h.last = &e
	h.mu.Unlock()

	h.mu.RLock()
	var failed []*websocket.Conn
	for client, mutex := range h.clients {
		mutex.Lock()
		err := client.WriteJSON(e)
		mutex.Unlock()
		if err != nil {
			h.logger.Debug("websocket write failed", "error", err)
			client.Close()
			failed = append(failed, client)
		}
	}
	h.mu.RUnlock()

	if len(failed) > 0 {
		h.mu.Lock()
		for _, client := range failed {
			delete(h.clients, client)
		}
		h.mu.Unlock()
	}
	return nil
}

// Close disconnects all clients and stops the server if Listen started one.
func (h *Hub) Close() error {
	h.mu.Lock()
	for client := range h.clients {
		client.Close()
		delete(h.clients, client)
	}
	h.mu.Unlock()

	if h.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return h.server.Shutdown(ctx)
}
