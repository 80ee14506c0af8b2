package server

import (
	"sync"
	"sync/atomic"

	"github.com/ryawaa/twinkle/src/logger"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// Hub tracks connected ticker clients. Each client owns its subscription, so
// the hub only handles membership and shutdown.
type Hub struct {
	Logger *logger.Logger

	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	quit       chan struct{}
	done       chan struct{}
	stopOnce   sync.Once
	count      atomic.Int64
}

// -----------------------------------------------------------------------------

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		Logger:     log,
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// -----------------------------------------------------------------------------

// Run is the main Hub loop
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.count.Store(int64(len(h.clients)))
			h.Logger.Debug("Client registered (%d connected)", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.closeSend()
			}
			h.count.Store(int64(len(h.clients)))

		case <-h.quit:
			for client := range h.clients {
				delete(h.clients, client)
				client.closeSend()
			}
			h.count.Store(0)
			return
		}
	}
}

// -----------------------------------------------------------------------------

// Register adds a client; false once the hub is stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.quit:
		return false
	}
}

// -----------------------------------------------------------------------------

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

// -----------------------------------------------------------------------------

// Stop closes every client's send queue and ends Run.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}

// -----------------------------------------------------------------------------

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// -----------------------------------------------------------------------------

func (h *Hub) Count() int {
	return int(h.count.Load())
}
