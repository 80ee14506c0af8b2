package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/ryawaa/twinkle/src/models"
	"github.com/ryawaa/twinkle/src/ticker"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	writeWait      = 2 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024 // control frames only
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------
// Client Structure
// -----------------------------------------------------------------------------

// Client is one browser connection and the ticker subscription it drives.
type Client struct {
	server *Server
	conn   *websocket.Conn
	sub    *ticker.Subscription
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	send   chan models.MTickerEvent
	closed bool
}

// -----------------------------------------------------------------------------

func (s *Server) handleTickerSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := s.newClient(conn)
	if !s.Hub.Register(client) {
		client.cancel()
		conn.Close()
		return
	}

	// Start goroutines for reading/writing
	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------

func (s *Server) newClient(conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		server: s,
		conn:   conn,
		ctx:    ctx,
		cancel: cancel,
		send:   make(chan models.MTickerEvent, s.Config.Ticker.SendBuffer),
	}

	url, err := s.deps.Sparkle.TradesURL()
	if err != nil {
		s.Logger.Error("Invalid trade socket url: %v", err)
	}

	opts := ticker.Options{
		URL:        url,
		Dialer:     s.deps.Dialer,
		Bridge:     s.deps.Bridge,
		Quotes:     s.deps.Sparkle,
		Store:      s.deps.Store,
		Conditions: s.conditions,
		OnEvent:    client.enqueue,
		Errors:     s.errHandler,
		Logger:     s.Logger.Named("Ticker"),
	}
	if s.deps.Markets != nil {
		opts.MarketOpen = s.deps.Markets.IsMarketOpen
	}
	client.sub = ticker.NewSubscription(opts)
	return client
}

// -----------------------------------------------------------------------------

// enqueue hands an event to the writer. A client that cannot keep up is
// disconnected.
func (c *Client) enqueue(event models.MTickerEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	select {
	case c.send <- event:
	default:
		c.server.Logger.Warning("Ticker client too slow, disconnecting")
		c.closed = true
		close(c.send)
	}
}

// -----------------------------------------------------------------------------

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// -----------------------------------------------------------------------------
// readPump - handles control frames from the browser
// -----------------------------------------------------------------------------

func (c *Client) readPump() {
	defer func() {
		c.cancel()
		c.server.Hub.Unregister(c)
		c.closeSend()
		c.sub.Close()
		c.conn.Close()
		c.server.Logger.Debug("Ticker client disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.Logger.Info("WebSocket error: %v", err)
			}
			break
		}
		c.handleControl(message)
	}
}

// -----------------------------------------------------------------------------

func (c *Client) handleControl(message []byte) {
	var cmd models.MControlMessage
	if err := json.Unmarshal(message, &cmd); err != nil {
		c.server.Logger.Info("Ignoring unparseable client frame: %v", err)
		return
	}

	switch cmd.Type {
	case models.ControlSubscribe:
		symbol := strings.TrimSpace(cmd.Symbol)
		if symbol == "" {
			c.enqueue(models.MTickerEvent{Type: models.FrameStatus, State: "error", Message: "Invalid symbol"})
			return
		}
		if err := c.sub.SetSymbol(c.ctx, symbol); err != nil {
			c.server.Logger.Debug("Subscribe to %s failed: %v", symbol, err)
		}
	case models.ControlUnsubscribe:
		c.sub.SetSymbol(c.ctx, "")
	default:
		c.server.Logger.Debug("Ignoring client frame of type %q", cmd.Type)
	}
}

// -----------------------------------------------------------------------------
// writePump - sends ticker events to the browser
// -----------------------------------------------------------------------------

func (c *Client) writePump() {
	pinger := time.NewTicker(pingPeriod)
	defer func() {
		pinger.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(event); err != nil {
				c.server.Logger.Info("Write error: %v", err)
				return
			}

		case <-pinger.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
