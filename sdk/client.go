// Package sdk provides a WebSocket client for the heads-up server,
// used by the bundled bot and by external bot authors.
package sdk

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/cardroom/headsup/internal/protocol"
)

// EventHandler is a function that handles an incoming envelope.
type EventHandler func(*protocol.Envelope)

// Client is a WebSocket client for the game server. Handlers are
// dispatched from a single read loop; sends are serialized by a
// write mutex.
type Client struct {
	serverURL string
	logger    *log.Logger

	mu        sync.RWMutex
	writeMu   sync.Mutex
	conn      *websocket.Conn
	handlers  map[protocol.MessageType][]EventHandler
	connected bool
	stopChan  chan struct{}
}

// NewClient creates a client for the given server URL. http/https
// schemes are rewritten to ws/wss.
func NewClient(serverURL string, logger *log.Logger) *Client {
	return &Client{
		serverURL: serverURL,
		logger:    logger,
		handlers:  make(map[protocol.MessageType][]EventHandler),
	}
}

// Connect dials the server and starts the read loop.
func (c *Client) Connect() error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		u.Scheme = "ws"
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}

	c.logger.Info("connecting", "url", u.String())
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.stopChan = make(chan struct{})
	c.mu.Unlock()

	go c.readLoop()
	return nil
}

// Disconnect closes the connection gracefully.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}
	c.connected = false
	close(c.stopChan)

	if c.conn != nil {
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return c.conn.Close()
	}
	return nil
}

// IsConnected reports whether the client holds a live connection.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// On registers a handler for a message type. Handlers run on the
// read loop goroutine in registration order.
func (c *Client) On(messageType protocol.MessageType, handler EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[messageType] = append(c.handlers[messageType], handler)
}

// Send marshals a payload into an envelope and writes it.
func (c *Client) Send(messageType protocol.MessageType, payload interface{}) error {
	env, err := protocol.NewEnvelope(messageType, payload)
	if err != nil {
		return err
	}

	c.mu.RLock()
	conn, connected := c.conn, c.connected
	c.mu.RUnlock()
	if !connected || conn == nil {
		return fmt.Errorf("not connected")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(env)
}

// Join requests a seat, or reclaims one when playerID is non-empty.
func (c *Client) Join(name, playerID string) error {
	return c.Send(protocol.TypeJoin, protocol.JoinPayload{Name: name, PlayerID: playerID})
}

// Act answers an action request.
func (c *Client) Act(handID, action string, amount int) error {
	return c.Send(protocol.TypeAction, protocol.ActionPayload{
		HandID: handID,
		Action: action,
		Amount: amount,
	})
}

// TopUp asks the server to refill the stack between hands.
func (c *Client) TopUp() error {
	return c.Send(protocol.TypeTopUp, protocol.TopUpPayload{})
}

// Ping sends an application-level ping.
func (c *Client) Ping() error {
	return c.Send(protocol.TypePing, protocol.PingPayload{})
}

func (c *Client) readLoop() {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
	}()

	for {
		select {
		case <-c.stopChan:
			return
		default:
		}

		var env protocol.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket error", "error", err)
			}
			return
		}
		c.dispatch(&env)
	}
}

func (c *Client) dispatch(env *protocol.Envelope) {
	c.mu.RLock()
	handlers := append([]EventHandler(nil), c.handlers[env.Type]...)
	c.mu.RUnlock()

	for _, handler := range handlers {
		handler(env)
	}
}
