package server

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"

	"github.com/cardroom/headsup/internal/protocol"
)

const (
	// Time allowed to write a frame to the peer
	writeWait = 10 * time.Second

	// Maximum frame size allowed from peer
	maxMessageSize = 8192
)

var ErrConnectionClosed = websocket.ErrCloseSent

// Connection wraps one WebSocket client. A single readPump feeds raw
// frames to the hub and a single writePump drains the send channel,
// so outbound frames never interleave.
type Connection struct {
	conn  *websocket.Conn
	send  chan *protocol.Envelope
	clock quartz.Clock

	pingInterval time.Duration
	pongTimeout  time.Duration

	onFrame      func(c *Connection, frame []byte)
	onDisconnect func(c *Connection)

	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	playerID  string
	closeOnce sync.Once
	discOnce  sync.Once
}

// NewConnection wraps an upgraded WebSocket. onFrame receives every
// inbound text frame; onDisconnect fires exactly once on any read,
// write or heartbeat failure.
func NewConnection(conn *websocket.Conn, logger *log.Logger, clock quartz.Clock,
	pingInterval, pongTimeout time.Duration,
	onFrame func(*Connection, []byte), onDisconnect func(*Connection)) *Connection {

	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		conn:         conn,
		send:         make(chan *protocol.Envelope, 256),
		clock:        clock,
		pingInterval: pingInterval,
		pongTimeout:  pongTimeout,
		onFrame:      onFrame,
		onDisconnect: onDisconnect,
		logger:       logger.WithPrefix("conn"),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start begins handling the connection.
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close tears the connection down. Safe to call more than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.send)
		err = c.conn.Close()
	})
	return err
}

// Send queues an envelope for delivery. A full buffer closes the
// connection rather than blocking the hub.
func (c *Connection) Send(env *protocol.Envelope) error {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Debug("send on closed connection", "error", r)
		}
	}()

	select {
	case c.send <- env:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		c.logger.Warn("send buffer full, closing connection", "player", c.PlayerID())
		_ = c.Close()
		return ErrConnectionClosed
	}
}

// SetPlayerID binds this connection to a player.
func (c *Connection) SetPlayerID(playerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playerID = playerID
}

// PlayerID returns the bound player id.
func (c *Connection) PlayerID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playerID
}

// readPump reads frames until the transport fails, then reports the
// disconnect. A pong extends the read deadline by one heartbeat cycle.
func (c *Connection) readPump() {
	defer func() {
		c.disconnected()
		_ = c.Close()
	}()

	pongWait := c.pingInterval + c.pongTimeout
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket read error", "error", err, "player", c.PlayerID())
			}
			return
		}

		// Reading anything proves the peer alive.
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.onFrame(c, frame)
	}
}

// writePump drains the send channel and keeps the heartbeat going.
func (c *Connection) writePump() {
	ticker := c.clock.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		c.disconnected()
		_ = c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Graceful close with normal status.
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				c.logger.Error("websocket write error", "error", err, "player", c.PlayerID())
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Connection) disconnected() {
	c.discOnce.Do(func() {
		if c.onDisconnect != nil {
			c.onDisconnect(c)
		}
	})
}
