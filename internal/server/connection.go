package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/lox/luckywheel/internal/engine"
	"github.com/lox/luckywheel/internal/game"
	"github.com/lox/luckywheel/internal/hub"
)

// Connection represents a WebSocket connection to a client
type Connection struct {
	conn      *websocket.Conn
	send      chan *Message
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	closeOnce sync.Once

	engine  *game.RoundEngine
	hub     *hub.Hub
	limiter *rate.Limiter

	userID string
	sub    *hub.Subscription
}

// NewConnection creates a new connection wrapper. wagersPerSecond bounds
// how fast a single connection may place wagers.
func NewConnection(conn *websocket.Conn, logger *log.Logger, eng *game.RoundEngine, h *hub.Hub, wagersPerSecond int) *Connection {
	ctx, cancel := context.WithCancel(context.Background())

	return &Connection{
		conn:    conn,
		send:    make(chan *Message, 256),
		logger:  logger.WithPrefix("conn"),
		ctx:     ctx,
		cancel:  cancel,
		engine:  eng,
		hub:     h,
		limiter: rate.NewLimiter(rate.Limit(wagersPerSecond), wagersPerSecond),
	}
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the connection
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		c.mu.Lock()
		if c.sub != nil {
			c.sub.Close()
		}
		c.mu.Unlock()
		close(c.send)
		err = c.conn.Close()
	})
	return err
}

// Done is closed when the connection has shut down.
func (c *Connection) Done() <-chan struct{} { return c.ctx.Done() }

// SendMessage sends a message to the client
func (c *Connection) SendMessage(msg *Message) error {
	defer func() {
		if r := recover(); r != nil {
			// Channel was closed, expected during shutdown
			c.logger.Debug("Attempted to send message on closed connection", "error", r)
		}
	}()

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		c.logger.Warn("Connection send buffer full, closing connection")
		_ = c.Close()
		return ErrConnectionClosed
	}
}

// UserID returns the authenticated user, or "" before auth.
func (c *Connection) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096
)

var ErrConnectionClosed = websocket.ErrCloseSent

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

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

		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			break
		}

		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
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

// forwardEvents relays broadcast events from the hub subscription to the
// client until either side shuts down.
func (c *Connection) forwardEvents(sub *hub.Subscription) {
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				// Dropped as a slow consumer; the client must reconnect.
				_ = c.Close()
				return
			}
			msg, err := EventMessage(ev)
			if err != nil {
				c.logger.Error("Failed to encode event", "error", err, "event", ev.EventType())
				continue
			}
			_ = c.SendMessage(msg)

		case <-c.ctx.Done():
			return
		}
	}
}

// handleMessage processes incoming messages from the client
func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("Received message", "type", msg.Type, "user", c.UserID())

	switch msg.Type {
	case MessageTypeAuth:
		var data AuthData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse auth data", msg.RequestID)
			return
		}
		c.handleAuth(data, msg.RequestID)

	case MessageTypePlaceWager:
		var data PlaceWagerData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse wager data", msg.RequestID)
			return
		}
		c.handlePlaceWager(data, msg.RequestID)

	case MessageTypeGetBalance:
		c.handleGetBalance(msg.RequestID)

	default:
		c.sendError("unknown_message_type", "Unknown message type: "+msg.Type.String(), msg.RequestID)
	}
}

// sendError sends an error message to the client
func (c *Connection) sendError(code, message, requestID string) {
	errorMsg, err := NewMessage(MessageTypeError, ErrorData{
		Code:    code,
		Message: message,
	}, time.Now())
	if err != nil {
		c.logger.Error("Failed to create error message", "error", err)
		return
	}
	errorMsg.RequestID = requestID
	_ = c.SendMessage(errorMsg)
}

func (c *Connection) handleAuth(data AuthData, requestID string) {
	c.logger.Info("Auth request", "userId", data.UserID)

	if data.UserID == "" {
		c.sendError("invalid_auth", "User ID required", requestID)
		return
	}

	c.mu.Lock()
	if c.sub != nil {
		c.sub.Close()
	}
	c.userID = data.UserID
	c.sub = c.hub.Subscribe(data.UserID)
	sub := c.sub
	c.mu.Unlock()

	go c.forwardEvents(sub)

	balance := c.engine.Balance(data.UserID)
	response, _ := NewMessage(MessageTypeAuthResponse, AuthResponseData{
		Success:          true,
		UserID:           data.UserID,
		PrimaryBalance:   balance.Primary.String(),
		SecondaryBalance: balance.Secondary.String(),
	}, time.Now())
	response.RequestID = requestID
	_ = c.SendMessage(response)
}

func (c *Connection) handlePlaceWager(data PlaceWagerData, requestID string) {
	userID := c.UserID()
	if userID == "" {
		c.sendError("not_authenticated", "Must authenticate first", requestID)
		return
	}
	if !c.limiter.Allow() {
		c.sendError("rate_limited", "Too many wagers, slow down", requestID)
		return
	}

	req, err := ParsePlacementRequest(userID, data)
	if err != nil {
		c.sendError("invalid_message", err.Error(), requestID)
		return
	}

	wager, balance, err := c.engine.PlaceWager(c.ctx, req)
	if err != nil {
		c.sendError(engine.ErrorCode(err), userMessage(err), requestID)
		return
	}

	response, _ := NewMessage(MessageTypeWagerAccepted, WagerAcceptedData{
		WagerID:          wager.ID,
		RoundID:          wager.RoundID,
		Kind:             wager.Kind.String(),
		Value:            wager.Value(),
		Amount:           wager.Amount.String(),
		Source:           wager.Source.String(),
		PrimaryBalance:   balance.Primary.String(),
		SecondaryBalance: balance.Secondary.String(),
	}, time.Now())
	response.RequestID = requestID
	_ = c.SendMessage(response)
}

func (c *Connection) handleGetBalance(requestID string) {
	userID := c.UserID()
	if userID == "" {
		c.sendError("not_authenticated", "Must authenticate first", requestID)
		return
	}

	balance := c.engine.Balance(userID)
	response, _ := NewMessage(MessageTypeBalanceUpdate, BalanceUpdateData{
		UserID:           userID,
		PrimaryBalance:   balance.Primary.String(),
		SecondaryBalance: balance.Secondary.String(),
	}, time.Now())
	response.RequestID = requestID
	_ = c.SendMessage(response)
}

// userMessage strips internal detail from validation errors before they
// reach the client.
func userMessage(err error) string {
	for _, known := range []error{
		engine.ErrBettingClosed,
		engine.ErrInvalidBetAmount,
		engine.ErrInvalidWalletSelection,
		engine.ErrInsufficientBalance,
		engine.ErrGameSuspended,
		engine.ErrRoundNotFound,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "internal error"
}
