package network

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cbodonnell/gravwell/pkg/log"
	"github.com/cbodonnell/gravwell/pkg/messages"
	"github.com/cbodonnell/gravwell/pkg/queue"
	"nhooyr.io/websocket"
)

// WSClient represents a WebSocket client.
type WSClient struct {
	serverURL     string
	messageQueue  queue.Queue
	conn          *websocket.Conn
	clientID      atomic.Uint32
	clientIDReady chan struct{}
	clientIDOnce  sync.Once
}

// NewWSClient creates a new WebSocket client.
func NewWSClient(serverURL string, messageQueue queue.Queue) *WSClient {
	return &WSClient{
		serverURL:     serverURL,
		messageQueue:  messageQueue,
		clientIDReady: make(chan struct{}),
	}
}

// Connect establishes a connection to the WebSocket server.
func (c *WSClient) Connect(ctx context.Context) error {
	log.Info("Connecting to WebSocket server at %s", c.serverURL)
	conn, _, err := websocket.Dial(ctx, c.serverURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %v", err)
	}
	conn.SetReadLimit(messages.MessageBufferSize * 16)
	c.conn = conn
	return nil
}

// HandleMessages reads messages from the server until the connection closes
// or ctx is done. Messages are handled in the order they arrive, and reading
// pauses while the message queue is full so nothing sent reliably is lost.
func (c *WSClient) HandleMessages(ctx context.Context) error {
	for {
		typ, b, err := c.conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return &ErrConnectionClosedByServer{}
			}
			if ctx.Err() != nil {
				log.Trace("WebSocket connection closed by client")
				return nil
			}
			return fmt.Errorf("failed to read from WebSocket connection: %v", err)
		}
		if typ != websocket.MessageBinary {
			log.Warn("Ignoring non-binary WebSocket message")
			continue
		}

		if err := c.handleMessage(ctx, b); err != nil {
			log.Error("Failed to handle message: %v", err)
		}
	}
}

// handleMessage processes a received message.
func (c *WSClient) handleMessage(ctx context.Context, b []byte) error {
	msg, err := messages.DeserializeMessage(b)
	if err != nil {
		return fmt.Errorf("failed to deserialize message: %v", err)
	}
	log.Trace("Received message from WebSocket server of type %s", msg.Type)

	switch {
	case msg.Type == messages.MessageTypeServerPong:
		log.Debug("Received server pong")
		if len(msg.Payload) == 0 {
			return nil
		}
		pong := &messages.ServerPong{}
		if err := json.Unmarshal(msg.Payload, pong); err != nil {
			return fmt.Errorf("failed to unmarshal server pong: %v", err)
		}
		if pong.ClientID != 0 {
			c.clientID.Store(pong.ClientID)
			c.clientIDOnce.Do(func() { close(c.clientIDReady) })
		}
	case msg.Type.IsServerUpdate():
		if err := c.messageQueue.EnqueueWait(ctx, msg); err != nil {
			return fmt.Errorf("failed to enqueue message: %v", err)
		}
	default:
		return fmt.Errorf("received unexpected message type from WebSocket server: %s", msg.Type)
	}

	return nil
}

// ClientID returns the ID assigned by the server, or 0 if none was received yet.
func (c *WSClient) ClientID() uint32 {
	return c.clientID.Load()
}

// ClientIDReady is closed once the server has assigned a client ID.
func (c *WSClient) ClientIDReady() <-chan struct{} {
	return c.clientIDReady
}

// SendMessage sends a message to the WebSocket server.
func (c *WSClient) SendMessage(ctx context.Context, msg *messages.Message) error {
	if c.conn == nil {
		return &ErrConnectionClosedByClient{}
	}

	b, err := messages.SerializeMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to serialize message: %v", err)
	}

	if err := c.conn.Write(ctx, websocket.MessageBinary, b); err != nil {
		return fmt.Errorf("failed to write message to WebSocket connection: %v", err)
	}

	return nil
}

// Ping sends a WebSocket ping and waits for the pong.
// HandleMessages must be running for the pong to be read.
func (c *WSClient) Ping(ctx context.Context) error {
	if c.conn == nil {
		return &ErrConnectionClosedByClient{}
	}
	return c.conn.Ping(ctx)
}

// Close closes the WebSocket connection.
func (c *WSClient) Close() error {
	if c.conn == nil {
		log.Warn("WebSocket connection is already closed")
		return nil
	}
	return c.conn.Close(websocket.StatusNormalClosure, "client closing")
}
