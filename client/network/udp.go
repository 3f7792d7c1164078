package network

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/cbodonnell/gravwell/pkg/log"
	"github.com/cbodonnell/gravwell/pkg/messages"
	"github.com/cbodonnell/gravwell/pkg/queue"
)

// UDPClient receives unreliable game updates from the server.
type UDPClient struct {
	serverAddr   *net.UDPAddr
	messageQueue queue.Queue
	conn         *net.UDPConn
}

// NewUDPClient creates a new UDP client.
func NewUDPClient(serverAddr string, messageQueue queue.Queue) (*UDPClient, error) {
	serverUDPAddr, err := net.ResolveUDPAddr("udp", serverAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP address: %v", err)
	}

	return &UDPClient{
		serverAddr:   serverUDPAddr,
		messageQueue: messageQueue,
	}, nil
}

// Connect opens the UDP socket. No packets are exchanged.
func (c *UDPClient) Connect() error {
	conn, err := net.DialUDP("udp", nil, c.serverAddr)
	if err != nil {
		return fmt.Errorf("failed to dial UDP address: %v", err)
	}
	c.conn = conn
	return nil
}

// HandleMessages reads datagrams until the socket is closed or ctx is done.
func (c *UDPClient) HandleMessages(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		c.conn.Close()
	})
	defer stop()

	buffer := make([]byte, messages.MessageBufferSize)
	for {
		n, err := c.conn.Read(buffer)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				log.Trace("UDP connection closed by client")
				return nil
			}
			return fmt.Errorf("failed to read from UDP connection: %v", err)
		}

		if err := c.handleMessage(buffer[:n]); err != nil {
			log.Error("Failed to handle UDP message: %v", err)
		}
	}
}

func (c *UDPClient) handleMessage(b []byte) error {
	msg, err := messages.DeserializeMessage(b)
	if err != nil {
		return fmt.Errorf("failed to deserialize message: %v", err)
	}
	log.Trace("Received message from UDP server of type %s", msg.Type)

	switch msg.Type {
	case messages.MessageTypeServerPong:
		log.Debug("Received server pong")
	case messages.MessageTypeServerGameUpdate:
		// the next update supersedes this one, so it is dropped when the queue is full
		if err := c.messageQueue.Enqueue(msg); err != nil {
			return fmt.Errorf("failed to enqueue message: %v", err)
		}
	default:
		return fmt.Errorf("received unexpected message type from UDP server: %s", msg.Type)
	}

	return nil
}

// SendMessage sends a message to the UDP server.
func (c *UDPClient) SendMessage(msg *messages.Message) error {
	if c.conn == nil {
		return &ErrConnectionClosedByClient{}
	}

	b, err := messages.SerializeMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to serialize message: %v", err)
	}

	if _, err := c.conn.Write(b); err != nil {
		return fmt.Errorf("failed to write message to UDP connection: %v", err)
	}

	return nil
}

// LocalAddr returns the local address of the socket, or nil before Connect.
func (c *UDPClient) LocalAddr() net.Addr {
	if c.conn == nil {
		return nil
	}
	return c.conn.LocalAddr()
}

// Close closes the UDP connection.
func (c *UDPClient) Close() error {
	if c.conn == nil {
		log.Warn("UDP connection is already closed")
		return nil
	}
	if err := c.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}
