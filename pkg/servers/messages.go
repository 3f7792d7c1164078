package servers

import (
	"context"
	"fmt"
	"net"

	"github.com/cbodonnell/gravwell/pkg/messages"
	"nhooyr.io/websocket"
)

// WriteMessageToWS writes a Message to a WebSocket connection
func WriteMessageToWS(ctx context.Context, conn *websocket.Conn, msg *messages.Message) error {
	b, err := messages.SerializeMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to serialize message: %v", err)
	}

	if err := conn.Write(ctx, websocket.MessageBinary, b); err != nil {
		return fmt.Errorf("failed to write message to WebSocket connection: %v", err)
	}

	return nil
}

// WriteMessageToUDP writes a Message to a UDP address
func WriteMessageToUDP(conn *net.UDPConn, addr *net.UDPAddr, msg *messages.Message) error {
	b, err := messages.SerializeMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to serialize message: %v", err)
	}

	if _, err := conn.WriteToUDP(b, addr); err != nil {
		return fmt.Errorf("failed to write message to UDP connection: %v", err)
	}

	return nil
}

// ReadMessageFromUDP reads a Message from a UDP connection
func ReadMessageFromUDP(conn *net.UDPConn, buf []byte) (*messages.Message, *net.UDPAddr, error) {
	n, addr, err := conn.ReadFromUDP(buf)
	if err != nil {
		return nil, nil, err
	}

	msg, err := messages.DeserializeMessage(buf[:n])
	if err != nil {
		return nil, addr, fmt.Errorf("failed to deserialize message: %v", err)
	}

	return msg, addr, nil
}

func newPong(clientID uint32) (*messages.Message, error) {
	return messages.NewMessage(0, messages.MessageTypeServerPong, messages.ServerPong{ClientID: clientID})
}
