package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/cbodonnell/gravwell/pkg/clients"
	"github.com/cbodonnell/gravwell/pkg/log"
	"github.com/cbodonnell/gravwell/pkg/messages"
	"nhooyr.io/websocket"
)

const (
	// BroadcastWriteTimeout bounds a single WebSocket write.
	BroadcastWriteTimeout = time.Second
)

// BroadcastMessage is a server message on its way to clients.
type BroadcastMessage struct {
	// ClientID targets a single client. 0 sends to every client.
	ClientID uint32
	// Reliable messages always go over WebSocket. Others use UDP when the
	// client has registered a UDP address.
	Reliable bool
	Message  *messages.Message
}

type BroadcastMessageWorker struct {
	clientManager        *clients.ClientManager
	broadcastMessageChan <-chan BroadcastMessage
}

type NewBroadcastMessageWorkerOptions struct {
	ClientManager        *clients.ClientManager
	BroadcastMessageChan <-chan BroadcastMessage
}

func NewBroadcastMessageWorker(opts NewBroadcastMessageWorkerOptions) *BroadcastMessageWorker {
	return &BroadcastMessageWorker{
		clientManager:        opts.ClientManager,
		broadcastMessageChan: opts.BroadcastMessageChan,
	}
}

func (w *BroadcastMessageWorker) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-w.broadcastMessageChan:
			if err := w.Send(ctx, msg); err != nil {
				log.Error("Failed to broadcast message: %v", err)
			}
		}
	}
}

// Send delivers msg to its target clients. Per-client write failures are logged.
func (w *BroadcastMessageWorker) Send(ctx context.Context, msg BroadcastMessage) error {
	if msg.Message == nil {
		return fmt.Errorf("message is nil")
	}
	b, err := messages.SerializeMessage(msg.Message)
	if err != nil {
		return fmt.Errorf("failed to serialize message: %v", err)
	}

	udpConn := w.clientManager.GetUDPConn()
	for _, client := range w.clientManager.GetClients() {
		if msg.ClientID != 0 && msg.ClientID != client.ID {
			continue
		}

		if !msg.Reliable && udpConn != nil && client.UDPAddress != nil {
			if _, err := udpConn.WriteToUDP(b, client.UDPAddress); err != nil {
				log.Warn("Failed to write %s message to UDP for client %d: %v", msg.Message.Type, client.ID, err)
			}
			continue
		}

		if client.WSConn == nil {
			continue
		}
		if err := w.writeWS(ctx, client.WSConn, b); err != nil {
			log.Warn("Failed to write %s message to WebSocket for client %d: %v", msg.Message.Type, client.ID, err)
		}
	}

	return nil
}

func (w *BroadcastMessageWorker) writeWS(ctx context.Context, conn *websocket.Conn, b []byte) error {
	ctx, cancel := context.WithTimeout(ctx, BroadcastWriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageBinary, b)
}
