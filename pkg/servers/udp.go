package servers

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/cbodonnell/gravwell/pkg/clients"
	"github.com/cbodonnell/gravwell/pkg/log"
	"github.com/cbodonnell/gravwell/pkg/messages"
)

// UDPServer learns client UDP addresses from their pings.
type UDPServer struct {
	clientManager *clients.ClientManager
	port          int
	conn          *net.UDPConn
}

type NewUDPServerOptions struct {
	ClientManager *clients.ClientManager
	// Port 0 picks a free port
	Port int
}

// NewUDPServer creates a new UDP server.
func NewUDPServer(opts NewUDPServerOptions) *UDPServer {
	return &UDPServer{
		clientManager: opts.ClientManager,
		port:          opts.Port,
	}
}

// Listen opens the UDP socket and registers it for broadcasting.
func (s *UDPServer) Listen() (*net.UDPAddr, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: s.port})
	if err != nil {
		return nil, fmt.Errorf("failed to listen on UDP port %d: %v", s.port, err)
	}
	s.conn = conn
	s.clientManager.SetUDPConn(conn)

	addr := conn.LocalAddr().(*net.UDPAddr)
	log.Info("UDP server listening on %s", addr)
	return addr, nil
}

// Serve handles pings until ctx is done. Listen must be called first.
func (s *UDPServer) Serve(ctx context.Context) error {
	if s.conn == nil {
		return fmt.Errorf("UDP server is not listening")
	}
	stop := context.AfterFunc(ctx, func() {
		s.conn.Close()
	})
	defer stop()

	buf := make([]byte, messages.MessageBufferSize)
	for {
		msg, addr, err := ReadMessageFromUDP(s.conn, buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				log.Info("UDP server closed")
				return nil
			}
			log.Warn("Failed to read UDP message: %v", err)
			continue
		}

		if msg.Type != messages.MessageTypeClientPing {
			log.Warn("Received unexpected UDP message of type %s from %s", msg.Type, addr)
			continue
		}
		s.handlePing(msg.ClientID, addr)
	}
}

// Start listens and serves until ctx is done.
func (s *UDPServer) Start(ctx context.Context) error {
	if _, err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

func (s *UDPServer) handlePing(clientID uint32, addr *net.UDPAddr) {
	if clientID != 0 {
		if err := s.clientManager.SetUDPAddress(clientID, addr); err != nil {
			log.Debug("Ignoring UDP address for %s: %v", addr, err)
			clientID = 0
		} else {
			log.Trace("Client %d is reachable over UDP at %s", clientID, addr)
		}
	}

	pong, err := newPong(clientID)
	if err != nil {
		log.Error("Failed to create pong: %v", err)
		return
	}
	if err := WriteMessageToUDP(s.conn, addr, pong); err != nil {
		log.Warn("Failed to send pong to %s: %v", addr, err)
	}
}
