package servers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cbodonnell/gravwell/pkg/clients"
	"github.com/cbodonnell/gravwell/pkg/log"
	"github.com/cbodonnell/gravwell/pkg/messages"
	"github.com/gorilla/mux"
	"nhooyr.io/websocket"
)

// WSServer accepts the reliable client connections.
type WSServer struct {
	clientManager *clients.ClientManager
	server        *http.Server
}

type NewWSServerOptions struct {
	ClientManager *clients.ClientManager
	Port          int
}

// NewWSServer creates a new WebSocket server.
func NewWSServer(opts NewWSServerOptions) *WSServer {
	s := &WSServer{
		clientManager: opts.ClientManager,
	}
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: s.Handler(),
	}
	return s
}

// Handler returns the router serving /ws.
func (s *WSServer) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.handleWS).Methods("GET")
	return r
}

// Start serves until ctx is done.
func (s *WSServer) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		s.server.Shutdown(shutdownCtx)
	}()

	log.Info("WebSocket server listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("WebSocket server closed")
			return nil
		}
		return fmt.Errorf("WebSocket server error: %v", err)
	}
	return nil
}

func (s *WSServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Error("Failed to accept WebSocket: %v", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "")

	clientID, err := s.clientManager.AddClient(conn)
	if err != nil {
		log.Error("Failed to add client: %v", err)
		conn.Close(websocket.StatusTryAgainLater, "server is full")
		return
	}
	defer s.clientManager.RemoveClient(clientID)
	log.Debug("Client %d connected from %s", clientID, r.RemoteAddr)

	ctx := r.Context()
	pong, err := newPong(clientID)
	if err != nil {
		log.Error("Failed to create pong: %v", err)
		return
	}
	if err := WriteMessageToWS(ctx, conn, pong); err != nil {
		log.Warn("Failed to greet client %d: %v", clientID, err)
		return
	}

	for {
		typ, b, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				log.Debug("Client %d disconnected", clientID)
			default:
				log.Debug("Client %d connection closed: %v", clientID, err)
			}
			return
		}
		if typ != websocket.MessageBinary {
			continue
		}

		msg, err := messages.DeserializeMessage(b)
		if err != nil {
			log.Warn("Failed to deserialize message from client %d: %v", clientID, err)
			continue
		}
		switch msg.Type {
		case messages.MessageTypeClientPing:
			if err := WriteMessageToWS(ctx, conn, pong); err != nil {
				log.Warn("Failed to send pong to client %d: %v", clientID, err)
			}
		default:
			log.Debug("Ignoring message of type %s from client %d", msg.Type, clientID)
		}
	}
}
