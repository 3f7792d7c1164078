package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cbodonnell/gravwell/pkg/api/handlers"
	"github.com/cbodonnell/gravwell/pkg/log"
	"github.com/cbodonnell/gravwell/pkg/repositories"
	"github.com/cbodonnell/gravwell/pkg/state"
	"github.com/gorilla/mux"
)

// APIServer serves a read-only debug view of the client: the current match
// state and the saved match history.
type APIServer struct {
	server *http.Server
}

type NewAPIServerOptions struct {
	Port      int
	GameState state.Snapshotter
	// Repository is optional. Without it the match history routes are not registered.
	Repository repositories.Repository
}

// NewRouter returns the routes served by the APIServer.
func NewRouter(gameState state.Snapshotter, repository repositories.Repository) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", handlers.HandleHealthz()).Methods(http.MethodGet)
	r.HandleFunc("/state", handlers.HandleGetState(gameState)).Methods(http.MethodGet)
	if repository != nil {
		r.HandleFunc("/matches", handlers.HandleListMatches(repository)).Methods(http.MethodGet)
		r.HandleFunc("/matches/{matchID}", handlers.HandleGetMatch(repository)).Methods(http.MethodGet)
	}
	r.Use(corsMiddleware)
	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET")
		next.ServeHTTP(w, r)
	})
}

// NewAPIServer creates a new http.Server for handling API requests
func NewAPIServer(opts NewAPIServerOptions) *APIServer {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: NewRouter(opts.GameState, opts.Repository),
	}
	return &APIServer{
		server: server,
	}
}

// Start starts the APIServer. It blocks until the server is stopped.
func (s *APIServer) Start() {
	log.Info("API server listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("API server closed")
			return
		}
		log.Error("API server error: %v", err)
	}
}

// Stop stops the APIServer
func (s *APIServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
