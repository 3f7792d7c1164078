package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	gametypes "github.com/cbodonnell/gravwell/pkg/game/types"
	"github.com/cbodonnell/gravwell/pkg/log"
	"github.com/cbodonnell/gravwell/pkg/repositories"
	"github.com/cbodonnell/gravwell/pkg/state"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const (
	DefaultMatchListLimit = 20
	MaxMatchListLimit     = 100
)

// StateResponseBody is the JSON form of a match state snapshot.
type StateResponseBody struct {
	MatchID   uuid.UUID                           `json:"matchID"`
	UpdatedAt time.Time                           `json:"updatedAt"`
	Outcome   string                              `json:"outcome"`
	Boost     int                                 `json:"boost"`
	Deaths    []string                            `json:"deaths"`
	Positions map[string]gametypes.PlayerPosition `json:"positions"`
	Planets   map[string]gametypes.PlanetState    `json:"planets"`
	Countdown bool                                `json:"countdown"`
	Won       bool                                `json:"won"`
	Lost      bool                                `json:"lost"`
}

func NewStateResponseBody(gameState *gametypes.GameState) *StateResponseBody {
	return &StateResponseBody{
		MatchID:   gameState.MatchID,
		UpdatedAt: gameState.UpdatedAt,
		Outcome:   gameState.Outcome().String(),
		Boost:     gameState.Boost,
		Deaths:    gameState.DeadPlayers(),
		Positions: gameState.Positions,
		Planets:   gameState.Planets,
		Countdown: gameState.Countdown,
		Won:       gameState.Won,
		Lost:      gameState.Lost,
	}
}

func HandleGetState(gameState state.Snapshotter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot := gameState.Snapshot()
		writeJSON(w, http.StatusOK, NewStateResponseBody(snapshot))
	}
}

func HandleListMatches(repository repositories.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := DefaultMatchListLimit
		if l := r.URL.Query().Get("limit"); l != "" {
			parsed, err := strconv.Atoi(l)
			if err != nil || parsed < 1 {
				http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			limit = min(parsed, MaxMatchListLimit)
		}

		results, err := repository.ListMatchResults(r.Context(), limit)
		if err != nil {
			log.Error("failed to list match results: %v", err)
			http.Error(w, "Failed to list match results", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, results)
	}
}

func HandleGetMatch(repository repositories.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		matchID, err := uuid.Parse(mux.Vars(r)["matchID"])
		if err != nil {
			http.Error(w, "Invalid match ID", http.StatusBadRequest)
			return
		}

		result, err := repository.LoadMatchResult(r.Context(), matchID)
		if err != nil {
			if repositories.IsNotFound(err) {
				http.Error(w, "Match not found", http.StatusNotFound)
				return
			}
			log.Error("failed to load match result %s: %v", matchID, err)
			http.Error(w, "Failed to load match result", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

func HandleHealthz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response: %v", err)
	}
}
