package workers

import (
	"context"
	"encoding/json"
	"fmt"

	gametypes "github.com/cbodonnell/gravwell/pkg/game/types"
	"github.com/cbodonnell/gravwell/pkg/log"
	"github.com/cbodonnell/gravwell/pkg/messages"
	"github.com/cbodonnell/gravwell/pkg/queue"
	"github.com/cbodonnell/gravwell/pkg/state"
)

// ServerMessageWorker applies server messages to the match state.
// It is the only writer of the state; run exactly one per match.
type ServerMessageWorker struct {
	serverMessageQueue queue.Queue
	gameState          state.Updater
	finishedMatches    chan<- *gametypes.GameState
}

type NewServerMessageWorkerOptions struct {
	ServerMessageQueue queue.Queue
	GameState          state.Updater
	// FinishedMatches receives the final state of each match replaced by a
	// new one. Optional; sends never block.
	FinishedMatches chan<- *gametypes.GameState
}

func NewServerMessageWorker(opts NewServerMessageWorkerOptions) *ServerMessageWorker {
	return &ServerMessageWorker{
		serverMessageQueue: opts.ServerMessageQueue,
		gameState:          opts.GameState,
		finishedMatches:    opts.FinishedMatches,
	}
}

// Start applies messages from the queue until ctx is done.
func (w *ServerMessageWorker) Start(ctx context.Context) {
	for {
		item, err := w.serverMessageQueue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("Failed to dequeue server message: %v", err)
			continue
		}

		msg, ok := item.(*messages.Message)
		if !ok {
			log.Error("Failed to cast message to messages.Message")
			continue
		}

		if err := w.HandleMessage(msg); err != nil {
			log.Error("Failed to handle server message of type %s: %v", msg.Type, err)
		}
	}
}

// HandleMessage decodes a single server message and applies it to the state.
func (w *ServerMessageWorker) HandleMessage(msg *messages.Message) error {
	log.Trace("Applying server message of type %s", msg.Type)

	switch msg.Type {
	case messages.MessageTypeServerPlayerPosition:
		return w.handleServerPlayerPosition(msg)
	case messages.MessageTypeServerPlayerDeath:
		return w.handleServerPlayerDeath(msg)
	case messages.MessageTypeServerPlanetPosition:
		return w.handleServerPlanetPosition(msg)
	case messages.MessageTypeServerGameUpdate:
		return w.handleServerGameUpdate(msg)
	case messages.MessageTypeServerCountdown:
		return w.handleServerCountdown(msg)
	case messages.MessageTypeServerBoost:
		return w.handleServerBoost(msg)
	case messages.MessageTypeServerMatchWon:
		w.gameState.SetWon()
	case messages.MessageTypeServerMatchLost:
		w.gameState.SetLost()
	case messages.MessageTypeServerPong:
		log.Debug("Received server pong")
	default:
		log.Warn("Unknown server message type: %s", msg.Type)
	}

	return nil
}

func (w *ServerMessageWorker) handleServerPlayerPosition(msg *messages.Message) error {
	position := &messages.ServerPlayerPosition{}
	if err := json.Unmarshal(msg.Payload, position); err != nil {
		return fmt.Errorf("failed to unmarshal server player position: %v", err)
	}

	w.applyPlayerPosition(position)
	return nil
}

func (w *ServerMessageWorker) applyPlayerPosition(position *messages.ServerPlayerPosition) {
	if position.User == "" {
		log.Warn("Ignoring position with empty user")
		return
	}
	if !w.gameState.SetPosition(position.User, float64(position.X), float64(position.Y), float64(position.Angle)) {
		log.Debug("Ignoring position for dead player %s", position.User)
	}
}

func (w *ServerMessageWorker) handleServerPlayerDeath(msg *messages.Message) error {
	death := &messages.ServerPlayerDeath{}
	if err := json.Unmarshal(msg.Payload, death); err != nil {
		return fmt.Errorf("failed to unmarshal server player death: %v", err)
	}
	if death.User == "" {
		return fmt.Errorf("server player death has no user")
	}

	log.Debug("Player %s died", death.User)
	w.gameState.SetDeath(death.User)
	return nil
}

func (w *ServerMessageWorker) handleServerPlanetPosition(msg *messages.Message) error {
	planet := &messages.ServerPlanetPosition{}
	if err := json.Unmarshal(msg.Payload, planet); err != nil {
		return fmt.Errorf("failed to unmarshal server planet position: %v", err)
	}

	w.applyPlanetPosition(planet)
	return nil
}

func (w *ServerMessageWorker) applyPlanetPosition(planet *messages.ServerPlanetPosition) {
	if planet.ID == "" {
		log.Warn("Ignoring planet position with empty id")
		return
	}
	w.gameState.SetPlanetPosition(planet.ID, float64(planet.X), float64(planet.Y), float64(planet.VelX), float64(planet.VelY))
}

func (w *ServerMessageWorker) handleServerGameUpdate(msg *messages.Message) error {
	update := &messages.ServerGameUpdate{}
	if err := json.Unmarshal(msg.Payload, update); err != nil {
		return fmt.Errorf("failed to unmarshal server game update: %v", err)
	}

	for i := range update.Players {
		w.applyPlayerPosition(&update.Players[i])
	}
	for i := range update.Planets {
		w.applyPlanetPosition(&update.Planets[i])
	}
	return nil
}

func (w *ServerMessageWorker) handleServerCountdown(msg *messages.Message) error {
	countdown := &messages.ServerCountdown{}
	if err := json.Unmarshal(msg.Payload, countdown); err != nil {
		return fmt.Errorf("failed to unmarshal server countdown: %v", err)
	}

	// a countdown after a decided match is the start of the next one
	if countdown.Countdown && w.gameState.Outcome().IsTerminal() {
		w.startNewMatch()
	}
	w.gameState.SetCountdown(countdown.Countdown)
	return nil
}

func (w *ServerMessageWorker) startNewMatch() {
	finished := w.gameState.Reset()
	log.Info("Match %s is over, starting a new match", finished.MatchID)
	if w.finishedMatches == nil {
		return
	}
	select {
	case w.finishedMatches <- finished:
	default:
		log.Warn("Finished match channel is full, dropping match %s", finished.MatchID)
	}
}

func (w *ServerMessageWorker) handleServerBoost(msg *messages.Message) error {
	boost := &messages.ServerBoost{}
	if err := json.Unmarshal(msg.Payload, boost); err != nil {
		return fmt.Errorf("failed to unmarshal server boost: %v", err)
	}

	w.gameState.SetBoost(boost.Boost)
	return nil
}
