package state

import (
	"time"

	gametypes "github.com/cbodonnell/gravwell/pkg/game/types"
	"github.com/cbodonnell/gravwell/pkg/log"
	"github.com/google/uuid"
	"github.com/sasha-s/go-deadlock"
)

// SharedGameState is the single live copy of the match state on the client.
// Mutations take the write lock and exclude every reader; Snapshot and the
// other accessors take the read lock and may run together.
//
// Nothing returned by a SharedGameState aliases its internal maps.
type SharedGameState struct {
	lock      deadlock.RWMutex
	gameState *gametypes.GameState
	now       func() time.Time
}

var (
	_ Updater     = &SharedGameState{}
	_ Snapshotter = &SharedGameState{}
)

func NewSharedGameState() *SharedGameState {
	return &SharedGameState{
		gameState: gametypes.NewGameState(),
		now:       time.Now,
	}
}

// touch must be called with the write lock held.
func (s *SharedGameState) touch() {
	s.gameState.UpdatedAt = s.now()
}

func (s *SharedGameState) SetDeath(user string) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.gameState.Deaths[user] = struct{}{}
	delete(s.gameState.Positions, user)
	s.touch()
}

func (s *SharedGameState) SetPosition(user string, x, y, angle float64) bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, dead := s.gameState.Deaths[user]; dead {
		return false
	}
	s.gameState.Positions[user] = gametypes.PlayerPosition{
		X:     x,
		Y:     y,
		Angle: angle,
	}
	s.touch()
	return true
}

func (s *SharedGameState) SetPlanetPosition(id string, x, y, velX, velY float64) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.touch()
	s.gameState.Planets[id] = gametypes.PlanetState{
		X:         x,
		Y:         y,
		VelX:      velX,
		VelY:      velY,
		UpdatedAt: s.gameState.UpdatedAt,
	}
}

func (s *SharedGameState) SetCountdown(countdown bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.gameState.Countdown = countdown
	s.touch()
}

func (s *SharedGameState) SetBoost(boost int) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.gameState.Boost = boost
	s.touch()
}

func (s *SharedGameState) SetWon() {
	if matchID, ok := s.setOutcome(gametypes.MatchOutcomeWon); !ok {
		log.Warn("Ignoring win for match %s: match is already lost", matchID)
	}
}

func (s *SharedGameState) SetLost() {
	if matchID, ok := s.setOutcome(gametypes.MatchOutcomeLost); !ok {
		log.Warn("Ignoring loss for match %s: match is already won", matchID)
	}
}

// setOutcome records a terminal outcome. The first outcome recorded for a
// match sticks, so Won and Lost are never both true.
func (s *SharedGameState) setOutcome(outcome gametypes.MatchOutcome) (uuid.UUID, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	matchID := s.gameState.MatchID
	switch outcome {
	case gametypes.MatchOutcomeWon:
		if s.gameState.Lost {
			return matchID, false
		}
		s.gameState.Won = true
	case gametypes.MatchOutcomeLost:
		if s.gameState.Won {
			return matchID, false
		}
		s.gameState.Lost = true
	default:
		return matchID, false
	}
	s.touch()
	return matchID, true
}

// Reset starts a new match with default values and returns the state of the
// one it replaced. The returned state is no longer referenced by s.
func (s *SharedGameState) Reset() *gametypes.GameState {
	s.lock.Lock()
	defer s.lock.Unlock()

	finished := s.gameState
	s.gameState = gametypes.NewGameState()
	s.touch()
	return finished
}

func (s *SharedGameState) Snapshot() *gametypes.GameState {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.gameState.Copy()
}

// Positions returns a copy of the living players' positions.
func (s *SharedGameState) Positions() map[string]gametypes.PlayerPosition {
	s.lock.RLock()
	defer s.lock.RUnlock()

	positions := make(map[string]gametypes.PlayerPosition, len(s.gameState.Positions))
	for user, position := range s.gameState.Positions {
		positions[user] = position
	}
	return positions
}

func (s *SharedGameState) Outcome() gametypes.MatchOutcome {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.gameState.Outcome()
}

func (s *SharedGameState) MatchID() uuid.UUID {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.gameState.MatchID
}
