package types

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultBoost is the boost level a player starts each match with.
	DefaultBoost int = 10000
)

// GameState is the client's view of a single match.
//
// A GameState value carries no synchronization of its own. The live instance
// is owned by state.SharedGameState; everything else works on copies.
type GameState struct {
	// MatchID identifies the match this state belongs to
	MatchID uuid.UUID `json:"matchID"`
	// UpdatedAt is the time of the last applied mutation
	UpdatedAt time.Time `json:"updatedAt"`
	// Boost is the local player's remaining boost
	Boost int `json:"boost"`
	// Deaths is the set of players that have died this match
	Deaths map[string]struct{} `json:"-"`
	// Positions maps living players to their last known position
	Positions map[string]PlayerPosition `json:"positions"`
	// Planets maps planet IDs to their last known kinematic state
	Planets   map[string]PlanetState `json:"planets"`
	Countdown bool                   `json:"countdown"`
	Won       bool                   `json:"won"`
	Lost      bool                   `json:"lost"`
}

func NewGameState() *GameState {
	return &GameState{
		MatchID:   uuid.New(),
		Boost:     DefaultBoost,
		Deaths:    make(map[string]struct{}),
		Positions: make(map[string]PlayerPosition),
		Planets:   make(map[string]PlanetState),
	}
}

// Copy returns a deep copy of the game state. The returned maps share
// nothing with the receiver.
func (g *GameState) Copy() *GameState {
	newGameState := &GameState{
		MatchID:   g.MatchID,
		UpdatedAt: g.UpdatedAt,
		Boost:     g.Boost,
		Deaths:    make(map[string]struct{}, len(g.Deaths)),
		Positions: make(map[string]PlayerPosition, len(g.Positions)),
		Planets:   make(map[string]PlanetState, len(g.Planets)),
		Countdown: g.Countdown,
		Won:       g.Won,
		Lost:      g.Lost,
	}
	for user := range g.Deaths {
		newGameState.Deaths[user] = struct{}{}
	}
	for user, position := range g.Positions {
		newGameState.Positions[user] = position
	}
	for id, planet := range g.Planets {
		newGameState.Planets[id] = planet
	}
	return newGameState
}

// IsDead returns true if the user has died this match
func (g *GameState) IsDead(user string) bool {
	_, ok := g.Deaths[user]
	return ok
}

// DeadPlayers returns the dead players in lexical order
func (g *GameState) DeadPlayers() []string {
	users := make([]string, 0, len(g.Deaths))
	for user := range g.Deaths {
		users = append(users, user)
	}
	sort.Strings(users)
	return users
}

// Outcome reports how the match ended, if it has.
func (g *GameState) Outcome() MatchOutcome {
	switch {
	case g.Won:
		return MatchOutcomeWon
	case g.Lost:
		return MatchOutcomeLost
	default:
		return MatchOutcomeInProgress
	}
}

type MatchOutcome uint8

const (
	MatchOutcomeInProgress MatchOutcome = iota
	MatchOutcomeWon
	MatchOutcomeLost
)

func (o MatchOutcome) String() string {
	switch o {
	case MatchOutcomeInProgress:
		return "in-progress"
	case MatchOutcomeWon:
		return "won"
	case MatchOutcomeLost:
		return "lost"
	}
	return "unknown"
}

// ParseMatchOutcome is the inverse of MatchOutcome.String
func ParseMatchOutcome(s string) (MatchOutcome, bool) {
	switch s {
	case "in-progress":
		return MatchOutcomeInProgress, true
	case "won":
		return MatchOutcomeWon, true
	case "lost":
		return MatchOutcomeLost, true
	}
	return MatchOutcomeInProgress, false
}

func (o MatchOutcome) MarshalText() ([]byte, error) {
	if o > MatchOutcomeLost {
		return nil, fmt.Errorf("unknown match outcome %d", uint8(o))
	}
	return []byte(o.String()), nil
}

func (o *MatchOutcome) UnmarshalText(text []byte) error {
	outcome, ok := ParseMatchOutcome(string(text))
	if !ok {
		return fmt.Errorf("unknown match outcome %q", text)
	}
	*o = outcome
	return nil
}

// IsTerminal returns true once the match has been decided
func (o MatchOutcome) IsTerminal() bool {
	return o == MatchOutcomeWon || o == MatchOutcomeLost
}
