package state

import (
	gametypes "github.com/cbodonnell/gravwell/pkg/game/types"
)

// Updater is the write side of the shared match state.
// The network update path calls one method per decoded server message.
// Implementations must be thread-safe.
type Updater interface {
	// SetDeath marks the user dead and removes their position.
	SetDeath(user string)
	// SetPosition upserts the user's position. It returns false if the
	// user is dead, in which case nothing is stored.
	SetPosition(user string, x, y, angle float64) bool
	// SetPlanetPosition upserts a planet's kinematic state.
	SetPlanetPosition(id string, x, y, velX, velY float64)
	SetCountdown(countdown bool)
	SetBoost(boost int)
	// SetWon records a win unless the match is already lost.
	SetWon()
	// SetLost records a loss unless the match is already won.
	SetLost()
	// Outcome reports whether the current match has been decided.
	Outcome() gametypes.MatchOutcome
	// Reset starts a new match and returns the state of the previous one.
	Reset() *gametypes.GameState
}

// Snapshotter provides consistent copies of the shared match state.
// Implementations must be thread-safe.
type Snapshotter interface {
	// Snapshot returns a deep copy of the current state. The caller owns it.
	Snapshot() *gametypes.GameState
}
