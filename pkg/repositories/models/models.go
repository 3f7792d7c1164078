package models

import (
	gametypes "github.com/cbodonnell/gravwell/pkg/game/types"
	"github.com/google/uuid"
)

type MatchResult struct {
	MatchID uuid.UUID              `json:"matchID"`
	Outcome gametypes.MatchOutcome `json:"outcome"`
	// Deaths is the number of players that died during the match
	Deaths int `json:"deaths"`
	// Survivors is the number of players still alive when the match ended
	Survivors int `json:"survivors"`
	Boost     int `json:"boost"`
	// EndedAt is a unix timestamp in milliseconds
	EndedAt int64 `json:"endedAt"`
}

// NewMatchResult summarizes a finished match.
func NewMatchResult(gameState *gametypes.GameState) *MatchResult {
	return &MatchResult{
		MatchID:   gameState.MatchID,
		Outcome:   gameState.Outcome(),
		Deaths:    len(gameState.Deaths),
		Survivors: len(gameState.Positions),
		Boost:     gameState.Boost,
		EndedAt:   gameState.UpdatedAt.UnixMilli(),
	}
}
