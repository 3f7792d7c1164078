package types

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGameState(t *testing.T) {
	g := NewGameState()

	assert.Equal(t, DefaultBoost, g.Boost)
	assert.Empty(t, g.Deaths)
	assert.Empty(t, g.Positions)
	assert.Empty(t, g.Planets)
	assert.False(t, g.Countdown)
	assert.Equal(t, MatchOutcomeInProgress, g.Outcome())
	assert.NotEqual(t, uuid.Nil, g.MatchID)
}

func TestGameState_Copy(t *testing.T) {
	g := NewGameState()
	g.Deaths["alice"] = struct{}{}
	g.Positions["bob"] = PlayerPosition{X: 1, Y: 2, Angle: 0.5}
	g.Planets["earth"] = PlanetState{X: 10, Y: 20, VelX: 1, VelY: -1}
	g.Countdown = true
	g.Boost = 42

	c := g.Copy()
	assert.Equal(t, g, c)

	g.Deaths["carol"] = struct{}{}
	g.Positions["bob"] = PlayerPosition{X: 9, Y: 9, Angle: 9}
	g.Planets["mars"] = PlanetState{}
	g.Boost = 0

	assert.Equal(t, []string{"alice"}, c.DeadPlayers())
	assert.Equal(t, PlayerPosition{X: 1, Y: 2, Angle: 0.5}, c.Positions["bob"])
	assert.Len(t, c.Planets, 1)
	assert.Equal(t, 42, c.Boost)
}

func TestGameState_DeadPlayers(t *testing.T) {
	g := NewGameState()
	g.Deaths["zed"] = struct{}{}
	g.Deaths["amy"] = struct{}{}

	assert.Equal(t, []string{"amy", "zed"}, g.DeadPlayers())
	assert.True(t, g.IsDead("amy"))
	assert.False(t, g.IsDead("bob"))
}

func TestMatchOutcome_String(t *testing.T) {
	for _, o := range []MatchOutcome{MatchOutcomeInProgress, MatchOutcomeWon, MatchOutcomeLost} {
		parsed, ok := ParseMatchOutcome(o.String())
		assert.True(t, ok)
		assert.Equal(t, o, parsed)
	}
	_, ok := ParseMatchOutcome("draw")
	assert.False(t, ok)
	assert.False(t, MatchOutcomeInProgress.IsTerminal())
	assert.True(t, MatchOutcomeLost.IsTerminal())
}

func TestMatchOutcome_Text(t *testing.T) {
	b, err := json.Marshal(map[string]MatchOutcome{"outcome": MatchOutcomeLost})
	require.NoError(t, err)
	assert.JSONEq(t, `{"outcome":"lost"}`, string(b))

	var o MatchOutcome
	require.NoError(t, o.UnmarshalText([]byte("won")))
	assert.Equal(t, MatchOutcomeWon, o)

	assert.Error(t, o.UnmarshalText([]byte("draw")))
	_, err = MatchOutcome(9).MarshalText()
	assert.Error(t, err)
}
