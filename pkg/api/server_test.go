package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/cbodonnell/gravwell/pkg/api/handlers"
	gametypes "github.com/cbodonnell/gravwell/pkg/game/types"
	"github.com/cbodonnell/gravwell/pkg/repositories"
	"github.com/cbodonnell/gravwell/pkg/repositories/models"
	"github.com/cbodonnell/gravwell/pkg/state"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *state.SharedGameState, repositories.Repository) {
	t.Helper()
	ctx := context.Background()

	repository, err := repositories.NewSQLiteRepository(ctx, filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		repository.Close(ctx)
	})

	gameState := state.NewSharedGameState()
	server := httptest.NewServer(NewRouter(gameState, repository))
	t.Cleanup(server.Close)

	return server, gameState, repository
}

func getJSON(t *testing.T, url string, v interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK && v != nil {
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestGetState(t *testing.T) {
	server, gameState, _ := newTestServer(t)

	gameState.SetPosition("bob", 1, 2, 0.5)
	gameState.SetDeath("zed")
	gameState.SetDeath("alice")
	gameState.SetPlanetPosition("earth", 10, 20, 1, -1)
	gameState.SetCountdown(true)
	gameState.SetBoost(5000)

	body := &handlers.StateResponseBody{}
	require.Equal(t, http.StatusOK, getJSON(t, server.URL+"/state", body))

	assert.Equal(t, gameState.MatchID(), body.MatchID)
	assert.Equal(t, "in-progress", body.Outcome)
	assert.Equal(t, 5000, body.Boost)
	assert.Equal(t, []string{"alice", "zed"}, body.Deaths)
	assert.Equal(t, map[string]gametypes.PlayerPosition{"bob": {X: 1, Y: 2, Angle: 0.5}}, body.Positions)
	earth := body.Planets["earth"]
	assert.Equal(t, []float64{10, 20, 1, -1}, []float64{earth.X, earth.Y, earth.VelX, earth.VelY})
	assert.False(t, earth.UpdatedAt.IsZero())
	assert.True(t, body.Countdown)
	assert.False(t, body.Won)
	assert.False(t, body.Lost)
}

func TestGetState_emptyDeathsIsArray(t *testing.T) {
	server, _, _ := newTestServer(t)

	raw := map[string]json.RawMessage{}
	require.Equal(t, http.StatusOK, getJSON(t, server.URL+"/state", &raw))
	assert.JSONEq(t, `[]`, string(raw["deaths"]))
}

func TestMatches(t *testing.T) {
	server, _, repository := newTestServer(t)
	ctx := context.Background()

	result := &models.MatchResult{
		MatchID: uuid.New(),
		Outcome: gametypes.MatchOutcomeWon,
		Deaths:  2,
		EndedAt: 1000,
	}
	require.NoError(t, repository.SaveMatchResult(ctx, result))

	var results []*models.MatchResult
	require.Equal(t, http.StatusOK, getJSON(t, server.URL+"/matches?limit=5", &results))
	require.Len(t, results, 1)
	assert.Equal(t, result, results[0])

	got := &models.MatchResult{}
	require.Equal(t, http.StatusOK, getJSON(t, server.URL+"/matches/"+result.MatchID.String(), got))
	assert.Equal(t, result, got)

	assert.Equal(t, http.StatusNotFound, getJSON(t, server.URL+"/matches/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, server.URL+"/matches/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, server.URL+"/matches?limit=zero", nil))
}

func TestRouter_withoutRepository(t *testing.T) {
	server := httptest.NewServer(NewRouter(state.NewSharedGameState(), nil))
	defer server.Close()

	assert.Equal(t, http.StatusOK, getJSON(t, server.URL+"/healthz", nil))
	assert.Equal(t, http.StatusNotFound, getJSON(t, server.URL+"/matches", nil))
}

func TestRouter_methodNotAllowed(t *testing.T) {
	server, _, _ := newTestServer(t)

	resp, err := http.Post(server.URL+"/state", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
