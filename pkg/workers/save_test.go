package workers

import (
	"context"
	"fmt"
	"testing"
	"time"

	gametypes "github.com/cbodonnell/gravwell/pkg/game/types"
	"github.com/cbodonnell/gravwell/pkg/repositories"
	"github.com/cbodonnell/gravwell/pkg/repositories/models"
	"github.com/cbodonnell/gravwell/pkg/state"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRepository struct {
	mock.Mock
}

var _ repositories.Repository = &mockRepository{}

func (m *mockRepository) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockRepository) SaveMatchResult(ctx context.Context, result *models.MatchResult) error {
	return m.Called(ctx, result).Error(0)
}

func (m *mockRepository) LoadMatchResult(ctx context.Context, matchID uuid.UUID) (*models.MatchResult, error) {
	args := m.Called(ctx, matchID)
	result, _ := args.Get(0).(*models.MatchResult)
	return result, args.Error(1)
}

func (m *mockRepository) ListMatchResults(ctx context.Context, limit int) ([]*models.MatchResult, error) {
	args := m.Called(ctx, limit)
	results, _ := args.Get(0).([]*models.MatchResult)
	return results, args.Error(1)
}

func TestSaveMatchWorker_SaveIfDecided(t *testing.T) {
	ctx := context.Background()
	gameState := state.NewSharedGameState()
	repository := &mockRepository{}

	w := NewSaveMatchWorker(NewSaveMatchWorkerOptions{
		Repository: repository,
		GameState:  gameState,
		Interval:   time.Hour,
	})

	// nothing to save while the match is in progress
	assert.False(t, w.SaveIfDecided(ctx))

	gameState.SetDeath("alice")
	gameState.SetPosition("bob", 1, 1, 1)
	gameState.SetBoost(300)
	gameState.SetLost()

	matchID := gameState.MatchID()
	repository.On("SaveMatchResult", ctx, mock.MatchedBy(func(result *models.MatchResult) bool {
		return result.MatchID == matchID &&
			result.Outcome == gametypes.MatchOutcomeLost &&
			result.Deaths == 1 &&
			result.Survivors == 1 &&
			result.Boost == 300
	})).Return(nil).Once()

	assert.True(t, w.SaveIfDecided(ctx))
	// saved once per match
	assert.False(t, w.SaveIfDecided(ctx))
	repository.AssertExpectations(t)
}

func TestSaveMatchWorker_retriesAfterError(t *testing.T) {
	ctx := context.Background()
	gameState := state.NewSharedGameState()
	gameState.SetWon()
	repository := &mockRepository{}

	w := NewSaveMatchWorker(NewSaveMatchWorkerOptions{
		Repository: repository,
		GameState:  gameState,
		Interval:   time.Hour,
	})

	repository.On("SaveMatchResult", ctx, mock.Anything).Return(fmt.Errorf("database is locked")).Once()
	repository.On("SaveMatchResult", ctx, mock.Anything).Return(nil).Once()

	assert.False(t, w.SaveIfDecided(ctx))
	assert.True(t, w.SaveIfDecided(ctx))
	repository.AssertNumberOfCalls(t, "SaveMatchResult", 2)
}

func TestSaveMatchWorker_Start(t *testing.T) {
	gameState := state.NewSharedGameState()
	repository := &mockRepository{}
	saved := make(chan *models.MatchResult, 1)
	repository.On("SaveMatchResult", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		saved <- args.Get(1).(*models.MatchResult)
	}).Return(nil).Once()

	w := NewSaveMatchWorker(NewSaveMatchWorkerOptions{
		Repository: repository,
		GameState:  gameState,
		Interval:   5 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	gameState.SetWon()

	select {
	case result := <-saved:
		require.NotNil(t, result)
		assert.Equal(t, gametypes.MatchOutcomeWon, result.Outcome)
	case <-time.After(time.Second):
		t.Fatal("match result was not saved")
	}
}

func TestSaveMatchWorker_defaultInterval(t *testing.T) {
	w := NewSaveMatchWorker(NewSaveMatchWorkerOptions{
		Repository: &mockRepository{},
		GameState:  state.NewSharedGameState(),
	})
	assert.Equal(t, DefaultSaveInterval, w.interval)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NotPanics(t, func() { w.Start(ctx) })
}

func TestSaveMatchWorker_savesFinishedMatches(t *testing.T) {
	gameState := state.NewSharedGameState()
	finishedMatches := make(chan *gametypes.GameState, 1)
	repository := &mockRepository{}
	saved := make(chan *models.MatchResult, 1)
	repository.On("SaveMatchResult", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		saved <- args.Get(1).(*models.MatchResult)
	}).Return(nil).Once()

	w := NewSaveMatchWorker(NewSaveMatchWorkerOptions{
		Repository:      repository,
		GameState:       gameState,
		FinishedMatches: finishedMatches,
		Interval:        time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	// the live state has already moved on to the next match
	gameState.SetWon()
	finished := gameState.Reset()
	finishedMatches <- finished

	select {
	case result := <-saved:
		assert.Equal(t, finished.MatchID, result.MatchID)
		assert.Equal(t, gametypes.MatchOutcomeWon, result.Outcome)
	case <-time.After(time.Second):
		t.Fatal("finished match was not saved")
	}
}
