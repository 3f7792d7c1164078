package workers

import (
	"context"
	"testing"
	"time"

	gametypes "github.com/cbodonnell/gravwell/pkg/game/types"
	"github.com/cbodonnell/gravwell/pkg/messages"
	"github.com/cbodonnell/gravwell/pkg/queue"
	"github.com/cbodonnell/gravwell/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockUpdater struct {
	mock.Mock
}

var _ state.Updater = &mockUpdater{}

func (m *mockUpdater) SetDeath(user string) {
	m.Called(user)
}

func (m *mockUpdater) SetPosition(user string, x, y, angle float64) bool {
	return m.Called(user, x, y, angle).Bool(0)
}

func (m *mockUpdater) SetPlanetPosition(id string, x, y, velX, velY float64) {
	m.Called(id, x, y, velX, velY)
}

func (m *mockUpdater) SetCountdown(countdown bool) {
	m.Called(countdown)
}

func (m *mockUpdater) SetBoost(boost int) {
	m.Called(boost)
}

func (m *mockUpdater) SetWon() {
	m.Called()
}

func (m *mockUpdater) SetLost() {
	m.Called()
}

func (m *mockUpdater) Outcome() gametypes.MatchOutcome {
	return m.Called().Get(0).(gametypes.MatchOutcome)
}

func (m *mockUpdater) Reset() *gametypes.GameState {
	gameState, _ := m.Called().Get(0).(*gametypes.GameState)
	return gameState
}

func newMessage(t *testing.T, msgType messages.MessageType, payload interface{}) *messages.Message {
	t.Helper()
	msg, err := messages.NewMessage(0, msgType, payload)
	require.NoError(t, err)
	return msg
}

func TestServerMessageWorker_HandleMessage(t *testing.T) {
	tests := []struct {
		name    string
		msg     func(t *testing.T) *messages.Message
		expect  func(m *mockUpdater)
		wantErr bool
	}{
		{
			name: "player position",
			msg: func(t *testing.T) *messages.Message {
				return newMessage(t, messages.MessageTypeServerPlayerPosition, messages.ServerPlayerPosition{User: "bob", X: 1, Y: 2, Angle: 0.5})
			},
			expect: func(m *mockUpdater) {
				m.On("SetPosition", "bob", 1.0, 2.0, 0.5).Return(true).Once()
			},
		},
		{
			name: "player position for dead player",
			msg: func(t *testing.T) *messages.Message {
				return newMessage(t, messages.MessageTypeServerPlayerPosition, messages.ServerPlayerPosition{User: "alice"})
			},
			expect: func(m *mockUpdater) {
				m.On("SetPosition", "alice", 0.0, 0.0, 0.0).Return(false).Once()
			},
		},
		{
			name: "player death",
			msg: func(t *testing.T) *messages.Message {
				return newMessage(t, messages.MessageTypeServerPlayerDeath, messages.ServerPlayerDeath{User: "alice"})
			},
			expect: func(m *mockUpdater) {
				m.On("SetDeath", "alice").Once()
			},
		},
		{
			name: "player death without user",
			msg: func(t *testing.T) *messages.Message {
				return newMessage(t, messages.MessageTypeServerPlayerDeath, messages.ServerPlayerDeath{})
			},
			expect:  func(m *mockUpdater) {},
			wantErr: true,
		},
		{
			name: "planet position",
			msg: func(t *testing.T) *messages.Message {
				return newMessage(t, messages.MessageTypeServerPlanetPosition, messages.ServerPlanetPosition{ID: "earth", X: 1, Y: 2, VelX: 3, VelY: 4})
			},
			expect: func(m *mockUpdater) {
				m.On("SetPlanetPosition", "earth", 1.0, 2.0, 3.0, 4.0).Once()
			},
		},
		{
			name: "game update applies each entry",
			msg: func(t *testing.T) *messages.Message {
				return newMessage(t, messages.MessageTypeServerGameUpdate, messages.ServerGameUpdate{
					Timestamp: 1,
					Players: []messages.ServerPlayerPosition{
						{User: "bob", X: 1, Y: 1, Angle: 1},
						{User: "carol", X: 2, Y: 2, Angle: 2},
					},
					Planets: []messages.ServerPlanetPosition{
						{ID: "earth", X: 5, Y: 5},
					},
				})
			},
			expect: func(m *mockUpdater) {
				m.On("SetPosition", "bob", 1.0, 1.0, 1.0).Return(true).Once()
				m.On("SetPosition", "carol", 2.0, 2.0, 2.0).Return(true).Once()
				m.On("SetPlanetPosition", "earth", 5.0, 5.0, 0.0, 0.0).Once()
			},
		},
		{
			name: "countdown",
			msg: func(t *testing.T) *messages.Message {
				return newMessage(t, messages.MessageTypeServerCountdown, messages.ServerCountdown{Countdown: true})
			},
			expect: func(m *mockUpdater) {
				m.On("Outcome").Return(gametypes.MatchOutcomeInProgress).Once()
				m.On("SetCountdown", true).Once()
			},
		},
		{
			name: "countdown after a decided match starts a new one",
			msg: func(t *testing.T) *messages.Message {
				return newMessage(t, messages.MessageTypeServerCountdown, messages.ServerCountdown{Countdown: true})
			},
			expect: func(m *mockUpdater) {
				m.On("Outcome").Return(gametypes.MatchOutcomeWon).Once()
				m.On("Reset").Return(gametypes.NewGameState()).Once()
				m.On("SetCountdown", true).Once()
			},
		},
		{
			name: "countdown end never resets",
			msg: func(t *testing.T) *messages.Message {
				return newMessage(t, messages.MessageTypeServerCountdown, messages.ServerCountdown{Countdown: false})
			},
			expect: func(m *mockUpdater) {
				m.On("SetCountdown", false).Once()
			},
		},
		{
			name: "boost",
			msg: func(t *testing.T) *messages.Message {
				return newMessage(t, messages.MessageTypeServerBoost, messages.ServerBoost{Boost: 5000})
			},
			expect: func(m *mockUpdater) {
				m.On("SetBoost", 5000).Once()
			},
		},
		{
			name: "won",
			msg: func(t *testing.T) *messages.Message {
				return newMessage(t, messages.MessageTypeServerMatchWon, nil)
			},
			expect: func(m *mockUpdater) {
				m.On("SetWon").Once()
			},
		},
		{
			name: "lost",
			msg: func(t *testing.T) *messages.Message {
				return newMessage(t, messages.MessageTypeServerMatchLost, nil)
			},
			expect: func(m *mockUpdater) {
				m.On("SetLost").Once()
			},
		},
		{
			name: "malformed payload",
			msg: func(t *testing.T) *messages.Message {
				return &messages.Message{Type: messages.MessageTypeServerBoost, Payload: []byte("{")}
			},
			expect:  func(m *mockUpdater) {},
			wantErr: true,
		},
		{
			name: "unknown type is ignored",
			msg: func(t *testing.T) *messages.Message {
				return &messages.Message{Type: messages.MessageType(250)}
			},
			expect: func(m *mockUpdater) {},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updater := &mockUpdater{}
			tt.expect(updater)

			w := NewServerMessageWorker(NewServerMessageWorkerOptions{
				ServerMessageQueue: queue.NewInMemoryQueue(1),
				GameState:          updater,
			})

			err := w.HandleMessage(tt.msg(t))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			updater.AssertExpectations(t)
		})
	}
}

func TestServerMessageWorker_Start(t *testing.T) {
	serverMessageQueue := queue.NewInMemoryQueue(16)
	gameState := state.NewSharedGameState()

	w := NewServerMessageWorker(NewServerMessageWorkerOptions{
		ServerMessageQueue: serverMessageQueue,
		GameState:          gameState,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Start(ctx)
	}()

	require.NoError(t, serverMessageQueue.Enqueue(newMessage(t, messages.MessageTypeServerPlayerPosition, messages.ServerPlayerPosition{User: "alice", X: 1, Y: 1})))
	require.NoError(t, serverMessageQueue.Enqueue("not a message"))
	require.NoError(t, serverMessageQueue.Enqueue(newMessage(t, messages.MessageTypeServerPlayerPosition, messages.ServerPlayerPosition{User: "bob", X: 2, Y: 2})))
	require.NoError(t, serverMessageQueue.Enqueue(newMessage(t, messages.MessageTypeServerPlayerDeath, messages.ServerPlayerDeath{User: "alice"})))
	require.NoError(t, serverMessageQueue.Enqueue(newMessage(t, messages.MessageTypeServerPlayerPosition, messages.ServerPlayerPosition{User: "alice", X: 3, Y: 3})))
	require.NoError(t, serverMessageQueue.Enqueue(newMessage(t, messages.MessageTypeServerMatchWon, nil)))

	require.Eventually(t, func() bool {
		return gameState.Outcome() == gametypes.MatchOutcomeWon
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}

	got := gameState.Snapshot()
	assert.Equal(t, []string{"alice"}, got.DeadPlayers())
	assert.Equal(t, map[string]gametypes.PlayerPosition{
		"bob": {X: 2, Y: 2},
	}, got.Positions)
}

func TestServerMessageWorker_newMatchHandsOffFinishedMatch(t *testing.T) {
	gameState := state.NewSharedGameState()
	finishedMatches := make(chan *gametypes.GameState, 1)
	w := NewServerMessageWorker(NewServerMessageWorkerOptions{
		ServerMessageQueue: queue.NewInMemoryQueue(1),
		GameState:          gameState,
		FinishedMatches:    finishedMatches,
	})

	matchID := gameState.MatchID()
	require.NoError(t, w.HandleMessage(newMessage(t, messages.MessageTypeServerPlayerDeath, messages.ServerPlayerDeath{User: "alice"})))
	require.NoError(t, w.HandleMessage(newMessage(t, messages.MessageTypeServerMatchLost, nil)))
	require.NoError(t, w.HandleMessage(newMessage(t, messages.MessageTypeServerCountdown, messages.ServerCountdown{Countdown: true})))

	got := gameState.Snapshot()
	assert.NotEqual(t, matchID, got.MatchID)
	assert.True(t, got.Countdown)
	assert.Empty(t, got.Deaths)
	assert.Equal(t, gametypes.MatchOutcomeInProgress, got.Outcome())

	select {
	case finished := <-finishedMatches:
		assert.Equal(t, matchID, finished.MatchID)
		assert.Equal(t, gametypes.MatchOutcomeLost, finished.Outcome())
		assert.Equal(t, []string{"alice"}, finished.DeadPlayers())
	default:
		t.Fatal("finished match was not handed off")
	}

	// a full channel does not block the writer
	finishedMatches <- gametypes.NewGameState()
	require.NoError(t, w.HandleMessage(newMessage(t, messages.MessageTypeServerMatchWon, nil)))
	require.NoError(t, w.HandleMessage(newMessage(t, messages.MessageTypeServerCountdown, messages.ServerCountdown{Countdown: true})))
	assert.Equal(t, gametypes.MatchOutcomeInProgress, gameState.Outcome())
}
