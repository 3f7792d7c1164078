package workers

import (
	"context"
	"time"

	gametypes "github.com/cbodonnell/gravwell/pkg/game/types"
	"github.com/cbodonnell/gravwell/pkg/log"
	"github.com/cbodonnell/gravwell/pkg/repositories"
	"github.com/cbodonnell/gravwell/pkg/repositories/models"
	"github.com/cbodonnell/gravwell/pkg/state"
	"github.com/google/uuid"
)

const (
	// DefaultSaveInterval is used when no positive interval is given
	DefaultSaveInterval = 5 * time.Second
)

type SaveMatchWorker struct {
	repository      repositories.Repository
	gameState       state.Snapshotter
	finishedMatches <-chan *gametypes.GameState
	interval        time.Duration
	saved           map[uuid.UUID]struct{}
}

type NewSaveMatchWorkerOptions struct {
	Repository repositories.Repository
	GameState  state.Snapshotter
	// FinishedMatches carries matches that were replaced before the next
	// interval could see them. Optional.
	FinishedMatches <-chan *gametypes.GameState
	Interval        time.Duration
}

// NewSaveMatchWorker creates a new SaveMatchWorker.
// The worker periodically snapshots the match state and saves the
// result of each match once it has been decided.
func NewSaveMatchWorker(opts NewSaveMatchWorkerOptions) *SaveMatchWorker {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultSaveInterval
	}

	return &SaveMatchWorker{
		repository:      opts.Repository,
		gameState:       opts.GameState,
		finishedMatches: opts.FinishedMatches,
		interval:        interval,
		saved:           make(map[uuid.UUID]struct{}),
	}
}

func (w *SaveMatchWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// the match may have ended between the last tick and shutdown
			shutdownCtx := context.WithoutCancel(ctx)
			w.drainFinishedMatches(shutdownCtx)
			w.SaveIfDecided(shutdownCtx)
			return
		case gameState := <-w.finishedMatches:
			w.save(ctx, gameState)
		case <-ticker.C:
			w.SaveIfDecided(ctx)
		}
	}
}

func (w *SaveMatchWorker) drainFinishedMatches(ctx context.Context) {
	for {
		select {
		case gameState := <-w.finishedMatches:
			w.save(ctx, gameState)
		default:
			return
		}
	}
}

// SaveIfDecided saves the current match if it has an outcome that has not
// been saved yet. It returns true if a result was written.
func (w *SaveMatchWorker) SaveIfDecided(ctx context.Context) bool {
	return w.save(ctx, w.gameState.Snapshot())
}

func (w *SaveMatchWorker) save(ctx context.Context, gameState *gametypes.GameState) bool {
	if !gameState.Outcome().IsTerminal() {
		return false
	}
	if _, ok := w.saved[gameState.MatchID]; ok {
		return false
	}

	result := models.NewMatchResult(gameState)
	if err := w.repository.SaveMatchResult(ctx, result); err != nil {
		log.Error("Failed to save result of match %s: %v", result.MatchID, err)
		return false
	}

	w.saved[gameState.MatchID] = struct{}{}
	log.Info("Saved result of match %s: %s", result.MatchID, result.Outcome)
	return true
}
