package game

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/cbodonnell/gravwell/pkg/clients"
	"github.com/cbodonnell/gravwell/pkg/game/constants"
	gametypes "github.com/cbodonnell/gravwell/pkg/game/types"
	"github.com/cbodonnell/gravwell/pkg/log"
	"github.com/cbodonnell/gravwell/pkg/messages"
	"github.com/cbodonnell/gravwell/pkg/queue"
	"github.com/cbodonnell/gravwell/pkg/workers"
	"github.com/solarlune/resolv"
)

type MatchPhase int

const (
	MatchPhaseCountdown MatchPhase = iota
	MatchPhasePlaying
	MatchPhaseOver
)

func (p MatchPhase) String() string {
	switch p {
	case MatchPhaseCountdown:
		return "countdown"
	case MatchPhasePlaying:
		return "playing"
	case MatchPhaseOver:
		return "over"
	}
	return "unknown"
}

// MatchManager simulates a single scripted match and broadcasts its state.
// The match is won if the tracked player survives MatchDuration or outlives
// everyone else, and lost if the tracked player dies.
type MatchManager struct {
	broadcastMessageChan chan<- workers.BroadcastMessage
	connectionEventQueue queue.Queue
	gameLoopInterval     time.Duration
	rematchDelay         time.Duration
	players              []string
	planetCount          int
	trackedPlayer        string
	// done unblocks reliable broadcasts once the loop is stopping
	done <-chan struct{}
	rng  *rand.Rand

	space   *resolv.Space
	planets []*Planet
	ships   []*Ship

	phase         MatchPhase
	elapsed       time.Duration
	boost         int
	boostFraction float64
	lastSentBoost int
	outcome       gametypes.MatchOutcome
}

// NewMatchManagerOptions contains options for creating a new MatchManager.
type NewMatchManagerOptions struct {
	BroadcastMessageChan chan<- workers.BroadcastMessage
	// ConnectionEventQueue receives clients.ClientEvent values. Optional.
	ConnectionEventQueue queue.Queue
	GameLoopInterval     time.Duration
	// Players are the ships in the match. The first one is tracked.
	Players []string
	Planets int
	Seed    int64
	// RematchDelay is how long a finished match stays over before the next
	// one starts. 0 plays a single match.
	RematchDelay time.Duration
}

func NewMatchManager(opts NewMatchManagerOptions) (*MatchManager, error) {
	if len(opts.Players) == 0 {
		return nil, fmt.Errorf("at least one player is required")
	}
	if opts.GameLoopInterval <= 0 {
		return nil, fmt.Errorf("game loop interval must be positive")
	}

	mm := &MatchManager{
		broadcastMessageChan: opts.BroadcastMessageChan,
		connectionEventQueue: opts.ConnectionEventQueue,
		gameLoopInterval:     opts.GameLoopInterval,
		rematchDelay:         opts.RematchDelay,
		players:              opts.Players,
		planetCount:          opts.Planets,
		trackedPlayer:        opts.Players[0],
		rng:                  rand.New(rand.NewSource(opts.Seed)),
		space:                NewCollisionSpace(),
		boost:                gametypes.DefaultBoost,
		lastSentBoost:        gametypes.DefaultBoost,
	}
	mm.initializeWorld()
	return mm, nil
}

func (mm *MatchManager) initializeWorld() {
	players, planetCount := mm.players, mm.planetCount
	maxOrbit := math.Min(constants.WorldWidth, constants.WorldHeight)/2 - constants.PlanetSize
	for i := 0; i < planetCount; i++ {
		orbit := constants.PlanetMinOrbit
		if planetCount > 1 {
			orbit += (maxOrbit - constants.PlanetMinOrbit) * float64(i) / float64(planetCount-1)
		}
		speed := constants.PlanetMaxAngularSpeed * (0.25 + 0.75*mm.rng.Float64())
		if mm.rng.Intn(2) == 0 {
			speed = -speed
		}
		planet := NewPlanet(fmt.Sprintf("planet-%d", i+1), orbit, mm.rng.Float64()*2*math.Pi, speed)
		mm.planets = append(mm.planets, planet)
		mm.space.Add(planet.Object)
	}

	// ships start on a ring in the gap between the center and the first orbit
	spawnRadius := constants.PlanetMinOrbit / 2
	for i, user := range players {
		a := 2 * math.Pi * float64(i) / float64(len(players))
		sin, cos := math.Sincos(a)
		ship := NewShip(user, worldCenter.X+cos*spawnRadius, worldCenter.Y+sin*spawnRadius, a)
		mm.ships = append(mm.ships, ship)
		mm.space.Add(ship.Object)
	}
}

// Start runs the game loop until ctx is done.
func (mm *MatchManager) Start(ctx context.Context) error {
	mm.done = ctx.Done()
	ticker := time.NewTicker(mm.gameLoopInterval)
	defer ticker.Stop()

	log.Info("Match starting with %d players and %d planets", len(mm.ships), len(mm.planets))
	mm.broadcast(0, true, messages.MessageTypeServerCountdown, messages.ServerCountdown{Countdown: true})

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			mm.gameTick(mm.gameLoopInterval)
		}
	}
}

// gameTick runs one iteration of the game loop.
func (mm *MatchManager) gameTick(delta time.Duration) {
	mm.processConnectionEvents()
	if mm.phase == MatchPhaseOver {
		mm.waitForRematch(delta)
		return
	}

	mm.elapsed += delta
	deltaTime := delta.Seconds()

	for _, planet := range mm.planets {
		planet.Update(deltaTime)
	}

	switch mm.phase {
	case MatchPhaseCountdown:
		if mm.elapsed >= constants.CountdownDuration {
			mm.phase = MatchPhasePlaying
			mm.elapsed = 0
			log.Info("Countdown over")
			mm.broadcast(0, true, messages.MessageTypeServerCountdown, messages.ServerCountdown{Countdown: false})
		}
	case MatchPhasePlaying:
		mm.updateShips(deltaTime)
		mm.drainBoost(deltaTime)
		mm.checkOutcome()
	}

	mm.broadcastGameState()
}

func (mm *MatchManager) updateShips(deltaTime float64) {
	for _, ship := range mm.ships {
		ship.Update(deltaTime, mm.rng)
	}
	for _, ship := range mm.ships {
		planet := ship.HitPlanet()
		if planet == nil {
			continue
		}
		ship.Dead = true
		mm.space.Remove(ship.Object)
		log.Debug("Player %s crashed", ship.User)
		mm.broadcast(0, true, messages.MessageTypeServerPlayerDeath, messages.ServerPlayerDeath{User: ship.User})
	}
}

func (mm *MatchManager) drainBoost(deltaTime float64) {
	mm.boostFraction += float64(constants.BoostDrainPerSecond) * deltaTime
	drained := int(mm.boostFraction)
	mm.boostFraction -= float64(drained)
	mm.boost = max(mm.boost-drained, 0)

	if mm.lastSentBoost-mm.boost >= constants.BoostDrainPerSecond || (mm.boost == 0 && mm.lastSentBoost != 0) {
		mm.lastSentBoost = mm.boost
		mm.broadcast(0, true, messages.MessageTypeServerBoost, messages.ServerBoost{Boost: mm.boost})
	}
}

func (mm *MatchManager) checkOutcome() {
	tracked, alive := mm.shipStatus()
	switch {
	case tracked.Dead:
		mm.endMatch(gametypes.MatchOutcomeLost)
	case alive == 1 && len(mm.ships) > 1, mm.elapsed >= constants.MatchDuration:
		mm.endMatch(gametypes.MatchOutcomeWon)
	}
}

func (mm *MatchManager) shipStatus() (*Ship, int) {
	var tracked *Ship
	alive := 0
	for _, ship := range mm.ships {
		if ship.User == mm.trackedPlayer {
			tracked = ship
		}
		if !ship.Dead {
			alive++
		}
	}
	return tracked, alive
}

func (mm *MatchManager) endMatch(outcome gametypes.MatchOutcome) {
	mm.phase = MatchPhaseOver
	mm.elapsed = 0
	mm.outcome = outcome
	log.Info("Match over: %s", outcome)
	mm.broadcast(0, true, outcomeMessageType(outcome), nil)
}

func (mm *MatchManager) waitForRematch(delta time.Duration) {
	if mm.rematchDelay <= 0 {
		return
	}
	mm.elapsed += delta
	if mm.elapsed >= mm.rematchDelay {
		mm.restart()
	}
}

// restart puts every ship back on the spawn ring and counts down again.
func (mm *MatchManager) restart() {
	mm.space = NewCollisionSpace()
	mm.planets = nil
	mm.ships = nil
	mm.phase = MatchPhaseCountdown
	mm.elapsed = 0
	mm.boost = gametypes.DefaultBoost
	mm.boostFraction = 0
	mm.lastSentBoost = gametypes.DefaultBoost
	mm.outcome = gametypes.MatchOutcomeInProgress
	mm.initializeWorld()

	log.Info("Rematch starting with %d players and %d planets", len(mm.ships), len(mm.planets))
	mm.broadcast(0, true, messages.MessageTypeServerCountdown, messages.ServerCountdown{Countdown: true})
}

func outcomeMessageType(outcome gametypes.MatchOutcome) messages.MessageType {
	if outcome == gametypes.MatchOutcomeWon {
		return messages.MessageTypeServerMatchWon
	}
	return messages.MessageTypeServerMatchLost
}

// processConnectionEvents brings newly connected clients up to date with the
// state that is only ever sent reliably.
func (mm *MatchManager) processConnectionEvents() {
	if mm.connectionEventQueue == nil {
		return
	}
	pendingEvents, err := mm.connectionEventQueue.ReadAllMessages()
	if err != nil {
		log.Error("Failed to read connection events: %v", err)
		return
	}
	for _, item := range pendingEvents {
		event, ok := item.(clients.ClientEvent)
		if !ok {
			log.Error("unhandled connection event type: %T", item)
			continue
		}
		switch event.Type {
		case clients.ClientEventTypeConnect:
			log.Debug("Syncing client %d", event.ClientID)
			mm.syncClient(event.ClientID)
		case clients.ClientEventTypeDisconnect:
			log.Debug("Client %d left", event.ClientID)
		}
	}
}

func (mm *MatchManager) syncClient(clientID uint32) {
	mm.broadcast(clientID, true, messages.MessageTypeServerCountdown, messages.ServerCountdown{Countdown: mm.phase == MatchPhaseCountdown})
	mm.broadcast(clientID, true, messages.MessageTypeServerBoost, messages.ServerBoost{Boost: mm.boost})
	for _, ship := range mm.ships {
		if ship.Dead {
			mm.broadcast(clientID, true, messages.MessageTypeServerPlayerDeath, messages.ServerPlayerDeath{User: ship.User})
		}
	}
	mm.broadcastGameStateTo(clientID, true)
	if mm.phase == MatchPhaseOver {
		mm.broadcast(clientID, true, outcomeMessageType(mm.outcome), nil)
	}
}

// broadcastGameState sends every ship and planet position to connected clients.
func (mm *MatchManager) broadcastGameState() {
	mm.broadcastGameStateTo(0, false)
}

func (mm *MatchManager) broadcastGameStateTo(clientID uint32, reliable bool) {
	mm.broadcast(clientID, reliable, messages.MessageTypeServerGameUpdate, mm.ServerGameUpdate())
}

// ServerGameUpdate returns the current positions of living ships and all planets.
func (mm *MatchManager) ServerGameUpdate() *messages.ServerGameUpdate {
	update := &messages.ServerGameUpdate{
		Timestamp: time.Now().UnixMilli(),
		Players:   make([]messages.ServerPlayerPosition, 0, len(mm.ships)),
		Planets:   make([]messages.ServerPlanetPosition, 0, len(mm.planets)),
	}
	for _, ship := range mm.ships {
		if ship.Dead {
			continue
		}
		update.Players = append(update.Players, messages.ServerPlayerPosition{
			User:  ship.User,
			X:     float32(ship.Position.X),
			Y:     float32(ship.Position.Y),
			Angle: float32(ship.Angle),
		})
	}
	for _, planet := range mm.planets {
		update.Planets = append(update.Planets, messages.ServerPlanetPosition{
			ID:   planet.ID,
			X:    float32(planet.Position.X),
			Y:    float32(planet.Position.Y),
			VelX: float32(planet.Velocity.X),
			VelY: float32(planet.Velocity.Y),
		})
	}
	sort.Slice(update.Players, func(i, j int) bool {
		return update.Players[i].User < update.Players[j].User
	})
	return update
}

func (mm *MatchManager) broadcast(clientID uint32, reliable bool, t messages.MessageType, payload interface{}) {
	msg, err := messages.NewMessage(0, t, payload)
	if err != nil {
		log.Error("Failed to create %s message: %v", t, err)
		return
	}

	bm := workers.BroadcastMessage{ClientID: clientID, Reliable: reliable, Message: msg}
	if reliable {
		select {
		case mm.broadcastMessageChan <- bm:
		case <-mm.done:
		}
		return
	}
	select {
	case mm.broadcastMessageChan <- bm:
	default:
		log.Warn("Broadcast channel full, dropping %s message", t)
	}
}

func (mm *MatchManager) Phase() MatchPhase {
	return mm.phase
}

func (mm *MatchManager) Outcome() gametypes.MatchOutcome {
	return mm.outcome
}
