package render

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"sort"
	"time"

	"github.com/cbodonnell/gravwell/client/camera"
	"github.com/cbodonnell/gravwell/client/fonts"
	"github.com/cbodonnell/gravwell/client/input"
	gametypes "github.com/cbodonnell/gravwell/pkg/game/types"
	"github.com/cbodonnell/gravwell/pkg/kinematic"
	"github.com/cbodonnell/gravwell/pkg/log"
	"github.com/cbodonnell/gravwell/pkg/state"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/font"
)

const (
	DefaultScreenWidth  = 960
	DefaultScreenHeight = 720

	planetRadius = 12
	shipSize     = 10
	hudPadding   = 12
)

var (
	backgroundColor = color.RGBA{0x0b, 0x0d, 0x1a, 0xff}
	planetColor     = color.RGBA{0x4f, 0x8f, 0xd8, 0xff}
	shipColor       = color.RGBA{0xf2, 0xf2, 0xf2, 0xff}
	deadColor       = color.RGBA{0xd8, 0x4f, 0x4f, 0xff}
	countdownColor  = color.RGBA{0xf2, 0xc9, 0x4c, 0xff}
	wonColor        = color.RGBA{0x6f, 0xd8, 0x4f, 0xff}
)

// NetworkStatus is the part of the network manager the renderer reports on.
type NetworkStatus interface {
	Ping() float64
	ClientErrChan() <-chan error
}

// Game implements ebiten.Game. Every tick reads exactly one snapshot of the
// shared game state and draws from it.
type Game struct {
	// gameState is the shared state written by the network update worker.
	gameState state.Snapshotter
	// network is optional and only used for the debug overlay and error screen.
	network NetworkStatus
	debug   bool
	// snapshot is the state taken by the last Update.
	snapshot   *gametypes.GameState
	networkErr error
	now        func() time.Time
}

type NewGameOptions struct {
	Debug     bool
	GameState state.Snapshotter
	Network   NetworkStatus
}

func NewGame(opts NewGameOptions) (*Game, error) {
	if opts.GameState == nil {
		return nil, fmt.Errorf("game state is required")
	}
	return &Game{
		gameState: opts.GameState,
		network:   opts.Network,
		debug:     opts.Debug,
		now:       time.Now,
	}, nil
}

func (g *Game) Update() error {
	if input.IsNegativeJustPressed() {
		return ebiten.Termination
	}
	if input.IsDebugJustPressed() {
		g.debug = !g.debug
	}

	if g.networkErr == nil {
		g.networkErr = g.checkNetworkErrors()
		if g.networkErr != nil {
			log.Error("Network error: %v", g.networkErr)
		}
	} else if input.IsPositiveJustPressed() {
		return ebiten.Termination
	}

	g.snapshot = g.gameState.Snapshot()
	return nil
}

func (g *Game) checkNetworkErrors() error {
	if g.network == nil {
		return nil
	}
	select {
	case err := <-g.network.ClientErrChan():
		if err == nil {
			return errors.New("network client stopped")
		}
		return err
	default:
		return nil
	}
}

func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(backgroundColor)

	if g.snapshot != nil {
		g.drawWorld(screen, g.snapshot)
		g.drawDeadList(screen, g.snapshot)
		g.drawHUD(screen, g.snapshot)
	}

	if g.networkErr != nil {
		drawCentered(screen, "Network Error", fonts.NormalFont, -16, deadColor)
		drawCentered(screen, "Press Enter to quit", fonts.SmallFont, 16, shipColor)
	}

	if g.debug {
		g.drawDebugOverlay(screen)
	}
}

func (g *Game) drawWorld(screen *ebiten.Image, snapshot *gametypes.GameState) {
	now := g.now()
	planetIDs := sortedKeys(snapshot.Planets)
	planets := make([]kinematic.Vector, 0, len(planetIDs))
	for _, id := range planetIDs {
		planets = append(planets, kinematic.PlanetPositionAt(snapshot.Planets[id], now))
	}

	users := sortedKeys(snapshot.Positions)
	points := make([]kinematic.Vector, 0, len(planets)+len(users))
	points = append(points, planets...)
	for _, user := range users {
		p := snapshot.Positions[user]
		points = append(points, kinematic.Vector{X: p.X, Y: p.Y})
	}

	w, h := screen.Bounds().Dx(), screen.Bounds().Dy()
	cam := camera.Fit(points, float64(w), float64(h), camera.DefaultMargin)

	for i, p := range planets {
		x, y := cam.ToScreen(p)
		vector.DrawFilledCircle(screen, float32(x), float32(y), planetRadius, planetColor, true)
		text.Draw(screen, planetIDs[i], fonts.SmallFont, int(x)+planetRadius+2, int(y), planetColor)
	}

	for _, user := range users {
		p := snapshot.Positions[user]
		x, y := cam.ToScreen(kinematic.Vector{X: p.X, Y: p.Y})
		drawShip(screen, x, y, p.Angle, shipColor)
		drawCenteredAt(screen, user, fonts.SmallFont, x, y+shipSize+16, shipColor)
	}
}

// drawShip draws a triangle pointing along angle (radians, world space).
func drawShip(screen *ebiten.Image, x, y, angle float64, clr color.Color) {
	// screen Y is flipped
	point := func(a, r float64) (float32, float32) {
		return float32(x + r*math.Cos(a)), float32(y - r*math.Sin(a))
	}
	noseX, noseY := point(angle, shipSize*1.5)
	leftX, leftY := point(angle+2.5, shipSize)
	rightX, rightY := point(angle-2.5, shipSize)

	vector.StrokeLine(screen, noseX, noseY, leftX, leftY, 2, clr, true)
	vector.StrokeLine(screen, leftX, leftY, rightX, rightY, 2, clr, true)
	vector.StrokeLine(screen, rightX, rightY, noseX, noseY, 2, clr, true)
}

func (g *Game) drawDeadList(screen *ebiten.Image, snapshot *gametypes.GameState) {
	dead := snapshot.DeadPlayers()
	if len(dead) == 0 {
		return
	}

	x := screen.Bounds().Dx() - 160
	y := hudPadding + 14
	text.Draw(screen, "DEAD", fonts.SmallFont, x, y, deadColor)
	for _, user := range dead {
		y += 18
		text.Draw(screen, user, fonts.SmallFont, x, y, deadColor)
	}
}

func (g *Game) drawHUD(screen *ebiten.Image, snapshot *gametypes.GameState) {
	text.Draw(screen, fmt.Sprintf("Boost: %d", snapshot.Boost), fonts.MonoFont, hudPadding, screen.Bounds().Dy()-hudPadding, shipColor)

	barWidth := float32(200)
	fill := barWidth * float32(math.Max(0, math.Min(1, float64(snapshot.Boost)/float64(gametypes.DefaultBoost))))
	barY := float32(screen.Bounds().Dy() - hudPadding - 36)
	vector.StrokeRect(screen, hudPadding, barY, barWidth, 8, 1, shipColor, false)
	vector.DrawFilledRect(screen, hudPadding, barY, fill, 8, countdownColor, false)

	switch snapshot.Outcome() {
	case gametypes.MatchOutcomeWon:
		drawCentered(screen, "VICTORY", fonts.NormalFont, 0, wonColor)
	case gametypes.MatchOutcomeLost:
		drawCentered(screen, "DEFEAT", fonts.NormalFont, 0, deadColor)
	default:
		if snapshot.Countdown {
			drawCenteredAt(screen, "Get ready...", fonts.NormalFont, float64(screen.Bounds().Dx())/2, hudPadding+24, countdownColor)
		}
	}
}

func (g *Game) drawDebugOverlay(screen *ebiten.Image) {
	ebitenutil.DebugPrint(screen, fmt.Sprintf("\n   FPS: %0.1f", ebiten.ActualFPS()))
	ebitenutil.DebugPrint(screen, fmt.Sprintf("\n\n   TPS: %0.1f", ebiten.ActualTPS()))
	if g.snapshot != nil {
		ebitenutil.DebugPrint(screen, fmt.Sprintf("\n\n\n   Match: %s", g.snapshot.MatchID))
		ebitenutil.DebugPrint(screen, fmt.Sprintf("\n\n\n\n   Players: %d Dead: %d Planets: %d", len(g.snapshot.Positions), len(g.snapshot.Deaths), len(g.snapshot.Planets)))
	}
	if g.network != nil {
		ebitenutil.DebugPrint(screen, fmt.Sprintf("\n\n\n\n\n   Ping: %0.1f", g.network.Ping()))
	}
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (screenWidth, screenHeight int) {
	return DefaultScreenWidth, DefaultScreenHeight
}

func drawCentered(screen *ebiten.Image, t string, f font.Face, offsetY float64, clr color.Color) {
	drawCenteredAt(screen, t, f, float64(screen.Bounds().Dx())/2, float64(screen.Bounds().Dy())/2+offsetY, clr)
}

func drawCenteredAt(screen *ebiten.Image, t string, f font.Face, x, y float64, clr color.Color) {
	bounds, _ := font.BoundString(f, t)
	width := (bounds.Max.X - bounds.Min.X).Ceil()
	text.Draw(screen, t, f, int(x)-width/2, int(y), clr)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
