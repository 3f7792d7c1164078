package kinematic

// This package includes functions for the big four kinematic equations.

import (
	"math"
	"time"

	gametypes "github.com/cbodonnell/gravwell/pkg/game/types"
)

// Displacement returns the displacement of an object given its initial velocity, time, and acceleration.
func Displacement(initialVelocity float64, time float64, acceleration float64) float64 {
	return initialVelocity*time + 0.5*acceleration*math.Pow(time, 2)
}

// FinalVelocity returns the final velocity of an object given its initial velocity, time, and acceleration.
func FinalVelocity(initialVelocity float64, time float64, acceleration float64) float64 {
	return initialVelocity + acceleration*time
}

type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (v Vector) Add(other Vector) Vector {
	return Vector{X: v.X + other.X, Y: v.Y + other.Y}
}

func (v Vector) Scale(s float64) Vector {
	return Vector{X: v.X * s, Y: v.Y * s}
}

func (v Vector) Magnitude() float64 {
	return math.Hypot(v.X, v.Y)
}

// MaxExtrapolation caps how far ahead a planet is projected from its last
// reported state.
const MaxExtrapolation = 250 * time.Millisecond

// PlanetPositionAt projects a planet to now from the time it was last reported.
// A planet without a report time is not extrapolated.
func PlanetPositionAt(planet gametypes.PlanetState, now time.Time) Vector {
	if planet.UpdatedAt.IsZero() {
		return Vector{X: planet.X, Y: planet.Y}
	}
	return ExtrapolatePlanet(planet, now.Sub(planet.UpdatedAt))
}

// ExtrapolatePlanet projects a planet forward from its last reported state
// assuming constant velocity. elapsed is clamped to [0, MaxExtrapolation].
func ExtrapolatePlanet(planet gametypes.PlanetState, elapsed time.Duration) Vector {
	if elapsed < 0 {
		elapsed = 0
	} else if elapsed > MaxExtrapolation {
		elapsed = MaxExtrapolation
	}
	t := elapsed.Seconds()
	return Vector{
		X: planet.X + Displacement(planet.VelX, t, 0),
		Y: planet.Y + Displacement(planet.VelY, t, 0),
	}
}
