package game

import (
	"math"
	"math/rand"

	"github.com/cbodonnell/gravwell/pkg/game/constants"
	"github.com/cbodonnell/gravwell/pkg/kinematic"
	"github.com/solarlune/resolv"
)

var worldCenter = kinematic.Vector{X: constants.WorldWidth / 2, Y: constants.WorldHeight / 2}

// Planet orbits the world center at a constant angular speed.
type Planet struct {
	ID           string
	Orbit        float64
	Phase        float64
	AngularSpeed float64
	Position     kinematic.Vector
	Velocity     kinematic.Vector
	Object       *resolv.Object
}

func NewPlanet(id string, orbit, phase, angularSpeed float64) *Planet {
	p := &Planet{
		ID:           id,
		Orbit:        orbit,
		Phase:        phase,
		AngularSpeed: angularSpeed,
		Object:       resolv.NewObject(0, 0, constants.PlanetSize, constants.PlanetSize, CollisionSpaceTagPlanet),
	}
	p.Update(0)
	return p
}

// Update advances the planet along its orbit.
func (p *Planet) Update(deltaTime float64) {
	p.Phase = math.Mod(p.Phase+p.AngularSpeed*deltaTime, 2*math.Pi)
	sin, cos := math.Sincos(p.Phase)
	p.Position = worldCenter.Add(kinematic.Vector{X: cos, Y: sin}.Scale(p.Orbit))
	p.Velocity = kinematic.Vector{X: -sin, Y: cos}.Scale(p.Orbit * p.AngularSpeed)

	p.Object.Position.X = p.Position.X - constants.PlanetSize/2
	p.Object.Position.Y = p.Position.Y - constants.PlanetSize/2
	p.Object.Update()
}

// Ship is a player flying through the world.
type Ship struct {
	User     string
	Position kinematic.Vector
	Angle    float64
	Dead     bool
	Object   *resolv.Object
}

func NewShip(user string, x, y, angle float64) *Ship {
	s := &Ship{
		User:     user,
		Position: kinematic.Vector{X: x, Y: y},
		Angle:    angle,
		Object:   resolv.NewObject(x-constants.ShipSize/2, y-constants.ShipSize/2, constants.ShipSize, constants.ShipSize, CollisionSpaceTagShip),
	}
	return s
}

// Update steers the ship randomly and moves it, wrapping at the world edges.
func (s *Ship) Update(deltaTime float64, rng *rand.Rand) {
	if s.Dead {
		return
	}

	s.Angle += rng.NormFloat64() * constants.ShipTurnRate * deltaTime
	sin, cos := math.Sincos(s.Angle)
	s.Position.X = wrap(s.Position.X+kinematic.Displacement(cos*constants.ShipSpeed, deltaTime, 0), constants.WorldWidth)
	s.Position.Y = wrap(s.Position.Y+kinematic.Displacement(sin*constants.ShipSpeed, deltaTime, 0), constants.WorldHeight)

	s.Object.Position.X = s.Position.X - constants.ShipSize/2
	s.Object.Position.Y = s.Position.Y - constants.ShipSize/2
	s.Object.Update()
}

// HitPlanet returns the planet object the ship overlaps, or nil.
// resolv narrows candidates to shared cells, then the circles are compared.
func (s *Ship) HitPlanet() *resolv.Object {
	if s.Dead {
		return nil
	}
	collision := s.Object.Check(0, 0, CollisionSpaceTagPlanet)
	if collision == nil {
		return nil
	}
	for _, obj := range collision.Objects {
		center := kinematic.Vector{
			X: obj.Position.X + obj.Size.X/2,
			Y: obj.Position.Y + obj.Size.Y/2,
		}
		if center.Add(s.Position.Scale(-1)).Magnitude() < (obj.Size.X+constants.ShipSize)/2 {
			return obj
		}
	}
	return nil
}

func wrap(v, max float64) float64 {
	v = math.Mod(v, max)
	if v < 0 {
		v += max
	}
	return v
}
