package constants

import "time"

const (
	// WorldWidth is the width of the simulated world
	WorldWidth float64 = 1600.0
	// WorldHeight is the height of the simulated world
	WorldHeight float64 = 1200.0
	// CollisionCellSize is the resolv cell size
	CollisionCellSize int = 32

	// PlanetSize is the diameter of a planet
	PlanetSize float64 = 64.0
	// PlanetMinOrbit is the smallest orbit radius around the world center
	PlanetMinOrbit float64 = 150.0
	// PlanetMaxAngularSpeed is the fastest a planet orbits, in radians per second
	PlanetMaxAngularSpeed float64 = 0.5

	// ShipSize is the diameter of a ship
	ShipSize float64 = 16.0
	// ShipSpeed is how fast ships fly
	ShipSpeed float64 = 120.0
	// ShipTurnRate is the standard deviation of a ship's random steering, in radians per second
	ShipTurnRate float64 = 1.5

	// BoostDrainPerSecond is how fast the tracked player's boost drains while the match is running
	BoostDrainPerSecond int = 100

	// CountdownDuration is how long the pre-match countdown lasts
	CountdownDuration = 3 * time.Second
	// MatchDuration is how long the tracked player must survive to win
	MatchDuration = 60 * time.Second
)
