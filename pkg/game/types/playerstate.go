package types

import "time"

// PlayerPosition is where a living player is and which way they face.
type PlayerPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	// Angle is the heading in radians
	Angle float64 `json:"angle"`
}

// PlanetState is the kinematic state of a celestial body as last reported by the server.
type PlanetState struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	VelX float64 `json:"velX"`
	VelY float64 `json:"velY"`
	// UpdatedAt is when this planet was last reported
	UpdatedAt time.Time `json:"updatedAt"`
}
