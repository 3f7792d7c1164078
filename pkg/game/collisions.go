package game

import (
	"github.com/cbodonnell/gravwell/pkg/game/constants"
	"github.com/solarlune/resolv"
)

const (
	CollisionSpaceTagPlanet = "planet"
	CollisionSpaceTagShip   = "ship"
)

// NewCollisionSpace creates an empty space covering the world.
func NewCollisionSpace() *resolv.Space {
	cell := constants.CollisionCellSize
	return resolv.NewSpace(int(constants.WorldWidth), int(constants.WorldHeight), cell, cell)
}
