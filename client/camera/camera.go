package camera

import (
	"math"

	"github.com/cbodonnell/gravwell/pkg/kinematic"
)

const (
	// DefaultMargin is the screen space kept free around the framed bodies.
	DefaultMargin = 40
	minSpan       = 100
)

// Camera maps world coordinates to screen coordinates.
// World Y grows upward, screen Y grows downward.
type Camera struct {
	Center       kinematic.Vector
	Scale        float64
	ScreenWidth  float64
	ScreenHeight float64
}

// Fit returns a camera that frames every point on a screen of the given size.
// With no points the camera is centered on the origin at scale 1.
func Fit(points []kinematic.Vector, screenWidth, screenHeight, margin float64) Camera {
	c := Camera{
		Scale:        1,
		ScreenWidth:  screenWidth,
		ScreenHeight: screenHeight,
	}
	if len(points) == 0 {
		return c
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range points {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	c.Center = kinematic.Vector{X: (minX + maxX) / 2, Y: (minY + maxY) / 2}

	spanX := math.Max(maxX-minX, minSpan)
	spanY := math.Max(maxY-minY, minSpan)
	usableW := math.Max(screenWidth-2*margin, 1)
	usableH := math.Max(screenHeight-2*margin, 1)
	c.Scale = math.Min(usableW/spanX, usableH/spanY)
	return c
}

// ToScreen converts a world position to screen coordinates.
func (c Camera) ToScreen(p kinematic.Vector) (float64, float64) {
	x := (p.X-c.Center.X)*c.Scale + c.ScreenWidth/2
	y := c.ScreenHeight/2 - (p.Y-c.Center.Y)*c.Scale
	return x, y
}
