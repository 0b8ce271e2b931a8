package editor

import (
	"math"

	"github.com/polymicro/manager/pkg/models"
)

// DefaultGridSize is the canvas grid pitch blocks snap to.
const DefaultGridSize = 40

// Snap rounds v to the nearest multiple of pitch. A pitch <= 0 disables snapping.
func Snap(v, pitch float64) float64 {
	if pitch <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}

	snapped := math.Round(v/pitch) * pitch
	if snapped == 0 {
		return 0 // no negative zero
	}

	return snapped
}

// SnapPosition snaps each axis of p independently.
func SnapPosition(p models.Position, pitch float64) models.Position {
	return models.Position{
		X: Snap(p.X, pitch),
		Y: Snap(p.Y, pitch),
	}
}
