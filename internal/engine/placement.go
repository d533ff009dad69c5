// Package engine - placement.go
// Random placement of food and power-ups on free cells.
package engine

import (
	"math/rand"

	"github.com/MRamiBalles/SnakeArcade/server/internal/domain/grid"
)

// maxPlacementAttempts bounds rejection sampling before falling back to a full scan.
const maxPlacementAttempts = 100

// PlaceFree picks a uniformly random cell not in occupied.
// It returns false only when every cell on the board is occupied.
func PlaceFree(b grid.Board, rng *rand.Rand, occupied map[grid.Cell]bool) (grid.Cell, bool) {
	if b.Area() <= 0 {
		return grid.Cell{}, false
	}

	// Cheap path while the board is mostly empty.
	if len(occupied) < b.Area()/2 {
		for attempts := 0; attempts < maxPlacementAttempts; attempts++ {
			c := grid.Cell{X: rng.Intn(b.Width), Y: rng.Intn(b.Height)}
			if !occupied[c] {
				return c, true
			}
		}
	}

	var free []grid.Cell
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			c := grid.Cell{X: x, Y: y}
			if !occupied[c] {
				free = append(free, c)
			}
		}
	}
	if len(free) == 0 {
		return grid.Cell{}, false
	}
	return free[rng.Intn(len(free))], true
}
