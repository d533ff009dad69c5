package engine

import (
	"math/rand"
	"testing"

	"github.com/MRamiBalles/SnakeArcade/server/internal/domain/grid"
)

func TestPlaceFreeAvoidsOccupied(t *testing.T) {
	b := grid.Board{Width: 20, Height: 20}
	rng := rand.New(rand.NewSource(3))

	for round := 0; round < 500; round++ {
		occupied := make(map[grid.Cell]bool)
		n := rng.Intn(b.Area())
		for len(occupied) < n {
			occupied[grid.Cell{X: rng.Intn(b.Width), Y: rng.Intn(b.Height)}] = true
		}

		c, ok := PlaceFree(b, rng, occupied)
		if !ok {
			t.Fatalf("Round %d: expected a free cell with %d/%d occupied", round, n, b.Area())
		}
		if occupied[c] || !b.Contains(c) {
			t.Fatalf("Round %d: placed on invalid cell %v", round, c)
		}
	}
}

func TestPlaceFreeFindsLastCell(t *testing.T) {
	b := grid.Board{Width: 5, Height: 5}
	occupied := make(map[grid.Cell]bool)
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			occupied[grid.Cell{X: x, Y: y}] = true
		}
	}
	last := grid.Cell{X: 4, Y: 4}
	delete(occupied, last)

	c, ok := PlaceFree(b, rand.New(rand.NewSource(1)), occupied)
	if !ok || c != last {
		t.Errorf("Expected %v, got %v (ok=%v)", last, c, ok)
	}
}

func TestPlaceFreeFullBoard(t *testing.T) {
	b := grid.Board{Width: 2, Height: 2}
	occupied := map[grid.Cell]bool{
		{X: 0, Y: 0}: true, {X: 1, Y: 0}: true,
		{X: 0, Y: 1}: true, {X: 1, Y: 1}: true,
	}
	if _, ok := PlaceFree(b, rand.New(rand.NewSource(1)), occupied); ok {
		t.Errorf("Expected no placement on a full board")
	}
	if _, ok := PlaceFree(grid.Board{}, rand.New(rand.NewSource(1)), nil); ok {
		t.Errorf("Expected no placement on an empty board")
	}
}

func TestPlaceFreeReachesEdges(t *testing.T) {
	b := grid.Board{Width: 4, Height: 4}
	rng := rand.New(rand.NewSource(11))
	seen := make(map[grid.Cell]bool)
	for i := 0; i < 2000; i++ {
		c, _ := PlaceFree(b, rng, nil)
		seen[c] = true
	}
	if len(seen) != b.Area() {
		t.Errorf("Expected every cell to be reachable, saw %d of %d", len(seen), b.Area())
	}
}
