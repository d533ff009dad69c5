// Package grid defines the board geometry the snake moves on.
// This package is PURE and must NOT import any infrastructure packages.
package grid

import "fmt"

// Cell is a single square on the board. It has no identity beyond its coordinates.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// Step returns the neighbouring cell in direction d. The result may be off-grid.
func (c Cell) Step(d Direction) Cell {
	switch d {
	case Up:
		return Cell{X: c.X, Y: c.Y - 1}
	case Down:
		return Cell{X: c.X, Y: c.Y + 1}
	case Left:
		return Cell{X: c.X - 1, Y: c.Y}
	case Right:
		return Cell{X: c.X + 1, Y: c.Y}
	}
	return c
}

// Direction is one of the four headings a snake can travel.
type Direction string

const (
	Up    Direction = "up"
	Down  Direction = "down"
	Left  Direction = "left"
	Right Direction = "right"
)

// ParseDirection accepts the wire names used by clients.
func ParseDirection(s string) (Direction, bool) {
	switch d := Direction(s); d {
	case Up, Down, Left, Right:
		return d, true
	}
	return "", false
}

// Opposite returns the heading that would reverse d.
func (d Direction) Opposite() Direction {
	switch d {
	case Up:
		return Down
	case Down:
		return Up
	case Left:
		return Right
	case Right:
		return Left
	}
	return d
}

// Board is a W x H playfield. Valid cells are 0 <= x < Width, 0 <= y < Height.
type Board struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// NewBoard derives the board from a pixel canvas and a cell size,
// the way the browser client sizes its canvas (400px / 20px = 20 cells).
func NewBoard(canvasWidth, canvasHeight, cellSize int) Board {
	if cellSize <= 0 {
		cellSize = 1
	}
	return Board{Width: canvasWidth / cellSize, Height: canvasHeight / cellSize}
}

// Contains reports whether c lies on the board.
func (b Board) Contains(c Cell) bool {
	return c.X >= 0 && c.X < b.Width && c.Y >= 0 && c.Y < b.Height
}

// Wrap folds c back onto the board, re-entering at the opposite edge.
func (b Board) Wrap(c Cell) Cell {
	return Cell{X: mod(c.X, b.Width), Y: mod(c.Y, b.Height)}
}

// Area is the number of cells on the board.
func (b Board) Area() int {
	return b.Width * b.Height
}

func mod(a, n int) int {
	if n <= 0 {
		return 0
	}
	m := a % n
	if m < 0 {
		m += n
	}
	return m
}
