// Package engine - state.go
// GameState and the per-tick result handed to renderers and the score service.
package engine

import (
	"time"

	"github.com/MRamiBalles/SnakeArcade/server/internal/domain/grid"
	"github.com/MRamiBalles/SnakeArcade/server/internal/domain/powerup"
	"github.com/MRamiBalles/SnakeArcade/server/internal/domain/rules"
)

// Boundary selects what happens when the head leaves the board.
type Boundary string

const (
	BoundaryClamp Boundary = "clamp" // Leaving the board ends the game
	BoundaryWrap  Boundary = "wrap"  // Leaving the board re-enters at the opposite edge
)

// ParseBoundary accepts "clamp" and "wrap".
func ParseBoundary(s string) (Boundary, bool) {
	switch b := Boundary(s); b {
	case BoundaryClamp, BoundaryWrap:
		return b, true
	}
	return "", false
}

// Status is the lifecycle state of a game.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusRunning    Status = "running"
	StatusPaused     Status = "paused"
	StatusGameOver   Status = "game_over"
)

// Outcome classifies what a single tick did.
type Outcome string

const (
	OutcomeIdle       Outcome = "idle" // Tick was skipped (not running)
	OutcomeContinuing Outcome = "continuing"
	OutcomeAteFood    Outcome = "ate_food"
	OutcomeGameOver   Outcome = "game_over"
)

// Reason explains a game-over.
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonWall      Reason = "wall"
	ReasonSelf      Reason = "self"
	ReasonBoardFull Reason = "board_full"
)

// PowerUp is a collectible lying on the board.
type PowerUp struct {
	Cell    grid.Cell    `json:"cell"`
	Kind    powerup.Kind `json:"kind"`
	Expires time.Time    `json:"expires"` // Disappears from the board after this
}

// Options configures a game. The zero value is not usable; start from DefaultOptions.
type Options struct {
	Board           grid.Board
	Boundary        Boundary
	Difficulty      rules.Difficulty
	Start           grid.Cell
	StartDirection  grid.Direction
	PowerUps        bool
	PowerUpChance   float64
	PowerUpDuration time.Duration
	PowerUpLifetime time.Duration
	Accelerate      bool
}

// DefaultOptions mirrors the browser game: 400x400 canvas, 20px cells, snake at (5,5) heading right.
func DefaultOptions() Options {
	return Options{
		Board:           grid.NewBoard(400, 400, 20),
		Boundary:        BoundaryClamp,
		Difficulty:      rules.Medium,
		Start:           grid.Cell{X: 5, Y: 5},
		StartDirection:  grid.Right,
		PowerUps:        true,
		PowerUpChance:   rules.PowerUpChance,
		PowerUpDuration: rules.PowerUpDuration,
		PowerUpLifetime: rules.PowerUpBoardLifetime,
		Accelerate:      true,
	}
}

// State is the complete mutable game state. Only Engine mutates it.
type State struct {
	Snake     []grid.Cell      `json:"snake"` // Head first
	Food      grid.Cell        `json:"food"`
	HasFood   bool             `json:"has_food"`
	PowerUp   *PowerUp         `json:"power_up,omitempty"`
	Effects   []powerup.Effect `json:"effects,omitempty"`
	Direction grid.Direction   `json:"direction"`
	Pending   grid.Direction   `json:"pending"`
	Score     int              `json:"score"`
	Interval  time.Duration    `json:"interval"` // Base interval before effects
	Status    Status           `json:"status"`
	Reason    Reason           `json:"reason,omitempty"`
	PausedAt  time.Time        `json:"paused_at,omitempty"`
}

// Clone returns a deep copy so callers can never alias engine slices.
func (s State) Clone() State {
	c := s
	c.Snake = append([]grid.Cell(nil), s.Snake...)
	c.Effects = append([]powerup.Effect(nil), s.Effects...)
	if s.PowerUp != nil {
		p := *s.PowerUp
		c.PowerUp = &p
	}
	return c
}

// TickResult is the structured outcome of one tick, consumed by renderers and the score service.
type TickResult struct {
	Tick            int64            `json:"tick"`
	Outcome         Outcome          `json:"outcome"`
	Reason          Reason           `json:"reason,omitempty"`
	Status          Status           `json:"status"`
	Score           int              `json:"score"`
	Snake           []grid.Cell      `json:"snake"`
	Direction       grid.Direction   `json:"direction"`
	Food            *grid.Cell       `json:"food,omitempty"`
	PowerUp         *PowerUp         `json:"power_up,omitempty"`
	Effects         []powerup.Effect `json:"effects,omitempty"`
	Interval        time.Duration    `json:"-"`
	IntervalMS      int64            `json:"interval_ms"`
	IntervalChanged bool             `json:"interval_changed,omitempty"`
	PowerUpTaken    powerup.Kind     `json:"power_up_taken,omitempty"`
	PowerUpSpawned  bool             `json:"power_up_spawned,omitempty"`
	Expired         []powerup.Kind   `json:"expired,omitempty"`
	Difficulty      rules.Difficulty `json:"difficulty"`
	Board           grid.Board       `json:"board"`
}

// Head returns the snake's head cell.
func (r TickResult) Head() grid.Cell {
	if len(r.Snake) == 0 {
		return grid.Cell{}
	}
	return r.Snake[0]
}
